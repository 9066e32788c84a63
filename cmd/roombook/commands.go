package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/jae1jeong/meeting-resv-sub001/internal/application"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

type command func(ctx context.Context, a *app, args []string, stderr io.Writer) int

var commands = map[string]command{
	"migrate":     runMigrate,
	"book":        runBook,
	"book-series": runBookSeries,
	"reschedule":  runReschedule,
	"exception":   runException,
	"cancel":      runCancel,
	"day":         runDay,
}

type globalFlags struct {
	configFile string
}

func parseGlobal(args []string, stderr io.Writer) (globalFlags, []string, error) {
	var g globalFlags
	fset := flag.NewFlagSet("roombook", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.StringVar(&g.configFile, "config", "", "config file (default booking.yaml when present)")
	fset.Usage = func() { usage(stderr) }
	if err := fset.Parse(args); err != nil {
		return g, nil, err
	}
	return g, fset.Args(), nil
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: roombook [-config file] <command> [flags]

commands:
  migrate       apply the store schema
  book          reserve one slot
  book-series   reserve a weekly series
  reschedule    move a reservation
  exception     skip or move one occurrence of a series
  cancel        cancel a reservation or a series
  day           list a room's reservations and free slots
`)
}

// principalFlags registers the acting user flags shared by mutating commands.
func principalFlags(fset *flag.FlagSet) *application.Principal {
	p := &application.Principal{}
	fset.StringVar(&p.UserID, "user", "", "acting user ID")
	fset.BoolVar(&p.IsAdmin, "admin", false, "act as an administrator")
	return p
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	fset.SetOutput(stderr)
	return fset
}

func runMigrate(ctx context.Context, a *app, args []string, stderr io.Writer) int {
	fset := newFlagSet("migrate", stderr)
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}
	// The store applied its schema while opening.
	return a.emit(migrateView{Store: string(a.cfg.Store), Migrated: true})
}

func runBook(ctx context.Context, a *app, args []string, stderr io.Writer) int {
	fset := newFlagSet("book", stderr)
	principal := principalFlags(fset)
	var in application.BookInput
	fset.StringVar(&in.RoomID, "room", "", "room ID")
	fset.StringVar(&in.Date, "date", "", "day as YYYY-MM-DD")
	fset.StringVar(&in.Start, "start", "", "start time HH:mm")
	fset.StringVar(&in.End, "end", "", "end time HH:mm")
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}

	out, err := a.service.Book(ctx, application.BookParams{Principal: *principal, Input: in})
	if err != nil {
		return a.fail(err)
	}
	return a.emitOutcome(out)
}

func runBookSeries(ctx context.Context, a *app, args []string, stderr io.Writer) int {
	fset := newFlagSet("book-series", stderr)
	principal := principalFlags(fset)
	var (
		in       application.SeriesInput
		weekdays string
		skips    string
		limit    int
	)
	fset.StringVar(&in.RoomID, "room", "", "room ID")
	fset.StringVar(&in.StartsOn, "starts-on", "", "first day as YYYY-MM-DD")
	fset.StringVar(&in.EndsOn, "ends-on", "", "last day as YYYY-MM-DD")
	fset.IntVar(&limit, "limit", 0, "number of occurrences")
	fset.StringVar(&weekdays, "weekdays", "", "comma separated weekdays, e.g. mon,wed")
	fset.IntVar(&in.IntervalWeeks, "every", 1, "repeat every N weeks")
	fset.StringVar(&in.Start, "start", "", "start time HH:mm")
	fset.StringVar(&in.End, "end", "", "end time HH:mm")
	fset.StringVar(&in.Until, "until", "", "horizon for a series with no end, YYYY-MM-DD")
	fset.StringVar(&skips, "skip", "", "comma separated days to leave out")
	fset.StringVar(&in.Policy, "policy", "", "all_or_nothing or partial")
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}
	if isSet(fset, "limit") {
		in.Limit = &limit
	}
	in.Weekdays = splitList(weekdays)
	for _, d := range splitList(skips) {
		in.Exceptions = append(in.Exceptions, application.ExceptionInput{Date: d, Action: "skip"})
	}

	result, err := a.service.BookSeries(ctx, application.BookSeriesParams{Principal: *principal, Input: in})
	if err != nil {
		return a.fail(err)
	}
	code := a.emit(newSeriesView(result))
	if code == exitOK && result.Outcome.Status != scheduler.SeriesCommitted {
		return exitConflict
	}
	return code
}

func runReschedule(ctx context.Context, a *app, args []string, stderr io.Writer) int {
	fset := newFlagSet("reschedule", stderr)
	principal := principalFlags(fset)
	var (
		id string
		in application.BookInput
	)
	fset.StringVar(&id, "id", "", "reservation ID")
	fset.StringVar(&in.Date, "date", "", "new day as YYYY-MM-DD")
	fset.StringVar(&in.Start, "start", "", "new start time HH:mm")
	fset.StringVar(&in.End, "end", "", "new end time HH:mm")
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}

	out, err := a.service.Reschedule(ctx, application.RescheduleParams{Principal: *principal, ReservationID: id, Input: in})
	if err != nil {
		return a.fail(err)
	}
	return a.emitOutcome(out)
}

func runException(ctx context.Context, a *app, args []string, stderr io.Writer) int {
	fset := newFlagSet("exception", stderr)
	principal := principalFlags(fset)
	var (
		patternID string
		in        application.ExceptionInput
	)
	fset.StringVar(&patternID, "series", "", "series (pattern) ID")
	fset.StringVar(&in.Date, "date", "", "occurrence day as YYYY-MM-DD")
	fset.StringVar(&in.Action, "action", "skip", "skip or modify")
	fset.StringVar(&in.Start, "start", "", "new start time HH:mm for modify")
	fset.StringVar(&in.End, "end", "", "new end time HH:mm for modify")
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}

	result, err := a.service.AddException(ctx, application.AddExceptionParams{Principal: *principal, PatternID: patternID, Input: in})
	if err != nil {
		return a.fail(err)
	}
	code := a.emit(newExceptionView(result))
	if code == exitOK && result.Outcome != nil && result.Outcome.State != scheduler.Committed {
		return exitConflict
	}
	return code
}

func runCancel(ctx context.Context, a *app, args []string, stderr io.Writer) int {
	fset := newFlagSet("cancel", stderr)
	principal := principalFlags(fset)
	var id, patternID, from string
	fset.StringVar(&id, "id", "", "reservation ID")
	fset.StringVar(&patternID, "series", "", "series (pattern) ID")
	fset.StringVar(&from, "from", "", "with -series, first day to cancel (default today)")
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}
	if (id == "") == (patternID == "") {
		fmt.Fprintln(stderr, "cancel: exactly one of -id or -series is required")
		return exitUsage
	}

	if patternID != "" {
		result, err := a.service.CancelSeries(ctx, application.CancelSeriesParams{Principal: *principal, PatternID: patternID, From: from})
		if err != nil {
			return a.fail(err)
		}
		return a.emit(cancelSeriesView{PatternID: result.PatternID, Cancelled: result.Cancelled, PatternDeleted: result.PatternDeleted})
	}
	if err := a.service.Cancel(ctx, application.CancelParams{Principal: *principal, ReservationID: id}); err != nil {
		return a.fail(err)
	}
	return a.emit(cancelView{ReservationID: id, Cancelled: true})
}

func runDay(ctx context.Context, a *app, args []string, stderr io.Writer) int {
	fset := newFlagSet("day", stderr)
	var params application.DayScheduleParams
	fset.StringVar(&params.RoomID, "room", "", "room ID")
	fset.StringVar(&params.Date, "date", "", "day as YYYY-MM-DD")
	fset.StringVar(&params.Open, "open", "", "opening time HH:mm (default 00:00)")
	fset.StringVar(&params.Close, "close", "", "closing time HH:mm (default 24:00)")
	fset.IntVar(&params.LengthMinutes, "length", 0, "free slot length in minutes (default 30)")
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}

	view, err := a.service.DaySchedule(ctx, params)
	if err != nil {
		return a.fail(err)
	}
	return a.emit(newDayView(view))
}

func (a *app) emitOutcome(out scheduler.Outcome) int {
	code := a.emit(newOutcomeView(out))
	if code == exitOK && out.State == scheduler.Conflicted {
		return exitConflict
	}
	return code
}

func (a *app) emit(v any) int {
	if err := a.out.write(v); err != nil {
		a.logger.Error("failed to write output", "error", err)
		return exitFailure
	}
	return exitOK
}

// fail prints the error as a JSON line; validation errors keep their fields.
func (a *app) fail(err error) int {
	view := errorView{Error: err.Error(), Kind: application.ErrorKind(err)}
	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		view.Fields = vErr.FieldErrors
	}
	if code := a.emit(view); code != exitOK {
		return code
	}
	return exitFailure
}

func isSet(fset *flag.FlagSet, name string) bool {
	found := false
	fset.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

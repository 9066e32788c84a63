package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/recurrence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

// Authorizer decides whether a principal may book a room.
type Authorizer interface {
	CanBook(ctx context.Context, principal Principal, roomID string) (bool, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, principal Principal, roomID string) (bool, error)

// CanBook implements Authorizer.
func (f AuthorizerFunc) CanBook(ctx context.Context, principal Principal, roomID string) (bool, error) {
	return f(ctx, principal, roomID)
}

// BookingServiceConfig wires a BookingService. Engine, Reservations and
// Patterns are required; a nil Authorizer lets every signed-in principal book.
type BookingServiceConfig struct {
	Engine       *scheduler.Engine
	Reservations persistence.ReservationStore
	Patterns     persistence.PatternRepository
	Authorizer   Authorizer
	NewID        func() string
	Clock        calendar.Clock
	Logger       *slog.Logger
}

// BookingService turns caller input into engine requests and keeps stored
// series definitions in step with their reservations.
type BookingService struct {
	engine       *scheduler.Engine
	reservations persistence.ReservationStore
	patterns     persistence.PatternRepository
	authorizer   Authorizer
	newID        func() string
	clock        calendar.Clock
	logger       *slog.Logger
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(cfg BookingServiceConfig) (*BookingService, error) {
	switch {
	case cfg.Engine == nil:
		return nil, errors.New("application: engine is required")
	case cfg.Reservations == nil:
		return nil, errors.New("application: reservation store is required")
	case cfg.Patterns == nil:
		return nil, errors.New("application: pattern repository is required")
	}
	s := &BookingService{
		engine:       cfg.Engine,
		reservations: cfg.Reservations,
		patterns:     cfg.Patterns,
		authorizer:   cfg.Authorizer,
		newID:        cfg.NewID,
		clock:        cfg.Clock,
		logger:       defaultLogger(cfg.Logger),
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.clock == nil {
		s.clock = calendar.ClockFunc(time.Now)
	}
	return s, nil
}

func (s *BookingService) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// Book reserves one slot for the principal. A conflicted outcome is returned
// with a nil error; the error is reserved for rejected input and failures.
func (s *BookingService) Book(ctx context.Context, params BookParams) (scheduler.Outcome, error) {
	if s == nil {
		return scheduler.Outcome{}, fmt.Errorf("BookingService is nil")
	}
	logger := s.log(ctx, "Book", "room_id", params.Input.RoomID, "user_id", params.Principal.UserID)

	if params.Principal.UserID == "" {
		return scheduler.Outcome{}, ErrUnauthorized
	}
	fields, vErr := parseBookInput(params.Input)
	if vErr.HasErrors() {
		logFailure(ctx, logger, "booking rejected", vErr)
		return scheduler.Outcome{}, vErr
	}
	if err := s.authorizeBooking(ctx, params.Principal, fields.roomID); err != nil {
		logFailure(ctx, logger, "booking rejected", err)
		return scheduler.Outcome{}, err
	}

	out := s.engine.Reserve(ctx, scheduler.Request{
		RoomID:   fields.roomID,
		OwnerID:  params.Principal.UserID,
		Date:     fields.date,
		Interval: fields.interval,
	})
	return out, s.outcomeError(ctx, logger, out, "date")
}

// BookSeries stores a recurring booking and commits its occurrences. A series
// that commits nothing leaves no pattern behind and reports an empty
// PatternID.
func (s *BookingService) BookSeries(ctx context.Context, params BookSeriesParams) (SeriesResult, error) {
	if s == nil {
		return SeriesResult{}, fmt.Errorf("BookingService is nil")
	}
	logger := s.log(ctx, "BookSeries", "room_id", params.Input.RoomID, "user_id", params.Principal.UserID)

	if params.Principal.UserID == "" {
		return SeriesResult{}, ErrUnauthorized
	}
	fields, vErr := parseSeriesInput(params.Input)
	if vErr.HasErrors() {
		logFailure(ctx, logger, "series rejected", vErr)
		return SeriesResult{}, vErr
	}
	if err := s.authorizeBooking(ctx, params.Principal, fields.roomID); err != nil {
		logFailure(ctx, logger, "series rejected", err)
		return SeriesResult{}, err
	}

	pattern, err := recurrence.NewPattern(fields.spec)
	if err != nil {
		err = fieldError(patternField(err))
		logFailure(ctx, logger, "series rejected", err)
		return SeriesResult{}, err
	}
	expander, err := recurrence.NewExpander(pattern, fields.exceptions)
	if err != nil {
		err = fieldError(patternField(err))
		logFailure(ctx, logger, "series rejected", err)
		return SeriesResult{}, err
	}

	patternID := s.newID()
	logger = logger.With("pattern_id", patternID)
	record := persistence.NewPatternRecord(patternID, fields.roomID, params.Principal.UserID, pattern, s.clock.Now().UTC())
	if err := s.patterns.SavePattern(ctx, record); err != nil {
		err = fmt.Errorf("%w: save pattern: %w", ErrStore, err)
		logFailure(ctx, logger, "failed to save pattern", err)
		return SeriesResult{}, err
	}
	for _, ex := range fields.exceptions {
		if err := s.patterns.UpsertException(ctx, persistence.NewExceptionRecord(patternID, ex)); err != nil {
			s.discardPattern(ctx, logger, patternID)
			err = fmt.Errorf("%w: save exception on %s: %w", ErrStore, ex.OnDate, err)
			logFailure(ctx, logger, "failed to save exception", err)
			return SeriesResult{}, err
		}
	}

	outcome, err := s.engine.ReserveSeries(ctx, scheduler.SeriesRequest{
		RoomID:    fields.roomID,
		OwnerID:   params.Principal.UserID,
		PatternID: patternID,
		Expander:  expander,
		Until:     fields.until,
		Policy:    fields.policy,
	})
	if err != nil {
		s.discardPattern(ctx, logger, patternID)
		err = translateError(err, "starts_on")
		logFailure(ctx, logger, "series rejected", err)
		return SeriesResult{}, err
	}

	if outcome.Status == scheduler.SeriesRejected {
		s.discardPattern(ctx, logger, patternID)
		if outcome.Count(scheduler.Conflicted) == 0 {
			if err := firstAbort(outcome); err != nil {
				err = translateError(err, "starts_on")
				logFailure(ctx, logger, "series aborted", err)
				return SeriesResult{Outcome: outcome}, err
			}
		}
		logger.InfoContext(ctx, "series not booked",
			"error_kind", "conflict",
			"conflicted", outcome.Count(scheduler.Conflicted),
		)
		return SeriesResult{Outcome: outcome}, nil
	}

	logger.InfoContext(ctx, "series booked",
		"status", outcome.Status.String(),
		"committed", outcome.Count(scheduler.Committed),
		"conflicted", outcome.Count(scheduler.Conflicted),
	)
	return SeriesResult{PatternID: patternID, Outcome: outcome}, nil
}

// Cancel removes a reservation. Only its owner or an admin may cancel.
func (s *BookingService) Cancel(ctx context.Context, params CancelParams) error {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}
	logger := s.log(ctx, "Cancel", "reservation_id", params.ReservationID, "user_id", params.Principal.UserID)

	existing, err := s.reservations.Get(ctx, params.ReservationID)
	if err != nil {
		err = translateError(err, "")
		logFailure(ctx, logger, "failed to cancel reservation", err)
		return err
	}
	if err := authorizeOwner(params.Principal, existing.OwnerID); err != nil {
		logFailure(ctx, logger, "failed to cancel reservation", err)
		return err
	}
	if err := s.engine.Cancel(ctx, existing.ID); err != nil {
		err = translateError(err, "")
		logFailure(ctx, logger, "failed to cancel reservation", err)
		return err
	}
	logger.InfoContext(ctx, "reservation cancelled")
	return nil
}

// Reschedule moves a reservation to another day or interval in the same room.
// The moved reservation gets a new ID; the outcome's Replaced names the old one.
func (s *BookingService) Reschedule(ctx context.Context, params RescheduleParams) (scheduler.Outcome, error) {
	if s == nil {
		return scheduler.Outcome{}, fmt.Errorf("BookingService is nil")
	}
	logger := s.log(ctx, "Reschedule", "reservation_id", params.ReservationID, "user_id", params.Principal.UserID)

	existing, err := s.reservations.Get(ctx, params.ReservationID)
	if err != nil {
		err = translateError(err, "")
		logFailure(ctx, logger, "failed to reschedule reservation", err)
		return scheduler.Outcome{}, err
	}
	if err := authorizeOwner(params.Principal, existing.OwnerID); err != nil {
		logFailure(ctx, logger, "failed to reschedule reservation", err)
		return scheduler.Outcome{}, err
	}

	input := params.Input
	if strings.TrimSpace(input.RoomID) == "" {
		input.RoomID = existing.RoomID
	}
	fields, vErr := parseBookInput(input)
	if fields.roomID != "" && fields.roomID != existing.RoomID {
		vErr.add("room_id", "cannot change the room of a reservation")
	}
	if vErr.HasErrors() {
		logFailure(ctx, logger, "failed to reschedule reservation", vErr)
		return scheduler.Outcome{}, vErr
	}

	out := s.engine.Reschedule(ctx, existing.ID, fields.date, fields.interval)
	return out, s.outcomeError(ctx, logger, out, "date")
}

// AddException overrides one occurrence of a stored series. Skip stores the
// exception, then cancels the occurrence's reservation, and on a series
// bounded by an occurrence count books the occurrence that moves into the
// series in its place. Modify moves the occurrence and is only stored once
// the move commits; on a counted series a skipped date coming back releases
// the tail occurrence it had pulled in.
func (s *BookingService) AddException(ctx context.Context, params AddExceptionParams) (ExceptionResult, error) {
	if s == nil {
		return ExceptionResult{}, fmt.Errorf("BookingService is nil")
	}
	logger := s.log(ctx, "AddException", "pattern_id", params.PatternID, "user_id", params.Principal.UserID)
	fail := func(err error) (ExceptionResult, error) {
		logFailure(ctx, logger, "failed to add exception", err)
		return ExceptionResult{}, err
	}

	record, err := s.patterns.GetPattern(ctx, params.PatternID)
	if err != nil {
		return fail(translateError(err, ""))
	}
	if err := authorizeOwner(params.Principal, record.OwnerID); err != nil {
		return fail(err)
	}

	vErr := &ValidationError{}
	ex := parseExceptionInput(vErr, "", params.Input)
	if vErr.HasErrors() {
		return fail(vErr)
	}

	pattern, stored, err := s.loadSeries(ctx, record)
	if err != nil {
		return fail(err)
	}
	others := withoutDate(stored, ex.OnDate)
	base, err := recurrence.NewExpander(pattern, others)
	if err != nil {
		return fail(fmt.Errorf("%w: pattern %s: %w", ErrStore, record.ID, err))
	}
	if len(base.Window(ex.OnDate, ex.OnDate)) == 0 {
		return fail(fieldError("date", "is not an occurrence of the series"))
	}
	updated, err := recurrence.NewExpander(pattern, append(others, ex))
	if err != nil {
		return fail(fieldError(patternField(err)))
	}

	current, err := s.occurrenceReservation(ctx, record.ID, ex.OnDate)
	if err != nil {
		return fail(translateError(err, ""))
	}

	result := ExceptionResult{PatternID: record.ID, Date: ex.OnDate}
	logger = logger.With("date", ex.OnDate.String(), "action", ex.Action.String())

	limit, counted := pattern.Limit()
	var previous *recurrence.Expander
	if counted {
		if previous, err = recurrence.NewExpander(pattern, stored); err != nil {
			return fail(fmt.Errorf("%w: pattern %s: %w", ErrStore, record.ID, err))
		}
	}

	switch ex.Action {
	case recurrence.Skip:
		if err := s.patterns.UpsertException(ctx, persistence.NewExceptionRecord(record.ID, ex)); err != nil {
			return fail(fmt.Errorf("%w: save exception: %w", ErrStore, err))
		}
		if current != nil {
			if err := s.engine.Cancel(ctx, current.ID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
				s.restoreException(ctx, logger, record.ID, ex.OnDate, stored)
				return fail(translateError(err, ""))
			}
			result.Cancelled = current.ID
		}
		if counted {
			result.Extended = s.extendSeries(ctx, record, previous, updated, limit)
		}

	case recurrence.Modify:
		var out scheduler.Outcome
		if current != nil {
			out = s.engine.Reschedule(ctx, current.ID, ex.OnDate, ex.Interval)
		} else {
			out = s.engine.Reserve(ctx, scheduler.Request{
				RoomID:          record.RoomID,
				OwnerID:         record.OwnerID,
				Date:            ex.OnDate,
				Interval:        ex.Interval,
				OriginPatternID: &record.ID,
			})
		}
		result.Outcome = &out
		if out.State != scheduler.Committed {
			return result, s.outcomeError(ctx, logger, out, "date")
		}
		if err := s.patterns.UpsertException(ctx, persistence.NewExceptionRecord(record.ID, ex)); err != nil {
			return fail(fmt.Errorf("%w: save exception: %w", ErrStore, err))
		}
		if counted {
			released, err := s.trimSeries(ctx, record.ID, previous, updated, limit)
			result.Released = released
			if err != nil {
				return fail(translateError(err, ""))
			}
		}
	}

	logger.InfoContext(ctx, "exception added", "cancelled", result.Cancelled)
	return result, nil
}

// CancelSeries cancels every reservation of a series dated on or after From.
// When From is on or before the first day the pattern itself is removed.
func (s *BookingService) CancelSeries(ctx context.Context, params CancelSeriesParams) (CancelSeriesResult, error) {
	if s == nil {
		return CancelSeriesResult{}, fmt.Errorf("BookingService is nil")
	}
	logger := s.log(ctx, "CancelSeries", "pattern_id", params.PatternID, "user_id", params.Principal.UserID)
	fail := func(result CancelSeriesResult, err error) (CancelSeriesResult, error) {
		logFailure(ctx, logger, "failed to cancel series", err)
		return result, err
	}

	record, err := s.patterns.GetPattern(ctx, params.PatternID)
	if err != nil {
		return fail(CancelSeriesResult{}, translateError(err, ""))
	}
	if err := authorizeOwner(params.Principal, record.OwnerID); err != nil {
		return fail(CancelSeriesResult{}, err)
	}

	from := calendar.Today(s.clock)
	if strings.TrimSpace(params.From) != "" {
		vErr := &ValidationError{}
		from = parseDateField(vErr, "from", params.From)
		if vErr.HasErrors() {
			return fail(CancelSeriesResult{}, vErr)
		}
	}

	reservations, err := s.reservations.ListByPattern(ctx, record.ID, from)
	if err != nil {
		return fail(CancelSeriesResult{}, translateError(err, ""))
	}
	result := CancelSeriesResult{PatternID: record.ID, Cancelled: make([]string, 0, len(reservations))}
	for _, r := range reservations {
		if err := s.engine.Cancel(ctx, r.ID); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				continue
			}
			return fail(result, translateError(err, ""))
		}
		result.Cancelled = append(result.Cancelled, r.ID)
	}

	if from <= record.StartsOn {
		if err := s.patterns.DeletePattern(ctx, record.ID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
			return fail(result, fmt.Errorf("%w: delete pattern: %w", ErrStore, err))
		}
		result.PatternDeleted = true
	}

	logger.InfoContext(ctx, "series cancelled",
		"from", from.String(),
		"cancelled", len(result.Cancelled),
		"pattern_deleted", result.PatternDeleted,
	)
	return result, nil
}

// DaySchedule lists a room's reservations for one day with the free slots
// inside the requested opening hours.
func (s *BookingService) DaySchedule(ctx context.Context, params DayScheduleParams) (DayView, error) {
	if s == nil {
		return DayView{}, fmt.Errorf("BookingService is nil")
	}
	logger := s.log(ctx, "DaySchedule", "room_id", params.RoomID, "date", params.Date)

	vErr := &ValidationError{}
	roomID := strings.TrimSpace(params.RoomID)
	if roomID == "" {
		vErr.add("room_id", "is required")
	}
	day := parseDateField(vErr, "date", params.Date)
	opensAt, closesAt := params.Open, params.Close
	if opensAt == "" {
		opensAt = "00:00"
	}
	if closesAt == "" {
		closesAt = "24:00"
	}
	hours := parseIntervalFields(vErr, "", opensAt, closesAt)
	length := calendar.Minute(params.LengthMinutes)
	if length == 0 {
		length = calendar.SlotMinutes
	}
	if length < 0 || length%calendar.SlotMinutes != 0 {
		vErr.add("length", "must be a positive multiple of 30 minutes")
	}
	if vErr.HasErrors() {
		logFailure(ctx, logger, "failed to list day", vErr)
		return DayView{}, vErr
	}

	reservations, err := s.reservations.FindForRoomOnDate(ctx, roomID, day)
	if err != nil {
		err = translateError(err, "")
		logFailure(ctx, logger, "failed to list day", err)
		return DayView{}, err
	}
	return DayView{
		RoomID:       roomID,
		Date:         day,
		Reservations: reservations,
		Free:         scheduler.FreeSlots(reservations, roomID, day, hours.Start(), hours.End(), length),
	}, nil
}

func (s *BookingService) authorizeBooking(ctx context.Context, principal Principal, roomID string) error {
	if principal.UserID == "" {
		return ErrUnauthorized
	}
	if s.authorizer == nil || principal.IsAdmin {
		return nil
	}
	ok, err := s.authorizer.CanBook(ctx, principal, roomID)
	if err != nil {
		return fmt.Errorf("application: authorize booking: %w", err)
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

func authorizeOwner(principal Principal, ownerID string) error {
	if principal.UserID == "" {
		return ErrUnauthorized
	}
	if ownerID != principal.UserID && !principal.IsAdmin {
		return ErrUnauthorized
	}
	return nil
}

// outcomeError logs a single-slot outcome and returns the caller facing error
// for aborted attempts.
func (s *BookingService) outcomeError(ctx context.Context, logger *slog.Logger, out scheduler.Outcome, dateField string) error {
	switch out.State {
	case scheduler.Committed:
		logger.InfoContext(ctx, "reservation committed", "reservation_id", out.Reservation.ID)
		return nil
	case scheduler.Conflicted:
		logger.InfoContext(ctx, "slot unavailable", "error_kind", "conflict", "conflicts", len(out.Conflicts))
		return nil
	default:
		err := translateError(out.Err, dateField)
		logFailure(ctx, logger, "reservation aborted", err)
		return err
	}
}

func (s *BookingService) loadSeries(ctx context.Context, record persistence.PatternRecord) (recurrence.Pattern, []recurrence.Exception, error) {
	pattern, err := record.Pattern()
	if err != nil {
		return recurrence.Pattern{}, nil, fmt.Errorf("%w: pattern %s: %w", ErrStore, record.ID, err)
	}
	records, err := s.patterns.ListExceptions(ctx, record.ID)
	if err != nil {
		return recurrence.Pattern{}, nil, translateError(err, "")
	}
	exceptions := make([]recurrence.Exception, 0, len(records))
	for _, rec := range records {
		ex, err := rec.Exception()
		if err != nil {
			return recurrence.Pattern{}, nil, fmt.Errorf("%w: %w", ErrStore, err)
		}
		exceptions = append(exceptions, ex)
	}
	return pattern, exceptions, nil
}

func (s *BookingService) occurrenceReservation(ctx context.Context, patternID string, day calendar.Anchor) (*scheduler.Reservation, error) {
	reservations, err := s.reservations.ListByPattern(ctx, patternID, day)
	if err != nil {
		return nil, err
	}
	for _, r := range reservations {
		if r.OnDate == day {
			return &r, nil
		}
	}
	return nil, nil
}

// trimSeries cancels the reservations on dates a counted series no longer
// produces, which happens when a skipped date comes back as a modify.
func (s *BookingService) trimSeries(ctx context.Context, patternID string, previous, updated *recurrence.Expander, limit int) ([]string, error) {
	kept := make(map[calendar.Anchor]bool, limit)
	for _, occ := range updated.Take(limit) {
		kept[occ.Date] = true
	}
	var released []string
	for _, occ := range previous.Take(limit) {
		if kept[occ.Date] {
			continue
		}
		r, err := s.occurrenceReservation(ctx, patternID, occ.Date)
		if err != nil {
			return released, err
		}
		if r == nil {
			continue
		}
		if err := s.engine.Cancel(ctx, r.ID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
			return released, err
		}
		released = append(released, r.ID)
	}
	return released, nil
}

// restoreException puts back whatever exception was stored for day before a
// failed skip replaced it.
func (s *BookingService) restoreException(ctx context.Context, logger *slog.Logger, patternID string, day calendar.Anchor, stored []recurrence.Exception) {
	err := s.patterns.DeleteException(ctx, patternID, day)
	if errors.Is(err, persistence.ErrNotFound) {
		err = nil
	}
	for _, prior := range stored {
		if prior.OnDate == day && err == nil {
			err = s.patterns.UpsertException(ctx, persistence.NewExceptionRecord(patternID, prior))
		}
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to restore exception", "error", err, "error_kind", "store")
	}
}

// extendSeries books the occurrence a skip pulled into a counted series.
func (s *BookingService) extendSeries(ctx context.Context, record persistence.PatternRecord, previous, updated *recurrence.Expander, limit int) *scheduler.Outcome {
	before := previous.Take(limit)
	after := updated.Take(limit)
	if len(after) == 0 {
		return nil
	}
	tail := after[len(after)-1]
	if len(before) > 0 && tail.Date <= before[len(before)-1].Date {
		return nil
	}
	out := s.engine.Reserve(ctx, scheduler.Request{
		RoomID:          record.RoomID,
		OwnerID:         record.OwnerID,
		Date:            tail.Date,
		Interval:        tail.Interval,
		OriginPatternID: &record.ID,
	})
	return &out
}

func (s *BookingService) discardPattern(ctx context.Context, logger *slog.Logger, patternID string) {
	if err := s.patterns.DeletePattern(ctx, patternID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		logger.ErrorContext(ctx, "failed to discard pattern", "error", err, "error_kind", "store")
	}
}

func withoutDate(exceptions []recurrence.Exception, day calendar.Anchor) []recurrence.Exception {
	out := make([]recurrence.Exception, 0, len(exceptions)+1)
	for _, ex := range exceptions {
		if ex.OnDate != day {
			out = append(out, ex)
		}
	}
	return out
}

func firstAbort(outcome scheduler.SeriesOutcome) error {
	for _, o := range outcome.Outcomes {
		if o.State == scheduler.Aborted && o.Err != nil && !errors.Is(o.Err, scheduler.ErrSeriesRejected) {
			return o.Err
		}
	}
	return nil
}

// translateError maps engine and store errors onto the service's error
// vocabulary. dateField names the input field a past-date rejection blames.
func translateError(err error, dateField string) error {
	if err == nil {
		return nil
	}
	if dateField == "" {
		dateField = "date"
	}
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrStore),
		scheduler.IsConflict(err),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, scheduler.ErrReservationGone):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, scheduler.ErrPastDate):
		return fieldError(dateField, "cannot be in the past")
	case errors.Is(err, scheduler.ErrUnboundedSeries):
		return fieldError("until", "is required when the series has no end date or limit")
	case errors.Is(err, scheduler.ErrSeriesTooLong):
		return fieldError("series", "has more occurrences than allowed")
	case errors.Is(err, scheduler.ErrInvalidRequest):
		return fieldError("request", err.Error())
	case errors.Is(err, recurrence.ErrInvalidPattern):
		return fieldError(patternField(err))
	default:
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
}

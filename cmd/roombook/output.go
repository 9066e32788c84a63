package main

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/jae1jeong/meeting-resv-sub001/internal/application"
	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

// encoder writes one JSON document per line.
type encoder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newEncoder(w io.Writer) *encoder {
	return &encoder{enc: json.NewEncoder(w)}
}

func (e *encoder) write(v any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(v)
}

type reservationView struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"room_id"`
	Date      calendar.Anchor `json:"date"`
	Start     string          `json:"start"`
	End       string          `json:"end"`
	OwnerID   string          `json:"owner_id"`
	PatternID string          `json:"pattern_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func newReservationView(r scheduler.Reservation) reservationView {
	v := reservationView{
		ID:        r.ID,
		RoomID:    r.RoomID,
		Date:      r.OnDate,
		Start:     r.Interval.Start().String(),
		End:       r.Interval.End().String(),
		OwnerID:   r.OwnerID,
		CreatedAt: r.CreatedAt,
	}
	if r.OriginPatternID != nil {
		v.PatternID = *r.OriginPatternID
	}
	return v
}

func newReservationViews(rs []scheduler.Reservation) []reservationView {
	out := make([]reservationView, 0, len(rs))
	for _, r := range rs {
		out = append(out, newReservationView(r))
	}
	return out
}

type outcomeView struct {
	State       string            `json:"state"`
	Date        calendar.Anchor   `json:"date"`
	Start       string            `json:"start,omitempty"`
	End         string            `json:"end,omitempty"`
	Reservation *reservationView  `json:"reservation,omitempty"`
	Conflicts   []reservationView `json:"conflicts,omitempty"`
	Replaced    string            `json:"replaced,omitempty"`
	Error       string            `json:"error,omitempty"`
}

func newOutcomeView(o scheduler.Outcome) outcomeView {
	v := outcomeView{
		State:    o.State.String(),
		Date:     o.Slot.Date,
		Replaced: o.Replaced,
	}
	if !o.Slot.Interval.IsZero() {
		v.Start = o.Slot.Interval.Start().String()
		v.End = o.Slot.Interval.End().String()
	}
	if o.State == scheduler.Committed {
		r := newReservationView(o.Reservation)
		v.Reservation = &r
	}
	if len(o.Conflicts) > 0 {
		v.Conflicts = newReservationViews(o.Conflicts)
	}
	if err := o.Error(); err != nil {
		v.Error = err.Error()
	}
	return v
}

type seriesView struct {
	PatternID   string        `json:"pattern_id,omitempty"`
	Status      string        `json:"status"`
	Policy      string        `json:"policy"`
	Committed   int           `json:"committed"`
	Conflicted  int           `json:"conflicted"`
	Aborted     int           `json:"aborted"`
	Occurrences []outcomeView `json:"occurrences"`
}

func newSeriesView(result application.SeriesResult) seriesView {
	o := result.Outcome
	v := seriesView{
		PatternID:   result.PatternID,
		Status:      o.Status.String(),
		Policy:      o.Policy.String(),
		Committed:   o.Count(scheduler.Committed),
		Conflicted:  o.Count(scheduler.Conflicted),
		Aborted:     o.Count(scheduler.Aborted),
		Occurrences: make([]outcomeView, 0, len(o.Outcomes)),
	}
	for _, occ := range o.Outcomes {
		v.Occurrences = append(v.Occurrences, newOutcomeView(occ))
	}
	return v
}

type exceptionView struct {
	PatternID string          `json:"pattern_id"`
	Date      calendar.Anchor `json:"date"`
	Cancelled string          `json:"cancelled,omitempty"`
	Outcome   *outcomeView    `json:"outcome,omitempty"`
	Extended  *outcomeView    `json:"extended,omitempty"`
	Released  []string        `json:"released,omitempty"`
}

func newExceptionView(result application.ExceptionResult) exceptionView {
	v := exceptionView{PatternID: result.PatternID, Date: result.Date, Cancelled: result.Cancelled, Released: result.Released}
	if result.Outcome != nil {
		o := newOutcomeView(*result.Outcome)
		v.Outcome = &o
	}
	if result.Extended != nil {
		o := newOutcomeView(*result.Extended)
		v.Extended = &o
	}
	return v
}

type dayView struct {
	RoomID       string            `json:"room_id"`
	Date         calendar.Anchor   `json:"date"`
	Reservations []reservationView `json:"reservations"`
	Free         []slotView        `json:"free"`
}

type slotView struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func newDayView(d application.DayView) dayView {
	v := dayView{
		RoomID:       d.RoomID,
		Date:         d.Date,
		Reservations: newReservationViews(d.Reservations),
		Free:         make([]slotView, 0, len(d.Free)),
	}
	for _, iv := range d.Free {
		v.Free = append(v.Free, slotView{Start: iv.Start().String(), End: iv.End().String()})
	}
	return v
}

type migrateView struct {
	Store    string `json:"store"`
	Migrated bool   `json:"migrated"`
}

type cancelView struct {
	ReservationID string `json:"reservation_id"`
	Cancelled     bool   `json:"cancelled"`
}

type cancelSeriesView struct {
	PatternID      string   `json:"pattern_id"`
	Cancelled      []string `json:"cancelled"`
	PatternDeleted bool     `json:"pattern_deleted"`
}

type errorView struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
}

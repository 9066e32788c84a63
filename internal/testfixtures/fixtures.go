package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

var (
	reservationCounter uint64
	patternCounter     uint64
)

// Friday 2025-03-14 12:00 in KST.
var referenceTime = time.Date(2025, time.March, 14, 3, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDay is the KST day containing ReferenceTime.
func ReferenceDay() calendar.Anchor {
	return calendar.FromTimestamp(referenceTime)
}

// FirstMonday is the first Monday after ReferenceDay.
func FirstMonday() calendar.Anchor {
	return ReferenceDay().AddDays(3)
}

// -------------------------- Reservation fixtures --------------------------

// ReservationOption configures a generated reservation.
type ReservationOption func(*scheduler.Reservation)

// NewReservationFixture returns a 09:00-10:00 reservation on FirstMonday in a
// room of its own.
func NewReservationFixture(opts ...ReservationOption) scheduler.Reservation {
	idx := atomic.AddUint64(&reservationCounter, 1)
	r := scheduler.Reservation{
		ID:        fmt.Sprintf("reservation-%03d", idx),
		RoomID:    fmt.Sprintf("room-%03d", idx),
		OnDate:    FirstMonday(),
		Interval:  calendar.MustInterval(9*60, 10*60),
		OwnerID:   "user-001",
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithReservationID overrides the generated ID.
func WithReservationID(id string) ReservationOption {
	return func(r *scheduler.Reservation) { r.ID = id }
}

// WithReservationRoom overrides the generated room.
func WithReservationRoom(roomID string) ReservationOption {
	return func(r *scheduler.Reservation) { r.RoomID = roomID }
}

// WithReservationDate overrides the day.
func WithReservationDate(on calendar.Anchor) ReservationOption {
	return func(r *scheduler.Reservation) { r.OnDate = on }
}

// WithReservationInterval overrides the interval. It panics on invalid bounds.
func WithReservationInterval(start, end calendar.Minute) ReservationOption {
	return func(r *scheduler.Reservation) { r.Interval = calendar.MustInterval(start, end) }
}

// WithReservationOwner overrides the owner.
func WithReservationOwner(ownerID string) ReservationOption {
	return func(r *scheduler.Reservation) { r.OwnerID = ownerID }
}

// WithReservationPattern marks the reservation as created from a pattern.
func WithReservationPattern(patternID string) ReservationOption {
	return func(r *scheduler.Reservation) { r.OriginPatternID = &patternID }
}

// ---------------------------- Pattern fixtures ----------------------------

// PatternOption configures a generated pattern record.
type PatternOption func(*persistence.PatternRecord)

// NewPatternFixture returns a weekly Monday/Wednesday 09:00-10:00 pattern
// starting FirstMonday and limited to four occurrences.
func NewPatternFixture(opts ...PatternOption) persistence.PatternRecord {
	idx := atomic.AddUint64(&patternCounter, 1)
	limit := 4
	rec := persistence.PatternRecord{
		ID:              fmt.Sprintf("pattern-%03d", idx),
		RoomID:          fmt.Sprintf("pattern-room-%03d", idx),
		OwnerID:         "user-001",
		StartsOn:        FirstMonday(),
		OccurrenceLimit: &limit,
		Weekdays:        []time.Weekday{time.Monday, time.Wednesday},
		IntervalWeeks:   1,
		StartMinute:     9 * 60,
		EndMinute:       10 * 60,
		CreatedAt:       referenceTime,
	}
	for _, opt := range opts {
		opt(&rec)
	}
	return rec
}

// WithPatternEndsOn replaces the occurrence limit with an end date.
func WithPatternEndsOn(on calendar.Anchor) PatternOption {
	return func(rec *persistence.PatternRecord) {
		rec.EndsOn = &on
		rec.OccurrenceLimit = nil
	}
}

// WithPatternWeekdays overrides the weekdays.
func WithPatternWeekdays(days ...time.Weekday) PatternOption {
	return func(rec *persistence.PatternRecord) { rec.Weekdays = days }
}

// WithPatternIntervalWeeks overrides the week stride.
func WithPatternIntervalWeeks(n int) PatternOption {
	return func(rec *persistence.PatternRecord) { rec.IntervalWeeks = n }
}

package application

import (
	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// BookInput captures caller provided fields for a single booking. Dates are
// YYYY-MM-DD and times HH:mm.
type BookInput struct {
	RoomID string
	Date   string
	Start  string
	End    string
}

// ExceptionInput overrides one occurrence of a series. Start and End are
// only read for the modify action.
type ExceptionInput struct {
	Date   string
	Action string
	Start  string
	End    string
}

// SeriesInput captures caller provided fields for a recurring booking.
type SeriesInput struct {
	RoomID        string
	StartsOn      string
	EndsOn        string
	Limit         *int
	Weekdays      []string
	IntervalWeeks int
	Start         string
	End           string
	// Until bounds an open-ended series.
	Until      string
	Exceptions []ExceptionInput
	// Policy is all_or_nothing or partial; empty uses the engine default.
	Policy string
}

// BookParams wraps the data required to book one slot.
type BookParams struct {
	Principal Principal
	Input     BookInput
}

// BookSeriesParams wraps the data required to book a series.
type BookSeriesParams struct {
	Principal Principal
	Input     SeriesInput
}

// CancelParams identifies a reservation to cancel.
type CancelParams struct {
	Principal     Principal
	ReservationID string
}

// RescheduleParams moves a reservation to a new day or interval.
type RescheduleParams struct {
	Principal     Principal
	ReservationID string
	Input         BookInput
}

// AddExceptionParams overrides one occurrence of a stored series.
type AddExceptionParams struct {
	Principal Principal
	PatternID string
	Input     ExceptionInput
}

// CancelSeriesParams removes a series from a date onward. An empty From
// means today.
type CancelSeriesParams struct {
	Principal Principal
	PatternID string
	From      string
}

// DayScheduleParams selects one room/day.
type DayScheduleParams struct {
	RoomID string
	Date   string
	// Opening hours for free slot listing; empty means the whole day.
	Open  string
	Close string
	// LengthMinutes is the free slot length; zero means one 30-minute slot.
	LengthMinutes int
}

// SeriesResult is the stored pattern and the per-occurrence outcome.
type SeriesResult struct {
	PatternID string
	Outcome   scheduler.SeriesOutcome
}

// ExceptionResult reports what an exception did to the live reservations.
type ExceptionResult struct {
	PatternID string
	Date      calendar.Anchor
	// Cancelled is the reservation removed by the exception, if any.
	Cancelled string
	// Outcome is set when the exception booked or moved an occurrence.
	Outcome *scheduler.Outcome
	// Extended is set when a skip on a counted series booked a new tail.
	Extended *scheduler.Outcome
	// Released lists reservations cancelled because a modify shortened the
	// tail of a counted series.
	Released []string
}

// CancelSeriesResult lists the reservations removed from a series.
type CancelSeriesResult struct {
	PatternID      string
	Cancelled      []string
	PatternDeleted bool
}

// DayView is a room/day listing with the free 30-minute slots.
type DayView struct {
	RoomID       string
	Date         calendar.Anchor
	Reservations []scheduler.Reservation
	Free         []calendar.Interval
}

package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSlotTaken is returned by stores when a uniqueness guard rejects an
	// insert. The engine reports it as a scheduling conflict.
	ErrSlotTaken = errors.New("scheduler: slot already taken")
	// ErrSeriesRejected marks free occurrences of a series that was not
	// committed because another occurrence conflicted.
	ErrSeriesRejected = errors.New("scheduler: series rejected by all-or-nothing policy")
	// ErrInvalidRequest indicates a request is missing required fields.
	ErrInvalidRequest = errors.New("scheduler: invalid request")
	// ErrPastDate indicates a booking day before today.
	ErrPastDate = errors.New("scheduler: date is in the past")
	// ErrUnboundedSeries indicates an unbounded pattern without a horizon.
	ErrUnboundedSeries = errors.New("scheduler: unbounded series requires a horizon")
	// ErrSeriesTooLong indicates a series beyond the configured occurrence cap.
	ErrSeriesTooLong = errors.New("scheduler: series exceeds the occurrence cap")
	// ErrReservationGone indicates the reservation disappeared before a
	// reschedule could commit.
	ErrReservationGone = errors.New("scheduler: reservation no longer exists")
	// ErrKeyNotHeld is returned by stores when a Tx touches a key outside its
	// commitment.
	ErrKeyNotHeld = errors.New("scheduler: key not held by commitment")
)

// SchedulingConflict reports the reservations that block a slot. It is an
// expected outcome, not a failure.
type SchedulingConflict struct {
	Slot      Slot
	Conflicts []Reservation
}

// Error implements the error interface.
func (e *SchedulingConflict) Error() string {
	if e == nil {
		return ""
	}
	ids := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		ids = append(ids, fmt.Sprintf("%s(%s)", c.ID, c.Interval))
	}
	return fmt.Sprintf("scheduler: room %s on %s %s conflicts with %s",
		e.Slot.RoomID, e.Slot.Date, e.Slot.Interval, strings.Join(ids, ", "))
}

// IsConflict reports whether err carries a SchedulingConflict.
func IsConflict(err error) bool {
	var c *SchedulingConflict
	return errors.As(err, &c)
}

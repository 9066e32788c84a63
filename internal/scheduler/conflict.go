package scheduler

import (
	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/recurrence"
)

// Availability is the oracle's verdict for one slot.
type Availability struct {
	Slot      Slot
	Free      bool
	Conflicts []Reservation
}

// DetectConflicts returns the reservations in existing that collide with the
// candidate slot: same room, same day, overlapping interval. A reservation
// whose ID equals excludeID is ignored, which lets a reschedule be checked
// against everything but itself. The result is sorted and never aliases
// existing.
func DetectConflicts(existing []Reservation, candidate Slot, excludeID string) []Reservation {
	var conflicts []Reservation
	for _, r := range existing {
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		if r.RoomID != candidate.RoomID || r.OnDate != candidate.Date {
			continue
		}
		if calendar.Overlaps(r.Interval, candidate.Interval) {
			conflicts = append(conflicts, r.Clone())
		}
	}
	SortReservations(conflicts)
	return conflicts
}

// CheckAvailability decides whether slot is free given a snapshot of the
// existing reservations. It performs no I/O.
func CheckAvailability(snapshot []Reservation, slot Slot, excludeID string) Availability {
	conflicts := DetectConflicts(snapshot, slot, excludeID)
	return Availability{Slot: slot, Free: len(conflicts) == 0, Conflicts: conflicts}
}

// IsAvailable is CheckAvailability reduced to its boolean.
func IsAvailable(snapshot []Reservation, slot Slot, excludeID string) bool {
	return CheckAvailability(snapshot, slot, excludeID).Free
}

// CheckOccurrences evaluates each occurrence of a series independently
// against the snapshot for its day. Partial availability is reported per
// occurrence rather than collapsed into a single answer.
func CheckOccurrences(snapshots map[Key][]Reservation, roomID string, occurrences []recurrence.Occurrence) []Availability {
	out := make([]Availability, 0, len(occurrences))
	for _, occ := range occurrences {
		slot := Slot{RoomID: roomID, Date: occ.Date, Interval: occ.Interval}
		out = append(out, CheckAvailability(snapshots[slot.Key()], slot, ""))
	}
	return out
}

// FreeSlots lists the aligned slots of the given length that are free within
// [open, close) on the snapshot's day.
func FreeSlots(snapshot []Reservation, roomID string, day calendar.Anchor, open, close calendar.Minute, length calendar.Minute) []calendar.Interval {
	var out []calendar.Interval
	if length <= 0 {
		return out
	}
	for start := open; start+length <= close; start += calendar.SlotMinutes {
		iv, err := calendar.NewInterval(start, start+length)
		if err != nil {
			continue
		}
		if IsAvailable(snapshot, Slot{RoomID: roomID, Date: day, Interval: iv}, "") {
			out = append(out, iv)
		}
	}
	return out
}

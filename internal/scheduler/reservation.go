package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
)

// Reservation is a committed booking of one room for one interval on one day.
// Reservations are never edited in place; a time change is a cancellation
// followed by a new reservation.
type Reservation struct {
	ID              string
	RoomID          string
	OnDate          calendar.Anchor
	Interval        calendar.Interval
	OwnerID         string
	OriginPatternID *string
	CreatedAt       time.Time
}

// Key returns the room/day the reservation belongs to.
func (r Reservation) Key() Key {
	return Key{RoomID: r.RoomID, Date: r.OnDate}
}

// Slot returns the room/day/interval the reservation occupies.
func (r Reservation) Slot() Slot {
	return Slot{RoomID: r.RoomID, Date: r.OnDate, Interval: r.Interval}
}

// Clone returns a deep copy.
func (r Reservation) Clone() Reservation {
	if r.OriginPatternID != nil {
		id := *r.OriginPatternID
		r.OriginPatternID = &id
	}
	return r
}

// Key identifies the unit of exclusive commitment: one room on one day.
type Key struct {
	RoomID string
	Date   calendar.Anchor
}

// Slot is a candidate booking position.
type Slot struct {
	RoomID   string
	Date     calendar.Anchor
	Interval calendar.Interval
}

// Key returns the room/day of the slot.
func (s Slot) Key() Key {
	return Key{RoomID: s.RoomID, Date: s.Date}
}

// Store is the persistence collaborator the engine commits through.
//
// WithExclusiveCommitment must run body while no other commitment holding
// any of keys can run, and must roll back every write made through tx when
// body returns an error. Implementations acquire keys in SortKeys order.
// Insert returns an error wrapping ErrSlotTaken when a storage level
// uniqueness guard rejects the row.
type Store interface {
	FindForRoomOnDate(ctx context.Context, roomID string, on calendar.Anchor) ([]Reservation, error)
	Get(ctx context.Context, id string) (Reservation, error)
	Delete(ctx context.Context, id string) error
	WithExclusiveCommitment(ctx context.Context, keys []Key, body func(ctx context.Context, tx Tx) error) error
}

// Tx is the view of the store inside an exclusive commitment. Reads and
// writes are limited to the keys the commitment holds.
type Tx interface {
	FindForRoomOnDate(ctx context.Context, roomID string, on calendar.Anchor) ([]Reservation, error)
	Insert(ctx context.Context, r Reservation) (Reservation, error)
	Delete(ctx context.Context, id string) error
}

// SortKeys returns the distinct keys ordered by room then date. Stores lock
// keys in this order so that overlapping key sets cannot deadlock.
func SortKeys(keys []Key) []Key {
	seen := make(map[Key]struct{}, len(keys))
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoomID == out[j].RoomID {
			return out[i].Date < out[j].Date
		}
		return out[i].RoomID < out[j].RoomID
	})
	return out
}

// SortReservations orders reservations by day, start minute, then ID.
func SortReservations(rs []Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].OnDate != rs[j].OnDate {
			return rs[i].OnDate < rs[j].OnDate
		}
		if rs[i].Interval.Start() != rs[j].Interval.Start() {
			return rs[i].Interval.Start() < rs[j].Interval.Start()
		}
		return rs[i].ID < rs[j].ID
	})
}

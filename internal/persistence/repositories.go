package persistence

import (
	"context"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

// ReservationStore is the scheduler store plus the queries the booking
// service needs for series maintenance.
type ReservationStore interface {
	scheduler.Store
	// ListByPattern returns reservations created from patternID on or after from.
	ListByPattern(ctx context.Context, patternID string, from calendar.Anchor) ([]scheduler.Reservation, error)
}

// PatternRepository stores recurrence patterns and their exceptions.
type PatternRepository interface {
	SavePattern(ctx context.Context, pattern PatternRecord) error
	GetPattern(ctx context.Context, id string) (PatternRecord, error)
	DeletePattern(ctx context.Context, id string) error
	ListExceptions(ctx context.Context, patternID string) ([]ExceptionRecord, error)
	UpsertException(ctx context.Context, exception ExceptionRecord) error
	DeleteException(ctx context.Context, patternID string, on calendar.Anchor) error
}

// Store bundles every repository a backend provides.
type Store interface {
	ReservationStore
	PatternRepository
	Close() error
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

// FindForRoomOnDate returns the reservations for one room/day.
func (s *Store) FindForRoomOnDate(ctx context.Context, roomID string, on calendar.Anchor) ([]scheduler.Reservation, error) {
	var out []scheduler.Reservation
	err := s.withRetry(ctx, func() error {
		var err error
		out, err = findForRoomOnDate(s.db.WithContext(ctx), roomID, on)
		return err
	})
	return out, err
}

// Get retrieves a reservation by ID.
func (s *Store) Get(ctx context.Context, id string) (scheduler.Reservation, error) {
	var row reservationRow
	err := s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	})
	if errors.Is(err, persistence.ErrNotFound) {
		return scheduler.Reservation{}, fmt.Errorf("%w: reservation %s", persistence.ErrNotFound, id)
	}
	if err != nil {
		return scheduler.Reservation{}, err
	}
	return row.toDomain()
}

// Delete removes a reservation by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.withRetry(ctx, func() error {
		return deleteReservation(s.db.WithContext(ctx), id)
	})
}

// ListByPattern returns reservations created from patternID on or after from.
func (s *Store) ListByPattern(ctx context.Context, patternID string, from calendar.Anchor) ([]scheduler.Reservation, error) {
	var rows []reservationRow
	err := s.withRetry(ctx, func() error {
		rows = nil
		return s.db.WithContext(ctx).
			Where("origin_pattern_id = ? AND on_date >= ?", patternID, int64(from)).
			Order("on_date, start_minute, id").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return toDomainList(rows)
}

// WithExclusiveCommitment runs body in one transaction after locking the
// room_day_locks row of every key in sorted order.
func (s *Store) WithExclusiveCommitment(ctx context.Context, keys []scheduler.Key, body func(ctx context.Context, tx scheduler.Tx) error) error {
	sorted := scheduler.SortKeys(keys)
	held := make(map[scheduler.Key]struct{}, len(sorted))
	for _, k := range sorted {
		held[k] = struct{}{}
	}
	return s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, k := range sorted {
				if err := lockKey(tx, k); err != nil {
					return err
				}
			}
			return body(ctx, &pgTx{tx: tx, held: held})
		})
	})
}

func lockKey(tx *gorm.DB, k scheduler.Key) error {
	row := roomDayLock{RoomID: k.RoomID, OnDate: int64(k.Date)}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("create lock row for %s on %s: %w", k.RoomID, k.Date, err)
	}
	var locked roomDayLock
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("room_id = ? AND on_date = ?", k.RoomID, int64(k.Date)).
		First(&locked).Error; err != nil {
		return fmt.Errorf("lock %s on %s: %w", k.RoomID, k.Date, err)
	}
	return nil
}

type pgTx struct {
	tx   *gorm.DB
	held map[scheduler.Key]struct{}
}

func (t *pgTx) checkHeld(k scheduler.Key) error {
	if _, ok := t.held[k]; !ok {
		return fmt.Errorf("%w: room %s on %s", scheduler.ErrKeyNotHeld, k.RoomID, k.Date)
	}
	return nil
}

func (t *pgTx) FindForRoomOnDate(ctx context.Context, roomID string, on calendar.Anchor) ([]scheduler.Reservation, error) {
	if err := t.checkHeld(scheduler.Key{RoomID: roomID, Date: on}); err != nil {
		return nil, err
	}
	rs, err := findForRoomOnDate(t.tx.WithContext(ctx), roomID, on)
	return rs, classify(err)
}

func (t *pgTx) Insert(ctx context.Context, r scheduler.Reservation) (scheduler.Reservation, error) {
	if err := t.checkHeld(r.Key()); err != nil {
		return scheduler.Reservation{}, err
	}
	row := newReservationRow(r)
	if err := t.tx.WithContext(ctx).Create(&row).Error; err != nil {
		return scheduler.Reservation{}, classify(err)
	}
	return r.Clone(), nil
}

func (t *pgTx) Delete(ctx context.Context, id string) error {
	var row reservationRow
	if err := t.tx.WithContext(ctx).Select("room_id", "on_date").Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: reservation %s", persistence.ErrNotFound, id)
		}
		return classify(err)
	}
	if err := t.checkHeld(scheduler.Key{RoomID: row.RoomID, Date: calendar.Anchor(row.OnDate)}); err != nil {
		return err
	}
	return deleteReservation(t.tx.WithContext(ctx), id)
}

func findForRoomOnDate(db *gorm.DB, roomID string, on calendar.Anchor) ([]scheduler.Reservation, error) {
	var rows []reservationRow
	if err := db.Where("room_id = ? AND on_date = ?", roomID, int64(on)).
		Order("start_minute, id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainList(rows)
}

func deleteReservation(db *gorm.DB, id string) error {
	res := db.Where("id = ?", id).Delete(&reservationRow{})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: reservation %s", persistence.ErrNotFound, id)
	}
	return nil
}

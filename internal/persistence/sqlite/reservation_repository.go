package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

const reservationColumns = `id, room_id, on_date, start_minute, end_minute, owner_id, origin_pattern_id, created_at`

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// FindForRoomOnDate returns the reservations for one room/day.
func (s *Store) FindForRoomOnDate(ctx context.Context, roomID string, on calendar.Anchor) ([]scheduler.Reservation, error) {
	var out []scheduler.Reservation
	err := s.retry.WithRetry(ctx, func() error {
		var err error
		out, err = findForRoomOnDate(ctx, s.db, roomID, on)
		return err
	})
	return out, err
}

// Get retrieves a reservation by ID.
func (s *Store) Get(ctx context.Context, id string) (scheduler.Reservation, error) {
	var r scheduler.Reservation
	err := s.retry.WithRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
		var err error
		r, err = scanReservation(row)
		return err
	})
	if errors.Is(err, persistence.ErrNotFound) {
		return scheduler.Reservation{}, fmt.Errorf("%w: reservation %s", persistence.ErrNotFound, id)
	}
	return r, err
}

// Delete removes a reservation by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.retry.WithRetry(ctx, func() error {
		return deleteReservation(ctx, s.db, id)
	})
}

// ListByPattern returns reservations created from patternID on or after from.
func (s *Store) ListByPattern(ctx context.Context, patternID string, from calendar.Anchor) ([]scheduler.Reservation, error) {
	var out []scheduler.Reservation
	err := s.retry.WithRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+reservationColumns+`
			FROM reservations
			WHERE origin_pattern_id = ? AND on_date >= ?
			ORDER BY on_date, start_minute, id`, patternID, int64(from))
		if err != nil {
			return err
		}
		out, err = scanReservations(rows)
		return err
	})
	return out, err
}

// WithExclusiveCommitment runs body in a write transaction. Lock contention
// reruns the whole body under the retry policy.
func (s *Store) WithExclusiveCommitment(ctx context.Context, keys []scheduler.Key, body func(ctx context.Context, tx scheduler.Tx) error) error {
	held := make(map[scheduler.Key]struct{}, len(keys))
	for _, k := range scheduler.SortKeys(keys) {
		held[k] = struct{}{}
	}
	return s.retry.WithRetry(ctx, func() error {
		return withTransaction(ctx, s.db, func(tx *sql.Tx) error {
			return body(ctx, &sqliteTx{tx: tx, held: held})
		})
	})
}

type sqliteTx struct {
	tx   *sql.Tx
	held map[scheduler.Key]struct{}
}

func (t *sqliteTx) checkHeld(k scheduler.Key) error {
	if _, ok := t.held[k]; !ok {
		return fmt.Errorf("%w: room %s on %s", scheduler.ErrKeyNotHeld, k.RoomID, k.Date)
	}
	return nil
}

func (t *sqliteTx) FindForRoomOnDate(ctx context.Context, roomID string, on calendar.Anchor) ([]scheduler.Reservation, error) {
	if err := t.checkHeld(scheduler.Key{RoomID: roomID, Date: on}); err != nil {
		return nil, err
	}
	rs, err := findForRoomOnDate(ctx, t.tx, roomID, on)
	return rs, mapError(err)
}

func (t *sqliteTx) Insert(ctx context.Context, r scheduler.Reservation) (scheduler.Reservation, error) {
	if err := t.checkHeld(r.Key()); err != nil {
		return scheduler.Reservation{}, err
	}
	var origin sql.NullString
	if r.OriginPatternID != nil {
		origin = sql.NullString{String: *r.OriginPatternID, Valid: true}
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.RoomID,
		int64(r.OnDate),
		int(r.Interval.Start()),
		int(r.Interval.End()),
		r.OwnerID,
		origin,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return scheduler.Reservation{}, mapInsertError(err)
	}
	return r.Clone(), nil
}

func (t *sqliteTx) Delete(ctx context.Context, id string) error {
	var roomID string
	var onDate int64
	err := t.tx.QueryRowContext(ctx, `SELECT room_id, on_date FROM reservations WHERE id = ?`, id).Scan(&roomID, &onDate)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: reservation %s", persistence.ErrNotFound, id)
	}
	if err != nil {
		return mapError(err)
	}
	if err := t.checkHeld(scheduler.Key{RoomID: roomID, Date: calendar.Anchor(onDate)}); err != nil {
		return err
	}
	return deleteReservation(ctx, t.tx, id)
}

func findForRoomOnDate(ctx context.Context, q queryer, roomID string, on calendar.Anchor) ([]scheduler.Reservation, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE room_id = ? AND on_date = ?
		ORDER BY start_minute, id`, roomID, int64(on))
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

func deleteReservation(ctx context.Context, q queryer, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: reservation %s", persistence.ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (scheduler.Reservation, error) {
	var (
		r          scheduler.Reservation
		onDate     int64
		start, end int
		origin     sql.NullString
		createdAt  string
	)
	if err := row.Scan(&r.ID, &r.RoomID, &onDate, &start, &end, &r.OwnerID, &origin, &createdAt); err != nil {
		return scheduler.Reservation{}, mapError(err)
	}
	iv, err := calendar.NewInterval(calendar.Minute(start), calendar.Minute(end))
	if err != nil {
		return scheduler.Reservation{}, fmt.Errorf("%w: reservation %s: %w", persistence.ErrConstraintViolation, r.ID, err)
	}
	r.OnDate = calendar.Anchor(onDate)
	r.Interval = iv
	if origin.Valid {
		id := origin.String
		r.OriginPatternID = &id
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return scheduler.Reservation{}, fmt.Errorf("sqlite: parse created_at for %s: %w", r.ID, err)
	}
	return r, nil
}

func scanReservations(rows *sql.Rows) ([]scheduler.Reservation, error) {
	defer rows.Close()
	out := make([]scheduler.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

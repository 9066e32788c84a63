package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/recurrence"
)

// SavePattern inserts a new pattern.
func (s *Store) SavePattern(ctx context.Context, p persistence.PatternRecord) error {
	var endsOn, limit sql.NullInt64
	if p.EndsOn != nil {
		endsOn = sql.NullInt64{Int64: int64(*p.EndsOn), Valid: true}
	}
	if p.OccurrenceLimit != nil {
		limit = sql.NullInt64{Int64: int64(*p.OccurrenceLimit), Valid: true}
	}
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO recurrence_patterns (
				id, room_id, owner_id, starts_on, ends_on, occurrence_limit,
				weekdays, interval_weeks, start_minute, end_minute, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.RoomID, p.OwnerID, int64(p.StartsOn), endsOn, limit,
			persistence.EncodeWeekdays(p.Weekdays), p.IntervalWeeks, int(p.StartMinute), int(p.EndMinute),
			p.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

// GetPattern retrieves a pattern by ID.
func (s *Store) GetPattern(ctx context.Context, id string) (persistence.PatternRecord, error) {
	var (
		p             persistence.PatternRecord
		startsOn      int64
		endsOn, limit sql.NullInt64
		weekdays      string
		start, end    int
		createdAt     string
	)
	err := s.retry.WithRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx, `
			SELECT id, room_id, owner_id, starts_on, ends_on, occurrence_limit,
				weekdays, interval_weeks, start_minute, end_minute, created_at
			FROM recurrence_patterns WHERE id = ?`, id).
			Scan(&p.ID, &p.RoomID, &p.OwnerID, &startsOn, &endsOn, &limit,
				&weekdays, &p.IntervalWeeks, &start, &end, &createdAt)
	})
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.PatternRecord{}, fmt.Errorf("%w: pattern %s", persistence.ErrNotFound, id)
	}
	if err != nil {
		return persistence.PatternRecord{}, err
	}

	p.StartsOn = calendar.Anchor(startsOn)
	if endsOn.Valid {
		a := calendar.Anchor(endsOn.Int64)
		p.EndsOn = &a
	}
	if limit.Valid {
		n := int(limit.Int64)
		p.OccurrenceLimit = &n
	}
	if p.Weekdays, err = persistence.DecodeWeekdays(weekdays); err != nil {
		return persistence.PatternRecord{}, fmt.Errorf("%w: pattern %s: %w", persistence.ErrConstraintViolation, id, err)
	}
	p.StartMinute = calendar.Minute(start)
	p.EndMinute = calendar.Minute(end)
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return persistence.PatternRecord{}, fmt.Errorf("sqlite: parse created_at for pattern %s: %w", id, err)
	}
	return p, nil
}

// DeletePattern removes a pattern. Its exceptions cascade.
func (s *Store) DeletePattern(ctx context.Context, id string) error {
	return s.retry.WithRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM recurrence_patterns WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(res, "pattern "+id)
	})
}

// ListExceptions returns the exceptions of a pattern ordered by date.
func (s *Store) ListExceptions(ctx context.Context, patternID string) ([]persistence.ExceptionRecord, error) {
	if _, err := s.GetPattern(ctx, patternID); err != nil {
		return nil, err
	}
	var out []persistence.ExceptionRecord
	err := s.retry.WithRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT pattern_id, on_date, action, start_minute, end_minute
			FROM recurrence_exceptions
			WHERE pattern_id = ?
			ORDER BY on_date`, patternID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]persistence.ExceptionRecord, 0)
		for rows.Next() {
			var (
				rec        persistence.ExceptionRecord
				onDate     int64
				action     string
				start, end sql.NullInt64
			)
			if err := rows.Scan(&rec.PatternID, &onDate, &action, &start, &end); err != nil {
				return err
			}
			rec.OnDate = calendar.Anchor(onDate)
			if rec.Action, err = recurrence.ParseAction(action); err != nil {
				return fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
			}
			rec.StartMinute = calendar.Minute(start.Int64)
			rec.EndMinute = calendar.Minute(end.Int64)
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}

// UpsertException creates or replaces the exception for its date.
func (s *Store) UpsertException(ctx context.Context, e persistence.ExceptionRecord) error {
	var start, end sql.NullInt64
	if e.Action == recurrence.Modify {
		start = sql.NullInt64{Int64: int64(e.StartMinute), Valid: true}
		end = sql.NullInt64{Int64: int64(e.EndMinute), Valid: true}
	}
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO recurrence_exceptions (pattern_id, on_date, action, start_minute, end_minute)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (pattern_id, on_date) DO UPDATE SET
				action = excluded.action,
				start_minute = excluded.start_minute,
				end_minute = excluded.end_minute`,
			e.PatternID, int64(e.OnDate), e.Action.String(), start, end)
		return err
	})
}

// DeleteException removes the exception on a date.
func (s *Store) DeleteException(ctx context.Context, patternID string, on calendar.Anchor) error {
	return s.retry.WithRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM recurrence_exceptions WHERE pattern_id = ? AND on_date = ?`, patternID, int64(on))
		if err != nil {
			return err
		}
		return requireAffected(res, fmt.Sprintf("exception %s on %s", patternID, on))
	})
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", persistence.ErrNotFound, what)
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence"
)

// SavePattern inserts a new pattern.
func (s *Store) SavePattern(ctx context.Context, p persistence.PatternRecord) error {
	row := newPatternRow(p)
	return s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error
	})
}

// GetPattern retrieves a pattern by ID.
func (s *Store) GetPattern(ctx context.Context, id string) (persistence.PatternRecord, error) {
	var row patternRow
	err := s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	})
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.PatternRecord{}, fmt.Errorf("%w: pattern %s", persistence.ErrNotFound, id)
	}
	if err != nil {
		return persistence.PatternRecord{}, err
	}
	return row.toDomain()
}

// DeletePattern removes a pattern. Its exceptions cascade.
func (s *Store) DeletePattern(ctx context.Context, id string) error {
	return s.withRetry(ctx, func() error {
		res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&patternRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: pattern %s", persistence.ErrNotFound, id)
		}
		return nil
	})
}

// ListExceptions returns the exceptions of a pattern ordered by date.
func (s *Store) ListExceptions(ctx context.Context, patternID string) ([]persistence.ExceptionRecord, error) {
	if _, err := s.GetPattern(ctx, patternID); err != nil {
		return nil, err
	}
	var rows []exceptionRow
	err := s.withRetry(ctx, func() error {
		rows = nil
		return s.db.WithContext(ctx).Where("pattern_id = ?", patternID).Order("on_date").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]persistence.ExceptionRecord, 0, len(rows))
	for _, row := range rows {
		e, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// UpsertException creates or replaces the exception for its date.
func (s *Store) UpsertException(ctx context.Context, e persistence.ExceptionRecord) error {
	row := newExceptionRow(e)
	return s.withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pattern_id"}, {Name: "on_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"action", "start_minute", "end_minute"}),
		}).Create(&row).Error
	})
}

// DeleteException removes the exception on a date.
func (s *Store) DeleteException(ctx context.Context, patternID string, on calendar.Anchor) error {
	return s.withRetry(ctx, func() error {
		res := s.db.WithContext(ctx).Where("pattern_id = ? AND on_date = ?", patternID, int64(on)).Delete(&exceptionRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: exception %s on %s", persistence.ErrNotFound, patternID, on)
		}
		return nil
	})
}

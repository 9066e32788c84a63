package postgres

import (
	"fmt"
	"time"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/recurrence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

const slotConstraint = "ux_reservations_slot"

type reservationRow struct {
	ID              string    `gorm:"primaryKey;type:text"`
	RoomID          string    `gorm:"type:text;not null;uniqueIndex:ux_reservations_slot,priority:1"`
	OnDate          int64     `gorm:"not null;uniqueIndex:ux_reservations_slot,priority:2;index:ix_reservations_pattern,priority:2"`
	StartMinute     int       `gorm:"not null;uniqueIndex:ux_reservations_slot,priority:3;check:chk_reservations_start,start_minute >= 0 AND start_minute < 1440 AND start_minute % 30 = 0"`
	EndMinute       int       `gorm:"not null;check:chk_reservations_end,end_minute > start_minute AND end_minute <= 1440 AND end_minute % 30 = 0"`
	OwnerID         string    `gorm:"type:text;not null"`
	OriginPatternID *string   `gorm:"type:text;index:ix_reservations_pattern,priority:1"`
	CreatedAt       time.Time `gorm:"not null"`
}

func (reservationRow) TableName() string { return "reservations" }

func newReservationRow(r scheduler.Reservation) reservationRow {
	row := reservationRow{
		ID:          r.ID,
		RoomID:      r.RoomID,
		OnDate:      int64(r.OnDate),
		StartMinute: int(r.Interval.Start()),
		EndMinute:   int(r.Interval.End()),
		OwnerID:     r.OwnerID,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.OriginPatternID != nil {
		origin := *r.OriginPatternID
		row.OriginPatternID = &origin
	}
	return row
}

func (row reservationRow) toDomain() (scheduler.Reservation, error) {
	iv, err := calendar.NewInterval(calendar.Minute(row.StartMinute), calendar.Minute(row.EndMinute))
	if err != nil {
		return scheduler.Reservation{}, fmt.Errorf("%w: reservation %s: %w", persistence.ErrConstraintViolation, row.ID, err)
	}
	r := scheduler.Reservation{
		ID:        row.ID,
		RoomID:    row.RoomID,
		OnDate:    calendar.Anchor(row.OnDate),
		Interval:  iv,
		OwnerID:   row.OwnerID,
		CreatedAt: row.CreatedAt.UTC(),
	}
	if row.OriginPatternID != nil {
		origin := *row.OriginPatternID
		r.OriginPatternID = &origin
	}
	return r, nil
}

func toDomainList(rows []reservationRow) ([]scheduler.Reservation, error) {
	out := make([]scheduler.Reservation, 0, len(rows))
	for _, row := range rows {
		r, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// roomDayLock is the row locked FOR UPDATE to serialise commitments on one
// room/day, including days that have no reservations yet.
type roomDayLock struct {
	RoomID string `gorm:"primaryKey;type:text"`
	OnDate int64  `gorm:"primaryKey"`
}

func (roomDayLock) TableName() string { return "room_day_locks" }

type patternRow struct {
	ID              string         `gorm:"primaryKey;type:text"`
	RoomID          string         `gorm:"type:text;not null"`
	OwnerID         string         `gorm:"type:text;not null"`
	StartsOn        int64          `gorm:"not null"`
	EndsOn          *int64
	OccurrenceLimit *int
	Weekdays        string         `gorm:"type:text;not null"`
	IntervalWeeks   int            `gorm:"not null;check:chk_patterns_interval,interval_weeks >= 1"`
	StartMinute     int            `gorm:"not null"`
	EndMinute       int            `gorm:"not null"`
	CreatedAt       time.Time      `gorm:"not null"`
	Exceptions      []exceptionRow `gorm:"foreignKey:PatternID;constraint:OnDelete:CASCADE"`
}

func (patternRow) TableName() string { return "recurrence_patterns" }

func newPatternRow(p persistence.PatternRecord) patternRow {
	row := patternRow{
		ID:              p.ID,
		RoomID:          p.RoomID,
		OwnerID:         p.OwnerID,
		StartsOn:        int64(p.StartsOn),
		OccurrenceLimit: p.OccurrenceLimit,
		Weekdays:        persistence.EncodeWeekdays(p.Weekdays),
		IntervalWeeks:   p.IntervalWeeks,
		StartMinute:     int(p.StartMinute),
		EndMinute:       int(p.EndMinute),
		CreatedAt:       p.CreatedAt.UTC(),
	}
	if p.EndsOn != nil {
		v := int64(*p.EndsOn)
		row.EndsOn = &v
	}
	return row
}

func (row patternRow) toDomain() (persistence.PatternRecord, error) {
	weekdays, err := persistence.DecodeWeekdays(row.Weekdays)
	if err != nil {
		return persistence.PatternRecord{}, fmt.Errorf("%w: pattern %s: %w", persistence.ErrConstraintViolation, row.ID, err)
	}
	p := persistence.PatternRecord{
		ID:              row.ID,
		RoomID:          row.RoomID,
		OwnerID:         row.OwnerID,
		StartsOn:        calendar.Anchor(row.StartsOn),
		OccurrenceLimit: row.OccurrenceLimit,
		Weekdays:        weekdays,
		IntervalWeeks:   row.IntervalWeeks,
		StartMinute:     calendar.Minute(row.StartMinute),
		EndMinute:       calendar.Minute(row.EndMinute),
		CreatedAt:       row.CreatedAt.UTC(),
	}
	if row.EndsOn != nil {
		a := calendar.Anchor(*row.EndsOn)
		p.EndsOn = &a
	}
	return p, nil
}

type exceptionRow struct {
	PatternID   string `gorm:"primaryKey;type:text"`
	OnDate      int64  `gorm:"primaryKey"`
	Action      string `gorm:"type:text;not null;check:chk_exceptions_action,action IN ('skip', 'modify')"`
	StartMinute *int
	EndMinute   *int
}

func (exceptionRow) TableName() string { return "recurrence_exceptions" }

func newExceptionRow(e persistence.ExceptionRecord) exceptionRow {
	row := exceptionRow{PatternID: e.PatternID, OnDate: int64(e.OnDate), Action: e.Action.String()}
	if e.Action == recurrence.Modify {
		start, end := int(e.StartMinute), int(e.EndMinute)
		row.StartMinute, row.EndMinute = &start, &end
	}
	return row
}

func (row exceptionRow) toDomain() (persistence.ExceptionRecord, error) {
	action, err := recurrence.ParseAction(row.Action)
	if err != nil {
		return persistence.ExceptionRecord{}, fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
	}
	e := persistence.ExceptionRecord{PatternID: row.PatternID, OnDate: calendar.Anchor(row.OnDate), Action: action}
	if row.StartMinute != nil && row.EndMinute != nil {
		e.StartMinute = calendar.Minute(*row.StartMinute)
		e.EndMinute = calendar.Minute(*row.EndMinute)
	}
	return e, nil
}

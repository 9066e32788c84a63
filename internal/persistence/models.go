package persistence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/recurrence"
)

// PatternRecord is a stored recurring booking template.
type PatternRecord struct {
	ID              string
	RoomID          string
	OwnerID         string
	StartsOn        calendar.Anchor
	EndsOn          *calendar.Anchor
	OccurrenceLimit *int
	Weekdays        []time.Weekday
	IntervalWeeks   int
	StartMinute     calendar.Minute
	EndMinute       calendar.Minute
	CreatedAt       time.Time
}

// NewPatternRecord flattens a validated pattern for storage.
func NewPatternRecord(id, roomID, ownerID string, p recurrence.Pattern, createdAt time.Time) PatternRecord {
	spec := p.Spec()
	return PatternRecord{
		ID:              id,
		RoomID:          roomID,
		OwnerID:         ownerID,
		StartsOn:        spec.StartsOn,
		EndsOn:          spec.EndsOn,
		OccurrenceLimit: spec.Limit,
		Weekdays:        spec.Weekdays,
		IntervalWeeks:   spec.IntervalWeeks,
		StartMinute:     spec.Interval.Start(),
		EndMinute:       spec.Interval.End(),
		CreatedAt:       createdAt,
	}
}

// Pattern rebuilds and revalidates the recurrence pattern.
func (r PatternRecord) Pattern() (recurrence.Pattern, error) {
	iv, err := calendar.NewInterval(r.StartMinute, r.EndMinute)
	if err != nil {
		return recurrence.Pattern{}, fmt.Errorf("persistence: pattern %s interval: %w", r.ID, err)
	}
	return recurrence.NewPattern(recurrence.PatternSpec{
		StartsOn:      r.StartsOn,
		EndsOn:        r.EndsOn,
		Limit:         r.OccurrenceLimit,
		Weekdays:      r.Weekdays,
		IntervalWeeks: r.IntervalWeeks,
		Interval:      iv,
	})
}

// Clone returns a deep copy.
func (r PatternRecord) Clone() PatternRecord {
	if r.EndsOn != nil {
		v := *r.EndsOn
		r.EndsOn = &v
	}
	if r.OccurrenceLimit != nil {
		v := *r.OccurrenceLimit
		r.OccurrenceLimit = &v
	}
	r.Weekdays = append([]time.Weekday(nil), r.Weekdays...)
	return r
}

// ExceptionRecord is a stored per-date override of a pattern. StartMinute and
// EndMinute are zero for skips.
type ExceptionRecord struct {
	PatternID   string
	OnDate      calendar.Anchor
	Action      recurrence.Action
	StartMinute calendar.Minute
	EndMinute   calendar.Minute
}

// NewExceptionRecord flattens an exception for storage.
func NewExceptionRecord(patternID string, e recurrence.Exception) ExceptionRecord {
	rec := ExceptionRecord{PatternID: patternID, OnDate: e.OnDate, Action: e.Action}
	if e.Action == recurrence.Modify {
		rec.StartMinute = e.Interval.Start()
		rec.EndMinute = e.Interval.End()
	}
	return rec
}

// Exception rebuilds the recurrence exception.
func (r ExceptionRecord) Exception() (recurrence.Exception, error) {
	switch r.Action {
	case recurrence.Skip:
		return recurrence.SkipOn(r.OnDate), nil
	case recurrence.Modify:
		iv, err := calendar.NewInterval(r.StartMinute, r.EndMinute)
		if err != nil {
			return recurrence.Exception{}, fmt.Errorf("persistence: exception %s/%s interval: %w", r.PatternID, r.OnDate, err)
		}
		return recurrence.ModifyOn(r.OnDate, iv), nil
	default:
		return recurrence.Exception{}, fmt.Errorf("%w: unknown exception action %d", ErrConstraintViolation, int(r.Action))
	}
}

// EncodeWeekdays renders weekdays as a comma separated list of numbers, the
// column format shared by the SQL backends.
func EncodeWeekdays(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

// DecodeWeekdays parses the EncodeWeekdays format.
func DecodeWeekdays(s string) ([]time.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]time.Weekday, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("invalid weekday %q", part)
		}
		out = append(out, time.Weekday(n))
	}
	return out, nil
}

package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/recurrence"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrStore wraps failures reported by the persistence layer.
	ErrStore = errors.New("application: store failure")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = field + ": " + v.FieldErrors[field]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// fieldError wraps a single field problem.
func fieldError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

func intervalMessage(err error) string {
	var ivErr *calendar.InvalidIntervalError
	if !errors.As(err, &ivErr) {
		return err.Error()
	}
	switch ivErr.Kind {
	case calendar.BadFormat:
		return "must be HH:mm on a 24-hour clock"
	case calendar.Unaligned:
		return "must fall on a 30-minute boundary"
	case calendar.NonPositiveDuration:
		return "must be after the start time"
	default:
		return err.Error()
	}
}

// patternField maps a rejected pattern onto the input field responsible.
func patternField(err error) (string, string) {
	var pErr *recurrence.PatternError
	if !errors.As(err, &pErr) {
		return "pattern", err.Error()
	}
	switch pErr.Kind {
	case recurrence.EmptyDaysOfWeek:
		return "weekdays", "at least one weekday is required"
	case recurrence.BadWeekday:
		return "weekdays", fmt.Sprintf("invalid weekday %s", pErr.Detail)
	case recurrence.BadInterval:
		return "interval_weeks", "must be at least 1"
	case recurrence.AmbiguousTermination:
		return "ends_on", "cannot be combined with limit"
	case recurrence.BadBounds:
		if pErr.Detail != "" {
			return "ends_on", pErr.Detail
		}
		return "ends_on", "invalid series bounds"
	case recurrence.DuplicateException:
		return "exceptions", "only one exception per date is allowed"
	default:
		return "pattern", err.Error()
	}
}

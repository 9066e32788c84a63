package application

import (
	"errors"
	"testing"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/recurrence"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"start": "bad", "date": "missing"}}
	if got, want := withFields.Error(), "validation failed: date: missing; start: bad"; got != want {
		t.Fatalf("expected fields in name order, got %q want %q", got, want)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	var nilErr *ValidationError
	if nilErr.HasErrors() {
		t.Fatalf("expected HasErrors to report false for nil error")
	}
	if (&ValidationError{}).HasErrors() {
		t.Fatalf("expected HasErrors to report false for empty error")
	}
	if !(&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors() {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddKeepsFirstMessage(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	base.add("first", "ignored")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected first message to win, got %q", got)
	}
}

func TestPatternField(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		err   error
		field string
	}{
		{"empty weekdays", &recurrence.PatternError{Kind: recurrence.EmptyDaysOfWeek}, "weekdays"},
		{"bad weekday", &recurrence.PatternError{Kind: recurrence.BadWeekday, Detail: "weekday 9"}, "weekdays"},
		{"bad interval", &recurrence.PatternError{Kind: recurrence.BadInterval}, "interval_weeks"},
		{"ambiguous termination", &recurrence.PatternError{Kind: recurrence.AmbiguousTermination}, "ends_on"},
		{"bad bounds", &recurrence.PatternError{Kind: recurrence.BadBounds, Detail: "occurrence limit 0"}, "ends_on"},
		{"duplicate exception", &recurrence.PatternError{Kind: recurrence.DuplicateException}, "exceptions"},
		{"other error", errors.New("boom"), "pattern"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if field, _ := patternField(tc.err); field != tc.field {
				t.Fatalf("patternField() field = %q, want %q", field, tc.field)
			}
		})
	}
}

func TestIntervalMessage(t *testing.T) {
	t.Parallel()

	_, err := calendar.ParseClock("09:15")
	if got := intervalMessage(err); got != "must fall on a 30-minute boundary" {
		t.Fatalf("unexpected message for unaligned clock: %q", got)
	}
	_, err = calendar.ParseClock("9am")
	if got := intervalMessage(err); got != "must be HH:mm on a 24-hour clock" {
		t.Fatalf("unexpected message for malformed clock: %q", got)
	}
	_, err = calendar.NewInterval(600, 540)
	if got := intervalMessage(err); got != "must be after the start time" {
		t.Fatalf("unexpected message for reversed interval: %q", got)
	}
}

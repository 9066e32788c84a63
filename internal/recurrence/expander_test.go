package recurrence

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
)

var (
	firstMonday = calendar.FromDate(2024, time.March, 4)
	morning     = calendar.MustInterval(9*60, 10*60)
)

func intPtr(v int) *int { return &v }

func anchorPtr(a calendar.Anchor) *calendar.Anchor { return &a }

func mustPattern(t testing.TB, spec PatternSpec) Pattern {
	t.Helper()
	p, err := NewPattern(spec)
	if err != nil {
		t.Fatalf("NewPattern returned error: %v", err)
	}
	return p
}

func mustExpander(t testing.TB, p Pattern, exceptions ...Exception) *Expander {
	t.Helper()
	e, err := NewExpander(p, exceptions)
	if err != nil {
		t.Fatalf("NewExpander returned error: %v", err)
	}
	return e
}

func dates(occurrences []Occurrence) []string {
	out := make([]string, len(occurrences))
	for i, occ := range occurrences {
		out[i] = occ.Date.String()
	}
	return out
}

func TestNewPattern_Validation(t *testing.T) {
	t.Parallel()

	base := PatternSpec{
		StartsOn:      firstMonday,
		Weekdays:      []time.Weekday{time.Monday},
		IntervalWeeks: 1,
		Interval:      morning,
	}

	cases := []struct {
		name   string
		mutate func(*PatternSpec)
		kind   PatternErrorKind
	}{
		{"empty weekdays", func(s *PatternSpec) { s.Weekdays = nil }, EmptyDaysOfWeek},
		{"zero interval weeks", func(s *PatternSpec) { s.IntervalWeeks = 0 }, BadInterval},
		{"negative interval weeks", func(s *PatternSpec) { s.IntervalWeeks = -2 }, BadInterval},
		{"both terminations", func(s *PatternSpec) {
			s.EndsOn = anchorPtr(firstMonday.AddDays(30))
			s.Limit = intPtr(3)
		}, AmbiguousTermination},
		{"weekday out of range", func(s *PatternSpec) { s.Weekdays = []time.Weekday{7} }, BadWeekday},
		{"end before start", func(s *PatternSpec) { s.EndsOn = anchorPtr(firstMonday.AddDays(-1)) }, BadBounds},
		{"zero limit", func(s *PatternSpec) { s.Limit = intPtr(0) }, BadBounds},
		{"missing interval", func(s *PatternSpec) { s.Interval = calendar.Interval{} }, BadBounds},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			spec := base
			tc.mutate(&spec)
			_, err := NewPattern(spec)
			var pErr *PatternError
			if !errors.As(err, &pErr) {
				t.Fatalf("expected PatternError, got %v", err)
			}
			if pErr.Kind != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, pErr.Kind)
			}
			if !errors.Is(err, ErrInvalidPattern) {
				t.Fatalf("expected errors.Is ErrInvalidPattern")
			}
		})
	}

	t.Run("duplicate weekdays collapse", func(t *testing.T) {
		t.Parallel()
		spec := base
		spec.Weekdays = []time.Weekday{time.Friday, time.Monday, time.Friday}
		p := mustPattern(t, spec)
		if got := p.Weekdays(); !reflect.DeepEqual(got, []time.Weekday{time.Monday, time.Friday}) {
			t.Fatalf("unexpected weekdays %v", got)
		}
		if !p.Unbounded() {
			t.Fatalf("expected unbounded pattern")
		}
	})
}

func TestExpander_SkipDoesNotConsumeLimit(t *testing.T) {
	t.Parallel()

	p := mustPattern(t, PatternSpec{
		StartsOn:      firstMonday,
		Limit:         intPtr(3),
		Weekdays:      []time.Weekday{time.Monday},
		IntervalWeeks: 2,
		Interval:      morning,
	})

	plain := mustExpander(t, p).Take(10)
	if got, want := dates(plain), []string{"2024-03-04", "2024-03-18", "2024-04-01"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	// Skipping the second occurrence (week 3) pulls in week 7.
	skipped := mustExpander(t, p, SkipOn(plain[1].Date)).Take(10)
	want := []string{"2024-03-04", "2024-04-01", "2024-04-15"}
	if got := dates(skipped); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected weeks 1, 5, 7 (%v), got %v", want, got)
	}
	for i, occ := range skipped {
		if occ.Index != i {
			t.Fatalf("expected contiguous indexes, got %d at %d", occ.Index, i)
		}
	}
}

func TestExpander_WeekdayAndStride(t *testing.T) {
	t.Parallel()

	p := mustPattern(t, PatternSpec{
		StartsOn:      firstMonday.AddDays(2), // Wednesday
		EndsOn:        anchorPtr(firstMonday.AddDays(27)),
		Weekdays:      []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		IntervalWeeks: 2,
		Interval:      morning,
	})

	got := dates(mustExpander(t, p).Take(100))
	// Week of 03-04 from Wednesday on, skip week of 03-11, then week of 03-18.
	want := []string{"2024-03-06", "2024-03-08", "2024-03-18", "2024-03-20", "2024-03-22"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	for occ := range mustExpander(t, p).All() {
		switch occ.Date.Weekday() {
		case time.Monday, time.Wednesday, time.Friday:
		default:
			t.Fatalf("unexpected weekday %s on %s", occ.Date.Weekday(), occ.Date)
		}
	}
}

func TestExpander_EndsOnIsInclusive(t *testing.T) {
	t.Parallel()

	p := mustPattern(t, PatternSpec{
		StartsOn:      firstMonday,
		EndsOn:        anchorPtr(firstMonday.AddDays(14)),
		Weekdays:      []time.Weekday{time.Monday},
		IntervalWeeks: 1,
		Interval:      morning,
	})
	if got := dates(mustExpander(t, p).Take(10)); len(got) != 3 || got[2] != "2024-03-18" {
		t.Fatalf("expected three Mondays ending 2024-03-18, got %v", got)
	}

	// A skip under a date bound simply removes the date.
	withSkip := mustExpander(t, p, SkipOn(firstMonday.AddDays(7))).Take(10)
	if got := dates(withSkip); !reflect.DeepEqual(got, []string{"2024-03-04", "2024-03-18"}) {
		t.Fatalf("unexpected occurrences %v", got)
	}
}

func TestExpander_ModifyAndInertExceptions(t *testing.T) {
	t.Parallel()

	p := mustPattern(t, PatternSpec{
		StartsOn:      firstMonday,
		Limit:         intPtr(3),
		Weekdays:      []time.Weekday{time.Monday},
		IntervalWeeks: 1,
		Interval:      morning,
	})
	afternoon := calendar.MustInterval(14*60, 15*60)

	e := mustExpander(t, p,
		ModifyOn(firstMonday.AddDays(7), afternoon),
		SkipOn(firstMonday.AddDays(1)), // a Tuesday, never produced
	)
	got := e.Take(10)
	if len(got) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(got))
	}
	if got[1].Interval != afternoon || !got[1].Modified {
		t.Fatalf("expected modified interval on second occurrence, got %+v", got[1])
	}
	if got[0].Interval != morning || got[0].Modified || got[2].Interval != morning {
		t.Fatalf("unmodified occurrences must keep base interval: %+v", got)
	}
}

func TestExpander_RejectsBadExceptions(t *testing.T) {
	t.Parallel()

	p := mustPattern(t, PatternSpec{
		StartsOn:      firstMonday,
		Weekdays:      []time.Weekday{time.Monday},
		IntervalWeeks: 1,
		Interval:      morning,
	})

	_, err := NewExpander(p, []Exception{SkipOn(firstMonday), ModifyOn(firstMonday, morning)})
	var pErr *PatternError
	if !errors.As(err, &pErr) || pErr.Kind != DuplicateException {
		t.Fatalf("expected DuplicateException, got %v", err)
	}

	_, err = NewExpander(p, []Exception{{OnDate: firstMonday, Action: Modify}})
	if !errors.As(err, &pErr) || pErr.Kind != BadBounds {
		t.Fatalf("expected BadBounds for modify without interval, got %v", err)
	}
}

func TestExpander_UnboundedIsLazyAndRestartable(t *testing.T) {
	t.Parallel()

	p := mustPattern(t, PatternSpec{
		StartsOn:      firstMonday,
		Weekdays:      []time.Weekday{time.Tuesday, time.Thursday},
		IntervalWeeks: 3,
		Interval:      morning,
	})
	e := mustExpander(t, p, SkipOn(calendar.FromDate(2024, time.March, 5)))

	first := e.Take(500)
	second := e.Take(500)
	if len(first) != 500 {
		t.Fatalf("expected 500 occurrences from unbounded pattern, got %d", len(first))
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expansion must be deterministic across runs")
	}
	if first[0].Date.String() != "2024-03-07" {
		t.Fatalf("expected skipped Tuesday to be omitted, got %s", first[0].Date)
	}

	it := e.Iterator()
	for i := 0; i < 10; i++ {
		occ, ok := it.Next()
		if !ok || occ != first[i] {
			t.Fatalf("iterator diverged at %d: %+v", i, occ)
		}
	}

	window := e.Window(calendar.FromDate(2024, time.April, 1), calendar.FromDate(2024, time.April, 30))
	for _, occ := range window {
		if occ.Date < calendar.FromDate(2024, time.April, 1) || occ.Date > calendar.FromDate(2024, time.April, 30) {
			t.Fatalf("occurrence %s outside window", occ.Date)
		}
	}
	// On-stride weeks start 03-03, 03-24, 04-14 and 05-05.
	if got := dates(window); !reflect.DeepEqual(got, []string{"2024-04-16", "2024-04-18"}) {
		t.Fatalf("unexpected window %v", got)
	}
}

func TestExpander_ExhaustedIteratorStaysDone(t *testing.T) {
	t.Parallel()

	p := mustPattern(t, PatternSpec{
		StartsOn:      firstMonday,
		Limit:         intPtr(1),
		Weekdays:      []time.Weekday{time.Monday},
		IntervalWeeks: 1,
		Interval:      morning,
	})
	it := mustExpander(t, p).Iterator()
	if _, ok := it.Next(); !ok {
		t.Fatalf("expected one occurrence")
	}
	for i := 0; i < 3; i++ {
		if _, ok := it.Next(); ok {
			t.Fatalf("expected exhausted iterator")
		}
	}
}

func TestPattern_SpecRoundTrip(t *testing.T) {
	t.Parallel()

	p := mustPattern(t, PatternSpec{
		StartsOn:      firstMonday,
		EndsOn:        anchorPtr(firstMonday.AddDays(60)),
		Weekdays:      []time.Weekday{time.Saturday, time.Monday},
		IntervalWeeks: 2,
		Interval:      morning,
	})
	again := mustPattern(t, p.Spec())
	if !reflect.DeepEqual(mustExpander(t, p).Take(50), mustExpander(t, again).Take(50)) {
		t.Fatalf("rebuilt pattern must expand identically")
	}
}

func TestParseActionRoundTrip(t *testing.T) {
	for _, action := range []Action{Skip, Modify} {
		got, err := ParseAction(action.String())
		if err != nil {
			t.Fatalf("ParseAction(%q): %v", action, err)
		}
		if got != action {
			t.Fatalf("ParseAction(%q) = %v", action, got)
		}
	}
	if _, err := ParseAction("unknown"); err == nil {
		t.Fatal("expected an error for an unknown action")
	}
}

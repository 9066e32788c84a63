package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
)

// PatternErrorKind distinguishes why a pattern definition was rejected.
type PatternErrorKind int

const (
	// EmptyDaysOfWeek marks a pattern without any selected weekday.
	EmptyDaysOfWeek PatternErrorKind = iota + 1
	// BadInterval marks a week interval below one.
	BadInterval
	// AmbiguousTermination marks a pattern with both an end date and a limit.
	AmbiguousTermination
	// BadWeekday marks a weekday outside Sunday..Saturday.
	BadWeekday
	// BadBounds marks an end date before the start or a zero occurrence limit.
	BadBounds
	// DuplicateException marks two exceptions on the same date.
	DuplicateException
)

func (k PatternErrorKind) String() string {
	switch k {
	case EmptyDaysOfWeek:
		return "empty_days_of_week"
	case BadInterval:
		return "bad_interval"
	case AmbiguousTermination:
		return "ambiguous_termination"
	case BadWeekday:
		return "bad_weekday"
	case BadBounds:
		return "bad_bounds"
	case DuplicateException:
		return "duplicate_exception"
	default:
		return "unknown"
	}
}

// ErrInvalidPattern is matched by every PatternError through errors.Is.
var ErrInvalidPattern = errors.New("recurrence: invalid pattern")

// PatternError reports a rejected pattern or exception set.
type PatternError struct {
	Kind   PatternErrorKind
	Detail string
}

// Error implements the error interface.
func (e *PatternError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("recurrence: invalid pattern: %s", e.Kind)
	}
	return fmt.Sprintf("recurrence: invalid pattern: %s: %s", e.Kind, e.Detail)
}

// Is reports whether target is ErrInvalidPattern.
func (e *PatternError) Is(target error) bool {
	return target == ErrInvalidPattern
}

// PatternSpec is the caller supplied definition of a recurring booking.
// Leave both EndsOn and Limit nil for an unbounded series.
type PatternSpec struct {
	StartsOn      calendar.Anchor
	EndsOn        *calendar.Anchor
	Limit         *int
	Weekdays      []time.Weekday
	IntervalWeeks int
	Interval      calendar.Interval
}

// Pattern is a validated recurrence definition. It is immutable once built.
type Pattern struct {
	startsOn      calendar.Anchor
	endsOn        *calendar.Anchor
	limit         int
	days          [7]bool
	weekdays      []time.Weekday
	intervalWeeks int
	interval      calendar.Interval
}

// NewPattern validates spec and returns the pattern. All validation happens
// here so expansion itself never fails.
func NewPattern(spec PatternSpec) (Pattern, error) {
	if len(spec.Weekdays) == 0 {
		return Pattern{}, &PatternError{Kind: EmptyDaysOfWeek}
	}
	if spec.IntervalWeeks < 1 {
		return Pattern{}, &PatternError{Kind: BadInterval, Detail: fmt.Sprintf("interval weeks %d", spec.IntervalWeeks)}
	}
	if spec.EndsOn != nil && spec.Limit != nil {
		return Pattern{}, &PatternError{Kind: AmbiguousTermination}
	}
	if spec.Interval.IsZero() {
		return Pattern{}, &PatternError{Kind: BadBounds, Detail: "interval is required"}
	}

	p := Pattern{
		startsOn:      spec.StartsOn,
		intervalWeeks: spec.IntervalWeeks,
		interval:      spec.Interval,
	}
	for _, day := range spec.Weekdays {
		if day < time.Sunday || day > time.Saturday {
			return Pattern{}, &PatternError{Kind: BadWeekday, Detail: fmt.Sprintf("weekday %d", day)}
		}
		p.days[day] = true
	}
	for day := time.Sunday; day <= time.Saturday; day++ {
		if p.days[day] {
			p.weekdays = append(p.weekdays, day)
		}
	}

	if spec.EndsOn != nil {
		if *spec.EndsOn < spec.StartsOn {
			return Pattern{}, &PatternError{Kind: BadBounds, Detail: fmt.Sprintf("ends on %s before %s", *spec.EndsOn, spec.StartsOn)}
		}
		end := *spec.EndsOn
		p.endsOn = &end
	}
	if spec.Limit != nil {
		if *spec.Limit < 1 {
			return Pattern{}, &PatternError{Kind: BadBounds, Detail: fmt.Sprintf("occurrence limit %d", *spec.Limit)}
		}
		p.limit = *spec.Limit
	}
	return p, nil
}

// StartsOn returns the first day the pattern may produce.
func (p Pattern) StartsOn() calendar.Anchor { return p.startsOn }

// EndsOn returns the inclusive last day, if the pattern is date bounded.
func (p Pattern) EndsOn() (calendar.Anchor, bool) {
	if p.endsOn == nil {
		return 0, false
	}
	return *p.endsOn, true
}

// Limit returns the occurrence limit, if the pattern is count bounded.
func (p Pattern) Limit() (int, bool) {
	return p.limit, p.limit > 0
}

// Unbounded reports whether the pattern never terminates on its own.
func (p Pattern) Unbounded() bool {
	return p.endsOn == nil && p.limit == 0
}

// Weekdays returns the selected weekdays in ascending order.
func (p Pattern) Weekdays() []time.Weekday {
	out := make([]time.Weekday, len(p.weekdays))
	copy(out, p.weekdays)
	return out
}

// IntervalWeeks returns the week stride.
func (p Pattern) IntervalWeeks() int { return p.intervalWeeks }

// Interval returns the base clock interval of each occurrence.
func (p Pattern) Interval() calendar.Interval { return p.interval }

// Spec returns a PatternSpec that rebuilds an equal pattern.
func (p Pattern) Spec() PatternSpec {
	spec := PatternSpec{
		StartsOn:      p.startsOn,
		Weekdays:      p.Weekdays(),
		IntervalWeeks: p.intervalWeeks,
		Interval:      p.interval,
	}
	if p.endsOn != nil {
		end := *p.endsOn
		spec.EndsOn = &end
	}
	if p.limit > 0 {
		limit := p.limit
		spec.Limit = &limit
	}
	return spec
}

// matches reports whether day satisfies the weekday and week stride rules.
func (p Pattern) matches(day calendar.Anchor) bool {
	if day < p.startsOn || !p.days[day.Weekday()] {
		return false
	}
	return p.weekOffset(day) == 0
}

func (p Pattern) weekOffset(day calendar.Anchor) int64 {
	diff := day.WeekIndex() - p.startsOn.WeekIndex()
	n := int64(p.intervalWeeks)
	return ((diff % n) + n) % n
}

// nextCandidate returns the first matching day at or after from. It skips
// whole weeks that fall outside the stride. Weekdays is never empty, so the
// search finishes within one stride.
func (p Pattern) nextCandidate(from calendar.Anchor) calendar.Anchor {
	day := from
	if day < p.startsOn {
		day = p.startsOn
	}
	for {
		if off := p.weekOffset(day); off != 0 {
			weekStart := day.AddDays(-int(day.Weekday()))
			day = weekStart.AddDays(int(int64(p.intervalWeeks)-off) * 7)
			continue
		}
		if p.days[day.Weekday()] {
			return day
		}
		day = day.AddDays(1)
	}
}

// Action is what an exception does to the occurrence on its date.
type Action int

const (
	// Skip omits the occurrence.
	Skip Action = iota + 1
	// Modify replaces the occurrence's interval.
	Modify
)

func (a Action) String() string {
	switch a {
	case Skip:
		return "skip"
	case Modify:
		return "modify"
	default:
		return "unknown"
	}
}

// ParseAction is the inverse of Action.String.
func ParseAction(s string) (Action, error) {
	switch s {
	case "skip":
		return Skip, nil
	case "modify":
		return Modify, nil
	default:
		return 0, fmt.Errorf("recurrence: unknown exception action %q", s)
	}
}

// Exception overrides a single occurrence date.
type Exception struct {
	OnDate   calendar.Anchor
	Action   Action
	Interval calendar.Interval
}

// SkipOn returns a Skip exception for day.
func SkipOn(day calendar.Anchor) Exception {
	return Exception{OnDate: day, Action: Skip}
}

// ModifyOn returns a Modify exception moving the occurrence on day to iv.
func ModifyOn(day calendar.Anchor, iv calendar.Interval) Exception {
	return Exception{OnDate: day, Action: Modify, Interval: iv}
}

func indexExceptions(exceptions []Exception) (map[calendar.Anchor]Exception, error) {
	index := make(map[calendar.Anchor]Exception, len(exceptions))
	for _, ex := range exceptions {
		switch ex.Action {
		case Skip:
		case Modify:
			if ex.Interval.IsZero() {
				return nil, &PatternError{Kind: BadBounds, Detail: fmt.Sprintf("modify exception on %s has no interval", ex.OnDate)}
			}
		default:
			return nil, &PatternError{Kind: BadBounds, Detail: fmt.Sprintf("exception on %s has unknown action", ex.OnDate)}
		}
		if _, ok := index[ex.OnDate]; ok {
			return nil, &PatternError{Kind: DuplicateException, Detail: ex.OnDate.String()}
		}
		index[ex.OnDate] = ex
	}
	return index, nil
}

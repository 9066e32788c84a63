package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	// SlotMinutes is the booking granularity.
	SlotMinutes = 30
	// MinutesPerDay is the exclusive upper bound of a day, usable as an end.
	MinutesPerDay = 24 * 60
)

// Minute is a minute-of-day offset in [0, 1440].
type Minute int

// String formats the minute as "HH:mm"; 1440 renders as "24:00".
func (m Minute) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// IntervalErrorKind distinguishes why an interval was rejected.
type IntervalErrorKind int

const (
	// BadFormat marks clock strings that are not HH:mm or out of range minutes.
	BadFormat IntervalErrorKind = iota + 1
	// Unaligned marks minutes that are not on a 30-minute slot boundary.
	Unaligned
	// NonPositiveDuration marks an end that does not come after the start.
	NonPositiveDuration
)

func (k IntervalErrorKind) String() string {
	switch k {
	case BadFormat:
		return "bad_format"
	case Unaligned:
		return "unaligned"
	case NonPositiveDuration:
		return "non_positive_duration"
	default:
		return "unknown"
	}
}

var (
	ErrBadFormat           = errors.New("calendar: time must be HH:mm on a 24-hour clock")
	ErrUnaligned           = errors.New("calendar: time must fall on a 30-minute boundary")
	ErrNonPositiveDuration = errors.New("calendar: end must be after start")
)

// InvalidIntervalError reports why an interval or clock value was rejected.
type InvalidIntervalError struct {
	Kind  IntervalErrorKind
	Value string
}

// Error implements the error interface.
func (e *InvalidIntervalError) Error() string {
	if e.Value == "" {
		return e.sentinel().Error()
	}
	return fmt.Sprintf("%s: %q", e.sentinel().Error(), e.Value)
}

// Unwrap exposes the sentinel matching the kind so callers can use errors.Is.
func (e *InvalidIntervalError) Unwrap() error {
	return e.sentinel()
}

func (e *InvalidIntervalError) sentinel() error {
	switch e.Kind {
	case Unaligned:
		return ErrUnaligned
	case NonPositiveDuration:
		return ErrNonPositiveDuration
	default:
		return ErrBadFormat
	}
}

// Interval is a half-open [Start, End) range of minutes within one day.
// The zero value is not a valid interval; build one with NewInterval.
type Interval struct {
	start Minute
	end   Minute
}

// NewInterval validates the endpoints and returns the interval.
func NewInterval(start, end Minute) (Interval, error) {
	if start < 0 || start > MinutesPerDay || end < 0 || end > MinutesPerDay {
		return Interval{}, &InvalidIntervalError{Kind: BadFormat, Value: fmt.Sprintf("%d-%d", start, end)}
	}
	if start%SlotMinutes != 0 {
		return Interval{}, &InvalidIntervalError{Kind: Unaligned, Value: start.String()}
	}
	if end%SlotMinutes != 0 {
		return Interval{}, &InvalidIntervalError{Kind: Unaligned, Value: end.String()}
	}
	if end <= start {
		return Interval{}, &InvalidIntervalError{Kind: NonPositiveDuration, Value: start.String() + "-" + end.String()}
	}
	return Interval{start: start, end: end}, nil
}

// MustInterval is NewInterval for constant inputs; it panics on invalid values.
func MustInterval(start, end Minute) Interval {
	iv, err := NewInterval(start, end)
	if err != nil {
		panic(err)
	}
	return iv
}

// ParseClock parses an "HH:mm" endpoint. Minutes must be 00 or 30; "24:00"
// is accepted as the end of the day.
func ParseClock(value string) (Minute, error) {
	if len(value) != 5 || value[2] != ':' || !isDigits(value[:2]) || !isDigits(value[3:]) {
		return 0, &InvalidIntervalError{Kind: BadFormat, Value: value}
	}
	hour, _ := strconv.Atoi(value[:2])
	minute, _ := strconv.Atoi(value[3:])
	if minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, &InvalidIntervalError{Kind: BadFormat, Value: value}
	}
	if minute%SlotMinutes != 0 {
		return 0, &InvalidIntervalError{Kind: Unaligned, Value: value}
	}
	return Minute(hour*60 + minute), nil
}

// ParseInterval parses both endpoints and validates the resulting interval.
func ParseInterval(start, end string) (Interval, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	return NewInterval(s, e)
}

// Start returns the inclusive start minute.
func (iv Interval) Start() Minute { return iv.start }

// End returns the exclusive end minute.
func (iv Interval) End() Minute { return iv.end }

// IsZero reports whether the interval is the unset zero value.
func (iv Interval) IsZero() bool { return iv == Interval{} }

// Duration returns the length of the interval.
func (iv Interval) Duration() time.Duration {
	return time.Duration(iv.end-iv.start) * time.Minute
}

// Contains reports whether m lies within [Start, End).
func (iv Interval) Contains(m Minute) bool {
	return iv.start <= m && m < iv.end
}

// Overlaps reports whether the two half-open intervals share any minute.
// Intervals that only touch (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.start < b.end && b.start < a.end
}

// Overlaps is the method form of the package-level Overlaps.
func (iv Interval) Overlaps(other Interval) bool {
	return Overlaps(iv, other)
}

// Instants converts the interval on the given day to absolute times in KST.
func (iv Interval) Instants(day Anchor) (time.Time, time.Time) {
	midnight := day.Midnight()
	return midnight.Add(time.Duration(iv.start) * time.Minute), midnight.Add(time.Duration(iv.end) * time.Minute)
}

// String formats the interval as "HH:mm-HH:mm".
func (iv Interval) String() string {
	return iv.start.String() + "-" + iv.end.String()
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

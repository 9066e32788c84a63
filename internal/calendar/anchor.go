// Package calendar provides the fixed-offset day anchors and 30-minute
// aligned clock intervals the booking engine reasons in.
//
// Every calendar computation is pinned to UTC+9 (KST). The host's local
// timezone is never consulted, so the same instant always maps to the same
// day regardless of where the process runs.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	offsetSeconds = 9 * 60 * 60
	secondsPerDay = 24 * 60 * 60
)

// KST is the fixed UTC+9 zone all anchors are derived in. It carries no DST
// rules.
var KST = time.FixedZone("KST", offsetSeconds)

// ErrInvalidDate indicates a date string could not be parsed.
var ErrInvalidDate = errors.New("calendar: invalid date")

// Anchor identifies a calendar day in KST as the number of days since
// 1970-01-01 KST. Anchors are comparable and ordered.
type Anchor int64

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// FromTimestamp returns the KST day containing t.
func FromTimestamp(t time.Time) Anchor {
	return Anchor(floorDiv(t.Unix()+offsetSeconds, secondsPerDay))
}

// FromDate returns the anchor for the given KST calendar date. Out of range
// months and days are normalized the way time.Date does.
func FromDate(year int, month time.Month, day int) Anchor {
	return FromTimestamp(time.Date(year, month, day, 0, 0, 0, 0, KST))
}

// Today returns the anchor of clock's current instant.
func Today(clock Clock) Anchor {
	return FromTimestamp(clock.Now())
}

// ParseDate parses a "2006-01-02" calendar date as a KST day.
func ParseDate(value string) (Anchor, error) {
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(value), KST)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return FromTimestamp(t), nil
}

// Parse accepts either a calendar date or an RFC 3339 timestamp. Timestamps
// are normalized to the KST day they fall on.
func Parse(value string) (Anchor, error) {
	value = strings.TrimSpace(value)
	if len(value) == len(time.DateOnly) {
		return ParseDate(value)
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return FromTimestamp(t), nil
}

// RangeUTC returns the UTC instants bounding the anchored day as [start, end).
func (a Anchor) RangeUTC() (time.Time, time.Time) {
	start := time.Unix(int64(a)*secondsPerDay-offsetSeconds, 0).UTC()
	return start, start.Add(24 * time.Hour)
}

// Midnight returns 00:00 of the anchored day in KST.
func (a Anchor) Midnight() time.Time {
	start, _ := a.RangeUTC()
	return start.In(KST)
}

// Weekday returns the day of week, 0 being Sunday. 1970-01-01 was a Thursday.
func (a Anchor) Weekday() time.Weekday {
	return time.Weekday(floorMod(int64(a)+4, 7))
}

// WeekIndex numbers Sunday-start weeks so that every day of one week shares
// the same index.
func (a Anchor) WeekIndex() int64 {
	return floorDiv(int64(a)-int64(a.Weekday()), 7)
}

// AddDays returns the anchor n days later (earlier when n is negative).
func (a Anchor) AddDays(n int) Anchor {
	return a + Anchor(n)
}

// Date returns the calendar components of the anchored day.
func (a Anchor) Date() (int, time.Month, int) {
	return a.Midnight().Date()
}

// String formats the anchor as "2006-01-02".
func (a Anchor) String() string {
	return a.Midnight().Format(time.DateOnly)
}

// MarshalText implements encoding.TextMarshaler.
func (a Anchor) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Anchor) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}

package calendar

import (
	"errors"
	"testing"
	"time"
)

func TestFromTimestamp(t *testing.T) {
	t.Parallel()

	t.Run("UTC afternoon maps to next KST day", func(t *testing.T) {
		t.Parallel()

		ts := time.Date(2025, time.March, 14, 15, 30, 0, 0, time.UTC)
		got := FromTimestamp(ts)
		if want := FromDate(2025, time.March, 15); got != want {
			t.Fatalf("expected anchor %s, got %s", want, got)
		}
		if got.String() != "2025-03-15" {
			t.Fatalf("expected 2025-03-15, got %s", got)
		}
	})

	t.Run("foreign midnight does not split a KST day", func(t *testing.T) {
		t.Parallel()

		est := time.FixedZone("EST", -5*60*60)
		before := time.Date(2025, time.March, 14, 23, 55, 0, 0, est)
		after := before.Add(10 * time.Minute)
		if before.Day() == after.Day() {
			t.Fatalf("fixture must straddle local midnight")
		}
		if FromTimestamp(before) != FromTimestamp(after) {
			t.Fatalf("expected same anchor, got %s and %s", FromTimestamp(before), FromTimestamp(after))
		}
	})

	t.Run("input zone does not matter", func(t *testing.T) {
		t.Parallel()

		ts := time.Date(2024, time.December, 31, 14, 59, 59, 0, time.UTC)
		zones := []*time.Location{time.UTC, KST, time.FixedZone("PST", -8*60*60), time.FixedZone("IST", 5*60*60+30*60)}
		want := FromTimestamp(ts)
		for _, zone := range zones {
			if got := FromTimestamp(ts.In(zone)); got != want {
				t.Fatalf("zone %s: expected %s, got %s", zone, want, got)
			}
		}
		if want.String() != "2024-12-31" {
			t.Fatalf("expected 2024-12-31, got %s", want)
		}
		if next := FromTimestamp(ts.Add(time.Second)); next != want+1 {
			t.Fatalf("expected rollover to next day at 15:00Z, got %s", next)
		}
	})

	t.Run("matches calendar date of KST wall clock", func(t *testing.T) {
		t.Parallel()

		start := time.Date(1969, time.December, 25, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 24*60; i++ {
			ts := start.Add(time.Duration(i) * 97 * time.Minute)
			y, m, d := ts.In(KST).Date()
			want := Anchor(floorDiv(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix(), secondsPerDay))
			if got := FromTimestamp(ts); got != want {
				t.Fatalf("%s: expected %d, got %d", ts, want, got)
			}
			if FromTimestamp(ts.UTC()) != FromTimestamp(ts.In(KST)) {
				t.Fatalf("derivation is not stable for %s", ts)
			}
		}
	})
}

func TestAnchor_RangeUTC(t *testing.T) {
	t.Parallel()

	start, end := FromDate(2025, time.March, 15).RangeUTC()
	if want := time.Date(2025, time.March, 14, 15, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("expected start %s, got %s", want, start)
	}
	if want := time.Date(2025, time.March, 15, 15, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("expected end %s, got %s", want, end)
	}
	if start.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %s", start.Location())
	}
	if FromTimestamp(start) != FromDate(2025, time.March, 15) {
		t.Fatalf("range start must belong to the anchored day")
	}
	if FromTimestamp(end.Add(-time.Nanosecond)) != FromDate(2025, time.March, 15) {
		t.Fatalf("instant before range end must belong to the anchored day")
	}
	if FromTimestamp(end) != FromDate(2025, time.March, 16) {
		t.Fatalf("range end must belong to the next day")
	}
}

func TestAnchor_Weekday(t *testing.T) {
	t.Parallel()

	cases := []struct {
		anchor Anchor
		want   time.Weekday
	}{
		{Anchor(0), time.Thursday},
		{Anchor(-1), time.Wednesday},
		{Anchor(3), time.Sunday},
		{FromDate(2025, time.March, 15), time.Saturday},
		{FromDate(2024, time.March, 4), time.Monday},
	}
	for _, tc := range cases {
		if got := tc.anchor.Weekday(); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.anchor, tc.want, got)
		}
	}

	// Weekday must agree with the KST wall clock for a full year of days.
	first := FromDate(2023, time.January, 1)
	for i := 0; i < 366; i++ {
		a := first.AddDays(i)
		if got, want := a.Weekday(), a.Midnight().Weekday(); got != want {
			t.Fatalf("%s: expected %s, got %s", a, want, got)
		}
	}
}

func TestAnchor_WeekIndex(t *testing.T) {
	t.Parallel()

	sunday := FromDate(2025, time.March, 9)
	for i := 0; i < 7; i++ {
		if sunday.AddDays(i).WeekIndex() != sunday.WeekIndex() {
			t.Fatalf("%s should share the week of %s", sunday.AddDays(i), sunday)
		}
	}
	if sunday.AddDays(7).WeekIndex() != sunday.WeekIndex()+1 {
		t.Fatalf("next sunday should start a new week")
	}
	if sunday.AddDays(-1).WeekIndex() != sunday.WeekIndex()-1 {
		t.Fatalf("previous saturday should belong to the previous week")
	}
	if Anchor(-4).WeekIndex() != Anchor(2).WeekIndex() {
		t.Fatalf("week spanning the epoch should share one index")
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	date, err := ParseDate("2025-03-15")
	if err != nil {
		t.Fatalf("ParseDate returned error: %v", err)
	}
	if date != FromDate(2025, time.March, 15) {
		t.Fatalf("unexpected anchor %s", date)
	}

	stamp, err := Parse("2025-03-14T15:30:00Z")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if stamp != date {
		t.Fatalf("expected timestamp to normalize to %s, got %s", date, stamp)
	}

	for _, bad := range []string{"", "2025/03/15", "2025-13-01", "tomorrow"} {
		if _, err := Parse(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q: expected ErrInvalidDate, got %v", bad, err)
		}
	}

	var a Anchor
	if err := a.UnmarshalText([]byte("2024-02-29")); err != nil {
		t.Fatalf("UnmarshalText returned error: %v", err)
	}
	text, _ := a.MarshalText()
	if string(text) != "2024-02-29" {
		t.Fatalf("expected round trip, got %s", text)
	}
}

func TestToday(t *testing.T) {
	t.Parallel()

	clock := ClockFunc(func() time.Time {
		return time.Date(2025, time.March, 14, 16, 0, 0, 0, time.UTC)
	})
	if got := Today(clock); got.String() != "2025-03-15" {
		t.Fatalf("expected 2025-03-15, got %s", got)
	}
}

package calendar

import (
	"errors"
	"testing"
	"time"
)

func mustParse(t *testing.T, start, end string) Interval {
	t.Helper()
	iv, err := ParseInterval(start, end)
	if err != nil {
		t.Fatalf("ParseInterval(%q, %q) returned error: %v", start, end, err)
	}
	return iv
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	valid := map[string]Minute{
		"00:00": 0,
		"09:30": 570,
		"23:30": 1410,
		"24:00": 1440,
	}
	for input, want := range valid {
		got, err := ParseClock(input)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", input, err)
		}
		if got != want {
			t.Fatalf("%q: expected %d, got %d", input, want, got)
		}
	}

	invalid := map[string]IntervalErrorKind{
		"9:00":   BadFormat,
		"09:0":   BadFormat,
		"0900":   BadFormat,
		"09-00":  BadFormat,
		"25:00":  BadFormat,
		"24:30":  BadFormat,
		"09:60":  BadFormat,
		"ab:cd":  BadFormat,
		"":       BadFormat,
		"09:15":  Unaligned,
		"10:45":  Unaligned,
		" 09:00": BadFormat,
	}
	for input, kind := range invalid {
		_, err := ParseClock(input)
		var ivErr *InvalidIntervalError
		if !errors.As(err, &ivErr) {
			t.Fatalf("%q: expected InvalidIntervalError, got %v", input, err)
		}
		if ivErr.Kind != kind {
			t.Fatalf("%q: expected kind %s, got %s", input, kind, ivErr.Kind)
		}
	}
}

func TestNewInterval(t *testing.T) {
	t.Parallel()

	t.Run("rejects unaligned start", func(t *testing.T) {
		t.Parallel()
		_, err := ParseInterval("09:15", "10:00")
		if !errors.Is(err, ErrUnaligned) {
			t.Fatalf("expected ErrUnaligned, got %v", err)
		}
	})

	t.Run("rejects reversed endpoints", func(t *testing.T) {
		t.Parallel()
		_, err := ParseInterval("10:00", "09:00")
		if !errors.Is(err, ErrNonPositiveDuration) {
			t.Fatalf("expected ErrNonPositiveDuration, got %v", err)
		}
	})

	t.Run("rejects empty interval", func(t *testing.T) {
		t.Parallel()
		_, err := NewInterval(600, 600)
		if !errors.Is(err, ErrNonPositiveDuration) {
			t.Fatalf("expected ErrNonPositiveDuration, got %v", err)
		}
	})

	t.Run("rejects out of range minutes", func(t *testing.T) {
		t.Parallel()
		for _, pair := range [][2]Minute{{-30, 60}, {0, 1470}} {
			if _, err := NewInterval(pair[0], pair[1]); !errors.Is(err, ErrBadFormat) {
				t.Fatalf("%v: expected ErrBadFormat, got %v", pair, err)
			}
		}
	})

	t.Run("rejects unaligned raw minutes", func(t *testing.T) {
		t.Parallel()
		if _, err := NewInterval(0, 45); !errors.Is(err, ErrUnaligned) {
			t.Fatalf("expected ErrUnaligned, got %v", err)
		}
	})

	t.Run("accepts whole day", func(t *testing.T) {
		t.Parallel()
		iv := mustParse(t, "00:00", "24:00")
		if iv.Duration() != 24*time.Hour {
			t.Fatalf("expected 24h, got %s", iv.Duration())
		}
		if iv.String() != "00:00-24:00" {
			t.Fatalf("unexpected string %q", iv.String())
		}
	})
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	nineToTen := mustParse(t, "09:00", "10:00")
	tenToEleven := mustParse(t, "10:00", "11:00")
	halfPast := mustParse(t, "09:30", "10:30")

	if Overlaps(nineToTen, tenToEleven) {
		t.Fatalf("touching intervals must not overlap")
	}
	if !Overlaps(nineToTen, halfPast) {
		t.Fatalf("09:00-10:00 and 09:30-10:30 must overlap")
	}
	if !nineToTen.Overlaps(mustParse(t, "08:00", "12:00")) {
		t.Fatalf("containing interval must overlap")
	}

	// Exhaustive symmetry and reflexivity over every aligned interval.
	var all []Interval
	for s := Minute(0); s < MinutesPerDay; s += SlotMinutes * 3 {
		for e := s + SlotMinutes; e <= MinutesPerDay; e += SlotMinutes * 5 {
			all = append(all, MustInterval(s, e))
		}
	}
	for _, a := range all {
		if !Overlaps(a, a) {
			t.Fatalf("%s must overlap itself", a)
		}
		for _, b := range all {
			if Overlaps(a, b) != Overlaps(b, a) {
				t.Fatalf("overlap not symmetric for %s and %s", a, b)
			}
		}
	}
}

func TestInterval_Instants(t *testing.T) {
	t.Parallel()

	day := FromDate(2025, time.March, 15)
	start, end := mustParse(t, "09:00", "10:30").Instants(day)
	if want := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("expected %s, got %s", want, start)
	}
	if end.Sub(start) != 90*time.Minute {
		t.Fatalf("expected 90 minutes, got %s", end.Sub(start))
	}
	if !mustParse(t, "09:00", "10:30").Contains(570) {
		t.Fatalf("expected 09:30 to be contained")
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func decode[T any](t *testing.T, r result) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(strings.TrimSpace(r.stdout)), &v); err != nil {
		t.Fatalf("decode %q: %v (stderr %q)", r.stdout, err, r.stderr)
	}
	return v
}

func useSQLite(t *testing.T) {
	t.Helper()
	t.Setenv("BOOKING_STORE", "sqlite")
	t.Setenv("BOOKING_SQLITE_DSN", filepath.Join(t.TempDir(), "booking.db"))
	t.Setenv("BOOKING_REJECT_PAST", "false")
	t.Setenv("BOOKING_LOG_LEVEL", "error")
	t.Setenv("BOOKING_REDIS_ADDR", "")
}

func TestRunUsageErrors(t *testing.T) {
	useSQLite(t)

	if r := runCLI(t); r.code != exitUsage || !strings.Contains(r.stderr, "usage: roombook") {
		t.Fatalf("expected usage for no command, got %d %q", r.code, r.stderr)
	}
	if r := runCLI(t, "teleport"); r.code != exitUsage || !strings.Contains(r.stderr, `unknown command "teleport"`) {
		t.Fatalf("expected unknown command error, got %d %q", r.code, r.stderr)
	}
	if r := runCLI(t, "cancel", "-user", "alice"); r.code != exitUsage {
		t.Fatalf("expected usage error when cancel has no target, got %d", r.code)
	}
}

func TestRunRejectsInvalidConfiguration(t *testing.T) {
	useSQLite(t)
	t.Setenv("BOOKING_STORE", "mongo")

	r := runCLI(t, "migrate")
	if r.code != exitFailure || !strings.Contains(r.stderr, "BOOKING_STORE") {
		t.Fatalf("expected configuration failure naming BOOKING_STORE, got %d %q", r.code, r.stderr)
	}
}

func TestRunBookingLifecycleOnSQLite(t *testing.T) {
	useSQLite(t)

	migrated := decode[migrateView](t, runCLI(t, "migrate"))
	if !migrated.Migrated || migrated.Store != "sqlite" {
		t.Fatalf("unexpected migrate output %+v", migrated)
	}

	booked := runCLI(t, "book", "-user", "alice", "-room", "room-a", "-date", "2025-03-17", "-start", "09:00", "-end", "10:00")
	if booked.code != exitOK {
		t.Fatalf("book exited %d: %s %s", booked.code, booked.stdout, booked.stderr)
	}
	first := decode[outcomeView](t, booked)
	if first.State != "committed" || first.Reservation == nil || first.Reservation.Start != "09:00" {
		t.Fatalf("unexpected book output %+v", first)
	}

	clash := runCLI(t, "book", "-user", "bob", "-room", "room-a", "-date", "2025-03-17", "-start", "09:30", "-end", "10:30")
	if clash.code != exitConflict {
		t.Fatalf("expected conflict exit code, got %d", clash.code)
	}
	conflicted := decode[outcomeView](t, clash)
	if conflicted.State != "conflicted" || len(conflicted.Conflicts) != 1 || conflicted.Conflicts[0].ID != first.Reservation.ID {
		t.Fatalf("unexpected conflict output %+v", conflicted)
	}

	day := decode[dayView](t, runCLI(t, "day", "-room", "room-a", "-date", "2025-03-17", "-open", "09:00", "-close", "11:00"))
	if len(day.Reservations) != 1 || len(day.Free) != 2 || day.Free[0].Start != "10:00" {
		t.Fatalf("unexpected day output %+v", day)
	}

	denied := runCLI(t, "cancel", "-user", "bob", "-id", first.Reservation.ID)
	if denied.code != exitFailure || decode[errorView](t, denied).Kind != "unauthorized" {
		t.Fatalf("expected unauthorized cancel, got %d %s", denied.code, denied.stdout)
	}

	if r := runCLI(t, "cancel", "-user", "alice", "-id", first.Reservation.ID); r.code != exitOK {
		t.Fatalf("cancel exited %d: %s", r.code, r.stdout)
	}
	empty := decode[dayView](t, runCLI(t, "day", "-room", "room-a", "-date", "2025-03-17"))
	if len(empty.Reservations) != 0 {
		t.Fatalf("expected no reservations after cancel, got %+v", empty.Reservations)
	}
}

func TestRunValidationErrorsAreReportedAsJSON(t *testing.T) {
	useSQLite(t)

	r := runCLI(t, "book", "-user", "alice", "-room", "room-a", "-date", "2025-03-17", "-start", "09:10", "-end", "10:00")
	if r.code != exitFailure {
		t.Fatalf("expected failure exit code, got %d", r.code)
	}
	view := decode[errorView](t, r)
	if view.Kind != "validation" || view.Fields["start"] == "" {
		t.Fatalf("unexpected error output %+v", view)
	}
}

func TestRunSeriesCommands(t *testing.T) {
	useSQLite(t)

	r := runCLI(t, "book-series", "-user", "alice", "-room", "room-a",
		"-starts-on", "2025-03-17", "-limit", "3", "-weekdays", "mon,wed",
		"-start", "09:00", "-end", "10:00", "-skip", "2025-03-19")
	if r.code != exitOK {
		t.Fatalf("book-series exited %d: %s %s", r.code, r.stdout, r.stderr)
	}
	series := decode[seriesView](t, r)
	if series.PatternID == "" || series.Committed != 3 || series.Occurrences[1].Date.String() != "2025-03-24" {
		t.Fatalf("unexpected series output %+v", series)
	}

	moved := runCLI(t, "exception", "-user", "alice", "-series", series.PatternID,
		"-date", "2025-03-24", "-action", "modify", "-start", "13:00", "-end", "14:00")
	if moved.code != exitOK {
		t.Fatalf("exception exited %d: %s %s", moved.code, moved.stdout, moved.stderr)
	}
	if ex := decode[exceptionView](t, moved); ex.Outcome == nil || ex.Outcome.Reservation.Start != "13:00" {
		t.Fatalf("unexpected exception output %+v", ex)
	}

	cancelled := decode[cancelSeriesView](t, runCLI(t, "cancel", "-user", "alice", "-series", series.PatternID, "-from", "2025-03-17"))
	if len(cancelled.Cancelled) != 3 || !cancelled.PatternDeleted {
		t.Fatalf("unexpected cancel output %+v", cancelled)
	}
}

func TestRunWithRedisLeases(t *testing.T) {
	mr := miniredis.RunT(t)
	useSQLite(t)
	t.Setenv("BOOKING_REDIS_ADDR", mr.Addr())

	r := runCLI(t, "book", "-user", "alice", "-room", "room-a", "-date", "2025-03-17", "-start", "09:00", "-end", "10:00")
	if r.code != exitOK {
		t.Fatalf("book exited %d: %s %s", r.code, r.stdout, r.stderr)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected leases to be released, found %v", keys)
	}
}

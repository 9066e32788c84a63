package testfixtures

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/recurrence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

// StoreFactory opens an empty, migrated store for one subtest.
type StoreFactory func(t *testing.T) persistence.Store

// RunStoreContract exercises the behaviour every persistence.Store backend
// must share.
func RunStoreContract(t *testing.T, open StoreFactory) {
	t.Helper()

	t.Run("reservations round trip", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		r := NewReservationFixture(WithReservationPattern("pat-1"))

		commit(t, store, []scheduler.Key{r.Key()}, func(ctx context.Context, tx scheduler.Tx) error {
			_, err := tx.Insert(ctx, r)
			return err
		})

		got, err := store.Get(ctx, r.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		assertSameReservation(t, r, got)

		found, err := store.FindForRoomOnDate(ctx, r.RoomID, r.OnDate)
		if err != nil || len(found) != 1 {
			t.Fatalf("FindForRoomOnDate = %v, %v", found, err)
		}
		if other, _ := store.FindForRoomOnDate(ctx, r.RoomID, r.OnDate.AddDays(1)); len(other) != 0 {
			t.Fatalf("expected no reservations on the next day")
		}

		if err := store.Delete(ctx, r.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := store.Get(ctx, r.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if err := store.Delete(ctx, r.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("failed commitment leaves no writes", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		r := NewReservationFixture()
		boom := errors.New("abort")

		err := store.WithExclusiveCommitment(ctx, []scheduler.Key{r.Key()}, func(ctx context.Context, tx scheduler.Tx) error {
			if _, err := tx.Insert(ctx, r); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected body error, got %v", err)
		}
		if _, err := store.Get(ctx, r.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("rolled back reservation must not exist, got %v", err)
		}
	})

	t.Run("uniqueness guard reports slot taken", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		first := NewReservationFixture()
		second := NewReservationFixture(
			WithReservationRoom(first.RoomID),
			WithReservationDate(first.OnDate),
			WithReservationInterval(first.Interval.Start(), first.Interval.End()+calendar.SlotMinutes),
		)

		commit(t, store, []scheduler.Key{first.Key()}, func(ctx context.Context, tx scheduler.Tx) error {
			_, err := tx.Insert(ctx, first)
			return err
		})
		err := store.WithExclusiveCommitment(ctx, []scheduler.Key{second.Key()}, func(ctx context.Context, tx scheduler.Tx) error {
			_, err := tx.Insert(ctx, second)
			return err
		})
		if !errors.Is(err, scheduler.ErrSlotTaken) {
			t.Fatalf("expected ErrSlotTaken, got %v", err)
		}
	})

	t.Run("tx is limited to held keys", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		r := NewReservationFixture()
		other := scheduler.Key{RoomID: r.RoomID, Date: r.OnDate.AddDays(1)}

		err := store.WithExclusiveCommitment(ctx, []scheduler.Key{other}, func(ctx context.Context, tx scheduler.Tx) error {
			_, err := tx.Insert(ctx, r)
			return err
		})
		if !errors.Is(err, scheduler.ErrKeyNotHeld) {
			t.Fatalf("expected ErrKeyNotHeld, got %v", err)
		}
	})

	t.Run("tx sees its own writes", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		original := NewReservationFixture()
		commit(t, store, []scheduler.Key{original.Key()}, func(ctx context.Context, tx scheduler.Tx) error {
			_, err := tx.Insert(ctx, original)
			return err
		})

		moved := original
		moved.ID = original.ID + "-moved"
		commit(t, store, []scheduler.Key{original.Key()}, func(ctx context.Context, tx scheduler.Tx) error {
			if err := tx.Delete(ctx, original.ID); err != nil {
				return err
			}
			if _, err := tx.Insert(ctx, moved); err != nil {
				return err
			}
			rs, err := tx.FindForRoomOnDate(ctx, original.RoomID, original.OnDate)
			if err != nil {
				return err
			}
			if len(rs) != 1 || rs[0].ID != moved.ID {
				return fmt.Errorf("expected only %s in tx view, got %v", moved.ID, rs)
			}
			return nil
		})
		if _, err := store.Get(ctx, moved.ID); err != nil {
			t.Fatalf("expected moved reservation committed: %v", err)
		}
	})

	t.Run("list by pattern filters origin and date", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		base := ReferenceDay()
		rs := []scheduler.Reservation{
			NewReservationFixture(WithReservationPattern("pat-1"), WithReservationDate(base)),
			NewReservationFixture(WithReservationPattern("pat-1"), WithReservationDate(base.AddDays(7))),
			NewReservationFixture(WithReservationPattern("pat-2"), WithReservationDate(base.AddDays(7))),
			NewReservationFixture(WithReservationDate(base.AddDays(7))),
		}
		for _, r := range rs {
			r := r
			commit(t, store, []scheduler.Key{r.Key()}, func(ctx context.Context, tx scheduler.Tx) error {
				_, err := tx.Insert(ctx, r)
				return err
			})
		}

		got, err := store.ListByPattern(ctx, "pat-1", base.AddDays(1))
		if err != nil {
			t.Fatalf("ListByPattern: %v", err)
		}
		if len(got) != 1 || got[0].ID != rs[1].ID {
			t.Fatalf("expected only %s, got %v", rs[1].ID, got)
		}
	})

	t.Run("patterns and exceptions", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		rec := NewPatternFixture()

		if err := store.SavePattern(ctx, rec); err != nil {
			t.Fatalf("SavePattern: %v", err)
		}
		if err := store.SavePattern(ctx, rec); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}

		got, err := store.GetPattern(ctx, rec.ID)
		if err != nil {
			t.Fatalf("GetPattern: %v", err)
		}
		if !got.CreatedAt.Equal(rec.CreatedAt) {
			t.Fatalf("created_at mismatch: %v vs %v", got.CreatedAt, rec.CreatedAt)
		}
		got.CreatedAt = rec.CreatedAt
		if !reflect.DeepEqual(got, rec) {
			t.Fatalf("pattern mismatch:\n got %+v\nwant %+v", got, rec)
		}
		if _, err := got.Pattern(); err != nil {
			t.Fatalf("stored pattern must rebuild: %v", err)
		}

		day := rec.StartsOn.AddDays(7)
		skip := persistence.NewExceptionRecord(rec.ID, recurrence.SkipOn(day))
		if err := store.UpsertException(ctx, skip); err != nil {
			t.Fatalf("UpsertException: %v", err)
		}
		modify := persistence.NewExceptionRecord(rec.ID, recurrence.ModifyOn(day, calendar.MustInterval(14*60, 15*60)))
		if err := store.UpsertException(ctx, modify); err != nil {
			t.Fatalf("UpsertException replace: %v", err)
		}
		earlier := persistence.NewExceptionRecord(rec.ID, recurrence.SkipOn(rec.StartsOn))
		if err := store.UpsertException(ctx, earlier); err != nil {
			t.Fatalf("UpsertException: %v", err)
		}

		exceptions, err := store.ListExceptions(ctx, rec.ID)
		if err != nil {
			t.Fatalf("ListExceptions: %v", err)
		}
		if !reflect.DeepEqual(exceptions, []persistence.ExceptionRecord{earlier, modify}) {
			t.Fatalf("unexpected exceptions %+v", exceptions)
		}

		if err := store.DeleteException(ctx, rec.ID, rec.StartsOn); err != nil {
			t.Fatalf("DeleteException: %v", err)
		}
		if err := store.DeleteException(ctx, rec.ID, rec.StartsOn); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		orphan := persistence.NewExceptionRecord("missing", recurrence.SkipOn(day))
		if err := store.UpsertException(ctx, orphan); !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
		}

		if err := store.DeletePattern(ctx, rec.ID); err != nil {
			t.Fatalf("DeletePattern: %v", err)
		}
		if _, err := store.GetPattern(ctx, rec.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := store.ListExceptions(ctx, rec.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for exceptions of deleted pattern, got %v", err)
		}
	})

	t.Run("concurrent overlapping reservations commit once", func(t *testing.T) {
		store := open(t)
		engine, err := scheduler.NewEngine(scheduler.Config{
			Store: store,
			Clock: NewClock(time.Time{}),
			NewID: NewIDGenerator("res").Next,
		})
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}

		day := ReferenceDay().AddDays(3)
		intervals := []calendar.Interval{
			calendar.MustInterval(9*60, 10*60),
			calendar.MustInterval(9*60+30, 10*60+30),
			calendar.MustInterval(8*60, 11*60),
		}

		const attempts = 9
		outcomes := make([]scheduler.Outcome, attempts)
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				outcomes[i] = engine.Reserve(context.Background(), scheduler.Request{
					RoomID: "room-race", OwnerID: fmt.Sprintf("user-%d", i), Date: day, Interval: intervals[i%len(intervals)],
				})
			}(i)
		}
		close(start)
		wg.Wait()

		committed := 0
		for _, out := range outcomes {
			switch out.State {
			case scheduler.Committed:
				committed++
			case scheduler.Conflicted:
			default:
				t.Fatalf("unexpected state %s: %v", out.State, out.Err)
			}
		}
		if committed != 1 {
			t.Fatalf("expected exactly one commit, got %d", committed)
		}
	})
}

func commit(t *testing.T, store scheduler.Store, keys []scheduler.Key, body func(ctx context.Context, tx scheduler.Tx) error) {
	t.Helper()
	if err := store.WithExclusiveCommitment(context.Background(), keys, body); err != nil {
		t.Fatalf("WithExclusiveCommitment: %v", err)
	}
}

func assertSameReservation(t *testing.T, want, got scheduler.Reservation) {
	t.Helper()
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("created_at mismatch: %v vs %v", got.CreatedAt, want.CreatedAt)
	}
	got.CreatedAt = want.CreatedAt
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("reservation mismatch:\n got %+v\nwant %+v", got, want)
	}
}

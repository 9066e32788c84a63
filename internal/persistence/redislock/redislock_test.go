package redislock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence/memory"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
	"github.com/jae1jeong/meeting-resv-sub001/internal/testfixtures"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestStoreContract(t *testing.T) {
	testfixtures.RunStoreContract(t, func(t *testing.T) persistence.Store {
		_, client := newRedis(t)
		return Wrap(memory.New(), client, Options{RetryDelay: time.Millisecond, MaxAttempts: 5000})
	})
}

func TestLeaseHeldDuringBodyAndReleasedAfter(t *testing.T) {
	mr, client := newRedis(t)
	store := Wrap(memory.New(), client, Options{TTL: 5 * time.Second})
	r := testfixtures.NewReservationFixture()
	name := lockName(r.Key())

	err := store.WithExclusiveCommitment(context.Background(), []scheduler.Key{r.Key()}, func(ctx context.Context, tx scheduler.Tx) error {
		assert.True(t, mr.Exists(name), "lease must exist while body runs")
		assert.Greater(t, mr.TTL(name), time.Duration(0), "lease must expire")
		_, err := tx.Insert(ctx, r)
		return err
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(name), "lease must be released")

	_, err = store.Get(context.Background(), r.ID)
	assert.NoError(t, err, "reads go to the wrapped store")
}

func TestLeaseRenewedWhileBodyRuns(t *testing.T) {
	mr, client := newRedis(t)
	ttl := 150 * time.Millisecond
	store := Wrap(memory.New(), client, Options{TTL: ttl})
	k := testfixtures.NewReservationFixture().Key()
	name := lockName(k)

	err := store.WithExclusiveCommitment(context.Background(), []scheduler.Key{k}, func(context.Context, scheduler.Tx) error {
		mr.FastForward(100 * time.Millisecond)
		time.Sleep(3 * ttl / 2)
		assert.True(t, mr.Exists(name), "lease must survive a body longer than its TTL")
		assert.Greater(t, mr.TTL(name), 100*time.Millisecond, "lease must have been renewed")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(name), "lease must be released")
}

func TestBusyLeaseFailsAfterAttempts(t *testing.T) {
	mr, client := newRedis(t)
	store := Wrap(memory.New(), client, Options{MaxAttempts: 3, RetryDelay: time.Millisecond})
	k := testfixtures.NewReservationFixture().Key()
	require.NoError(t, mr.Set(lockName(k), "someone-else"))

	ran := false
	err := store.WithExclusiveCommitment(context.Background(), []scheduler.Key{k}, func(context.Context, scheduler.Tx) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockUnavailable)
	assert.False(t, ran)

	v, getErr := mr.Get(lockName(k))
	require.NoError(t, getErr)
	assert.Equal(t, "someone-else", v, "foreign lease must not be touched")
}

func TestPartialAcquisitionIsRolledBack(t *testing.T) {
	mr, client := newRedis(t)
	store := Wrap(memory.New(), client, Options{MaxAttempts: 1})
	day := testfixtures.ReferenceDay()
	first := scheduler.Key{RoomID: "room-a", Date: day}
	second := scheduler.Key{RoomID: "room-a", Date: day.AddDays(1)}
	require.NoError(t, mr.Set(lockName(second), "other"))

	err := store.WithExclusiveCommitment(context.Background(), []scheduler.Key{second, first}, func(context.Context, scheduler.Tx) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrLockUnavailable)
	assert.False(t, mr.Exists(lockName(first)), "earlier lease must be released")
}

func TestReleaseKeepsLeaseTakenOverByOthers(t *testing.T) {
	mr, client := newRedis(t)
	store := Wrap(memory.New(), client, Options{})
	k := testfixtures.NewReservationFixture().Key()

	err := store.WithExclusiveCommitment(context.Background(), []scheduler.Key{k}, func(context.Context, scheduler.Tx) error {
		// Simulates expiry followed by another holder.
		return mr.Set(lockName(k), "new-holder")
	})
	require.NoError(t, err)

	v, getErr := mr.Get(lockName(k))
	require.NoError(t, getErr)
	assert.Equal(t, "new-holder", v)
}

func TestCancelledContextStopsWaiting(t *testing.T) {
	mr, client := newRedis(t)
	store := Wrap(memory.New(), client, Options{MaxAttempts: 1000, RetryDelay: 10 * time.Millisecond})
	k := testfixtures.NewReservationFixture().Key()
	require.NoError(t, mr.Set(lockName(k), "other"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := store.WithExclusiveCommitment(ctx, []scheduler.Key{k}, func(context.Context, scheduler.Tx) error { return nil })
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrLockUnavailable), "must stop on the deadline, not the attempt budget: %v", err)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	_ = client.Close()

	addr := mr.Addr()
	mr.Close()
	_, err = Connect(context.Background(), addr, "", 0)
	assert.Error(t, err)
}

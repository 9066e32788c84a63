// Package redislock serialises commitments across processes by holding a
// Redis lease per room/day before delegating to the wrapped store.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

// ErrLockUnavailable is returned when a lease cannot be acquired within the
// configured attempts.
var ErrLockUnavailable = errors.New("redislock: lock unavailable")

const keyPrefix = "booking:lock:"

// Deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Extends the key's expiry only if it still carries our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Options tune lease acquisition.
type Options struct {
	TTL         time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *slog.Logger
}

// DefaultOptions returns a 10s lease with 50 attempts 20ms apart.
func DefaultOptions() Options {
	return Options{TTL: 10 * time.Second, MaxAttempts: 50, RetryDelay: 20 * time.Millisecond}
}

// Store decorates a persistence.Store. Every method except
// WithExclusiveCommitment is served by the wrapped store. Leases are renewed
// every third of the TTL while the commitment body runs.
type Store struct {
	persistence.Store
	client redis.UniversalClient
	opts   Options
	logger *slog.Logger
}

// Wrap returns inner guarded by Redis leases.
func Wrap(inner persistence.Store, client redis.UniversalClient, opts Options) *Store {
	def := DefaultOptions()
	if opts.TTL <= 0 {
		opts.TTL = def.TTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Store: inner, client: client, opts: opts, logger: logger.With("component", "redislock")}
}

// Connect builds a client and verifies it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redislock: ping %s: %w", addr, err)
	}
	return client, nil
}

// WithExclusiveCommitment acquires a lease for every key in sorted order,
// then runs the wrapped store's commitment. Leases are released afterwards
// whatever the outcome.
func (s *Store) WithExclusiveCommitment(ctx context.Context, keys []scheduler.Key, body func(ctx context.Context, tx scheduler.Tx) error) error {
	sorted := scheduler.SortKeys(keys)
	token := uuid.NewString()

	acquired := make([]string, 0, len(sorted))
	defer func() {
		s.release(acquired, token)
	}()
	for _, k := range sorted {
		name := lockName(k)
		if err := s.acquire(ctx, name, token); err != nil {
			return err
		}
		acquired = append(acquired, name)
	}
	stop := s.keepAlive(acquired, token)
	defer stop()
	return s.Store.WithExclusiveCommitment(ctx, sorted, body)
}

// keepAlive renews the leases in the background until the returned func is
// called.
func (s *Store) keepAlive(names []string, token string) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(s.opts.TTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.renew(names, token)
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

func (s *Store) renew(names []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.TTL/3)
	defer cancel()
	ttl := s.opts.TTL.Milliseconds()
	for _, name := range names {
		n, err := renewScript.Run(ctx, s.client, []string{name}, token, ttl).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			s.logger.Warn("lease renewal failed", "lock", name, "error", err)
			continue
		}
		if n == 0 {
			s.logger.Warn("lease lost", "lock", name)
		}
	}
}

func (s *Store) acquire(ctx context.Context, name, token string) error {
	for attempt := 1; ; attempt++ {
		ok, err := s.client.SetNX(ctx, name, token, s.opts.TTL).Result()
		if err != nil {
			return fmt.Errorf("redislock: acquire %s: %w", name, err)
		}
		if ok {
			return nil
		}
		if attempt >= s.opts.MaxAttempts {
			s.logger.Info("lease busy", "lock", name, "attempts", attempt)
			return fmt.Errorf("%w: %s after %d attempts", ErrLockUnavailable, name, attempt)
		}
		timer := time.NewTimer(s.opts.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// release runs on a fresh context so that a cancelled request still frees
// its leases.
func (s *Store) release(names []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(names) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, s.client, []string{names[i]}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			s.logger.Warn("lease release failed", "lock", names[i], "error", err)
		}
	}
}

func lockName(k scheduler.Key) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, k.RoomID, k.Date)
}

// Package postgres implements persistence.Store on PostgreSQL through GORM.
// Commitments lock one room_day_locks row per key, in key order, with
// SELECT ... FOR UPDATE inside a single transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	DSN          string
	MaxOpenConns int
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig returns settings for dsn with bounded serialization retry.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:          dsn,
		MaxOpenConns: 16,
		MaxRetries:   3,
		InitialDelay: 25 * time.Millisecond,
		MaxDelay:     time.Second,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DSN) == "" {
		return errors.New("postgres: dsn cannot be empty")
	}
	if c.MaxRetries < 0 || c.InitialDelay < 0 || c.MaxDelay < 0 {
		return errors.New("postgres: retry settings cannot be negative")
	}
	return nil
}

// Store is a PostgreSQL-backed persistence.Store.
type Store struct {
	db     *gorm.DB
	cfg    Config
	logger *slog.Logger
}

var _ persistence.Store = (*Store)(nil)

// Open connects to PostgreSQL. Call Migrate before use.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return New(db, cfg, log), nil
}

// New wraps an existing GORM handle.
func New(db *gorm.DB, cfg Config, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, cfg: cfg, logger: log.With("component", "postgres")}
}

// DB exposes the GORM handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&reservationRow{}, &roomDayLock{}, &patternRow{}, &exceptionRow{}); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	s.logger.Info("schema migrated")
	return nil
}

// withRetry reruns fn on serialization failures and deadlocks.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	delay := s.cfg.InitialDelay
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			s.logger.Debug("retrying after serialization failure", "attempt", attempt, "error", lastErr)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay *= 2
			if delay > s.cfg.MaxDelay {
				delay = s.cfg.MaxDelay
			}
		}
		lastErr = classify(fn())
		if lastErr == nil || !errors.Is(lastErr, errRetryable) {
			return lastErr
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", s.cfg.MaxRetries, lastErr)
}

var errRetryable = errors.New("postgres: transaction must be retried")

// SQLSTATE codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeNotNullViolation     = "23502"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// classify maps driver errors onto persistence and scheduler sentinels,
// keeping the original error in the chain. Already classified errors pass
// through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", persistence.ErrNotFound, err)
	}
	if isClassified(err) {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		if pgErr.ConstraintName == slotConstraint {
			return fmt.Errorf("%w: %w", scheduler.ErrSlotTaken, err)
		}
		return fmt.Errorf("%w: %w", persistence.ErrDuplicate, err)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %w", persistence.ErrForeignKeyViolation, err)
	case codeCheckViolation, codeNotNullViolation:
		return fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %w", errRetryable, err)
	}
	return err
}

func isClassified(err error) bool {
	for _, sentinel := range []error{
		persistence.ErrNotFound, persistence.ErrDuplicate, persistence.ErrForeignKeyViolation,
		persistence.ErrConstraintViolation, scheduler.ErrSlotTaken, errRetryable,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

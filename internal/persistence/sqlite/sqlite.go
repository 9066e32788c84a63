// Package sqlite implements persistence.Store on an embedded SQLite
// database through modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence/sqlite/migration"
)

// Store is a SQLite-backed persistence.Store. Commitments run inside
// BEGIN IMMEDIATE transactions, which hold the database write lock for the
// whole read-check-insert sequence.
type Store struct {
	db     *sql.DB
	retry  *RetryHelper
	logger *slog.Logger
}

var _ persistence.Store = (*Store)(nil)

// Open connects to the database described by cfg. Call Migrate before use.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{
		db:     db,
		retry:  NewRetryHelper(cfg.Retry),
		logger: logger.With("component", "sqlite"),
	}, nil
}

// DB exposes the underlying pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate applies the embedded schema.
func (s *Store) Migrate(ctx context.Context) error {
	manager := migration.NewManager(migration.Embedded(), migration.NewExecutor(s.db), s.logger)
	applied, err := manager.Run(ctx)
	if err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	if applied > 0 {
		s.logger.Info("schema migrated", "applied", applied)
	}
	return nil
}

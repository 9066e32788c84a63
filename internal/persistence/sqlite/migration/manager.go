// Package migration applies the versioned SQLite schema embedded in the
// binary and records each applied file in schema_migrations.
package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"time"
)

// Status describes the schema state of a database.
type Status struct {
	CurrentVersion string
	Applied        []AppliedMigration
	Pending        []Migration
}

// Manager orchestrates scanning and applying migrations.
type Manager struct {
	scanner  *Scanner
	executor *Executor
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager wires a Manager. A nil logger falls back to slog.Default.
func NewManager(fsys fs.FS, executor *Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:  NewScanner(fsys),
		executor: executor,
		logger:   logger.With("component", "migration"),
		now:      time.Now,
	}
}

// Run applies every pending migration in version order and returns how many
// were applied.
func (m *Manager) Run(ctx context.Context) (int, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	if len(status.Pending) == 0 {
		m.logger.Debug("schema up to date", "version", status.CurrentVersion)
		return 0, nil
	}

	m.logger.Info("applying migrations", "pending", len(status.Pending), "from_version", status.CurrentVersion)
	for i, mig := range status.Pending {
		started := time.Now()
		if err := m.executor.Apply(ctx, mig, m.now()); err != nil {
			m.logger.Error("migration failed", "version", mig.Version, "file", mig.FilePath, "error", err)
			return i, err
		}
		m.logger.Info("migration applied",
			"version", mig.Version,
			"description", mig.Description,
			"duration", time.Since(started),
		)
	}
	return len(status.Pending), nil
}

// Status compares the available files with schema_migrations.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}
	available, err := m.scanner.Scan()
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return Status{}, err
	}
	if err := validateSequence(available, applied); err != nil {
		return Status{}, err
	}

	byVersion := make(map[string]AppliedMigration, len(applied))
	for _, a := range applied {
		byVersion[a.Version] = a
	}

	status := Status{Applied: applied}
	for _, mig := range available {
		a, ok := byVersion[mig.Version]
		if !ok {
			status.Pending = append(status.Pending, mig)
			continue
		}
		if a.Checksum != "" && a.Checksum != mig.Checksum {
			return Status{}, newMigrationError(mig.Version, mig.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	return status, nil
}

// validateSequence rejects gaps in the available versions and applied
// versions with no matching file.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	known := make(map[int]bool, len(available))
	for i, mig := range available {
		v, err := strconv.Atoi(mig.Version)
		if err != nil {
			return newMigrationError(mig.Version, mig.FilePath, "validate sequence", fmt.Errorf("%w: non-numeric version", ErrInvalidMigrationFile))
		}
		if i > 0 {
			prev, _ := strconv.Atoi(available[i-1].Version)
			if v != prev+1 {
				return fmt.Errorf("%w: missing migration version %03d", ErrVersionConflict, prev+1)
			}
		}
		known[v] = true
	}
	for _, a := range applied {
		v, err := strconv.Atoi(a.Version)
		if err != nil || !known[v] {
			return fmt.Errorf("%w: applied migration %s has no file", ErrVersionConflict, a.Version)
		}
	}
	return nil
}

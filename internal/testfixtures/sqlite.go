package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence/sqlite"
)

// NewSQLiteStore opens a migrated store on a temporary database file. The
// store is closed when the test finishes.
func NewSQLiteStore(tb testing.TB) *sqlite.Store {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "booking.db")
	ctx := context.Background()

	store, err := sqlite.Open(ctx, sqlite.DefaultConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	tb.Cleanup(func() { _ = store.Close() })
	return store
}

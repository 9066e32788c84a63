package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

var allKeys = []string{
	"STORE", "SQLITE_DSN", "POSTGRES_DSN", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"LOCK_TTL", "COMMIT_POLICY", "MAX_SERIES_OCCURRENCES", "RETRY_MAX",
	"RETRY_INITIAL_DELAY", "RETRY_MAX_DELAY", "REJECT_PAST", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		name := EnvPrefix + "_" + key
		// Setenv registers restoration; Unsetenv then removes the value.
		t.Setenv(name, "")
		if err := os.Unsetenv(name); err != nil {
			t.Fatalf("failed to unset %s: %v", name, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load(Options{})
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.Store != StoreSQLite || cfg.SQLitePath != "booking.db" {
			t.Fatalf("unexpected store defaults: %+v", cfg)
		}
		if cfg.CommitPolicy != scheduler.AllOrNothing {
			t.Fatalf("expected all-or-nothing default, got %s", cfg.CommitPolicy)
		}
		if cfg.MaxSeriesOccurrences != scheduler.DefaultMaxSeriesOccurrences {
			t.Fatalf("unexpected series cap %d", cfg.MaxSeriesOccurrences)
		}
		if !cfg.RejectPast {
			t.Fatal("expected past dates to be rejected by default")
		}
		if cfg.Redis.Enabled() {
			t.Fatal("redis must be disabled without an address")
		}
		if cfg.Redis.LockTTL != 10*time.Second {
			t.Fatalf("unexpected lock TTL %s", cfg.Redis.LockTTL)
		}
		if cfg.Retry != (RetryConfig{MaxRetries: 3, InitialDelay: 50 * time.Millisecond, MaxDelay: 2 * time.Second}) {
			t.Fatalf("unexpected retry defaults %+v", cfg.Retry)
		}
		if cfg.LogLevel != slog.LevelInfo {
			t.Fatalf("unexpected log level %s", cfg.LogLevel)
		}
	})

	t.Run("parses explicit values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BOOKING_STORE", "Postgres")
		t.Setenv("BOOKING_POSTGRES_DSN", "postgres://booking@localhost/booking")
		t.Setenv("BOOKING_REDIS_ADDR", "localhost:6379")
		t.Setenv("BOOKING_REDIS_DB", "2")
		t.Setenv("BOOKING_LOCK_TTL", "3s")
		t.Setenv("BOOKING_COMMIT_POLICY", "partial")
		t.Setenv("BOOKING_MAX_SERIES_OCCURRENCES", "52")
		t.Setenv("BOOKING_REJECT_PAST", "false")
		t.Setenv("BOOKING_RETRY_MAX", "0")
		t.Setenv("BOOKING_LOG_LEVEL", "debug")

		cfg, err := Load(Options{})
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.Store != StorePostgres || cfg.PostgresDSN == "" {
			t.Fatalf("unexpected store settings: %+v", cfg)
		}
		if !cfg.Redis.Enabled() || cfg.Redis.DB != 2 || cfg.Redis.LockTTL != 3*time.Second {
			t.Fatalf("unexpected redis settings: %+v", cfg.Redis)
		}
		if cfg.CommitPolicy != scheduler.Partial || cfg.MaxSeriesOccurrences != 52 || cfg.RejectPast {
			t.Fatalf("unexpected engine settings: %+v", cfg)
		}
		if cfg.Retry.MaxRetries != 0 {
			t.Fatalf("expected retries disabled, got %d", cfg.Retry.MaxRetries)
		}
		if cfg.LogLevel != slog.LevelDebug {
			t.Fatalf("unexpected log level %s", cfg.LogLevel)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BOOKING_STORE", "postgres")

		_, err := Load(Options{})
		if err == nil {
			t.Fatal("expected error when required values are missing")
		}
		expected := "missing required configuration: BOOKING_POSTGRES_DSN"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("collects every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BOOKING_STORE", "mongo")
		t.Setenv("BOOKING_COMMIT_POLICY", "most")
		t.Setenv("BOOKING_MAX_SERIES_OCCURRENCES", "0")
		t.Setenv("BOOKING_LOCK_TTL", "-1s")
		t.Setenv("BOOKING_REJECT_PAST", "sometimes")
		t.Setenv("BOOKING_LOG_LEVEL", "loud")

		_, err := Load(Options{})
		if err == nil {
			t.Fatal("expected invalid configuration error")
		}
		for _, key := range []string{"BOOKING_STORE", "BOOKING_COMMIT_POLICY", "BOOKING_MAX_SERIES_OCCURRENCES", "BOOKING_LOCK_TTL", "BOOKING_REJECT_PAST", "BOOKING_LOG_LEVEL"} {
			if !strings.Contains(err.Error(), key) {
				t.Errorf("error %q does not mention %s", err, key)
			}
		}
	})

	t.Run("rejects initial delay above max delay", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BOOKING_RETRY_INITIAL_DELAY", "5s")
		t.Setenv("BOOKING_RETRY_MAX_DELAY", "1s")

		if _, err := Load(Options{}); err == nil || !strings.Contains(err.Error(), "BOOKING_RETRY_INITIAL_DELAY") {
			t.Fatalf("expected retry delay error, got %v", err)
		}
	})
}

func TestLoader_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "booking.yaml")
	content := "store: memory\ncommit_policy: partial\nmax_series_occurrences: 10\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(Options{File: path})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Store != StoreMemory || cfg.CommitPolicy != scheduler.Partial || cfg.MaxSeriesOccurrences != 10 {
		t.Fatalf("file values not applied: %+v", cfg)
	}

	t.Setenv("BOOKING_COMMIT_POLICY", "all_or_nothing")
	cfg, err = Load(Options{File: path})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.CommitPolicy != scheduler.AllOrNothing {
		t.Fatal("environment must override the config file")
	}

	if _, err := Load(Options{File: filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Fatal("expected error for an explicit missing file")
	}
}

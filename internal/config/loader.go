package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "BOOKING"

// StoreKind selects the persistence backend.
type StoreKind string

const (
	StoreMemory   StoreKind = "memory"
	StoreSQLite   StoreKind = "sqlite"
	StorePostgres StoreKind = "postgres"
)

// RedisConfig enables the cross-process lease layer when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// RetryConfig bounds store retries on lock contention.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Config captures environment driven configuration values for the booking
// engine and its stores.
type Config struct {
	Store                StoreKind
	SQLitePath           string
	PostgresDSN          string
	Redis                RedisConfig
	CommitPolicy         scheduler.CommitPolicy
	MaxSeriesOccurrences int
	RejectPast           bool
	Retry                RetryConfig
	LogLevel             slog.Level
}

// Options control where Load looks for a config file.
type Options struct {
	// File is an explicit config file. When empty, booking.yaml in the
	// working directory is read if present.
	File string
}

// Load reads BOOKING_* environment variables, overlaying an optional YAML
// file, and validates the result.
//
// All missing and invalid keys are reported together.
func Load(opts Options) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("store", string(StoreSQLite))
	v.SetDefault("sqlite_dsn", "booking.db")
	v.SetDefault("redis_db", "0")
	v.SetDefault("lock_ttl", "10s")
	v.SetDefault("commit_policy", scheduler.AllOrNothing.String())
	v.SetDefault("max_series_occurrences", strconv.Itoa(scheduler.DefaultMaxSeriesOccurrences))
	v.SetDefault("reject_past", "true")
	v.SetDefault("retry_max", "3")
	v.SetDefault("retry_initial_delay", "50ms")
	v.SetDefault("retry_max_delay", "2s")
	v.SetDefault("log_level", "info")

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName("booking")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	return parse(v)
}

func parse(v *viper.Viper) (Config, error) {
	var cfg Config
	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)
	env := func(key string) string { return EnvPrefix + "_" + strings.ToUpper(key) }
	get := func(key string) string { return strings.TrimSpace(v.GetString(key)) }

	switch kind := StoreKind(strings.ToLower(get("store"))); kind {
	case StoreMemory, StoreSQLite, StorePostgres:
		cfg.Store = kind
	default:
		invalid = append(invalid, env("store"))
	}

	cfg.SQLitePath = get("sqlite_dsn")
	if cfg.Store == StoreSQLite && cfg.SQLitePath == "" {
		missing = append(missing, env("sqlite_dsn"))
	}
	cfg.PostgresDSN = get("postgres_dsn")
	if cfg.Store == StorePostgres && cfg.PostgresDSN == "" {
		missing = append(missing, env("postgres_dsn"))
	}

	cfg.Redis.Addr = get("redis_addr")
	cfg.Redis.Password = v.GetString("redis_password")
	if n, err := strconv.Atoi(get("redis_db")); err != nil || n < 0 {
		invalid = append(invalid, env("redis_db"))
	} else {
		cfg.Redis.DB = n
	}
	if d, ok := positiveDuration(get("lock_ttl")); ok {
		cfg.Redis.LockTTL = d
	} else {
		invalid = append(invalid, env("lock_ttl"))
	}

	if policy, err := scheduler.ParseCommitPolicy(get("commit_policy")); err != nil {
		invalid = append(invalid, env("commit_policy"))
	} else {
		cfg.CommitPolicy = policy
	}

	if n, err := strconv.Atoi(get("max_series_occurrences")); err != nil || n <= 0 {
		invalid = append(invalid, env("max_series_occurrences"))
	} else {
		cfg.MaxSeriesOccurrences = n
	}

	if b, err := strconv.ParseBool(get("reject_past")); err != nil {
		invalid = append(invalid, env("reject_past"))
	} else {
		cfg.RejectPast = b
	}

	if n, err := strconv.Atoi(get("retry_max")); err != nil || n < 0 {
		invalid = append(invalid, env("retry_max"))
	} else {
		cfg.Retry.MaxRetries = n
	}
	if d, ok := positiveDuration(get("retry_initial_delay")); ok {
		cfg.Retry.InitialDelay = d
	} else {
		invalid = append(invalid, env("retry_initial_delay"))
	}
	if d, ok := positiveDuration(get("retry_max_delay")); ok {
		cfg.Retry.MaxDelay = d
	} else {
		invalid = append(invalid, env("retry_max_delay"))
	}
	if cfg.Retry.MaxDelay > 0 && cfg.Retry.InitialDelay > cfg.Retry.MaxDelay {
		invalid = append(invalid, env("retry_initial_delay"))
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(get("log_level"))); err != nil {
		invalid = append(invalid, env("log_level"))
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func positiveDuration(s string) (time.Duration, bool) {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

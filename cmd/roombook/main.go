package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jae1jeong/meeting-resv-sub001/internal/application"
	"github.com/jae1jeong/meeting-resv-sub001/internal/config"
	"github.com/jae1jeong/meeting-resv-sub001/internal/logging"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence/memory"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence/postgres"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence/redislock"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence/sqlite"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitConflict = 3
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "roombook: load .env: %v\n", err)
		os.Exit(exitFailure)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app bundles the wiring shared by every subcommand.
type app struct {
	cfg     config.Config
	store   persistence.Store
	service *application.BookingService
	logger  *slog.Logger
	out     *encoder
	close   func() error
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global, rest, err := parseGlobal(args, stderr)
	if err != nil {
		return exitUsage
	}
	if len(rest) == 0 {
		usage(stderr)
		return exitUsage
	}
	command, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "roombook: unknown command %q\n", rest[0])
		usage(stderr)
		return exitUsage
	}

	cfg, err := config.Load(config.Options{File: global.configFile})
	if err != nil {
		fmt.Fprintf(stderr, "roombook: %v\n", err)
		return exitFailure
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	a, err := wire(ctx, cfg, logger, stdout)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return exitFailure
	}
	defer func() {
		if cerr := a.close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	ctx = logging.With(ctx, logger, "command", rest[0])
	return command(ctx, a, rest[1:], stderr)
}

// wire opens the configured store, applies its schema, and builds the
// engine and booking service over it.
func wire(ctx context.Context, cfg config.Config, logger *slog.Logger, stdout io.Writer) (*app, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	closeStore := store.Close

	if cfg.Redis.Enabled() {
		client, err := redislock.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		opts := redislock.DefaultOptions()
		opts.TTL = cfg.Redis.LockTTL
		opts.Logger = logger
		store = redislock.Wrap(store, client, opts)
		closeStore = func() error {
			return errors.Join(store.Close(), client.Close())
		}
	}

	engine, err := scheduler.NewEngine(scheduler.Config{
		Store:                store,
		Policy:               cfg.CommitPolicy,
		MaxSeriesOccurrences: cfg.MaxSeriesOccurrences,
		RejectPast:           cfg.RejectPast,
		Logger:               logger,
	})
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	service, err := application.NewBookingService(application.BookingServiceConfig{
		Engine:       engine,
		Reservations: store,
		Patterns:     store,
		Logger:       logger,
	})
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		store:   store,
		service: service,
		logger:  logger,
		out:     newEncoder(stdout),
		close:   closeStore,
	}, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), nil

	case config.StoreSQLite:
		sc := sqlite.DefaultConfig(cfg.SQLitePath)
		sc.Retry.MaxRetries = cfg.Retry.MaxRetries
		sc.Retry.InitialDelay = cfg.Retry.InitialDelay
		sc.Retry.MaxDelay = cfg.Retry.MaxDelay
		store, err := sqlite.Open(ctx, sc, logger)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil

	case config.StorePostgres:
		pc := postgres.DefaultConfig(cfg.PostgresDSN)
		pc.MaxRetries = cfg.Retry.MaxRetries
		pc.InitialDelay = cfg.Retry.InitialDelay
		pc.MaxDelay = cfg.Retry.MaxDelay
		store, err := postgres.Open(ctx, pc, logger)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("roombook: unsupported store %q", cfg.Store)
	}
}

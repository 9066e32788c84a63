package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jae1jeong/meeting-resv-sub001/internal/logging"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case scheduler.IsConflict(err):
		return "conflict"
	case errors.Is(err, ErrStore):
		return "store"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}

// logFailure logs err at a level matching its kind: conflicts and caller
// mistakes at Info, store failures at Error.
func logFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	kind := ErrorKind(err)
	switch kind {
	case "store", "unexpected":
		logger.ErrorContext(ctx, msg, "error", err, "error_kind", kind)
	default:
		logger.InfoContext(ctx, msg, "error", err, "error_kind", kind)
	}
}

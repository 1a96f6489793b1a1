package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/guild-scheduler/internal/attendance"
	"github.com/example/guild-scheduler/internal/logging"
	"github.com/example/guild-scheduler/internal/timeparse"
)

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
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, attendance.ErrSlotTaken):
		return "slot_taken"
	case errors.Is(err, attendance.ErrAlreadyHolds):
		return "already_holds"
	case errors.Is(err, attendance.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, timeparse.ErrUnparsable):
		return "unparsable"
	case errors.Is(err, timeparse.ErrBadFormat):
		return "bad_format"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "storage_unavailable"
}

package observability

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey string

const (
	ctxKeyConnectionID ctxKey = "connection_id"
)

// basic global logger, JSON to stdout.
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

func Logger() *slog.Logger {
	return logger
}

// WithFields returns a logger with additional fields.
func WithFields(kv ...any) *slog.Logger {
	return logger.With(kv...)
}

// WithConnectionID stores a connection_id in the context.
func WithConnectionID(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, ctxKeyConnectionID, connID)
}

// LoggerFromContext adds connection_id if present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	connID, _ := ctx.Value(ctxKeyConnectionID).(string)
	if connID == "" {
		return logger
	}
	return logger.With("connection_id", connID)
}

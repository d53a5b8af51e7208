package cogito

import (
	"context"
	"log/slog"
)

type ctxLoggerKey struct{}
type ctxCycleIDKey struct{}

var defaultLogger = slog.New(slog.DiscardHandler)

func ctxWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

// LoggerFromContext returns the logger of the running thought cycle. It carries the
// cogito.cycle_id attribute. A discard logger is returned outside a cycle.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return defaultLogger
}

func ctxWithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, ctxCycleIDKey{}, cycleID)
}

// CycleIDFromContext returns the ID of the running thought cycle, or "" outside a cycle.
func CycleIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxCycleIDKey{}).(string)
	return id
}

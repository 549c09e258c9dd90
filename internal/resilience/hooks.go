package resilience

import (
	"context"
	"log/slog"
	"time"
)

// LogHook logs retry attempts and final failures.
type LogHook struct {
	Logger *slog.Logger
}

func (h LogHook) OnRetryAttempt(ctx context.Context, service string, attempt uint, err error, nextDelay time.Duration) {
	h.Logger.WarnContext(ctx, "retrying service call",
		slog.String("service", service),
		slog.Uint64("attempt", uint64(attempt)),
		slog.Duration("next_delay", nextDelay),
		slog.String("error", err.Error()),
	)
}

func (h LogHook) OnRetryFailure(ctx context.Context, service string, err error, attempts uint, totalDuration time.Duration) {
	h.Logger.ErrorContext(ctx, "service call failed",
		slog.String("service", service),
		slog.Uint64("attempts", uint64(attempts)),
		slog.Duration("elapsed", totalDuration),
		slog.String("error", err.Error()),
	)
}

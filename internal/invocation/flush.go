package invocation

import (
	"context"
	"time"

	"github.com/socialchef/scribe/internal/logger"
	"github.com/socialchef/scribe/internal/sentry"
)

// Flush pushes telemetry and Sentry events once the invocation returns.
func Flush[E, R any](flusher Flusher, timeout time.Duration, next Handler[E, R]) Handler[E, R] {
	return func(ctx context.Context, event E) (R, error) {
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
			defer cancel()

			if flusher != nil {
				if err := flusher.ForceFlush(flushCtx); err != nil {
					logger.FromContext(ctx).Warn("Failed to flush telemetry", "error", err)
				}
			}
			sentry.Flush(timeout)
		}()
		return next(ctx, event)
	}
}

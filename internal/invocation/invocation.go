// Package invocation provides middleware for Lambda handlers: tracing,
// Sentry scoping, metrics and a per-invocation telemetry flush so nothing is
// lost when the execution environment is frozen.
package invocation

import (
	"context"
	"time"
)

// DefaultFlushTimeout bounds the flush at the end of every invocation.
const DefaultFlushTimeout = 2 * time.Second

// Handler is the shape of a Lambda handler taking an event E and returning R.
type Handler[E, R any] func(ctx context.Context, event E) (R, error)

// Flusher pushes buffered telemetry to its exporter.
type Flusher interface {
	ForceFlush(ctx context.Context) error
}

type Options struct {
	Name         string
	Flusher      Flusher
	Metrics      *Metrics
	FlushTimeout time.Duration
}

// Wrap applies the full middleware chain. The flush runs last, after the
// invocation span has ended.
func Wrap[E, R any](opts Options, next Handler[E, R]) Handler[E, R] {
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = DefaultFlushTimeout
	}
	h := Measure(opts.Metrics, opts.Name, next)
	h = Sentry(opts.Name, h)
	h = Tracing(opts.Name, h)
	return Flush(opts.Flusher, opts.FlushTimeout, h)
}

// NoResult adapts a handler that only returns an error.
func NoResult[E any](fn func(ctx context.Context, event E) error) Handler[E, struct{}] {
	return func(ctx context.Context, event E) (struct{}, error) {
		return struct{}{}, fn(ctx, event)
	}
}

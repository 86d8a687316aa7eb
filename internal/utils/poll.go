package utils

import (
	"context"
	"errors"
	"time"
)

// ErrPollExhausted is returned when MaxAttempts polls ran without the
// condition being met.
var ErrPollExhausted = errors.New("poll attempts exhausted")

// PollConfig holds the configuration for a fixed-interval wait loop.
type PollConfig struct {
	// Interval is the sleep between two polls.
	Interval time.Duration
	// MaxAttempts bounds the number of polls. Zero or negative means the loop
	// is bounded only by ctx.
	MaxAttempts int
}

// PollFunc is one poll. It returns done=true when the awaited state is reached;
// a non-nil error stops the loop immediately.
type PollFunc[T any] func(ctx context.Context, attempt int) (result T, done bool, err error)

// Poll calls fn until it reports done, returns an error, the attempts run out
// or ctx ends. The first poll happens immediately.
func Poll[T any](ctx context.Context, config PollConfig, fn PollFunc[T]) (T, error) {
	var zero T

	for attempt := 1; config.MaxAttempts <= 0 || attempt <= config.MaxAttempts; attempt++ {
		result, done, err := fn(ctx, attempt)
		if err != nil {
			return zero, err
		}
		if done {
			return result, nil
		}

		if attempt == config.MaxAttempts {
			break
		}

		timer := time.NewTimer(config.Interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
	}

	return zero, ErrPollExhausted
}

// Sleep waits for d or until ctx ends, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithDeadlineMargin returns a context that ends margin before ctx's
// deadline, leaving that time to report the outcome. Without a deadline it
// only adds a cancel func.
func WithDeadlineMargin(ctx context.Context, margin time.Duration) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok || margin <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, deadline.Add(-margin))
}

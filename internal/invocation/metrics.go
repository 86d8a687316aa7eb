package invocation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("socialchef/scribe/invocation")
)

type Metrics struct {
	invocationCounter  metric.Int64Counter
	invocationDuration metric.Float64Histogram
}

func NewMetrics() (*Metrics, error) {
	invocationCounter, err := meter.Int64Counter(
		"invocation.total",
		metric.WithDescription("Total number of handler invocations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	invocationDuration, err := meter.Float64Histogram(
		"invocation.duration",
		metric.WithDescription("Duration of handler invocations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 900),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		invocationCounter:  invocationCounter,
		invocationDuration: invocationDuration,
	}, nil
}

func (m *Metrics) Record(ctx context.Context, handler, status string, duration float64) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("handler", handler),
	}

	m.invocationCounter.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("status", status))...))
	m.invocationDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
}

// Measure records the count and duration of every invocation.
func Measure[E, R any](m *Metrics, name string, next Handler[E, R]) Handler[E, R] {
	return func(ctx context.Context, event E) (R, error) {
		start := time.Now()
		res, err := next(ctx, event)
		status := "success"
		if err != nil {
			status = "error"
		}
		m.Record(ctx, name, status, time.Since(start).Seconds())
		return res, err
	}
}

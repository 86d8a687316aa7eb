package invocation

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/socialchef/scribe/internal/telemetry"
)

var warm atomic.Bool

// Tracing wraps a handler with an OpenTelemetry span per invocation.
func Tracing[E, R any](name string, next Handler[E, R]) Handler[E, R] {
	return func(ctx context.Context, event E) (R, error) {
		tracer := telemetry.Tracer("invocation")

		ctx, span := tracer.Start(ctx, fmt.Sprintf("invoke:%s", name), trace.WithSpanKind(trace.SpanKindConsumer))
		defer span.End()

		attrs := []attribute.KeyValue{
			attribute.String("faas.name", name),
			attribute.Bool("faas.coldstart", !warm.Swap(true)),
		}
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			attrs = append(attrs, attribute.String("faas.invocation_id", lc.AwsRequestID))
		}
		span.SetAttributes(attrs...)

		res, err := next(ctx, event)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return res, err
	}
}

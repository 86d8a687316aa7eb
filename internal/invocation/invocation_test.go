package invocation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "github.com/socialchef/scribe/internal/errors"
)

type countingFlusher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFlusher) ForceFlush(ctx context.Context) error {
	f.calls.Add(1)
	return f.err
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return sr
}

func TestWrap_Success(t *testing.T) {
	sr := recordSpans(t)
	flusher := &countingFlusher{}

	h := Wrap(Options{Name: "transcriber", Flusher: flusher}, func(ctx context.Context, event string) (int, error) {
		return len(event), nil
	})

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-42"})
	n, err := h(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int32(1), flusher.calls.Load())

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "invoke:transcriber", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("faas.invocation_id", "req-42"))
	assert.Contains(t, spans[0].Attributes(), attribute.String("faas.name", "transcriber"))
}

func TestWrap_ErrorMarksSpan(t *testing.T) {
	sr := recordSpans(t)
	flusher := &countingFlusher{err: errors.New("exporter down")}

	h := Wrap(Options{Name: "notifier", Flusher: flusher}, NoResult(func(ctx context.Context, event string) error {
		return errors.New("boom")
	}))

	_, err := h(context.Background(), "event")
	assert.EqualError(t, err, "boom")
	assert.Equal(t, int32(1), flusher.calls.Load())

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestWrap_PanicBecomesError(t *testing.T) {
	flusher := &countingFlusher{}

	h := Wrap(Options{Name: "notifier", Flusher: flusher}, func(ctx context.Context, event string) (string, error) {
		panic("nil map write")
	})

	res, err := h(context.Background(), "event")
	require.Error(t, err)
	assert.Empty(t, res)
	assert.Equal(t, "HANDLER_PANIC", apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "nil map write")
	assert.Equal(t, int32(1), flusher.calls.Load())
}

func TestWrap_NilFlusher(t *testing.T) {
	h := Wrap(Options{Name: "devserver"}, func(ctx context.Context, event int) (int, error) {
		return event * 2, nil
	})
	n, err := h(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestMeasure_RecordsStatus(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	m, err := NewMetrics()
	require.NoError(t, err)

	ok := Measure(m, "transcriber", func(ctx context.Context, event string) (string, error) { return event, nil })
	fail := Measure(m, "transcriber", func(ctx context.Context, event string) (string, error) { return "", errors.New("x") })
	_, _ = ok(context.Background(), "a")
	_, _ = fail(context.Background(), "b")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	statuses := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "invocation.total" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				status, _ := dp.Attributes.Value("status")
				statuses[status.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"success": 1, "error": 1}, statuses)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Record(context.Background(), "transcriber", "success", 1)
}

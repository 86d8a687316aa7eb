package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("socialchef/scribe")

	// Transcription metrics
	TranscriptionsTotal   metric.Int64Counter
	TranscriptionDuration metric.Float64Histogram
	PollAttemptsTotal     metric.Int64Counter

	// External API metrics
	ExternalAPICallsTotal metric.Int64Counter

	// Provisioning metrics
	NotificationOperationsTotal metric.Int64Counter
	CallbackFailuresTotal       metric.Int64Counter
)

func Init() error {
	var err error

	TranscriptionsTotal, err = meter.Int64Counter(
		"transcription.files.total",
		metric.WithDescription("Total number of audio files processed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	TranscriptionDuration, err = meter.Float64Histogram(
		"transcription.duration",
		metric.WithDescription("Duration from job submission to transcript stored"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 1800),
	)
	if err != nil {
		return err
	}

	PollAttemptsTotal, err = meter.Int64Counter(
		"transcription.poll.attempts",
		metric.WithDescription("Total number of transcript status polls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	ExternalAPICallsTotal, err = meter.Int64Counter(
		"external.api.calls.total",
		metric.WithDescription("Total number of external API calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	NotificationOperationsTotal, err = meter.Int64Counter(
		"notification.operations.total",
		metric.WithDescription("Total number of bucket notification changes"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	CallbackFailuresTotal, err = meter.Int64Counter(
		"notification.callback.failures",
		metric.WithDescription("Provisioning callbacks that could not be delivered"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	return nil
}

// RecordTranscription records one processed file. Safe to call before Init.
func RecordTranscription(ctx context.Context, status string, seconds float64) {
	if TranscriptionsTotal == nil {
		return
	}
	TranscriptionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if status == "success" {
		TranscriptionDuration.Record(ctx, seconds)
	}
}

// RecordPoll records one status poll.
func RecordPoll(ctx context.Context, status string) {
	if PollAttemptsTotal == nil {
		return
	}
	PollAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("job.status", status)))
}

// RecordAPICall records one outbound call to an external provider.
func RecordAPICall(ctx context.Context, provider, operation string, statusCode int) {
	if ExternalAPICallsTotal == nil {
		return
	}
	ExternalAPICallsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("operation", operation),
		attribute.Int("http.status_code", statusCode),
	))
}

// RecordNotification records one provisioning request outcome.
func RecordNotification(ctx context.Context, requestType, status string) {
	if NotificationOperationsTotal == nil {
		return
	}
	NotificationOperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("request_type", requestType),
		attribute.String("status", status),
	))
}

// RecordCallbackFailure records a provisioning callback that was not delivered.
func RecordCallbackFailure(ctx context.Context) {
	if CallbackFailuresTotal == nil {
		return
	}
	CallbackFailuresTotal.Add(ctx, 1)
}

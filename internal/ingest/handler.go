// Package ingest implements the S3-triggered transcription handler: every
// newly created audio object is transcribed and the text is written to the
// transcript bucket under the same key with a .txt extension.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/socialchef/scribe/internal/config"
	apperrors "github.com/socialchef/scribe/internal/errors"
	"github.com/socialchef/scribe/internal/logger"
	"github.com/socialchef/scribe/internal/metrics"
	"github.com/socialchef/scribe/internal/sentry"
	"github.com/socialchef/scribe/internal/services/storage"
	"github.com/socialchef/scribe/internal/services/transcription"
	"github.com/socialchef/scribe/internal/utils"
)

const (
	successMessage = "Audio file(s) processed successfully"
	successDetail  = "Transcripts have been stored in the transcript bucket"
	failureMessage = "Error processing audio file(s)"
)

// ObjectStore is the storage surface the handler needs.
type ObjectStore interface {
	PresignGet(ctx context.Context, ref storage.ObjectRef, expiry time.Duration) (string, error)
	PutText(ctx context.Context, ref storage.ObjectRef, text string) error
}

// Response is the function result: an HTTP-style status code and a
// JSON-encoded body.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type responseBody struct {
	Message     string   `json:"message"`
	Detail      string   `json:"detail,omitempty"`
	Error       string   `json:"error,omitempty"`
	Transcripts []string `json:"transcripts,omitempty"`
}

type Handler struct {
	cfg      *config.Config
	store    ObjectStore
	provider transcription.TranscriptionProvider
}

func NewHandler(cfg *config.Config, store ObjectStore, provider transcription.TranscriptionProvider) *Handler {
	return &Handler{
		cfg:      cfg,
		store:    store,
		provider: provider,
	}
}

// Handle processes every record of the event in order. The first failing
// record aborts the rest of the batch. It never returns an error: failures
// are reported through a 500 Response. Processing stops DeadlineMargin
// before the invocation deadline so the response is still delivered.
func (h *Handler) Handle(ctx context.Context, event events.S3Event) (Response, error) {
	log := logger.FromContext(ctx)

	work, cancel := utils.WithDeadlineMargin(ctx, h.cfg.Pipeline.DeadlineMargin)
	defer cancel()

	written, err := h.process(work, event)
	if err != nil {
		log.Error("Error processing audio file(s)",
			"error", err,
			"error_type", apperrors.TypeOf(err),
			"error_code", apperrors.CodeOf(err),
			"records", len(event.Records),
			"transcripts_written", len(written),
		)
		sentry.CaptureError(ctx, err, map[string]string{
			"handler":    "ingest",
			"error_code": apperrors.CodeOf(err),
		})
		return newResponse(http.StatusInternalServerError, responseBody{
			Message: failureMessage,
			Error:   err.Error(),
		}), nil
	}

	log.Info("Audio file(s) processed", "records", len(event.Records))
	return newResponse(http.StatusOK, responseBody{
		Message:     successMessage,
		Detail:      successDetail,
		Transcripts: written,
	}), nil
}

func (h *Handler) process(ctx context.Context, event events.S3Event) ([]string, error) {
	if err := h.cfg.ValidateIngest(); err != nil {
		return nil, apperrors.NewConfigError(err.Error(), "CONFIG_MISSING", nil)
	}

	written := make([]string, 0, len(event.Records))
	for _, record := range event.Records {
		key, err := h.processRecord(ctx, record)
		if err != nil {
			return written, err
		}
		written = append(written, key)
	}
	return written, nil
}

func (h *Handler) processRecord(ctx context.Context, record events.S3EventRecord) (string, error) {
	start := time.Now()

	key, err := DecodeKey(record.S3.Object.Key)
	if err != nil {
		metrics.RecordTranscription(ctx, "failure", 0)
		return "", err
	}
	source := storage.ObjectRef{Bucket: record.S3.Bucket.Name, Key: key}
	log := logger.FromContext(ctx).With("source", source.String())

	text, err := h.transcribe(ctx, source)
	if err != nil {
		metrics.RecordTranscription(ctx, "failure", time.Since(start).Seconds())
		return "", err
	}

	dest := storage.ObjectRef{Bucket: h.cfg.TranscriptBucket, Key: TranscriptKey(key)}
	if err := h.store.PutText(ctx, dest, text); err != nil {
		metrics.RecordTranscription(ctx, "failure", time.Since(start).Seconds())
		return "", err
	}

	elapsed := time.Since(start)
	metrics.RecordTranscription(ctx, "success", elapsed.Seconds())
	log.Info("Transcript stored", "destination", dest.String(), "chars", len(text), "duration", elapsed)
	return dest.Key, nil
}

func (h *Handler) transcribe(ctx context.Context, source storage.ObjectRef) (string, error) {
	audioURL, err := h.store.PresignGet(ctx, source, h.cfg.Pipeline.PresignExpiry)
	if err != nil {
		return "", err
	}

	text, err := h.provider.Transcribe(ctx, audioURL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", source, err)
	}
	return text, nil
}

func newResponse(status int, body responseBody) Response {
	data, err := json.Marshal(body)
	if err != nil {
		// responseBody only holds strings
		data = []byte(`{"message":"` + failureMessage + `"}`)
	}
	return Response{StatusCode: status, Body: string(data)}
}

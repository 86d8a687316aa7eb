// Package notification implements the CloudFormation custom resource that
// installs the bucket notification configuration routing uploads to the
// transcriber.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/cfn"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/socialchef/scribe/internal/config"
	apperrors "github.com/socialchef/scribe/internal/errors"
	"github.com/socialchef/scribe/internal/logger"
	"github.com/socialchef/scribe/internal/metrics"
	"github.com/socialchef/scribe/internal/sentry"
	"github.com/socialchef/scribe/internal/utils"
)

// NotificationStore applies a bucket notification configuration. A nil or
// empty configuration clears it.
type NotificationStore interface {
	PutNotificationConfiguration(ctx context.Context, bucket string, nc *s3types.NotificationConfiguration) error
}

type Handler struct {
	cfg      *config.Config
	store    NotificationStore
	reporter *Reporter
}

func NewHandler(cfg *config.Config, store NotificationStore, reporter *Reporter) *Handler {
	if reporter == nil {
		reporter = NewReporter(nil)
	}
	return &Handler{
		cfg:      cfg,
		store:    store,
		reporter: reporter,
	}
}

// Handle applies the request and reports the outcome to the ResponseURL.
// It always returns nil; failures travel through the callback and the logs.
func (h *Handler) Handle(ctx context.Context, event cfn.Event) error {
	log := logger.FromContext(ctx).With(
		"request_type", event.RequestType,
		"logical_resource_id", event.LogicalResourceID,
	)
	if raw, err := json.Marshal(event); err == nil {
		log.Info("Received event", "event", string(raw))
	}

	status := cfn.StatusSuccess
	reason := ""
	if err := h.safeApply(ctx, event); err != nil {
		status = cfn.StatusFailed
		reason = err.Error()
		log.Error("Failed to apply notification configuration",
			"error", err,
			"error_type", apperrors.TypeOf(err),
			"error_code", apperrors.CodeOf(err),
		)
		sentry.CaptureError(ctx, err, map[string]string{
			"handler":      "notification",
			"request_type": string(event.RequestType),
			"error_code":   apperrors.CodeOf(err),
		})
	}
	metrics.RecordNotification(ctx, string(event.RequestType), string(status))

	if err := h.reporter.Send(ctx, event, status, reason); err != nil {
		log.Error("Failed to send response to CloudFormation",
			"error", err,
			"error_code", apperrors.CodeOf(err),
		)
		sentry.CaptureError(ctx, err, map[string]string{
			"handler":    "notification",
			"error_code": apperrors.CodeOf(err),
		})
	}
	return nil
}

// safeApply runs apply with the deadline margin and turns a panic into an
// error so a FAILED report still goes out.
func (h *Handler) safeApply(ctx context.Context, event cfn.Event) (err error) {
	work, cancel := utils.WithDeadlineMargin(ctx, h.cfg.Pipeline.DeadlineMargin)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = &apperrors.AppError{
				Type:       apperrors.ErrorTypeInternal,
				Message:    fmt.Sprintf("panic while handling %s request: %v", event.RequestType, r),
				StatusCode: http.StatusInternalServerError,
				ErrorCode:  "HANDLER_PANIC",
			}
		}
	}()

	return h.apply(work, event)
}

func (h *Handler) apply(ctx context.Context, event cfn.Event) error {
	log := logger.FromContext(ctx)

	switch event.RequestType {
	case cfn.RequestCreate, cfn.RequestUpdate:
		props, err := ParseProperties(event.ResourceProperties)
		if err != nil {
			return err
		}
		nc := props.NotificationConfiguration.ToS3()
		log.Info("Applying notification configuration",
			"bucket", props.BucketName,
			"lambda_configurations", len(nc.LambdaFunctionConfigurations),
			"queue_configurations", len(nc.QueueConfigurations),
			"topic_configurations", len(nc.TopicConfigurations),
		)
		// Bucket notification validation fails until the invoke permission
		// for the target function has propagated.
		if err := utils.Sleep(ctx, h.cfg.Pipeline.NotificationApplyDelay); err != nil {
			return apperrors.NewStorageError("Interrupted before applying notification configuration", "STORAGE_NOTIFICATION_FAILED", err)
		}
		return h.store.PutNotificationConfiguration(ctx, props.BucketName, nc)

	case cfn.RequestDelete:
		// Only the bucket matters here: a rollback after a rejected Create
		// carries the same malformed configuration.
		bucket, err := ParseBucketName(event.ResourceProperties)
		if err != nil {
			return err
		}
		log.Info("Deleting notification configuration", "bucket", bucket)
		return h.store.PutNotificationConfiguration(ctx, bucket, &s3types.NotificationConfiguration{})

	default:
		return apperrors.NewValidationError("Unsupported request type: "+string(event.RequestType),
			"UNSUPPORTED_REQUEST_TYPE", "RequestType must be Create, Update or Delete.")
	}
}

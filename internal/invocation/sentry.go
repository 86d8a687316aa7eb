package invocation

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/getsentry/sentry-go"

	apperrors "github.com/socialchef/scribe/internal/errors"
	"github.com/socialchef/scribe/internal/logger"
)

// Sentry gives each invocation its own hub, captures returned errors and
// turns a panic into an error so the runtime still gets a result.
func Sentry[E, R any](name string, next Handler[E, R]) Handler[E, R] {
	return func(ctx context.Context, event E) (res R, err error) {
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetTag("handler", name)
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			hub.Scope().SetTag("aws_request_id", lc.AwsRequestID)
		}
		ctx = sentry.SetHubOnContext(ctx, hub)

		defer func() {
			if r := recover(); r != nil {
				hub.RecoverWithContext(ctx, r)
				logger.FromContext(ctx).Error("Handler panicked", "handler", name, "panic", r)
				err = &apperrors.AppError{
					Type:       apperrors.ErrorTypeInternal,
					Message:    fmt.Sprintf("panic in %s handler: %v", name, r),
					StatusCode: 500,
					ErrorCode:  "HANDLER_PANIC",
				}
			}
		}()

		res, err = next(ctx, event)
		if err != nil {
			hub.CaptureException(err)
		}
		return res, err
	}
}

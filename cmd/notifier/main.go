package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambda"
	_ "github.com/joho/godotenv/autoload"

	"github.com/socialchef/scribe/internal/app"
	"github.com/socialchef/scribe/internal/invocation"
	"github.com/socialchef/scribe/internal/notification"
	"github.com/socialchef/scribe/internal/sentry"
)

func main() {
	defer sentry.Recover()

	ctx := context.Background()

	a, err := app.New(ctx, "notifier")
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close(ctx)

	handler := notification.NewHandler(a.Config, a.Storage, notification.NewReporter(nil))
	wrapped := invocation.Wrap(a.InvocationOptions("notifier"), invocation.NoResult(handler.Handle))

	lambda.Start(func(ctx context.Context, event cfn.Event) error {
		_, err := wrapped(ctx, event)
		return err
	})
}

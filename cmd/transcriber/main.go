package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	_ "github.com/joho/godotenv/autoload"

	"github.com/socialchef/scribe/internal/app"
	"github.com/socialchef/scribe/internal/ingest"
	"github.com/socialchef/scribe/internal/invocation"
	"github.com/socialchef/scribe/internal/sentry"
	"github.com/socialchef/scribe/internal/services/transcription"
)

func main() {
	defer sentry.Recover()

	ctx := context.Background()

	a, err := app.New(ctx, "transcriber")
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close(ctx)

	provider := transcription.NewProvider(a.Config)
	handler := ingest.NewHandler(a.Config, a.Storage, provider)

	lambda.Start(invocation.Wrap(a.InvocationOptions("transcriber"), handler.Handle))
}

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/socialchef/scribe/internal/api"
	"github.com/socialchef/scribe/internal/app"
	"github.com/socialchef/scribe/internal/ingest"
	"github.com/socialchef/scribe/internal/invocation"
	"github.com/socialchef/scribe/internal/notification"
	"github.com/socialchef/scribe/internal/sentry"
	"github.com/socialchef/scribe/internal/services/transcription"
)

func main() {
	defer sentry.Recover()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, "devserver")
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close(context.Background())

	ingestHandler := ingest.NewHandler(a.Config, a.Storage, transcription.NewProvider(a.Config))
	notifyHandler := notification.NewHandler(a.Config, a.Storage, notification.NewReporter(nil))

	apiServer := api.NewServer(
		invocation.Wrap(a.InvocationOptions("transcriber"), ingestHandler.Handle),
		invocation.Wrap(a.InvocationOptions("notifier"), invocation.NoResult(notifyHandler.Handle)),
	)

	srv := &http.Server{
		Addr:              ":" + a.Config.Port,
		Handler:           apiServer.Router(a.ServiceName()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting server", "port", a.Config.Port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

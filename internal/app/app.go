// Package app wires the process-lifetime dependencies shared by the
// binaries: configuration, telemetry, Sentry, logging and the S3 client.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/socialchef/scribe/internal/config"
	"github.com/socialchef/scribe/internal/invocation"
	"github.com/socialchef/scribe/internal/logger"
	"github.com/socialchef/scribe/internal/metrics"
	"github.com/socialchef/scribe/internal/sentry"
	"github.com/socialchef/scribe/internal/services/storage"
	"github.com/socialchef/scribe/internal/telemetry"
)

type App struct {
	Config    *config.Config
	Telemetry *telemetry.Providers
	Storage   *storage.Client
	Metrics   *invocation.Metrics

	component string
}

// New loads configuration and initializes everything a handler needs. The
// storage client is built once here and shared by every invocation.
func New(ctx context.Context, component string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &App{Config: cfg, component: component}
	serviceName := a.ServiceName()

	// Initialize telemetry
	a.Telemetry, err = telemetry.InitTelemetry(ctx, serviceName, cfg.ServiceVersion, cfg.Env, cfg.OtelExporterOTLPEndpoint, cfg.ParseHeaders())
	if err != nil {
		slog.Warn("Failed to init telemetry", "error", err)
	}

	// Initialize Sentry
	if err := sentry.Init(cfg.SentryDSN, cfg.Env, serviceName, cfg.ServiceVersion); err != nil {
		slog.Warn("Failed to init Sentry", "error", err)
	}

	// Initialize business metrics
	if err := metrics.Init(); err != nil {
		slog.Warn("Failed to init business metrics", "error", err)
	}
	a.Metrics, err = invocation.NewMetrics()
	if err != nil {
		slog.Warn("Failed to init invocation metrics", "error", err)
	}

	// Initialize logger with OTel support
	slog.SetDefault(logger.New(cfg.Env))

	a.Storage, err = storage.NewClient(ctx, storage.Config{
		Region:    cfg.AWSRegion,
		Endpoint:  cfg.AWSEndpointURL,
		AccessKey: cfg.AWSAccessKey,
		SecretKey: cfg.AWSSecretKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	slog.Info("Initialized",
		"component", component,
		"env", cfg.Env,
		"version", cfg.ServiceVersion,
		"telemetry", cfg.OtelExporterOTLPEndpoint != "",
	)
	return a, nil
}

func (a *App) ServiceName() string {
	return a.Config.ServiceName + "-" + a.component
}

// InvocationOptions returns the middleware options for the named handler.
func (a *App) InvocationOptions(name string) invocation.Options {
	return invocation.Options{
		Name:    name,
		Flusher: a.Telemetry,
		Metrics: a.Metrics,
	}
}

// Close flushes and shuts down telemetry and Sentry.
func (a *App) Close(ctx context.Context) {
	sentry.Flush(2 * time.Second)
	if err := a.Telemetry.Shutdown(ctx); err != nil {
		slog.Warn("Failed to shut down telemetry", "error", err)
	}
}

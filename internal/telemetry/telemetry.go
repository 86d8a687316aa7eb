package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Providers holds the SDK providers installed by InitTelemetry.
// The zero value is valid and does nothing.
type Providers struct {
	tp *sdktrace.TracerProvider
	lp *sdklog.LoggerProvider
	mp *sdkmetric.MeterProvider
}

// endpointPaths splits an OTLP endpoint URL into host, per-signal paths and
// whether plain HTTP should be used.
type endpointPaths struct {
	host       string
	tracePath  string
	logPath    string
	metricPath string
	insecure   bool
}

func parseEndpoint(otlpEndpoint string) endpointPaths {
	p := endpointPaths{
		host:       otlpEndpoint,
		tracePath:  "/v1/traces",
		logPath:    "/v1/logs",
		metricPath: "/v1/metrics",
	}

	if strings.HasPrefix(p.host, "https://") {
		p.host = strings.TrimPrefix(p.host, "https://")
	} else if strings.HasPrefix(p.host, "http://") {
		p.host = strings.TrimPrefix(p.host, "http://")
		p.insecure = true
	}

	basePath := ""
	if idx := strings.Index(p.host, "/"); idx > 0 {
		basePath = p.host[idx:]
		p.host = p.host[:idx]
	}

	if basePath != "" {
		basePath = strings.TrimSuffix(basePath, "/v1/traces")
		basePath = strings.TrimSuffix(basePath, "/v1/logs")
		basePath = strings.TrimSuffix(basePath, "/v1/metrics")
		basePath = strings.TrimSuffix(basePath, "/")
		p.tracePath = basePath + "/v1/traces"
		p.logPath = basePath + "/v1/logs"
		p.metricPath = basePath + "/v1/metrics"
	}
	return p
}

// InitTelemetry initializes OpenTelemetry with OTLP/HTTP exporters for traces,
// logs and metrics. With an empty endpoint it installs nothing and returns
// zero-value Providers.
func InitTelemetry(ctx context.Context, serviceName, serviceVersion, env, otlpEndpoint string, headers map[string]string) (*Providers, error) {
	if otlpEndpoint == "" {
		return &Providers{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			semconv.DeploymentEnvironmentKey.String(env),
		),
	)
	if err != nil {
		return nil, err
	}

	ep := parseEndpoint(otlpEndpoint)

	traceOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(ep.host),
		otlptracehttp.WithURLPath(ep.tracePath),
	}
	logOpts := []otlploghttp.Option{
		otlploghttp.WithEndpoint(ep.host),
		otlploghttp.WithURLPath(ep.logPath),
	}
	metricOpts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(ep.host),
		otlpmetrichttp.WithURLPath(ep.metricPath),
	}
	if len(headers) > 0 {
		traceOpts = append(traceOpts, otlptracehttp.WithHeaders(headers))
		logOpts = append(logOpts, otlploghttp.WithHeaders(headers))
		metricOpts = append(metricOpts, otlpmetrichttp.WithHeaders(headers))
	}
	if ep.insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		logOpts = append(logOpts, otlploghttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}

	traceExporter, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, err
	}
	logExporter, err := otlploghttp.New(ctx, logOpts...)
	if err != nil {
		return nil, err
	}
	metricExporter, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return nil, err
	}

	p := &Providers{
		tp: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
		),
		lp: sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		),
		mp: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
			sdkmetric.WithResource(res),
		),
	}
	otel.SetTracerProvider(p.tp)
	global.SetLoggerProvider(p.lp)
	otel.SetMeterProvider(p.mp)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.Info("Telemetry initialized",
		"endpoint", ep.host,
		"trace_path", ep.tracePath,
		"log_path", ep.logPath,
		"metric_path", ep.metricPath,
		"insecure", ep.insecure,
	)

	return p, nil
}

// ForceFlush exports everything buffered so far. Lambda freezes the process
// between invocations, so handlers call this before returning.
func (p *Providers) ForceFlush(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return errors.Join(p.tp.ForceFlush(ctx), p.lp.ForceFlush(ctx), p.mp.ForceFlush(ctx))
}

// Shutdown flushes and stops all providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return errors.Join(p.tp.Shutdown(ctx), p.lp.Shutdown(ctx), p.mp.Shutdown(ctx))
}

// Tracer returns a tracer with the given name
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Package telemetry provides OpenTelemetry initialization and helpers
// for tracing, logs and metrics across the transcription pipeline.
//
// The package configures OTLP HTTP export, with support for Grafana Cloud
// and local collector backends. Lambda entry points flush the providers at
// the end of every invocation.
package telemetry

// Package observability provides structured logging, metrics, and tracing
// for thermostatter-api.
//
// This package implements:
//   - Structured logging with contextual fields (zap-based)
//   - OpenTelemetry metrics for authentication outcomes
//   - OpenTelemetry tracing exported over OTLP/HTTP
//
// When tracing or metrics are disabled the global no-op providers are used,
// so instrumented code paths never need to check whether telemetry is on.
package observability

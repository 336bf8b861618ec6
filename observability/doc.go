// Package observability provides an OpenTelemetry-based metrics extension
// for groupq. The MetricsExtension implements lifecycle hooks to record
// system-wide counters for job submission, start, completion, retry,
// terminal failure, and sweep events.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability

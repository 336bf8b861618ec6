package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ddeklerk28/groupq/ext"
	"github.com/ddeklerk28/groupq/job"
)

// meterName is the instrumentation scope name for groupq lifecycle metrics.
const meterName = "github.com/ddeklerk28/groupq/observability"

// Compile-time interface checks.
var (
	_ ext.Extension    = (*MetricsExtension)(nil)
	_ ext.JobSubmitted = (*MetricsExtension)(nil)
	_ ext.JobStarted   = (*MetricsExtension)(nil)
	_ ext.JobCompleted = (*MetricsExtension)(nil)
	_ ext.JobRetrying  = (*MetricsExtension)(nil)
	_ ext.JobFailed    = (*MetricsExtension)(nil)
	_ ext.JobsSwept    = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle metrics via OpenTelemetry.
// Register it as an extension to automatically track submission rates,
// completion counts, terminal failures, retries, and sweep volumes. All
// counters carry kind and group_key attributes where a job is in scope.
type MetricsExtension struct {
	submitted metric.Int64Counter
	started   metric.Int64Counter
	completed metric.Int64Counter
	retried   metric.Int64Counter
	failed    metric.Int64Counter
	swept     metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. With no provider configured the instruments are noops.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. Use this variant to inject an sdkmetric provider in
// tests or when multiple providers are in use.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}

	// On instrument errors the OTel API returns noops, so the extension
	// degrades gracefully.
	m.submitted, _ = meter.Int64Counter("groupq.jobs.submitted",
		metric.WithDescription("Jobs accepted into the queue"),
		metric.WithUnit("{job}"))
	m.started, _ = meter.Int64Counter("groupq.jobs.started",
		metric.WithDescription("Job attempts claimed by workers"),
		metric.WithUnit("{attempt}"))
	m.completed, _ = meter.Int64Counter("groupq.jobs.completed",
		metric.WithDescription("Jobs finished successfully"),
		metric.WithUnit("{job}"))
	m.retried, _ = meter.Int64Counter("groupq.jobs.retried",
		metric.WithDescription("Attempts that failed with retry budget remaining"),
		metric.WithUnit("{attempt}"))
	m.failed, _ = meter.Int64Counter("groupq.jobs.failed",
		metric.WithDescription("Jobs that failed terminally"),
		metric.WithUnit("{job}"))
	m.swept, _ = meter.Int64Counter("groupq.jobs.swept",
		metric.WithDescription("Terminal jobs dropped by maintenance sweeps"),
		metric.WithUnit("{job}"))
	m.duration, _ = meter.Float64Histogram("groupq.jobs.run_duration",
		metric.WithDescription("Successful attempt duration in seconds"),
		metric.WithUnit("s"))

	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func jobAttrs(j *job.Job) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("kind", j.Kind),
		attribute.String("group_key", j.GroupKey),
	)
}

// OnJobSubmitted implements ext.JobSubmitted.
func (m *MetricsExtension) OnJobSubmitted(ctx context.Context, j *job.Job) error {
	m.submitted.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobStarted implements ext.JobStarted.
func (m *MetricsExtension) OnJobStarted(ctx context.Context, j *job.Job) error {
	m.started.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	m.completed.Add(ctx, 1, jobAttrs(j))
	m.duration.Record(ctx, elapsed.Seconds(), jobAttrs(j))
	return nil
}

// OnJobRetrying implements ext.JobRetrying.
func (m *MetricsExtension) OnJobRetrying(ctx context.Context, j *job.Job, _ int, _ time.Time) error {
	m.retried.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.failed.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobsSwept implements ext.JobsSwept.
func (m *MetricsExtension) OnJobsSwept(ctx context.Context, count int64) error {
	m.swept.Add(ctx, count)
	return nil
}

// Package engine wires all groupq subsystems together. It creates the
// processor registry, extension registry, middleware chain, queue, and
// worker pool, and provides Register/Submit operations.
//
// This package exists to break the import cycle: the root groupq package
// defines Entity and the sentinel errors (imported by job, queue, etc.)
// and so cannot import those packages back. The engine package sits above
// all subsystem packages and below the application layer.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ddeklerk28/groupq"
	"github.com/ddeklerk28/groupq/backoff"
	"github.com/ddeklerk28/groupq/ext"
	"github.com/ddeklerk28/groupq/group"
	"github.com/ddeklerk28/groupq/id"
	"github.com/ddeklerk28/groupq/job"
	mw "github.com/ddeklerk28/groupq/middleware"
	"github.com/ddeklerk28/groupq/observability"
	"github.com/ddeklerk28/groupq/queue"
	"github.com/ddeklerk28/groupq/store"
	"github.com/ddeklerk28/groupq/worker"
)

// Engine owns a fully wired groupq instance: registry, queue, and pool.
// Create one with New, register processors, then Start it.
type Engine struct {
	store      store.Store
	config     groupq.Config
	logger     *slog.Logger
	registry   *job.Registry
	extensions *ext.Registry
	jobs       *job.Manager
	groups     *group.Manager
	queue      *queue.Queue
	pool       *worker.Pool
	bo         backoff.Strategy
	mws        []mw.Middleware

	limitConfigs []queue.Config

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets pool and queue tuning. Zero-value fields fall back to
// their defaults.
func WithConfig(cfg groupq.Config) Option {
	return func(eng *Engine) {
		def := groupq.DefaultConfig()
		if cfg.PoolSize <= 0 {
			cfg.PoolSize = def.PoolSize
		}
		if cfg.PollInterval <= 0 {
			cfg.PollInterval = def.PollInterval
		}
		if cfg.ShutdownTimeout <= 0 {
			cfg.ShutdownTimeout = def.ShutdownTimeout
		}
		if cfg.DefaultMaxAttempts <= 0 {
			cfg.DefaultMaxAttempts = def.DefaultMaxAttempts
		}
		eng.config = cfg
	}
}

// WithLogger sets the engine logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) {
		eng.logger = l
	}
}

// WithBackoff sets the retry backoff strategy.
// If not set, backoff.DefaultStrategy() (exponential with jitter) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.bo = b
	}
}

// WithMiddleware appends middleware to the engine's chain, after the
// default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithLimits registers per-kind rate limiting and concurrency
// configurations. Kinds not listed have no limits.
func WithLimits(configs ...queue.Config) Option {
	return func(eng *Engine) {
		eng.limitConfigs = append(eng.limitConfigs, configs...)
	}
}

// WithTracerProvider sets a custom OTel TracerProvider. When set, the
// tracing middleware uses this provider instead of the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider. When set, both the
// metrics middleware and the observability extension use this provider
// instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// New creates a fully wired Engine over the given store.
func New(s store.Store, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, groupq.ErrNoStore
	}

	eng := &Engine{
		store:      s,
		config:     groupq.DefaultConfig(),
		logger:     slog.Default(),
		registry:   job.NewRegistry(),
		extensions: ext.NewRegistry(slog.Default()),
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.bo == nil {
		eng.bo = backoff.DefaultStrategy()
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracer := eng.tracerProvider.Tracer("github.com/ddeklerk28/groupq")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/ddeklerk28/groupq")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/ddeklerk28/groupq/observability")
		obsExt = observability.NewMetricsExtensionWithMeter(meter)
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Job manager and queue.
	eng.jobs = job.NewManager(s,
		job.WithBackoff(eng.bo),
		job.WithDefaultMaxAttempts(eng.config.DefaultMaxAttempts),
		job.WithManagerLogger(eng.logger),
	)
	eng.groups = group.NewManager()

	queueOpts := []queue.Option{
		queue.WithCapacity(eng.config.Capacity),
		queue.WithExtensions(eng.extensions),
		queue.WithLogger(eng.logger),
	}
	if len(eng.limitConfigs) > 0 {
		queueOpts = append(queueOpts, queue.WithLimits(queue.NewLimits(eng.limitConfigs...)))
	}
	eng.queue = queue.New(eng.jobs, eng.groups, queueOpts...)

	// Default middleware stack:
	// recover → tracing → metrics → logging → meta → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
		mw.Meta(),
		mw.Timeout(eng.logger),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	executor := worker.NewExecutor(eng.registry, eng.queue, eng.logger, allMws...)
	eng.pool = worker.NewPool(eng.queue, executor, eng.logger,
		worker.WithPoolSize(eng.config.PoolSize),
		worker.WithPollInterval(eng.config.PollInterval),
		worker.WithShutdownTimeout(eng.config.ShutdownTimeout),
	)

	return eng, nil
}

// Register registers a typed processor definition with the engine.
func Register[T any](eng *Engine, def *job.Definition[T]) error {
	return job.RegisterDefinition(eng.registry, def)
}

// Submit creates and submits a job with a typed payload.
func Submit[T any](ctx context.Context, eng *Engine, kind string, payload T, opts ...job.Option) (*job.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for job %q: %w", kind, err)
	}
	return eng.SubmitRaw(ctx, kind, data, opts...)
}

// SubmitRaw submits a job with a pre-serialized payload.
func (eng *Engine) SubmitRaw(ctx context.Context, kind string, payload []byte, opts ...job.Option) (*job.Job, error) {
	return eng.queue.Submit(ctx, kind, payload, opts...)
}

// RegisterFunc registers an untyped handler for a kind.
func (eng *Engine) RegisterFunc(kind string, handler job.HandlerFunc) error {
	return eng.registry.Register(kind, handler)
}

// Unregister removes a kind's handler. Queued jobs of that kind fail at
// their next attempt.
func (eng *Engine) Unregister(kind string) {
	eng.registry.Unregister(kind)
}

// Get returns a snapshot of a job by ID.
func (eng *Engine) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return eng.queue.Get(ctx, jobID)
}

// List returns snapshots of jobs matching the filter, in submission order.
func (eng *Engine) List(ctx context.Context, f job.Filter) ([]*job.Job, error) {
	return eng.queue.List(ctx, f)
}

// Sweep drops terminal jobs older than the given age.
func (eng *Engine) Sweep(ctx context.Context, olderThan time.Duration) (int64, error) {
	return eng.queue.Sweep(ctx, olderThan)
}

// Start begins job processing by starting the worker pool.
func (eng *Engine) Start(ctx context.Context) error {
	if err := eng.store.Ping(ctx); err != nil {
		return fmt.Errorf("store ping: %w", err)
	}
	return eng.pool.Start(ctx)
}

// Stop gracefully shuts down the engine: the pool drains (or abandons at
// the shutdown timeout), then Shutdown hooks fire.
func (eng *Engine) Stop(ctx context.Context) error {
	err := eng.pool.Stop(ctx)
	eng.extensions.EmitShutdown(ctx)
	return err
}

// Queue returns the underlying queue for direct claim-level access.
func (eng *Engine) Queue() *queue.Queue { return eng.queue }

// Registry returns the processor registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Pool returns the worker pool.
func (eng *Engine) Pool() *worker.Pool { return eng.pool }

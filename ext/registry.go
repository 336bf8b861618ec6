package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/ddeklerk28/groupq/job"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type jobSubmittedEntry struct {
	name string
	hook JobSubmitted
}

type jobStartedEntry struct {
	name string
	hook JobStarted
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type jobRetryingEntry struct {
	name string
	hook JobRetrying
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type jobsSweptEntry struct {
	name string
	hook JobsSwept
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events to
// them. Extensions are type-cached at registration time so emit calls
// iterate only over extensions that implement the relevant hook. Hook
// errors are logged, never propagated: observers must not affect job
// processing.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	jobSubmitted []jobSubmittedEntry
	jobStarted   []jobStartedEntry
	jobCompleted []jobCompletedEntry
	jobRetrying  []jobRetryingEntry
	jobFailed    []jobFailedEntry
	jobsSwept    []jobsSweptEntry
	shutdown     []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable hook
// caches. Extensions are notified in registration order. Register all
// extensions before starting the pool; Register is not safe to call
// concurrently with emits.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobSubmitted); ok {
		r.jobSubmitted = append(r.jobSubmitted, jobSubmittedEntry{name, h})
	}
	if h, ok := e.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, jobStartedEntry{name, h})
	}
	if h, ok := e.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, h})
	}
	if h, ok := e.(JobRetrying); ok {
		r.jobRetrying = append(r.jobRetrying, jobRetryingEntry{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := e.(JobsSwept); ok {
		r.jobsSwept = append(r.jobsSwept, jobsSweptEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions in registration order.
func (r *Registry) Extensions() []Extension {
	return r.extensions
}

func (r *Registry) hookErr(name, hook string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("extension", name),
		slog.String("hook", hook),
		slog.String("error", err.Error()),
	)
}

// EmitJobSubmitted notifies JobSubmitted hooks.
func (r *Registry) EmitJobSubmitted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobSubmitted {
		if err := e.hook.OnJobSubmitted(ctx, j); err != nil {
			r.hookErr(e.name, "OnJobSubmitted", err)
		}
	}
}

// EmitJobStarted notifies JobStarted hooks.
func (r *Registry) EmitJobStarted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobStarted {
		if err := e.hook.OnJobStarted(ctx, j); err != nil {
			r.hookErr(e.name, "OnJobStarted", err)
		}
	}
}

// EmitJobCompleted notifies JobCompleted hooks.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, j, elapsed); err != nil {
			r.hookErr(e.name, "OnJobCompleted", err)
		}
	}
}

// EmitJobRetrying notifies JobRetrying hooks.
func (r *Registry) EmitJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) {
	for _, e := range r.jobRetrying {
		if err := e.hook.OnJobRetrying(ctx, j, attempt, nextRunAt); err != nil {
			r.hookErr(e.name, "OnJobRetrying", err)
		}
	}
}

// EmitJobFailed notifies JobFailed hooks.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, jobErr error) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, j, jobErr); err != nil {
			r.hookErr(e.name, "OnJobFailed", err)
		}
	}
}

// EmitJobsSwept notifies JobsSwept hooks.
func (r *Registry) EmitJobsSwept(ctx context.Context, count int64) {
	for _, e := range r.jobsSwept {
		if err := e.hook.OnJobsSwept(ctx, count); err != nil {
			r.hookErr(e.name, "OnJobsSwept", err)
		}
	}
}

// EmitShutdown notifies Shutdown hooks.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.hookErr(e.name, "OnShutdown", err)
		}
	}
}

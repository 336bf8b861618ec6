// Package worker provides the job execution engine — an Executor that
// invokes registered handlers through middleware and reports the outcome
// back to the queue, and a Pool that manages concurrent worker goroutines
// claiming jobs.
package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ddeklerk28/groupq"
	"github.com/ddeklerk28/groupq/id"
	"github.com/ddeklerk28/groupq/job"
	"github.com/ddeklerk28/groupq/middleware"
)

// Completer is the reporting surface the executor uses after an attempt.
// Complete and Fail settle the attempt and release the job's group lock.
type Completer interface {
	Complete(ctx context.Context, jobID id.JobID) error
	Fail(ctx context.Context, jobID id.JobID, cause error) error
}

// Executor runs a single claimed job through middleware and the registered
// handler, then reports success or failure back to the queue. Retry
// scheduling and failure accounting happen queue-side; the executor only
// observes and reports.
type Executor struct {
	registry *job.Registry
	queue    Completer
	mw       middleware.Middleware
	logger   *slog.Logger
}

// NewExecutor creates an Executor that reports through the given queue.
func NewExecutor(
	registry *job.Registry,
	queue Completer,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry: registry,
		queue:    queue,
		mw:       middleware.Chain(mws...),
		logger:   logger,
	}
}

// Execute runs a claimed job through the middleware chain and handler.
// On success the job is completed; on handler error (or missing handler)
// the attempt is failed and the queue decides between retry and terminal
// failure. The returned error reflects the attempt outcome and is
// informational — the job's state is already settled when Execute returns.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	handler, err := e.registry.Resolve(j.Kind)
	if err != nil {
		// The kind was unregistered after submission. The attempt still
		// counts; the queue applies normal retry accounting.
		e.logger.Warn("no handler for claimed job",
			slog.String("job_id", j.ID.String()),
			slog.String("kind", j.Kind),
		)
		return e.report(ctx, j, err)
	}

	terminal := func(ctx context.Context) error {
		return handler(ctx, j.Payload)
	}

	return e.report(ctx, j, e.mw(ctx, j, terminal))
}

// report settles the attempt with the queue. A settled job (abandoned at
// shutdown, for instance) rejects the transition; that is expected and
// logged at debug.
func (e *Executor) report(ctx context.Context, j *job.Job, handlerErr error) error {
	var settleErr error
	if handlerErr != nil {
		settleErr = e.queue.Fail(ctx, j.ID, handlerErr)
	} else {
		settleErr = e.queue.Complete(ctx, j.ID)
	}

	if settleErr != nil {
		if errors.Is(settleErr, groupq.ErrInvalidTransition) {
			e.logger.Debug("attempt already settled",
				slog.String("job_id", j.ID.String()),
				slog.String("kind", j.Kind),
			)
		} else {
			e.logger.Error("failed to settle attempt",
				slog.String("job_id", j.ID.String()),
				slog.String("kind", j.Kind),
				slog.String("error", settleErr.Error()),
			)
		}
		return settleErr
	}

	return handlerErr
}

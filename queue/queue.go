package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ddeklerk28/groupq"
	"github.com/ddeklerk28/groupq/ext"
	"github.com/ddeklerk28/groupq/group"
	"github.com/ddeklerk28/groupq/id"
	"github.com/ddeklerk28/groupq/job"
)

// Queue is the ingestion and ordering surface. It accepts new jobs,
// decides which are currently eligible for dispatch, and reports outcomes
// back to the job manager and the group lock table.
//
// Eligibility is a pure function of job state and the lock table: a job
// may be claimed iff it is pending or retrying, its RunAt has passed, it
// is the oldest runnable job of its group, and its group is unlocked.
type Queue struct {
	jobs   *job.Manager
	groups *group.Manager
	limits *Limits
	exts   *ext.Registry
	logger *slog.Logger

	// capacity caps pending+retrying+active. Zero means unbounded.
	capacity int

	// claimMu serializes the scan-acquire-claim step of Dequeue (and the
	// capacity check in Submit) so no two workers ever claim the same job.
	claimMu sync.Mutex

	// notify wakes one idle worker when new work may be available.
	notify chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithCapacity caps the number of non-terminal jobs; Submit returns
// groupq.ErrQueueFull beyond it.
func WithCapacity(n int) Option {
	return func(q *Queue) { q.capacity = n }
}

// WithLimits sets per-kind throttling for the eligibility scan.
func WithLimits(l *Limits) Option {
	return func(q *Queue) { q.limits = l }
}

// WithExtensions sets the lifecycle hook registry.
func WithExtensions(e *ext.Registry) Option {
	return func(q *Queue) { q.exts = e }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// New creates a Queue over the given job manager and group lock table.
func New(jobs *job.Manager, groups *group.Manager, opts ...Option) *Queue {
	q := &Queue{
		jobs:   jobs,
		groups: groups,
		logger: slog.Default(),
		notify: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.exts == nil {
		q.exts = ext.NewRegistry(q.logger)
	}
	return q
}

// Submit validates and enqueues a new job. The job is visible to the
// eligibility scan immediately. Returns groupq.ErrQueueFull when the
// configured capacity is reached; the job table is not touched in that
// case.
func (q *Queue) Submit(ctx context.Context, kind string, payload []byte, opts ...job.Option) (*job.Job, error) {
	q.claimMu.Lock()
	defer q.claimMu.Unlock()

	if q.capacity > 0 {
		n, err := q.jobs.Count(ctx, job.StatePending, job.StateRetrying, job.StateActive)
		if err != nil {
			return nil, fmt.Errorf("count for capacity check: %w", err)
		}
		if n >= int64(q.capacity) {
			return nil, fmt.Errorf("%w: %d jobs in flight", groupq.ErrQueueFull, n)
		}
	}

	j, err := q.jobs.Submit(ctx, kind, payload, opts...)
	if err != nil {
		return nil, err
	}

	q.exts.EmitJobSubmitted(ctx, j)
	q.wake()
	return j, nil
}

// Dequeue scans runnable jobs in submission order and claims the first
// eligible one: its group lock is acquired and the job is marked active in
// the same critical section, so no two callers can claim the same job.
// Returns (nil, nil) when no eligible job exists.
//
// FIFO within a group is strict: only the oldest runnable job of each
// group is ever considered. A head that is locked, throttled, or waiting
// out its retry backoff blocks the whole group.
func (q *Queue) Dequeue(ctx context.Context) (*job.Job, error) {
	claimed, err := q.claim(ctx)
	if err != nil || claimed == nil {
		return claimed, err
	}

	// Emit outside the claim mutex so a slow hook cannot stall other
	// workers' claims.
	q.exts.EmitJobStarted(ctx, claimed)
	return claimed, nil
}

// claim runs the eligibility scan and claims the first eligible job under
// the claim mutex.
func (q *Queue) claim(ctx context.Context) (*job.Job, error) {
	q.claimMu.Lock()
	defer q.claimMu.Unlock()

	runnable, err := q.jobs.Runnable(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan runnable jobs: %w", err)
	}

	now := time.Now().UTC()
	seen := make(map[string]struct{})

	for _, j := range runnable {
		if j.GroupKey != "" {
			if _, headPassed := seen[j.GroupKey]; headPassed {
				continue
			}
			seen[j.GroupKey] = struct{}{}
		}

		if j.RunAt.After(now) {
			continue
		}

		if !q.groups.TryAcquire(j.GroupKey) {
			continue
		}

		if q.limits != nil && !q.limits.Acquire(j.Kind) {
			q.releaseGroup(j.GroupKey)
			continue
		}

		claimed, markErr := q.jobs.MarkActive(ctx, j.ID)
		if markErr != nil {
			// Invariant violation: the scan offered a job that was not
			// runnable. Undo the acquisitions and keep scanning.
			q.releaseGroup(j.GroupKey)
			if q.limits != nil {
				q.limits.Release(j.Kind)
			}
			q.logger.Error("claim rejected by job manager",
				slog.String("job_id", j.ID.String()),
				slog.String("error", markErr.Error()),
			)
			continue
		}

		return claimed, nil
	}

	return nil, nil
}

// Complete records a successful execution: the job moves to completed and
// its group lock is released so the next job in the group becomes
// eligible.
func (q *Queue) Complete(ctx context.Context, jobID id.JobID) error {
	j, err := q.jobs.MarkCompleted(ctx, jobID)
	if err != nil {
		return err
	}

	q.releaseGroup(j.GroupKey)
	if q.limits != nil {
		q.limits.Release(j.Kind)
	}

	q.exts.EmitJobCompleted(ctx, j, sinceAttempt(j))
	q.wake()
	return nil
}

// Fail records a failed execution. The group lock is released regardless
// of whether the job moved to retrying or failed, so a later Dequeue can
// pick the group back up or leave the job terminal.
func (q *Queue) Fail(ctx context.Context, jobID id.JobID, cause error) error {
	j, err := q.jobs.MarkFailed(ctx, jobID, cause)
	if err != nil {
		return err
	}

	q.releaseGroup(j.GroupKey)
	if q.limits != nil {
		q.limits.Release(j.Kind)
	}

	if j.State == job.StateRetrying {
		q.exts.EmitJobRetrying(ctx, j, j.Attempts, j.RunAt)
	} else {
		q.exts.EmitJobFailed(ctx, j, cause)
	}
	q.wake()
	return nil
}

// Get returns a snapshot of a job by ID.
func (q *Queue) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return q.jobs.Get(ctx, jobID)
}

// List returns snapshots of jobs matching the filter, in submission order.
func (q *Queue) List(ctx context.Context, f job.Filter) ([]*job.Job, error) {
	return q.jobs.List(ctx, f)
}

// Sweep drops terminal jobs older than the given age. Optional
// maintenance; terminal jobs are never dropped implicitly.
func (q *Queue) Sweep(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := q.jobs.Sweep(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.exts.EmitJobsSwept(ctx, n)
	}
	return n, nil
}

// Notify returns a channel that receives a signal when new work may be
// available. The channel has a one-element buffer; a single signal may
// wake only one of several idle workers, so workers must also poll.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

// wake nudges one idle worker without blocking.
func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// releaseGroup unlocks a group, logging the invariant violation if the
// lock was not held. Release pairs with a prior successful TryAcquire, so
// ErrNotLocked here means a gating defect, not a recoverable condition.
func (q *Queue) releaseGroup(key string) {
	if err := q.groups.Release(key); err != nil {
		if errors.Is(err, groupq.ErrNotLocked) {
			q.logger.Error("group lock released without being held",
				slog.String("group_key", key),
			)
			return
		}
		q.logger.Error("group release error",
			slog.String("group_key", key),
			slog.String("error", err.Error()),
		)
	}
}

func sinceAttempt(j *job.Job) time.Duration {
	if j.LastAttemptAt == nil {
		return 0
	}
	return time.Since(*j.LastAttemptAt)
}

package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ddeklerk28/groupq"
	"github.com/ddeklerk28/groupq/backoff"
	"github.com/ddeklerk28/groupq/id"
)

// Manager owns the canonical job record set and all lifecycle transitions.
// Workers and the queue never mutate job fields directly; every mutation
// goes through one of the Mark methods so state-machine validity is
// enforced at a single choke point.
type Manager struct {
	store              Store
	backoff            backoff.Strategy
	defaultMaxAttempts int
	logger             *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithBackoff sets the retry delay strategy.
func WithBackoff(b backoff.Strategy) ManagerOption {
	return func(m *Manager) { m.backoff = b }
}

// WithDefaultMaxAttempts sets the attempt ceiling applied to jobs
// submitted without an explicit one.
func WithDefaultMaxAttempts(n int) ManagerOption {
	return func(m *Manager) { m.defaultMaxAttempts = n }
}

// WithManagerLogger sets the structured logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager over the given store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:              store,
		backoff:            backoff.DefaultStrategy(),
		defaultMaxAttempts: 3,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit allocates a new pending job. Returns groupq.ErrInvalidJob if
// kind is empty.
func (m *Manager) Submit(ctx context.Context, kind string, payload []byte, opts ...Option) (*Job, error) {
	if kind == "" {
		return nil, fmt.Errorf("%w: empty kind", groupq.ErrInvalidJob)
	}

	jobOpts := DefaultOptions()
	for _, opt := range opts {
		opt(&jobOpts)
	}
	maxAttempts := jobOpts.MaxAttempts
	if maxAttempts < 0 {
		maxAttempts = m.defaultMaxAttempts
	}

	j := &Job{
		Entity:      groupq.NewEntity(),
		ID:          id.NewJobID(),
		Kind:        kind,
		GroupKey:    jobOpts.GroupKey,
		Payload:     payload,
		State:       StatePending,
		MaxAttempts: maxAttempts,
		RunAt:       time.Now().UTC(),
		Timeout:     jobOpts.Timeout,
	}

	if err := m.store.CreateJob(ctx, j); err != nil {
		return nil, err
	}

	m.logger.Debug("job submitted",
		slog.String("job_id", j.ID.String()),
		slog.String("kind", j.Kind),
		slog.String("group_key", j.GroupKey),
	)

	return j, nil
}

// MarkActive transitions a pending or retrying job to active, increments
// its attempt counter, and stamps LastAttemptAt. Any other source state
// returns groupq.ErrInvalidTransition.
func (m *Manager) MarkActive(ctx context.Context, jobID id.JobID) (*Job, error) {
	j, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if !j.State.Runnable() {
		return nil, fmt.Errorf("%w: %s -> %s (job %s)",
			groupq.ErrInvalidTransition, j.State, StateActive, jobID)
	}

	now := time.Now().UTC()
	j.State = StateActive
	j.Attempts++
	j.LastAttemptAt = &now

	if err := m.store.UpdateJob(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// MarkCompleted transitions an active job to completed and clears
// LastError.
func (m *Manager) MarkCompleted(ctx context.Context, jobID id.JobID) (*Job, error) {
	j, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if j.State != StateActive {
		return nil, fmt.Errorf("%w: %s -> %s (job %s)",
			groupq.ErrInvalidTransition, j.State, StateCompleted, jobID)
	}

	now := time.Now().UTC()
	j.State = StateCompleted
	j.CompletedAt = &now
	j.LastError = ""

	if err := m.store.UpdateJob(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// MarkFailed records a failed attempt on an active job. While attempts
// remain under MaxAttempts the job moves to retrying with a
// backoff-delayed RunAt; otherwise it moves to failed. The cause is
// recorded in LastError either way.
func (m *Manager) MarkFailed(ctx context.Context, jobID id.JobID, cause error) (*Job, error) {
	j, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if j.State != StateActive {
		return nil, fmt.Errorf("%w: %s -> failed/retrying (job %s)",
			groupq.ErrInvalidTransition, j.State, jobID)
	}

	if cause != nil {
		j.LastError = cause.Error()
	} else {
		j.LastError = "handler failed"
	}

	if j.Attempts < j.MaxAttempts {
		delay := m.backoff.Delay(j.Attempts)
		j.State = StateRetrying
		j.RunAt = time.Now().UTC().Add(delay)

		m.logger.Info("job scheduled for retry",
			slog.String("job_id", j.ID.String()),
			slog.String("kind", j.Kind),
			slog.Int("attempt", j.Attempts),
			slog.Int("max_attempts", j.MaxAttempts),
			slog.Duration("delay", delay),
		)
	} else {
		j.State = StateFailed

		m.logger.Warn("job failed after exhausting attempts",
			slog.String("job_id", j.ID.String()),
			slog.String("kind", j.Kind),
			slog.Int("attempts", j.Attempts),
			slog.String("error", j.LastError),
		)
	}

	if err := m.store.UpdateJob(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// Get returns a snapshot of a job by ID.
func (m *Manager) Get(ctx context.Context, jobID id.JobID) (*Job, error) {
	return m.store.GetJob(ctx, jobID)
}

// List returns snapshots of jobs matching the filter, in submission order.
func (m *Manager) List(ctx context.Context, f Filter) ([]*Job, error) {
	return m.store.ListJobs(ctx, f)
}

// Runnable returns pending and retrying jobs in submission order.
func (m *Manager) Runnable(ctx context.Context) ([]*Job, error) {
	return m.store.RunnableJobs(ctx)
}

// Count returns the number of jobs in any of the given states.
func (m *Manager) Count(ctx context.Context, states ...State) (int64, error) {
	return m.store.CountJobs(ctx, states...)
}

// Sweep drops terminal jobs whose last update is older than the given
// age and returns how many were removed.
func (m *Manager) Sweep(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	n, err := m.store.SweepJobs(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("swept terminal jobs", slog.Int64("count", n))
	}
	return n, nil
}

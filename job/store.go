package job

import (
	"context"
	"time"

	"github.com/ddeklerk28/groupq/id"
)

// Filter narrows List queries. Zero values mean "no filter".
type Filter struct {
	State    State
	GroupKey string
	Kind     string
	// Limit caps the number of jobs returned. Zero means no limit.
	Limit int
	// Offset skips that many jobs (after sorting by Seq).
	Offset int
}

// Store is the persistence contract for jobs. Implementations hold state
// only; all lifecycle decisions are made by Manager. Must be safe for
// concurrent use.
type Store interface {
	// CreateJob persists a new job and assigns its submission sequence
	// number (Job.Seq). Returns groupq.ErrJobExists on a duplicate ID.
	CreateJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID, or groupq.ErrJobNotFound.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// UpdateJob persists changes to an existing job.
	UpdateJob(ctx context.Context, j *Job) error

	// DeleteJob removes a job by ID.
	DeleteJob(ctx context.Context, jobID id.JobID) error

	// ListJobs returns jobs matching the filter, ordered by Seq ascending.
	ListJobs(ctx context.Context, f Filter) ([]*Job, error)

	// RunnableJobs returns all pending and retrying jobs ordered by Seq
	// ascending. RunAt gating is the caller's concern: a delayed group
	// head must still be visible so it can block its group.
	RunnableJobs(ctx context.Context) ([]*Job, error)

	// CountJobs returns the number of jobs in any of the given states.
	// No states means all jobs.
	CountJobs(ctx context.Context, states ...State) (int64, error)

	// SweepJobs deletes terminal jobs whose last update is older than
	// cutoff and returns how many were dropped.
	SweepJobs(ctx context.Context, cutoff time.Time) (int64, error)
}

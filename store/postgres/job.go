package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ddeklerk28/groupq"
	"github.com/ddeklerk28/groupq/id"
	"github.com/ddeklerk28/groupq/job"
)

const jobColumns = `
	id, kind, group_key, payload, state, attempts, max_attempts, seq,
	last_error, run_at, last_attempt_at, completed_at, timeout,
	created_at, updated_at`

// CreateJob persists a new job and assigns its submission sequence from
// the table's BIGSERIAL.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO groupq_jobs (
			id, kind, group_key, payload, state, attempts, max_attempts,
			last_error, run_at, last_attempt_at, completed_at, timeout,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14
		)
		RETURNING seq`,
		j.ID.String(), j.Kind, j.GroupKey, j.Payload, string(j.State),
		j.Attempts, j.MaxAttempts,
		j.LastError, j.RunAt, j.LastAttemptAt, j.CompletedAt, j.Timeout.Nanoseconds(),
		j.CreatedAt, j.UpdatedAt,
	).Scan(&j.Seq)
	if err != nil {
		if isDuplicateKey(err) {
			return groupq.ErrJobExists
		}
		return fmt.Errorf("groupq/postgres: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+jobColumns+` FROM groupq_jobs WHERE id = $1`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, groupq.ErrJobNotFound
		}
		return nil, fmt.Errorf("groupq/postgres: get job: %w", err)
	}
	return j, nil
}

// UpdateJob persists changes to an existing job.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE groupq_jobs SET
			kind = $2, group_key = $3, payload = $4, state = $5,
			attempts = $6, max_attempts = $7, last_error = $8,
			run_at = $9, last_attempt_at = $10, completed_at = $11,
			timeout = $12, updated_at = NOW()
		WHERE id = $1`,
		j.ID.String(), j.Kind, j.GroupKey, j.Payload, string(j.State),
		j.Attempts, j.MaxAttempts, j.LastError,
		j.RunAt, j.LastAttemptAt, j.CompletedAt,
		j.Timeout.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("groupq/postgres: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return groupq.ErrJobNotFound
	}
	return nil
}

// DeleteJob removes a job by ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM groupq_jobs WHERE id = $1`, jobID.String())
	if err != nil {
		return fmt.Errorf("groupq/postgres: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return groupq.ErrJobNotFound
	}
	return nil
}

// ListJobs returns jobs matching the filter, ordered by submission
// sequence.
func (s *Store) ListJobs(ctx context.Context, f job.Filter) ([]*job.Job, error) {
	query := `SELECT` + jobColumns + ` FROM groupq_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if f.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, string(f.State))
		argIdx++
	}
	if f.GroupKey != "" {
		query += fmt.Sprintf(" AND group_key = $%d", argIdx)
		args = append(args, f.GroupKey)
		argIdx++
	}
	if f.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, f.Kind)
		argIdx++
	}

	query += " ORDER BY seq ASC"

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, f.Limit)
		argIdx++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("groupq/postgres: list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// RunnableJobs returns pending and retrying jobs in submission order.
// RunAt gating is the caller's concern, so no run_at predicate here.
func (s *Store) RunnableJobs(ctx context.Context) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT`+jobColumns+`
		FROM groupq_jobs
		WHERE state IN ('pending', 'retrying')
		ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("groupq/postgres: runnable jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountJobs returns the number of jobs in any of the given states.
func (s *Store) CountJobs(ctx context.Context, states ...job.State) (int64, error) {
	var (
		count int64
		err   error
	)
	if len(states) == 0 {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM groupq_jobs`).Scan(&count)
	} else {
		strs := make([]string, len(states))
		for i, st := range states {
			strs[i] = string(st)
		}
		err = s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM groupq_jobs WHERE state = ANY($1)`, strs,
		).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("groupq/postgres: count jobs: %w", err)
	}
	return count, nil
}

// SweepJobs deletes terminal jobs last updated before cutoff.
func (s *Store) SweepJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM groupq_jobs
		WHERE state IN ('completed', 'failed')
		  AND updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("groupq/postgres: sweep jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

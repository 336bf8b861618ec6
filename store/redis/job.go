package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ddeklerk28/groupq"
	"github.com/ddeklerk28/groupq/id"
	"github.com/ddeklerk28/groupq/job"
)

// CreateJob stores the job as a Hash, assigns its submission sequence from
// the INCR counter, and indexes it as runnable.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("groupq/redis: create check exists: %w", err)
	}
	if exists > 0 {
		return groupq.ErrJobExists
	}

	seq, err := s.client.Incr(ctx, seqKey).Result()
	if err != nil {
		return fmt.Errorf("groupq/redis: create assign seq: %w", err)
	}
	j.Seq = uint64(seq)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, jobToMap(j))
	pipe.SAdd(ctx, jobIDsKey, jID)
	pipe.SAdd(ctx, stateKey(j.State), jID)
	if j.State.Runnable() {
		pipe.ZAdd(ctx, runnableKey, goredis.Z{Score: float64(j.Seq), Member: jID})
	}

	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("groupq/redis: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, jobKey(jobID.String()))
}

// UpdateJob persists changes to an existing job and moves it between the
// state and runnable indexes.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	oldState, err := s.client.HGet(ctx, key, "state").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return groupq.ErrJobNotFound
		}
		return fmt.Errorf("groupq/redis: update get state: %w", err)
	}

	fields := jobToMap(j)
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if oldState != string(j.State) {
		pipe.SRem(ctx, stateKey(job.State(oldState)), jID)
		pipe.SAdd(ctx, stateKey(j.State), jID)
	}
	if j.State.Runnable() {
		pipe.ZAdd(ctx, runnableKey, goredis.Z{Score: float64(j.Seq), Member: jID})
	} else {
		pipe.ZRem(ctx, runnableKey, jID)
	}

	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("groupq/redis: update job: %w", err)
	}
	return nil
}

// DeleteJob removes a job by ID, including its index entries.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()
	key := jobKey(jID)

	state, err := s.client.HGet(ctx, key, "state").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return groupq.ErrJobNotFound
		}
		return fmt.Errorf("groupq/redis: delete get state: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, jobIDsKey, jID)
	pipe.SRem(ctx, stateKey(job.State(state)), jID)
	pipe.ZRem(ctx, runnableKey, jID)

	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("groupq/redis: delete job: %w", err)
	}
	return nil
}

// ListJobs returns jobs matching the filter, ordered by submission
// sequence.
func (s *Store) ListJobs(ctx context.Context, f job.Filter) ([]*job.Job, error) {
	var ids []string
	var err error

	// A state filter can be served from its index; everything else scans.
	if f.State != "" {
		ids, err = s.client.SMembers(ctx, stateKey(f.State)).Result()
	} else {
		ids, err = s.client.SMembers(ctx, jobIDsKey).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("groupq/redis: list jobs: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue // deleted between SMembers and HGetAll
		}
		if f.GroupKey != "" && j.GroupKey != f.GroupKey {
			continue
		}
		if f.Kind != "" && j.Kind != f.Kind {
			continue
		}
		jobs = append(jobs, j)
	}

	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Seq < jobs[k].Seq })

	if f.Offset > 0 {
		if f.Offset >= len(jobs) {
			return nil, nil
		}
		jobs = jobs[f.Offset:]
	}
	if f.Limit > 0 && len(jobs) > f.Limit {
		jobs = jobs[:f.Limit]
	}
	return jobs, nil
}

// RunnableJobs returns pending and retrying jobs in submission order,
// served directly from the runnable Sorted Set.
func (s *Store) RunnableJobs(ctx context.Context) ([]*job.Job, error) {
	ids, err := s.client.ZRange(ctx, runnableKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("groupq/redis: runnable zrange: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// CountJobs returns the number of jobs in any of the given states, served
// from the per-state Sets.
func (s *Store) CountJobs(ctx context.Context, states ...job.State) (int64, error) {
	if len(states) == 0 {
		n, err := s.client.SCard(ctx, jobIDsKey).Result()
		if err != nil {
			return 0, fmt.Errorf("groupq/redis: count jobs: %w", err)
		}
		return n, nil
	}

	var total int64
	for _, st := range states {
		n, err := s.client.SCard(ctx, stateKey(st)).Result()
		if err != nil {
			return 0, fmt.Errorf("groupq/redis: count state %s: %w", st, err)
		}
		total += n
	}
	return total, nil
}

// SweepJobs deletes terminal jobs last updated before cutoff.
func (s *Store) SweepJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	var swept int64
	for _, st := range []job.State{job.StateCompleted, job.StateFailed} {
		ids, err := s.client.SMembers(ctx, stateKey(st)).Result()
		if err != nil {
			return swept, fmt.Errorf("groupq/redis: sweep smembers: %w", err)
		}
		for _, jID := range ids {
			j, getErr := s.getJobByKey(ctx, jobKey(jID))
			if getErr != nil {
				continue
			}
			if !j.UpdatedAt.Before(cutoff) {
				continue
			}
			if delErr := s.DeleteJob(ctx, j.ID); delErr != nil {
				if errors.Is(delErr, groupq.ErrJobNotFound) {
					continue
				}
				return swept, delErr
			}
			swept++
		}
	}
	return swept, nil
}

// ── helpers ──

func jobToMap(j *job.Job) map[string]interface{} {
	m := map[string]interface{}{
		"id":           j.ID.String(),
		"kind":         j.Kind,
		"group_key":    j.GroupKey,
		"payload":      string(j.Payload),
		"state":        string(j.State),
		"attempts":     strconv.Itoa(j.Attempts),
		"max_attempts": strconv.Itoa(j.MaxAttempts),
		"seq":          strconv.FormatUint(j.Seq, 10),
		"last_error":   j.LastError,
		"run_at":       j.RunAt.Format(time.RFC3339Nano),
		"timeout":      strconv.FormatInt(int64(j.Timeout), 10),
		"created_at":   j.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":   j.UpdatedAt.Format(time.RFC3339Nano),
	}
	if j.LastAttemptAt != nil {
		m["last_attempt_at"] = j.LastAttemptAt.Format(time.RFC3339Nano)
	}
	if j.CompletedAt != nil {
		m["completed_at"] = j.CompletedAt.Format(time.RFC3339Nano)
	}
	return m
}

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("groupq/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, groupq.ErrJobNotFound
	}
	return mapToJob(vals)
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("groupq/redis: parse job id: %w", err)
	}

	attempts, _ := strconv.Atoi(m["attempts"])           //nolint:errcheck // best-effort parse from trusted Redis data
	maxAttempts, _ := strconv.Atoi(m["max_attempts"])    //nolint:errcheck // best-effort parse from trusted Redis data
	seq, _ := strconv.ParseUint(m["seq"], 10, 64)        //nolint:errcheck // best-effort parse from trusted Redis data
	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data

	runAt, _ := time.Parse(time.RFC3339Nano, m["run_at"])         //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	j := &job.Job{
		Entity: groupq.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:          jID,
		Kind:        m["kind"],
		GroupKey:    m["group_key"],
		Payload:     []byte(m["payload"]),
		State:       job.State(m["state"]),
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		Seq:         seq,
		LastError:   m["last_error"],
		RunAt:       runAt,
		Timeout:     time.Duration(timeout),
	}

	if v := m["last_attempt_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.LastAttemptAt = &t
	}
	if v := m["completed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.CompletedAt = &t
	}

	return j, nil
}

// Package memory implements store.Store entirely in memory. It is the
// baseline backend: safe for concurrent access, no external processes,
// suitable for production in-process use as well as tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ddeklerk28/groupq"
	"github.com/ddeklerk28/groupq/id"
	"github.com/ddeklerk28/groupq/job"
	"github.com/ddeklerk28/groupq/store"
)

// Compile-time interface checks.
var (
	_ job.Store   = (*Store)(nil)
	_ store.Store = (*Store)(nil)
)

// Store holds all jobs in a map guarded by a RWMutex. Every method
// returns copies so callers never race with the store's own records.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job
	seq  uint64
}

// New returns a new empty Store.
func New() *Store {
	return &Store{jobs: make(map[string]*job.Job)}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// job.Store
// ──────────────────────────────────────────────────

// CreateJob persists a new job and assigns its submission sequence.
func (m *Store) CreateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return groupq.ErrJobExists
	}

	m.seq++
	j.Seq = m.seq

	cp := *j
	m.jobs[key] = &cp
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, groupq.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// UpdateJob persists changes to an existing job.
func (m *Store) UpdateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, ok := m.jobs[key]; !ok {
		return groupq.ErrJobNotFound
	}
	cp := *j
	cp.UpdatedAt = time.Now().UTC()
	m.jobs[key] = &cp
	return nil
}

// DeleteJob removes a job by ID.
func (m *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	if _, ok := m.jobs[key]; !ok {
		return groupq.ErrJobNotFound
	}
	delete(m.jobs, key)
	return nil
}

// ListJobs returns jobs matching the filter, ordered by Seq ascending.
func (m *Store) ListJobs(_ context.Context, f job.Filter) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if f.State != "" && j.State != f.State {
			continue
		}
		if f.GroupKey != "" && j.GroupKey != f.GroupKey {
			continue
		}
		if f.Kind != "" && j.Kind != f.Kind {
			continue
		}
		cp := *j
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].Seq < result[k].Seq
	})

	if f.Offset > 0 {
		if f.Offset >= len(result) {
			return nil, nil
		}
		result = result[f.Offset:]
	}
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}

	return result, nil
}

// RunnableJobs returns pending and retrying jobs ordered by Seq ascending.
func (m *Store) RunnableJobs(_ context.Context) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if !j.State.Runnable() {
			continue
		}
		cp := *j
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].Seq < result[k].Seq
	})

	return result, nil
}

// CountJobs returns the number of jobs in any of the given states.
func (m *Store) CountJobs(_ context.Context, states ...job.State) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(states) == 0 {
		return int64(len(m.jobs)), nil
	}

	var n int64
	for _, j := range m.jobs {
		for _, s := range states {
			if j.State == s {
				n++
				break
			}
		}
	}
	return n, nil
}

// SweepJobs deletes terminal jobs last updated before cutoff.
func (m *Store) SweepJobs(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key, j := range m.jobs {
		if j.State.Terminal() && j.UpdatedAt.Before(cutoff) {
			delete(m.jobs, key)
			n++
		}
	}
	return n, nil
}

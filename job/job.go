package job

import (
	"time"

	"github.com/ddeklerk28/groupq"
	"github.com/ddeklerk28/groupq/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StatePending means the job is waiting for its first execution.
	StatePending State = "pending"
	// StateActive means a worker is currently executing the job.
	StateActive State = "active"
	// StateCompleted means the job finished successfully. Terminal.
	StateCompleted State = "completed"
	// StateFailed means the job exhausted its attempts. Terminal.
	StateFailed State = "failed"
	// StateRetrying means the last attempt failed and another is due.
	StateRetrying State = "retrying"
)

// Terminal reports whether no transition leaves this state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Runnable reports whether a job in this state may be claimed by a worker.
func (s State) Runnable() bool {
	return s == StatePending || s == StateRetrying
}

// Job is a unit of work tagged with a processor kind and an optional
// ordering group. Jobs sharing a non-empty GroupKey execute strictly in
// submission order, one at a time.
type Job struct {
	groupq.Entity

	ID       id.JobID `json:"id"`
	Kind     string   `json:"kind"`
	GroupKey string   `json:"group_key,omitempty"`
	Payload  []byte   `json:"payload"`
	State    State    `json:"state"`

	// Attempts counts executions so far; MaxAttempts is the ceiling.
	// MaxAttempts 0 means no retry: the first failure is terminal.
	Attempts    int `json:"attempts"`
	MaxAttempts int `json:"max_attempts"`

	// Seq is the submission sequence number assigned by the store.
	// It defines FIFO order within a group.
	Seq uint64 `json:"seq"`

	// RunAt is the earliest time the next attempt may start. Retries push
	// it forward by the backoff delay.
	RunAt time.Time `json:"run_at"`

	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`

	// Timeout bounds a single execution. Zero means unlimited.
	Timeout time.Duration `json:"timeout,omitempty"`
}

package groupq

import "time"

// Config holds pool and queue tuning for the engine.
type Config struct {
	// PoolSize is the number of concurrent worker goroutines. It is the
	// ceiling on simultaneously active jobs, independent of group
	// serialization.
	PoolSize int

	// PollInterval is how long an idle worker waits before re-scanning
	// the queue when no wake-up notification arrives.
	PollInterval time.Duration

	// ShutdownTimeout bounds the graceful drain on Stop. In-flight jobs
	// still running when it elapses are abandoned and marked failed.
	ShutdownTimeout time.Duration

	// Capacity caps pending+retrying+active jobs. Submit returns
	// ErrQueueFull beyond it. Zero means unbounded.
	Capacity int

	// DefaultMaxAttempts is the retry ceiling applied to jobs submitted
	// without an explicit one. Zero means unset and falls back to
	// DefaultConfig's ceiling; use job.WithMaxAttempts(0) to make a
	// job's first failure terminal.
	DefaultMaxAttempts int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PoolSize:           8,
		PollInterval:       250 * time.Millisecond,
		ShutdownTimeout:    30 * time.Second,
		Capacity:           0,
		DefaultMaxAttempts: 3,
	}
}

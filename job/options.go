package job

import "time"

// Options configures per-job behavior at submission time.
type Options struct {
	// MaxAttempts is the execution ceiling including the first attempt.
	// Zero means the first failure is terminal. Negative means "use the
	// engine default".
	MaxAttempts int

	// GroupKey serializes this job against others sharing the same
	// non-empty key. Empty means no serialization.
	GroupKey string

	// Timeout is the maximum duration a single attempt may run before its
	// context is cancelled. Zero means unlimited.
	Timeout time.Duration
}

// DefaultOptions returns Options with MaxAttempts deferred to the engine
// default and no group or timeout.
func DefaultOptions() Options {
	return Options{MaxAttempts: -1}
}

// Option is a functional option applied at submission.
type Option func(*Options)

// WithMaxAttempts sets the execution ceiling for the job.
func WithMaxAttempts(n int) Option {
	return func(o *Options) { o.MaxAttempts = n }
}

// WithGroupKey places the job in an ordering group.
func WithGroupKey(key string) Option {
	return func(o *Options) { o.GroupKey = key }
}

// WithTimeout bounds each execution attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

package queue

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config defines throttling for a single processor kind.
type Config struct {
	// Kind is the processor-kind identifier (must match job.Kind).
	Kind string

	// MaxActive limits how many jobs of this kind may run simultaneously
	// across the pool. Zero means no kind-specific limit (pool-wide
	// concurrency still applies).
	MaxActive int

	// RatePerSecond is the maximum sustained claims per second for this
	// kind. Zero disables rate limiting.
	RatePerSecond float64

	// Burst is the bucket size for the token-bucket rate limiter.
	// Defaults to 1 if RatePerSecond is set but Burst is zero.
	Burst int
}

// kindState tracks runtime state for a single kind.
type kindState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Limits throttles claims per processor kind. The eligibility scan calls
// Acquire before claiming a job and the queue calls Release when the job
// leaves active state. Safe for concurrent use.
type Limits struct {
	mu    sync.Mutex
	kinds map[string]*kindState
}

// NewLimits creates Limits with the given kind configurations.
// Kinds not listed have no limits.
func NewLimits(configs ...Config) *Limits {
	l := &Limits{kinds: make(map[string]*kindState, len(configs))}
	for _, cfg := range configs {
		l.kinds[cfg.Kind] = newKindState(cfg)
	}
	return l
}

func newKindState(cfg Config) *kindState {
	ks := &kindState{config: cfg}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		ks.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return ks
}

// Acquire checks the rate and concurrency limits for the kind. If the
// claim is allowed it increments the active counter and returns true.
// The caller MUST call Release when the job leaves active state.
func (l *Limits) Acquire(kind string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	ks := l.kinds[kind]
	if ks == nil {
		return true
	}
	if ks.limiter != nil && !ks.limiter.Allow() {
		return false
	}
	if ks.config.MaxActive > 0 && ks.active >= ks.config.MaxActive {
		return false
	}

	ks.active++
	return true
}

// Release decrements the active count for the kind.
func (l *Limits) Release(kind string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ks := l.kinds[kind]; ks != nil && ks.active > 0 {
		ks.active--
	}
}

// SetConfig dynamically updates (or creates) a kind configuration,
// preserving the current active count.
func (l *Limits) SetConfig(cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing := l.kinds[cfg.Kind]
	ks := newKindState(cfg)
	if existing != nil {
		ks.active = existing.active
	}
	l.kinds[cfg.Kind] = ks
}

// ActiveCount returns the current number of active jobs for a kind.
func (l *Limits) ActiveCount(kind string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ks := l.kinds[kind]; ks != nil {
		return ks.active
	}
	return 0
}

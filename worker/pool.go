package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ddeklerk28/groupq"
	"github.com/ddeklerk28/groupq/id"
	"github.com/ddeklerk28/groupq/job"
)

// Queue is the claim-and-report surface the pool drives. Dequeue returns
// the next eligible job or nil, Notify signals that new work may be
// available, and Fail is used to abandon jobs at shutdown.
type Queue interface {
	Completer
	Dequeue(ctx context.Context) (*job.Job, error)
	Notify() <-chan struct{}
}

// Pool manages a fixed set of concurrent worker goroutines that claim
// jobs from the queue and execute them through the Executor. Pool size
// bounds global concurrency; per-group serialization is enforced by the
// queue's claim path, not here.
type Pool struct {
	queue           Queue
	executor        *Executor
	size            int
	pollInterval    time.Duration
	shutdownTimeout time.Duration
	workerID        id.WorkerID
	logger          *slog.Logger

	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolSize sets the number of concurrent worker goroutines.
func WithPoolSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithPollInterval sets how long an idle worker waits between scans when
// no wake-up signal arrives.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithShutdownTimeout sets how long Stop waits for in-flight jobs before
// abandoning them.
func WithShutdownTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.shutdownTimeout = d
		}
	}
}

// NewPool creates a worker pool over the given queue and executor.
func NewPool(queue Queue, executor *Executor, logger *slog.Logger, opts ...PoolOption) *Pool {
	cfg := groupq.DefaultConfig()
	p := &Pool{
		queue:           queue,
		executor:        executor,
		size:            cfg.PoolSize,
		pollInterval:    cfg.PollInterval,
		shutdownTimeout: cfg.ShutdownTimeout,
		workerID:        id.NewWorkerID(),
		logger:          logger,
		stopCh:          make(chan struct{}),
		activeJobs:      make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("size", p.size),
	)

	for range p.size {
		p.wg.Add(1)
		go p.runLoop()
	}

	return nil
}

// Stop signals all workers to stop and waits up to the shutdown timeout
// (or the context deadline, whichever comes first) for in-flight jobs to
// finish. Jobs still running at the deadline are abandoned: their attempt
// is failed with ErrShutdownTimeout, subject to normal retry accounting,
// and their contexts are cancelled. Returns ErrShutdownTimeout when any
// job was abandoned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(p.shutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	p.logger.Warn("worker pool shutdown timed out, abandoning active jobs")
	abandoned := p.abandonActiveJobs()
	p.wg.Wait()

	if abandoned > 0 {
		return groupq.ErrShutdownTimeout
	}
	return nil
}

// runLoop is run by each worker goroutine.
func (p *Pool) runLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		j, err := p.queue.Dequeue(context.Background())
		if err != nil {
			p.logger.Error("dequeue error", slog.String("error", err.Error()))
			p.idle()
			continue
		}

		if j == nil {
			p.idle()
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		p.trackJob(j.ID.String(), cancel)

		if execErr := p.executor.Execute(ctx, j); execErr != nil {
			p.logger.Debug("job attempt failed",
				slog.String("job_id", j.ID.String()),
				slog.String("kind", j.Kind),
				slog.String("error", execErr.Error()),
			)
		}

		p.untrackJob(j.ID.String())
		cancel()
	}
}

// idle blocks until new work may be available, the poll interval elapses,
// or the pool stops. The notify channel is a hint, not a guarantee; the
// poll fallback covers delayed retries becoming due.
func (p *Pool) idle() {
	select {
	case <-p.queue.Notify():
	case <-time.After(p.pollInterval):
	case <-p.stopCh:
	}
}

func (p *Pool) trackJob(jobID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, jobID)
	p.activeMu.Unlock()
}

// abandonActiveJobs fails every in-flight job with ErrShutdownTimeout and
// cancels its context. The fail must land before the cancel so the
// interrupted handler's own report finds the attempt already settled.
func (p *Pool) abandonActiveJobs() int {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()

	for jobIDStr, cancel := range p.activeJobs {
		p.logger.Warn("abandoning active job", slog.String("job_id", jobIDStr))

		jobID, parseErr := id.ParseJobID(jobIDStr)
		if parseErr != nil {
			p.logger.Error("abandon: invalid job id", slog.String("job_id", jobIDStr))
			cancel()
			continue
		}
		if failErr := p.queue.Fail(context.Background(), jobID, groupq.ErrShutdownTimeout); failErr != nil {
			p.logger.Error("abandon: fail attempt rejected",
				slog.String("job_id", jobIDStr),
				slog.String("error", failErr.Error()),
			)
		}
		cancel()
	}
	return len(p.activeJobs)
}

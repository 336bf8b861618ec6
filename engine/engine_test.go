package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ddeklerk28/groupq"
	"github.com/ddeklerk28/groupq/backoff"
	"github.com/ddeklerk28/groupq/engine"
	"github.com/ddeklerk28/groupq/job"
	"github.com/ddeklerk28/groupq/queue"
	"github.com/ddeklerk28/groupq/store/memory"
)

type emailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func newEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	base := []engine.Option{
		engine.WithBackoff(backoff.NewConstant(time.Millisecond)),
		engine.WithConfig(groupq.Config{PollInterval: 10 * time.Millisecond}),
	}
	eng, err := engine.New(memory.New(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

func startEngine(t *testing.T, eng *engine.Engine) {
	t.Helper()
	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eng.Stop(stopCtx)
	})
}

func TestEngine_NilStore(t *testing.T) {
	if _, err := engine.New(nil); !errors.Is(err, groupq.ErrNoStore) {
		t.Fatalf("err = %v, want ErrNoStore", err)
	}
}

func TestEngine_EndToEnd_RegisterSubmitProcess(t *testing.T) {
	eng := newEngine(t)

	var got atomic.Value
	def := job.NewDefinition("send-email", func(ctx context.Context, p emailPayload) error {
		got.Store(p)
		return nil
	})
	if err := engine.Register(eng, def); err != nil {
		t.Fatalf("Register: %v", err)
	}

	startEngine(t, eng)

	ctx := context.Background()
	j, err := engine.Submit(ctx, eng, "send-email", emailPayload{To: "user@example.com", Subject: "hi"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return got.Load() != nil
	}, "handler to run")

	p := got.Load().(emailPayload)
	if p.To != "user@example.com" || p.Subject != "hi" {
		t.Fatalf("payload = %+v", p)
	}

	waitFor(t, 5*time.Second, func() bool {
		cur, err := eng.Get(ctx, j.ID)
		return err == nil && cur.State == job.StateCompleted
	}, "job to complete")

	cur, err := eng.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cur.Attempts != 1 {
		t.Fatalf("Attempts = %d, want 1", cur.Attempts)
	}
	if cur.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}
}

func TestEngine_Register_DuplicateKind(t *testing.T) {
	eng := newEngine(t)

	def := job.NewDefinition("dup", func(ctx context.Context, p emailPayload) error { return nil })
	if err := engine.Register(eng, def); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := engine.Register(eng, def); !errors.Is(err, groupq.ErrDuplicateKind) {
		t.Fatalf("err = %v, want ErrDuplicateKind", err)
	}
}

func TestEngine_Submit_UnknownKindStillQueues(t *testing.T) {
	// Submission does not require a registered processor; the job fails
	// at execution time instead.
	eng := newEngine(t, engine.WithConfig(groupq.Config{
		PollInterval:       10 * time.Millisecond,
		DefaultMaxAttempts: 1,
	}))
	startEngine(t, eng)

	ctx := context.Background()
	j, err := eng.SubmitRaw(ctx, "never-registered", nil)
	if err != nil {
		t.Fatalf("SubmitRaw: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		cur, err := eng.Get(ctx, j.ID)
		return err == nil && cur.State == job.StateFailed
	}, "job to fail")

	cur, _ := eng.Get(ctx, j.ID)
	if cur.LastError == "" {
		t.Fatal("LastError empty")
	}
}

func TestEngine_GroupOrdering(t *testing.T) {
	eng := newEngine(t, engine.WithConfig(groupq.Config{
		PoolSize:     4,
		PollInterval: 10 * time.Millisecond,
	}))

	var mu sync.Mutex
	var order []string
	var inGroup, maxInGroup int32

	err := eng.RegisterFunc("step", func(ctx context.Context, payload []byte) error {
		n := atomic.AddInt32(&inGroup, 1)
		for {
			cur := atomic.LoadInt32(&maxInGroup)
			if n <= cur || atomic.CompareAndSwapInt32(&maxInGroup, cur, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		order = append(order, string(payload))
		mu.Unlock()
		atomic.AddInt32(&inGroup, -1)
		return nil
	})
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	startEngine(t, eng)

	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		if _, err := eng.SubmitRaw(ctx, "step", []byte(name), job.WithGroupKey("g1")); err != nil {
			t.Fatalf("SubmitRaw(%s): %v", name, err)
		}
	}

	waitFor(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, "all group jobs to run")

	if got := atomic.LoadInt32(&maxInGroup); got != 1 {
		t.Fatalf("max concurrent in group = %d, want 1", got)
	}
	mu.Lock()
	defer mu.Unlock()
	for i, want := range []string{"a", "b", "c"} {
		if order[i] != want {
			t.Fatalf("order = %v, want [a b c]", order)
		}
	}
}

func TestEngine_BoundedConcurrency(t *testing.T) {
	eng := newEngine(t, engine.WithConfig(groupq.Config{
		PoolSize:     2,
		PollInterval: 10 * time.Millisecond,
	}))

	var active, maxActive, done int32
	err := eng.RegisterFunc("work", func(ctx context.Context, payload []byte) error {
		n := atomic.AddInt32(&active, 1)
		for {
			cur := atomic.LoadInt32(&maxActive)
			if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		atomic.AddInt32(&done, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	startEngine(t, eng)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := eng.SubmitRaw(ctx, "work", nil); err != nil {
			t.Fatalf("SubmitRaw: %v", err)
		}
	}

	waitFor(t, 5*time.Second, func() bool {
		return atomic.LoadInt32(&done) == 5
	}, "all jobs to finish")

	if got := atomic.LoadInt32(&maxActive); got > 2 {
		t.Fatalf("max active = %d, want <= 2", got)
	}
}

func TestEngine_TerminalFailure(t *testing.T) {
	eng := newEngine(t)

	err := eng.RegisterFunc("flaky", func(ctx context.Context, payload []byte) error {
		return errors.New("boom")
	})
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	startEngine(t, eng)

	ctx := context.Background()
	j, err := eng.SubmitRaw(ctx, "flaky", nil, job.WithMaxAttempts(1))
	if err != nil {
		t.Fatalf("SubmitRaw: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		cur, err := eng.Get(ctx, j.ID)
		return err == nil && cur.State == job.StateFailed
	}, "job to fail terminally")

	cur, _ := eng.Get(ctx, j.ID)
	if cur.Attempts != 1 {
		t.Fatalf("Attempts = %d, want 1", cur.Attempts)
	}
	if cur.LastError != "boom" {
		t.Fatalf("LastError = %q, want boom", cur.LastError)
	}
}

func TestEngine_RetryThenSuccess(t *testing.T) {
	eng := newEngine(t)

	var calls int32
	err := eng.RegisterFunc("flaky", func(ctx context.Context, payload []byte) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	startEngine(t, eng)

	ctx := context.Background()
	j, err := eng.SubmitRaw(ctx, "flaky", nil, job.WithMaxAttempts(3))
	if err != nil {
		t.Fatalf("SubmitRaw: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		cur, err := eng.Get(ctx, j.ID)
		return err == nil && cur.State == job.StateCompleted
	}, "job to complete after retry")

	cur, _ := eng.Get(ctx, j.ID)
	if cur.Attempts != 2 {
		t.Fatalf("Attempts = %d, want 2", cur.Attempts)
	}
	if cur.LastError != "" {
		t.Fatalf("LastError = %q, want empty", cur.LastError)
	}
}

func TestEngine_ZeroDefaultMaxAttemptsFallsBack(t *testing.T) {
	// A Config that leaves DefaultMaxAttempts at zero gets the built-in
	// ceiling of 3, not a no-retry policy.
	eng := newEngine(t, engine.WithConfig(groupq.Config{
		PollInterval: 10 * time.Millisecond,
	}))

	var calls int32
	err := eng.RegisterFunc("flaky", func(ctx context.Context, payload []byte) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	startEngine(t, eng)

	ctx := context.Background()
	j, err := eng.SubmitRaw(ctx, "flaky", nil)
	if err != nil {
		t.Fatalf("SubmitRaw: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		cur, err := eng.Get(ctx, j.ID)
		return err == nil && cur.State == job.StateCompleted
	}, "job to exhaust two retries and complete")

	cur, _ := eng.Get(ctx, j.ID)
	if cur.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", cur.Attempts)
	}
	if cur.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts = %d, want default 3", cur.MaxAttempts)
	}
}

func TestEngine_QueueFull(t *testing.T) {
	eng := newEngine(t, engine.WithConfig(groupq.Config{
		PollInterval: 10 * time.Millisecond,
		Capacity:     2,
	}))
	// Not started: submitted jobs stay pending and hold capacity.

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := eng.SubmitRaw(ctx, "work", nil); err != nil {
			t.Fatalf("SubmitRaw: %v", err)
		}
	}

	if _, err := eng.SubmitRaw(ctx, "work", nil); !errors.Is(err, groupq.ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}

	// Rejection must not leave a partial record behind.
	jobs, err := eng.List(ctx, job.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(jobs))
	}
}

func TestEngine_KindConcurrencyLimit(t *testing.T) {
	eng := newEngine(t,
		engine.WithConfig(groupq.Config{PoolSize: 4, PollInterval: 10 * time.Millisecond}),
		engine.WithLimits(queue.Config{Kind: "heavy", MaxActive: 1}),
	)

	var active, maxActive, done int32
	err := eng.RegisterFunc("heavy", func(ctx context.Context, payload []byte) error {
		n := atomic.AddInt32(&active, 1)
		for {
			cur := atomic.LoadInt32(&maxActive)
			if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
				break
			}
		}
		time.Sleep(15 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		atomic.AddInt32(&done, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	startEngine(t, eng)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := eng.SubmitRaw(ctx, "heavy", nil); err != nil {
			t.Fatalf("SubmitRaw: %v", err)
		}
	}

	waitFor(t, 5*time.Second, func() bool {
		return atomic.LoadInt32(&done) == 3
	}, "all heavy jobs to finish")

	if got := atomic.LoadInt32(&maxActive); got != 1 {
		t.Fatalf("max active heavy = %d, want 1", got)
	}
}

// lifecycleTracker records which hooks fired and how often.
type lifecycleTracker struct {
	submitted atomic.Int32
	started   atomic.Int32
	completed atomic.Int32
	retried   atomic.Int32
	failed    atomic.Int32
	shutdown  atomic.Int32
}

func (lt *lifecycleTracker) Name() string { return "lifecycle-tracker" }

func (lt *lifecycleTracker) OnJobSubmitted(ctx context.Context, j *job.Job) error {
	lt.submitted.Add(1)
	return nil
}

func (lt *lifecycleTracker) OnJobStarted(ctx context.Context, j *job.Job) error {
	lt.started.Add(1)
	return nil
}

func (lt *lifecycleTracker) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	lt.completed.Add(1)
	return nil
}

func (lt *lifecycleTracker) OnJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) error {
	lt.retried.Add(1)
	return nil
}

func (lt *lifecycleTracker) OnJobFailed(ctx context.Context, j *job.Job, err error) error {
	lt.failed.Add(1)
	return nil
}

func (lt *lifecycleTracker) OnShutdown(ctx context.Context) error {
	lt.shutdown.Add(1)
	return nil
}

func TestEngine_ExtensionLifecycle(t *testing.T) {
	tracker := &lifecycleTracker{}
	eng := newEngine(t, engine.WithExtension(tracker))

	var calls int32
	err := eng.RegisterFunc("flaky", func(ctx context.Context, payload []byte) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}
	err = eng.RegisterFunc("doomed", func(ctx context.Context, payload []byte) error {
		return errors.New("permanent")
	})
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := eng.SubmitRaw(ctx, "flaky", nil, job.WithMaxAttempts(3)); err != nil {
		t.Fatalf("SubmitRaw: %v", err)
	}
	if _, err := eng.SubmitRaw(ctx, "doomed", nil, job.WithMaxAttempts(1)); err != nil {
		t.Fatalf("SubmitRaw: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return tracker.completed.Load() == 1 && tracker.failed.Load() == 1
	}, "lifecycle hooks to fire")

	if got := tracker.submitted.Load(); got != 2 {
		t.Fatalf("submitted = %d, want 2", got)
	}
	if got := tracker.started.Load(); got != 3 {
		t.Fatalf("started = %d, want 3 (two attempts for flaky, one for doomed)", got)
	}
	if got := tracker.retried.Load(); got != 1 {
		t.Fatalf("retried = %d, want 1", got)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := eng.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := tracker.shutdown.Load(); got != 1 {
		t.Fatalf("shutdown = %d, want 1", got)
	}
}

func TestEngine_WithMeterProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	eng := newEngine(t, engine.WithMeterProvider(provider))

	if err := eng.RegisterFunc("ping", func(ctx context.Context, payload []byte) error {
		return nil
	}); err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	startEngine(t, eng)

	ctx := context.Background()
	j, err := eng.SubmitRaw(ctx, "ping", nil)
	if err != nil {
		t.Fatalf("SubmitRaw: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		cur, err := eng.Get(ctx, j.ID)
		return err == nil && cur.State == job.StateCompleted
	}, "job to complete")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	want := map[string]bool{
		"groupq.job.executions": false,
		"groupq.jobs.submitted": false,
		"groupq.jobs.completed": false,
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if _, ok := want[m.Name]; ok {
				want[m.Name] = true
			}
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("metric %s not recorded", name)
		}
	}
}

func TestEngine_Sweep(t *testing.T) {
	eng := newEngine(t)

	if err := eng.RegisterFunc("quick", func(ctx context.Context, payload []byte) error {
		return nil
	}); err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	startEngine(t, eng)

	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		j, err := eng.SubmitRaw(ctx, "quick", []byte(fmt.Sprintf("%d", i)))
		if err != nil {
			t.Fatalf("SubmitRaw: %v", err)
		}
		ids = append(ids, j.ID.String())
	}

	waitFor(t, 5*time.Second, func() bool {
		jobs, err := eng.List(ctx, job.Filter{State: job.StateCompleted})
		return err == nil && len(jobs) == 3
	}, "all jobs to complete")

	n, err := eng.Sweep(ctx, 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 3 {
		t.Fatalf("swept = %d, want 3 (ids %v)", n, ids)
	}

	jobs, err := eng.List(ctx, job.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("len(jobs) = %d after sweep, want 0", len(jobs))
	}
}

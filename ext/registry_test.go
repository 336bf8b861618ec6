package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ddeklerk28/groupq"
	"github.com/ddeklerk28/groupq/ext"
	"github.com/ddeklerk28/groupq/id"
	"github.com/ddeklerk28/groupq/job"
)

// recorder implements every hook and records the order of calls.
type recorder struct {
	calls []string
	fail  bool
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) record(name string) error {
	r.calls = append(r.calls, name)
	if r.fail {
		return errors.New("hook boom")
	}
	return nil
}

func (r *recorder) OnJobSubmitted(context.Context, *job.Job) error {
	return r.record("submitted")
}

func (r *recorder) OnJobStarted(context.Context, *job.Job) error {
	return r.record("started")
}

func (r *recorder) OnJobCompleted(context.Context, *job.Job, time.Duration) error {
	return r.record("completed")
}

func (r *recorder) OnJobRetrying(context.Context, *job.Job, int, time.Time) error {
	return r.record("retrying")
}

func (r *recorder) OnJobFailed(context.Context, *job.Job, error) error {
	return r.record("failed")
}

func (r *recorder) OnJobsSwept(context.Context, int64) error {
	return r.record("swept")
}

func (r *recorder) OnShutdown(context.Context) error {
	return r.record("shutdown")
}

// submittedOnly opts in to a single hook.
type submittedOnly struct {
	count int
}

func (s *submittedOnly) Name() string { return "submitted-only" }

func (s *submittedOnly) OnJobSubmitted(context.Context, *job.Job) error {
	s.count++
	return nil
}

func testJob() *job.Job {
	return &job.Job{
		Entity: groupq.NewEntity(),
		ID:     id.NewJobID(),
		Kind:   "test",
		State:  job.StatePending,
	}
}

func TestRegistry_EmitsAllHooks(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	rec := &recorder{}
	r.Register(rec)

	ctx := context.Background()
	j := testJob()

	r.EmitJobSubmitted(ctx, j)
	r.EmitJobStarted(ctx, j)
	r.EmitJobCompleted(ctx, j, time.Millisecond)
	r.EmitJobRetrying(ctx, j, 1, time.Now())
	r.EmitJobFailed(ctx, j, errors.New("boom"))
	r.EmitJobsSwept(ctx, 3)
	r.EmitShutdown(ctx)

	want := []string{"submitted", "started", "completed", "retrying", "failed", "swept", "shutdown"}
	if len(rec.calls) != len(want) {
		t.Fatalf("got %d calls, want %d: %v", len(rec.calls), len(want), rec.calls)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, rec.calls[i], want[i])
		}
	}
}

func TestRegistry_OptInHooksOnly(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	sub := &submittedOnly{}
	r.Register(sub)

	ctx := context.Background()
	j := testJob()

	r.EmitJobSubmitted(ctx, j)
	r.EmitJobCompleted(ctx, j, time.Millisecond) // not implemented — must be skipped
	r.EmitJobSubmitted(ctx, j)

	if sub.count != 2 {
		t.Errorf("OnJobSubmitted called %d times, want 2", sub.count)
	}
}

func TestRegistry_HookErrorsAreSwallowed(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	failing := &recorder{fail: true}
	after := &submittedOnly{}
	r.Register(failing)
	r.Register(after)

	// A failing hook must not prevent later extensions from running.
	r.EmitJobSubmitted(context.Background(), testJob())

	if after.count != 1 {
		t.Errorf("extension after failing hook called %d times, want 1", after.count)
	}
}

func TestRegistry_Extensions(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	r.Register(&recorder{})
	r.Register(&submittedOnly{})

	exts := r.Extensions()
	if len(exts) != 2 {
		t.Fatalf("got %d extensions, want 2", len(exts))
	}
	if exts[0].Name() != "recorder" || exts[1].Name() != "submitted-only" {
		t.Errorf("registration order not preserved: %s, %s", exts[0].Name(), exts[1].Name())
	}
}

// Package groupq provides an in-process job queue with per-group ordering.
// Jobs are tagged with a processor kind and an optional group key; jobs
// sharing a group key execute strictly in submission order, one at a time,
// while distinct groups (and ungrouped jobs) run in parallel across a
// bounded worker pool.
//
// groupq is a library, not a service. Register handlers, pick a store, and
// submit jobs as ordinary Go calls:
//
//	eng, err := engine.New(memory.New())
//	engine.Register(eng, job.NewDefinition("resize", handleResize))
//	eng.Start(ctx)
//	engine.Submit(ctx, eng, "resize", input, job.WithGroupKey("user:42"))
//
// # Architecture
//
// Each invariant has exactly one owner: the job state machine lives in
// job.Manager, per-group mutual exclusion in group.Manager, and eligibility
// policy in queue.Queue. Persistence is pluggable behind the job.Store
// contract; store/memory is the baseline, and store/redis and
// store/postgres plug in external backends.
//
// All entity IDs are TypeIDs — type-prefixed, K-sortable, UUIDv7-based.
package groupq

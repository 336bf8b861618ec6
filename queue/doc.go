// Package queue implements the ingestion and ordering surface of groupq.
//
// [Queue] composes a job.Manager (state truth) and a group.Manager (lock
// ownership) without owning either concern: eligibility is a pure function
// of job state and the lock table, so each invariant — state-machine
// validity, per-group mutual exclusion, FIFO-per-group — can be reasoned
// about independently.
//
// Dequeue pairs the group lock acquisition with the active-state claim
// under a single mutex, so concurrent workers can never double-dispatch a
// job. Per-group mutual exclusion uses a non-blocking try-lock plus
// re-scan rather than a lock held across a suspension: the worker loop's
// footprint stays bounded by pool size, not group count.
//
// [Limits] optionally throttles claims per processor kind with
// token-bucket rate limits and max-active ceilings.
package queue

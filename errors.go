package groupq

import "errors"

var (
	// Submission errors. Returned synchronously; the job never enters the table.
	ErrInvalidJob = errors.New("groupq: invalid job")
	ErrQueueFull  = errors.New("groupq: queue full")

	// Registry errors.
	ErrDuplicateKind = errors.New("groupq: kind already registered")
	ErrUnknownKind   = errors.New("groupq: no handler registered for kind")

	// Invariant violations. These indicate a defect in the gating logic and
	// should never surface in correct operation. Fatal to the operation,
	// not to the process.
	ErrInvalidTransition = errors.New("groupq: invalid state transition")
	ErrNotLocked         = errors.New("groupq: group not locked")

	// Shutdown.
	ErrShutdownTimeout = errors.New("groupq: abandoned during shutdown drain")

	// Store errors.
	ErrNoStore     = errors.New("groupq: no store configured")
	ErrStoreClosed = errors.New("groupq: store closed")
	ErrJobNotFound = errors.New("groupq: job not found")
	ErrJobExists   = errors.New("groupq: job already exists")
)

package groupq

import "context"

// Context is the execution context passed to groupq handlers. It is a
// plain context.Context: cancellation requests and per-attempt metadata
// (see job.FromContext) travel on it, queue-internal state does not.
type Context = context.Context

// Package job defines the job entity, its state machine, typed handler
// definitions, the processor registry, and the lifecycle manager.
//
// # State machine
//
//	pending ──► active ──► completed            (terminal)
//	               │
//	               ├──► retrying ──► active ──► ...
//	               └──► failed                  (terminal, attempts exhausted)
//
// The initial state is pending. No transition leaves a terminal state.
// [Manager] is the only component that performs transitions; the queue and
// workers call its Mark methods and never touch job fields.
//
// # Defining a processor
//
// Use [Definition] with a typed handler. The payload is JSON-serialized at
// submission and decoded before the handler runs:
//
//	var Resize = job.NewDefinition("image.resize",
//	    func(ctx context.Context, in ResizeInput) error {
//	        return resize(ctx, in.Path, in.Width)
//	    },
//	)
//	if err := job.RegisterDefinition(registry, Resize); err != nil { ... }
//
// Re-registering a kind fails with groupq.ErrDuplicateKind; call
// [Registry.Unregister] first to replace a handler.
package job

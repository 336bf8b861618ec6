package job

import "context"

// Definition is a typed handler for one job kind.
// T is the payload type (must be JSON-serializable).
type Definition[T any] struct {
	// Kind is the unique processor-kind identifier.
	Kind string

	// Handler processes a decoded payload. A nil return marks the job
	// completed; any error (or panic) counts as a failed attempt.
	Handler func(ctx context.Context, payload T) error
}

// NewDefinition creates a typed job definition.
func NewDefinition[T any](kind string, handler func(ctx context.Context, payload T) error) *Definition[T] {
	return &Definition[T]{Kind: kind, Handler: handler}
}

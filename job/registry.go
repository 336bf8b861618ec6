package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ddeklerk28/groupq"
)

// HandlerFunc is a type-erased job handler that accepts the raw payload.
// Typed Definition[T] values are converted to HandlerFunc at registration
// time by closing over JSON unmarshal + the typed handler.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Registry maps processor kinds to type-erased handler functions.
// Resolve is reader-shared; Register and Unregister are writer-exclusive.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register associates a kind with a handler. It returns ErrDuplicateKind
// if the kind is already registered; silent handler replacement in a
// long-running server requires an explicit Unregister first.
func (r *Registry) Register(kind string, handler HandlerFunc) error {
	if kind == "" {
		return fmt.Errorf("%w: empty kind", groupq.ErrInvalidJob)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[kind]; exists {
		return fmt.Errorf("%w: %q", groupq.ErrDuplicateKind, kind)
	}
	r.handlers[kind] = handler
	return nil
}

// Unregister removes a kind's handler. No-op if the kind was never
// registered.
func (r *Registry) Unregister(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, kind)
}

// Resolve returns the handler for the given kind, or ErrUnknownKind.
func (r *Registry) Resolve(kind string) (HandlerFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", groupq.ErrUnknownKind, kind)
	}
	return h, nil
}

// Kinds returns all registered kinds.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}
	return kinds
}

// RegisterDefinition registers a typed definition. The generic handler is
// wrapped in a closure that JSON-unmarshals the payload into T before
// calling the typed handler.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) error {
	handler := func(ctx context.Context, payload []byte) error {
		var t T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t); err != nil {
				return fmt.Errorf("unmarshal payload for kind %q: %w", def.Kind, err)
			}
		}
		return def.Handler(ctx, t)
	}

	return r.Register(def.Kind, handler)
}

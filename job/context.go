package job

import (
	"context"

	"github.com/ddeklerk28/groupq/id"
)

// Meta is the per-attempt metadata handlers may read from their context.
// It carries identity only, never queue-internal state.
type Meta struct {
	JobID    id.JobID
	Kind     string
	GroupKey string
	// Attempt is the 1-indexed number of the current execution.
	Attempt int
}

type metaKey struct{}

// NewContext returns a context carrying the job's attempt metadata.
// The worker installs it before running the handler chain.
func NewContext(ctx context.Context, meta Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, meta)
}

// FromContext extracts attempt metadata placed by NewContext.
// ok is false when the context did not come from a groupq worker.
func FromContext(ctx context.Context) (Meta, bool) {
	meta, ok := ctx.Value(metaKey{}).(Meta)
	return meta, ok
}

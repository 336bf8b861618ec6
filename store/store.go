// Package store defines the aggregate persistence interface for groupq.
// The job package owns the job.Store contract; this package composes it
// with backend lifecycle operations. Backends: Memory, Redis, Postgres.
package store

import (
	"context"

	"github.com/ddeklerk28/groupq/job"
)

// Store is the aggregate persistence interface a backend implements.
type Store interface {
	job.Store

	// Migrate prepares backend schema or keyspace. No-op where not needed.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

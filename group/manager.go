// Package group enforces per-group mutual exclusion. A group exists only
// as an entry in the lock table: at most one job per non-empty group key
// is active at any instant, while distinct groups never contend.
package group

import (
	"fmt"
	"sync"

	"github.com/ddeklerk28/groupq"
)

// Manager is the lock table. TryAcquire and Release may be called from
// any number of workers concurrently; the check-and-lock in TryAcquire is
// a single atomic step under the table mutex.
type Manager struct {
	mu     sync.Mutex
	locked map[string]struct{}
}

// NewManager creates an empty lock table.
func NewManager() *Manager {
	return &Manager{locked: make(map[string]struct{})}
}

// TryAcquire attempts to lock the group without blocking. An empty key
// always succeeds and records nothing — ungrouped jobs never contend.
// Returns false if the group is already locked.
func (m *Manager) TryAcquire(key string) bool {
	if key == "" {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, held := m.locked[key]; held {
		return false
	}
	m.locked[key] = struct{}{}
	return true
}

// Release unlocks the group. No-op for an empty key. Calling Release on a
// group that is not locked returns groupq.ErrNotLocked: it signals a
// caller that lost pairing with a prior successful TryAcquire.
func (m *Manager) Release(key string) error {
	if key == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, held := m.locked[key]; !held {
		return fmt.Errorf("%w: %q", groupq.ErrNotLocked, key)
	}
	delete(m.locked, key)
	return nil
}

// Held reports whether the group is currently locked.
func (m *Manager) Held(key string) bool {
	if key == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.locked[key]
	return held
}

// LockedCount returns the number of currently locked groups.
func (m *Manager) LockedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locked)
}

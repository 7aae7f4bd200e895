// Package mem provides an in-process CheckpointStore for local
// development and tests. State does not survive restarts; use the
// sqlite store for durability.
package mem

import (
	"context"
	"sync"

	"github.com/sentientlabs/companion-sdk/memory"
)

// Store keeps checkpoints in a mutex-guarded map. Safe for
// concurrent use; Put is last-writer-wins per thread.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*memory.Checkpoint
}

// New creates an empty in-process store.
func New() *Store {
	return &Store{
		snapshots: make(map[string]*memory.Checkpoint),
	}
}

// Get returns the checkpoint for a thread, or (nil, false, nil) when
// none exists.
func (s *Store) Get(ctx context.Context, threadID string) (*memory.Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.snapshots[threadID]
	if !ok {
		return nil, false, nil
	}
	return cp.Clone(), true, nil
}

// Put overwrites the checkpoint for a thread.
func (s *Store) Put(ctx context.Context, threadID string, cp *memory.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[threadID] = cp.Clone()
	return nil
}

// Delete removes the checkpoint for a thread. Absent keys are a
// no-op.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, threadID)
	return nil
}

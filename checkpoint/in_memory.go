package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/threadloop/threadloop/core"
)

type entry struct {
	state   core.ConversationState
	version int64
}

// InMemoryStore keeps checkpoints in process memory. Suitable for tests and
// single-process runs; everything is lost on restart.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewInMemoryStore creates an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]entry)}
}

// Get returns a copy of the stored state so callers can never mutate the
// store through shared slices or maps.
func (s *InMemoryStore) Get(_ context.Context, threadID string) (core.ConversationState, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[threadID]
	if !ok {
		return core.ConversationState{}, 0, fmt.Errorf("thread %q: %w", threadID, ErrNotFound)
	}

	return e.state.Clone(), e.version, nil
}

// Put stores a copy of state under the next version. expectedVersion must
// match the current version exactly; 0 creates the thread.
func (s *InMemoryStore) Put(_ context.Context, threadID string, state core.ConversationState, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := int64(0)
	if e, ok := s.entries[threadID]; ok {
		current = e.version
	}
	if current != expectedVersion {
		return 0, fmt.Errorf("thread %q: expected version %d, have %d: %w", threadID, expectedVersion, current, ErrVersionConflict)
	}

	next := current + 1
	s.entries[threadID] = entry{state: state.Clone(), version: next}

	return next, nil
}

// Delete removes a thread's checkpoint. Deleting an unknown thread is a no-op.
func (s *InMemoryStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, threadID)

	return nil
}

// Len returns the number of stored threads.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Package checkpoint persists conversation state between turns. A Store is
// a versioned key-value surface keyed by thread: every successful Put bumps
// the version, and writers must present the version they read, so two
// processes cannot silently clobber each other's turns.
package checkpoint

import (
	"context"
	"errors"

	"github.com/threadloop/threadloop/core"
)

// ErrNotFound is returned by Get when no checkpoint exists for the thread.
var ErrNotFound = errors.New("checkpoint not found")

// ErrVersionConflict is returned by Put when the stored version no longer
// matches the expected one. The caller must re-read and retry or give up.
var ErrVersionConflict = errors.New("checkpoint version conflict")

// Store is the persistence contract for conversation state.
//
// Get returns the latest state and its version. Put writes a new state,
// taking the version the caller last read; expectedVersion 0 means the
// thread must not exist yet. On success Put returns the new version.
type Store interface {
	Get(ctx context.Context, threadID string) (core.ConversationState, int64, error)
	Put(ctx context.Context, threadID string, state core.ConversationState, expectedVersion int64) (int64, error)
}

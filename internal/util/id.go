package util

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a random UUID string. Used for thread, turn and tool-call
// identifiers where only uniqueness matters.
func NewID() string {
	return uuid.NewString()
}

// NewMessageID returns a ULID string. Message identifiers sort
// lexicographically by creation time, which keeps persisted logs readable.
func NewMessageID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

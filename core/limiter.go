package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrStepLimitExceeded is returned by StepLimiter.Increment when a turn has
// used up its model-call budget.
var ErrStepLimitExceeded = errors.New("step limit exceeded")

// StepLimiter bounds the number of model calls within a single turn so a
// model that keeps requesting tools cannot loop forever.
type StepLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewStepLimiter creates a limiter allowing up to max model calls.
// If max == 0, the turn is unbounded.
func NewStepLimiter(max int) *StepLimiter {
	return &StepLimiter{max: max}
}

// Increment counts one model call. It returns ErrStepLimitExceeded once the
// budget is spent; the call that would exceed the limit must not be made.
func (sl *StepLimiter) Increment() error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.count++
	if sl.max > 0 && sl.count > sl.max {
		return fmt.Errorf("%w: max %d model calls per turn", ErrStepLimitExceeded, sl.max)
	}

	return nil
}

// Count returns the number of model calls made so far.
func (sl *StepLimiter) Count() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	return sl.count
}

// Remaining returns how many calls are left before hitting the limit,
// or -1 when unbounded.
func (sl *StepLimiter) Remaining() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.max == 0 {
		return -1
	}

	return sl.max - sl.count
}

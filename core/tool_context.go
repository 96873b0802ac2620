package core

import (
	"context"
	"fmt"

	"github.com/threadloop/threadloop/logging"
)

// ToolContext provides a constrained, auditable surface for tool
// implementations. Reads see a snapshot of the conversation state at the
// start of the call; writes accumulate in a local delta that is applied
// together with the tool-result message, never directly.
type ToolContext struct {
	ctx      context.Context
	threadID string
	callID   string
	state    *ConversationState
	delta    map[string]any
	logger   logging.Logger
}

// NewToolContext constructs a tool context bound to one tool call. state is
// the snapshot the tool reads through; it is not mutated.
func NewToolContext(ctx context.Context, threadID, callID string, state *ConversationState, logger logging.Logger) *ToolContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{
		ctx:      ctx,
		threadID: threadID,
		callID:   callID,
		state:    state,
		delta:    map[string]any{},
		logger:   logger,
	}
}

// Context returns the context associated with the tool invocation. It
// carries the per-call deadline and cancellation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// ThreadID returns the thread the tool call belongs to.
func (tc *ToolContext) ThreadID() string { return tc.threadID }

// CallID returns the identifier of the tool call being executed.
func (tc *ToolContext) CallID() string { return tc.callID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// GetField reads a structured field, preferring values written earlier in
// this same call over the snapshot.
func (tc *ToolContext) GetField(key string) (any, bool) {
	if v, ok := tc.delta[key]; ok {
		return v, true
	}
	if tc.state == nil {
		return nil, false
	}
	return tc.state.Field(key)
}

// SetField stages a structured field write. The write becomes durable only
// when the orchestrator applies the delta alongside the tool result.
func (tc *ToolContext) SetField(key string, value any) {
	tc.delta[key] = value
}

// History returns the message log snapshot the tool call sees.
func (tc *ToolContext) History() []Message {
	if tc.state == nil {
		return nil
	}
	return tc.state.Messages
}

// FieldDelta returns a copy of the staged field writes.
func (tc *ToolContext) FieldDelta() map[string]any {
	if len(tc.delta) == 0 {
		return nil
	}
	out := make(map[string]any, len(tc.delta))
	for k, v := range tc.delta {
		out[k] = v
	}
	return out
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.ctx == nil || tc.threadID == "" || tc.callID == "" {
		return fmt.Errorf("invalid ToolContext")
	}

	return nil
}

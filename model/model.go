package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/threadloop/threadloop/core"
)

// ToolDefinition declaratively exposes a callable tool to the model.
// InputSchema is a JSON Schema object (draft agnostic, minimal subset
// expected). Unified across vendors so downstream logic does not need
// per-provider branching.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Chunk is one element of a model stream. Delta carries an incremental
// slice of assistant text; Message is set exactly once, on the final chunk,
// with the complete assistant message including any tool calls.
type Chunk struct {
	Delta   string
	Message *core.AssistantMessage
}

// Info contains metadata about an invoker implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Invoker is the minimal interface the orchestrator needs to drive a model.
// Invoke blocks until the full assistant message is available. Stream emits
// chunks on the first channel and at most one error on the second; both are
// closed when the call finishes.
type Invoker interface {
	Invoke(ctx context.Context, msgs []core.Message, tools []ToolDefinition) (core.AssistantMessage, error)
	Stream(ctx context.Context, msgs []core.Message, tools []ToolDefinition) (<-chan Chunk, <-chan error)

	// Info returns information about the invoker implementation.
	Info() Info
}

// ScriptedInvoker replays a fixed sequence of assistant messages. Each call
// consumes the next message; the final message repeats if the script runs
// out. Useful for tests and examples where deterministic model behavior is
// required.
type ScriptedInvoker struct {
	mu    sync.Mutex
	steps []core.AssistantMessage
	calls int
	err   error
}

// NewScriptedInvoker constructs an invoker replaying the given messages in order.
func NewScriptedInvoker(steps ...core.AssistantMessage) *ScriptedInvoker {
	return &ScriptedInvoker{steps: steps}
}

// FailWith makes every subsequent call return err instead of a message.
func (s *ScriptedInvoker) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns how many times the invoker has been called.
func (s *ScriptedInvoker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *ScriptedInvoker) next() (core.AssistantMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return core.AssistantMessage{}, s.err
	}
	if len(s.steps) == 0 {
		return core.AssistantMessage{}, fmt.Errorf("scripted invoker has no steps")
	}

	idx := s.calls - 1
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}

	msg := s.steps[idx]
	if msg.ID == "" {
		msg = core.NewAssistantMessage(msg.Content, msg.ToolCalls...)
	}

	return msg, nil
}

// Invoke implements Invoker.
func (s *ScriptedInvoker) Invoke(ctx context.Context, _ []core.Message, _ []ToolDefinition) (core.AssistantMessage, error) {
	if err := ctx.Err(); err != nil {
		return core.AssistantMessage{}, err
	}
	return s.next()
}

// Stream implements Invoker; emits the scripted content rune by rune, then
// the final message.
func (s *ScriptedInvoker) Stream(ctx context.Context, _ []core.Message, _ []ToolDefinition) (<-chan Chunk, <-chan error) {
	chunks := make(chan Chunk, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		msg, err := s.next()
		if err != nil {
			errs <- err
			return
		}

		for _, r := range msg.Content {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case chunks <- Chunk{Delta: string(r)}:
			}
		}

		select {
		case <-ctx.Done():
			errs <- ctx.Err()
		case chunks <- Chunk{Message: &msg}:
		}
	}()

	return chunks, errs
}

// Info implements Invoker.
func (s *ScriptedInvoker) Info() Info {
	return Info{Name: "scripted", Provider: "scripted", SupportsTools: true}
}

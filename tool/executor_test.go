package tool

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadloop/threadloop/core"
)

func mustArgs(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func decodeResult(t *testing.T, res CallResult) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Message.Content), &payload))
	return payload
}

func newMathExecutor(t *testing.T, opts ExecutorOptions) (*Executor, *core.ConversationState) {
	t.Helper()
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(NewMultiplyTool()))
	require.NoError(t, reg.Register(NewAddTool()))
	state := core.NewConversationState("t1")
	return NewExecutor(reg, opts, nil), &state
}

func TestExecutor_SuccessfulCall(t *testing.T) {
	exec, state := newMathExecutor(t, ExecutorOptions{})

	call := core.ToolCall{ID: "c1", Name: "multiply", Args: mustArgs(t, map[string]any{"a": 12, "b": 34})}
	res := exec.ExecuteOne(context.Background(), "t1", state, call)

	assert.Equal(t, "408", res.Message.Content)
	assert.Equal(t, "c1", res.Message.CallID)
	assert.Equal(t, "multiply", res.Message.ToolName)
	assert.False(t, res.Message.IsError)
	assert.Equal(t, core.ToolOriginLocal, res.Origin)
}

func TestExecutor_UnknownToolIsStructuredError(t *testing.T) {
	exec, state := newMathExecutor(t, ExecutorOptions{})

	call := core.ToolCall{ID: "c1", Name: "divide", Args: mustArgs(t, map[string]any{"a": 1, "b": 2})}
	res := exec.ExecuteOne(context.Background(), "t1", state, call)

	require.True(t, res.Message.IsError)
	payload := decodeResult(t, res)
	assert.Equal(t, "error", payload["status"])
	assert.Contains(t, payload["message"], "divide")
	assert.Contains(t, payload["valid_tools"], "multiply")
}

func TestExecutor_InvalidArgumentsNameConstraint(t *testing.T) {
	exec, state := newMathExecutor(t, ExecutorOptions{})

	call := core.ToolCall{ID: "c1", Name: "multiply", Args: mustArgs(t, map[string]any{"a": 12})}
	res := exec.ExecuteOne(context.Background(), "t1", state, call)

	require.True(t, res.Message.IsError)
	payload := decodeResult(t, res)
	assert.Equal(t, "error", payload["status"])
	assert.Contains(t, payload["message"], "b")
}

func TestExecutor_MalformedArgsJSON(t *testing.T) {
	exec, state := newMathExecutor(t, ExecutorOptions{})

	call := core.ToolCall{ID: "c1", Name: "multiply", Args: json.RawMessage(`{"a":`)}
	res := exec.ExecuteOne(context.Background(), "t1", state, call)

	require.True(t, res.Message.IsError)
	payload := decodeResult(t, res)
	assert.Contains(t, payload["message"], "not valid JSON")
}

func TestExecutor_TimeoutBecomesErrorResult(t *testing.T) {
	reg := NewRegistry(nil)
	slow := NewFunctionTool("slow", "Sleeps.", nil, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		select {
		case <-tc.Context().Done():
			return nil, tc.Context().Err()
		case <-time.After(5 * time.Second):
			return "done", nil
		}
	})
	require.NoError(t, reg.Register(slow))

	exec := NewExecutor(reg, ExecutorOptions{CallTimeout: 20 * time.Millisecond}, nil)
	state := core.NewConversationState("t1")

	start := time.Now()
	res := exec.ExecuteOne(context.Background(), "t1", &state, core.ToolCall{ID: "c1", Name: "slow"})
	assert.Less(t, time.Since(start), time.Second)

	require.True(t, res.Message.IsError)
	payload := decodeResult(t, res)
	assert.Contains(t, payload["message"], "did not complete in time")
}

func TestExecutor_PanicBecomesErrorResult(t *testing.T) {
	reg := NewRegistry(nil)
	angry := NewFunctionTool("angry", "Panics.", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		panic("boom")
	})
	require.NoError(t, reg.Register(angry))

	exec := NewExecutor(reg, ExecutorOptions{}, nil)
	state := core.NewConversationState("t1")

	res := exec.ExecuteOne(context.Background(), "t1", &state, core.ToolCall{ID: "c1", Name: "angry"})

	require.True(t, res.Message.IsError)
	payload := decodeResult(t, res)
	assert.Contains(t, payload["message"], "failed")
}

func TestExecutor_ToolErrorBecomesErrorResult(t *testing.T) {
	reg := NewRegistry(nil)
	failing := NewFunctionTool("failing", "Fails.", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("backend unavailable")
	})
	require.NoError(t, reg.Register(failing))

	exec := NewExecutor(reg, ExecutorOptions{}, nil)
	state := core.NewConversationState("t1")

	res := exec.ExecuteOne(context.Background(), "t1", &state, core.ToolCall{ID: "c1", Name: "failing"})
	require.True(t, res.Message.IsError)
	assert.Contains(t, res.Message.Content, "backend unavailable")
}

func TestExecutor_FieldDeltaCaptured(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(NewWriteFieldTool()))

	exec := NewExecutor(reg, ExecutorOptions{}, nil)
	state := core.NewConversationState("t1")

	call := core.ToolCall{
		ID:   "c1",
		Name: "write_field",
		Args: mustArgs(t, map[string]any{"field_name": "starter_kit", "value": "Mouse"}),
	}
	res := exec.ExecuteOne(context.Background(), "t1", &state, call)

	require.False(t, res.Message.IsError)
	assert.Equal(t, map[string]any{"starter_kit": "mouse"}, res.FieldDelta)
	// The snapshot is untouched until the delta is applied by the caller.
	_, ok := state.Field("starter_kit")
	assert.False(t, ok)
}

func TestExecutor_ParallelPreservesRequestOrder(t *testing.T) {
	reg := NewRegistry(nil)
	var running int32
	echo := NewFunctionTool("echo", "Echoes n.", nil, func(_ *core.ToolContext, args map[string]any) (any, error) {
		atomic.AddInt32(&running, 1)
		time.Sleep(10 * time.Millisecond)
		return args["n"], nil
	})
	require.NoError(t, reg.Register(echo))

	exec := NewExecutor(reg, ExecutorOptions{Parallel: true, MaxParallel: 4}, nil)
	state := core.NewConversationState("t1")

	calls := make([]core.ToolCall, 6)
	for i := range calls {
		calls[i] = core.ToolCall{
			ID:   string(rune('a' + i)),
			Name: "echo",
			Args: mustArgs(t, map[string]any{"n": i}),
		}
	}

	results := exec.ExecuteAll(context.Background(), "t1", &state, calls)

	require.Len(t, results, 6)
	for i, res := range results {
		assert.Equal(t, calls[i].ID, res.Message.CallID, "result %d out of order", i)
	}
	assert.Equal(t, int32(6), atomic.LoadInt32(&running))
}

func TestExecutor_SequentialByDefault(t *testing.T) {
	reg := NewRegistry(nil)
	var order []string
	record := NewFunctionTool("record", "Records call order.", nil, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		order = append(order, tc.CallID())
		return "ok", nil
	})
	require.NoError(t, reg.Register(record))

	exec := NewExecutor(reg, ExecutorOptions{}, nil)
	state := core.NewConversationState("t1")

	calls := []core.ToolCall{
		{ID: "first", Name: "record"},
		{ID: "second", Name: "record"},
		{ID: "third", Name: "record"},
	}
	exec.ExecuteAll(context.Background(), "t1", &state, calls)

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

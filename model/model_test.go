package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadloop/threadloop/core"
)

func TestScriptedInvoker_ReplaysStepsInOrder(t *testing.T) {
	inv := NewScriptedInvoker(
		core.AssistantMessage{Content: "", ToolCalls: []core.ToolCall{{ID: "c1", Name: "multiply"}}},
		core.AssistantMessage{Content: "408"},
	)

	first, err := inv.Invoke(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, first.HasToolCalls())

	second, err := inv.Invoke(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "408", second.Content)

	// The last step repeats once the script is exhausted.
	third, err := inv.Invoke(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "408", third.Content)

	assert.Equal(t, 3, inv.Calls())
}

func TestScriptedInvoker_AssignsMessageIDs(t *testing.T) {
	inv := NewScriptedInvoker(core.AssistantMessage{Content: "hi"})
	msg, err := inv.Invoke(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
}

func TestScriptedInvoker_FailWith(t *testing.T) {
	inv := NewScriptedInvoker(core.AssistantMessage{Content: "hi"})
	boom := errors.New("boom")
	inv.FailWith(boom)

	_, err := inv.Invoke(context.Background(), nil, nil)
	assert.ErrorIs(t, err, boom)
}

func TestScriptedInvoker_StreamEmitsDeltasThenFinal(t *testing.T) {
	inv := NewScriptedInvoker(core.AssistantMessage{Content: "hey"})

	chunks, errs := inv.Stream(context.Background(), nil, nil)

	var (
		deltas string
		final  *core.AssistantMessage
	)
	for c := range chunks {
		deltas += c.Delta
		if c.Message != nil {
			final = c.Message
		}
	}
	require.NoError(t, <-errs)
	assert.Equal(t, "hey", deltas)
	require.NotNil(t, final)
	assert.Equal(t, "hey", final.Content)
}

func TestScriptedInvoker_NoSteps(t *testing.T) {
	inv := NewScriptedInvoker()
	_, err := inv.Invoke(context.Background(), nil, nil)
	assert.Error(t, err)
}

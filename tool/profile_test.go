package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadloop/threadloop/core"
)

func callProfileTool(t *testing.T, tool Tool, state *core.ConversationState, args map[string]any) (map[string]any, map[string]any) {
	t.Helper()
	tc := core.NewToolContext(context.Background(), "t1", "call-1", state, nil)
	result, err := tool.Call(tc, args)
	require.NoError(t, err)
	payload, ok := result.(map[string]any)
	require.True(t, ok, "expected map payload, got %T", result)
	return payload, tc.FieldDelta()
}

func TestWriteField_RejectsInvalidStarterKitWithValidValues(t *testing.T) {
	state := core.NewConversationState("t1")

	payload, delta := callProfileTool(t, NewWriteFieldTool(), &state, map[string]any{
		"field_name": "starter_kit",
		"value":      "laptop",
	})

	assert.Equal(t, "error", payload["status"])
	assert.Contains(t, payload["message"], "laptop")
	assert.Equal(t, []string{"mouse", "keyboard", "backpack"}, payload["valid_values"])
	assert.Nil(t, delta, "rejected write must not stage a field")
}

func TestWriteField_NormalizesStarterKitCase(t *testing.T) {
	state := core.NewConversationState("t1")

	payload, delta := callProfileTool(t, NewWriteFieldTool(), &state, map[string]any{
		"field_name": "starter_kit",
		"value":      "  MOUSE ",
	})

	assert.Equal(t, "success", payload["status"])
	assert.Equal(t, "mouse", payload["value"])
	assert.Equal(t, map[string]any{"starter_kit": "mouse"}, delta)
}

func TestWriteField_UnknownFieldListsValidFields(t *testing.T) {
	state := core.NewConversationState("t1")

	payload, _ := callProfileTool(t, NewWriteFieldTool(), &state, map[string]any{
		"field_name": "favorite_color",
		"value":      "blue",
	})

	assert.Equal(t, "error", payload["status"])
	assert.Contains(t, payload["valid_fields"], "employee_name")
	assert.Contains(t, payload["valid_fields"], "starter_kit")
}

func TestWriteField_LengthConstraints(t *testing.T) {
	state := core.NewConversationState("t1")

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'x'
	}
	payload, _ := callProfileTool(t, NewWriteFieldTool(), &state, map[string]any{
		"field_name": "dietary_restrictions",
		"value":      string(long),
	})
	assert.Equal(t, "error", payload["status"])

	payload, _ = callProfileTool(t, NewWriteFieldTool(), &state, map[string]any{
		"field_name": "employee_name",
		"value":      "",
	})
	assert.Equal(t, "error", payload["status"])

	payload, delta := callProfileTool(t, NewWriteFieldTool(), &state, map[string]any{
		"field_name": "employee_name",
		"value":      "Ada Lovelace",
	})
	assert.Equal(t, "success", payload["status"])
	assert.Equal(t, "Ada Lovelace", delta["employee_name"])
}

func TestWriteField_MeetingScheduledMustBeBool(t *testing.T) {
	state := core.NewConversationState("t1")

	payload, _ := callProfileTool(t, NewWriteFieldTool(), &state, map[string]any{
		"field_name": "meeting_scheduled",
		"value":      "yes",
	})
	assert.Equal(t, "error", payload["status"])

	payload, delta := callProfileTool(t, NewWriteFieldTool(), &state, map[string]any{
		"field_name": "meeting_scheduled",
		"value":      true,
	})
	assert.Equal(t, "success", payload["status"])
	assert.Equal(t, true, delta["meeting_scheduled"])
}

func TestReadField_ReturnsAllFieldsByDefault(t *testing.T) {
	state := core.NewConversationState("t1").WithFields(map[string]any{
		"employee_name": "Ada",
		"starter_kit":   "mouse",
	})

	payload, _ := callProfileTool(t, NewReadFieldTool(), &state, map[string]any{})

	require.Equal(t, "success", payload["status"])
	fields, ok := payload["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ada", fields["employee_name"])
	assert.Equal(t, "mouse", fields["starter_kit"])
	assert.Nil(t, fields["employee_id"])
	assert.Len(t, fields, len(profileFieldNames))
}

func TestReadField_SubsetAndUnknown(t *testing.T) {
	state := core.NewConversationState("t1").WithFields(map[string]any{"starter_kit": "backpack"})

	payload, _ := callProfileTool(t, NewReadFieldTool(), &state, map[string]any{
		"field_names": []any{"starter_kit"},
	})
	fields := payload["fields"].(map[string]any)
	assert.Len(t, fields, 1)
	assert.Equal(t, "backpack", fields["starter_kit"])

	payload, _ = callProfileTool(t, NewReadFieldTool(), &state, map[string]any{
		"field_names": []any{"starter_kit", "shoe_size"},
	})
	assert.Equal(t, "error", payload["status"])
	assert.Contains(t, payload["valid_fields"], "starter_kit")
}

func TestReadField_SeesWritesFromSameCallContext(t *testing.T) {
	state := core.NewConversationState("t1")
	tc := core.NewToolContext(context.Background(), "t1", "call-1", &state, nil)

	_, err := NewWriteFieldTool().Call(tc, map[string]any{"field_name": "employee_id", "value": "E-42"})
	require.NoError(t, err)

	result, err := NewReadFieldTool().Call(tc, map[string]any{"field_names": []any{"employee_id"}})
	require.NoError(t, err)
	fields := result.(map[string]any)["fields"].(map[string]any)
	assert.Equal(t, "E-42", fields["employee_id"])
}

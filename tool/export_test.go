package tool

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadloop/threadloop/core"
)

func TestExportData_SchemaDerivedFromStruct(t *testing.T) {
	tool := NewExportDataTool(t.TempDir())

	schema := tool.InputSchema()
	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	summary, ok := props["summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", summary["type"])
	assert.NotEmpty(t, summary["description"])

	// summary is optional, so nothing is required.
	_, hasRequired := schema["required"]
	assert.False(t, hasRequired)

	// The derived schema must compile like any hand-written one.
	registry := NewRegistry(nil)
	require.NoError(t, registry.Register(tool))
	require.NoError(t, registry.Validate("export_data", map[string]any{"summary": "done"}))
	assert.Error(t, registry.Validate("export_data", map[string]any{"summary": 7}))
}

func TestExportData_MissingRequiredFields(t *testing.T) {
	state := core.NewConversationState("t1")
	state = state.WithFields(map[string]any{"employee_name": "Jane Doe"})

	payload, delta := callProfileTool(t, NewExportDataTool(t.TempDir()), &state, map[string]any{})

	assert.Equal(t, "error", payload["status"])
	assert.Contains(t, payload["message"], "missing required fields")
	assert.ElementsMatch(t, []string{"employee_id", "starter_kit"}, payload["missing_fields"])
	assert.Equal(t, exportRequiredFields, payload["required_fields"])
	assert.Nil(t, delta)
}

func TestExportData_WritesFileAndStoresSummary(t *testing.T) {
	dir := t.TempDir()
	state := core.NewConversationState("t1")
	state = state.WithFields(map[string]any{
		"employee_name":        "Jane Doe",
		"employee_id":          "E-1234",
		"starter_kit":          "backpack",
		"dietary_restrictions": "vegetarian",
	})

	payload, delta := callProfileTool(t, NewExportDataTool(dir), &state, map[string]any{
		"summary": "- Jane Doe onboarded\n- Chose the backpack",
	})

	require.Equal(t, "success", payload["status"])
	assert.Equal(t, "- Jane Doe onboarded\n- Chose the backpack", delta["conversation_summary"])

	path, ok := payload["file_path"].(string)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "t1.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var record map[string]any
	require.NoError(t, json.Unmarshal(raw, &record))
	assert.Equal(t, "Jane Doe", record["employee_name"])
	assert.Equal(t, "E-1234", record["employee_id"])
	assert.Equal(t, "backpack", record["starter_kit"])
	assert.Equal(t, "vegetarian", record["dietary_restrictions"])
	assert.Nil(t, record["meeting_scheduled"])
	assert.Equal(t, "t1", record["thread_id"])
	assert.NotEmpty(t, record["exported_at"])
}

func TestExportData_SummaryOptional(t *testing.T) {
	dir := t.TempDir()
	state := core.NewConversationState("t1")
	state = state.WithFields(map[string]any{
		"employee_name": "Jane Doe",
		"employee_id":   "E-1234",
		"starter_kit":   "mouse",
	})

	payload, delta := callProfileTool(t, NewExportDataTool(dir), &state, map[string]any{})

	assert.Equal(t, "success", payload["status"])
	assert.Nil(t, delta)

	raw, err := os.ReadFile(filepath.Join(dir, "t1.json"))
	require.NoError(t, err)
	var record map[string]any
	require.NoError(t, json.Unmarshal(raw, &record))
	_, hasSummary := record["conversation_summary"]
	assert.False(t, hasSummary)
}

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchema_FieldTypesAndDescriptions(t *testing.T) {
	type args struct {
		Name    string   `json:"name" description:"Who to greet"`
		Count   int      `json:"count"`
		Ratio   float64  `json:"ratio"`
		Loud    bool     `json:"loud"`
		Tags    []string `json:"tags"`
		ignored string
	}

	schema := CreateSchema(args{})
	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"type": "string", "description": "Who to greet"}, props["name"])
	assert.Equal(t, map[string]any{"type": "integer"}, props["count"])
	assert.Equal(t, map[string]any{"type": "number"}, props["ratio"])
	assert.Equal(t, map[string]any{"type": "boolean"}, props["loud"])
	assert.Equal(t, map[string]any{"type": "array"}, props["tags"])
	assert.NotContains(t, props, "ignored")

	assert.ElementsMatch(t, []string{"name", "count", "ratio", "loud", "tags"}, schema["required"])
}

func TestCreateSchema_OptionalFields(t *testing.T) {
	type args struct {
		Required string  `json:"required"`
		Note     string  `json:"note,omitempty"`
		Limit    *int    `json:"limit"`
		Skipped  string  `json:"-"`
		Score    float64 `json:"score,omitempty"`
	}

	schema := CreateSchema(&args{})

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "note")
	assert.Contains(t, props, "limit")
	assert.NotContains(t, props, "Skipped")
	assert.NotContains(t, props, "-")

	assert.Equal(t, []string{"required"}, schema["required"])
}

func TestCreateSchema_NonStructFallsBack(t *testing.T) {
	schema := CreateSchema("not a struct")
	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, schema["properties"])
	assert.NotContains(t, schema, "required")
}

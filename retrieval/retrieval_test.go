package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadloop/threadloop/core"
)

func seedStore() *InMemoryStore {
	store := NewInMemoryStore()
	store.Add(
		Document{ID: "doc-1", Content: "New starters pick one item: mouse, keyboard or backpack."},
		Document{ID: "doc-2", Content: "The cafeteria handles dietary restrictions on request."},
		Document{ID: "doc-3", Content: "Orientation meetings run every Monday morning."},
	)
	return store
}

func TestInMemoryStore_SearchSubstring(t *testing.T) {
	store := seedStore()

	docs, err := store.Search(context.Background(), "DIETARY", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-2", docs[0].ID)
}

func TestInMemoryStore_SearchLimitAndOrder(t *testing.T) {
	store := seedStore()

	docs, err := store.Search(context.Background(), "", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc-1", docs[0].ID)
	assert.Equal(t, "doc-2", docs[1].ID)
}

func TestInMemoryStore_AddAssignsIDs(t *testing.T) {
	store := NewInMemoryStore()
	store.Add(Document{Content: "no id"})
	docs, err := store.Search(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotEmpty(t, docs[0].ID)
}

func TestSearchTool_ReturnsMatches(t *testing.T) {
	store := seedStore()
	searchTool := NewSearchTool(store)

	state := core.NewConversationState("t1")
	tc := core.NewToolContext(context.Background(), "t1", "call-1", &state, nil)

	result, err := searchTool.Call(tc, map[string]any{"query": "backpack"})
	require.NoError(t, err)

	payload := result.(map[string]any)
	assert.Equal(t, "success", payload["status"])
	assert.Equal(t, 1, payload["count"])

	results := payload["results"].([]map[string]any)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1", results[0]["id"])
}

func TestSearchTool_NoMatches(t *testing.T) {
	store := seedStore()
	searchTool := NewSearchTool(store)

	state := core.NewConversationState("t1")
	tc := core.NewToolContext(context.Background(), "t1", "call-1", &state, nil)

	result, err := searchTool.Call(tc, map[string]any{"query": "submarine"})
	require.NoError(t, err)

	payload := result.(map[string]any)
	assert.Equal(t, 0, payload["count"])
}

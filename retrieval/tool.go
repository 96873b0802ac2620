package retrieval

import (
	"github.com/threadloop/threadloop/core"
	"github.com/threadloop/threadloop/tool"
)

// NewSearchTool exposes a Store to the model as a search_documents tool.
func NewSearchTool(store Store) tool.Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Text to search for in the reference documents.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of documents to return. Defaults to 5.",
			},
		},
		"required": []string{"query"},
	}

	return tool.NewFunctionTool(
		"search_documents",
		"Search the reference documents for passages matching a query.",
		schema,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			limit := 5
			if n, ok := args["limit"].(float64); ok && n > 0 {
				limit = int(n)
			}

			docs, err := store.Search(tc.Context(), query, limit)
			if err != nil {
				return nil, err
			}

			results := make([]map[string]any, 0, len(docs))
			for _, d := range docs {
				results = append(results, map[string]any{
					"id":      d.ID,
					"content": d.Content,
				})
			}

			return map[string]any{
				"status":  "success",
				"count":   len(results),
				"results": results,
			}, nil
		},
	)
}

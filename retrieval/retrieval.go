// Package retrieval provides a small document store tools can search to
// ground answers in reference material, plus a ready-made search tool.
package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/threadloop/threadloop/internal/util"
)

// Document is one searchable reference entry.
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Store is the retrieval contract used by the search tool.
type Store interface {
	Search(ctx context.Context, query string, limit int) ([]Document, error)
}

// InMemoryStore is a process-local Store doing a case-insensitive substring
// scan. Suitable for tests and small reference corpora; swap for a real
// index when the corpus grows.
//
// Concurrency: protected by RWMutex.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs []Document
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Add appends documents to the corpus, assigning ids where missing.
func (s *InMemoryStore) Add(docs ...Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range docs {
		if d.ID == "" {
			d.ID = util.NewID()
		}
		s.docs = append(s.docs, d)
	}
}

// Search returns up to limit documents containing the query, ordered by id
// for stable results. An empty query matches everything.
func (s *InMemoryStore) Search(_ context.Context, query string, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	needle := strings.ToLower(query)
	matches := make([]Document, 0, limit)
	for _, d := range s.docs {
		if needle == "" || strings.Contains(strings.ToLower(d.Content), needle) {
			matches = append(matches, d)
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

// Len returns the number of stored documents.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.docs)
}

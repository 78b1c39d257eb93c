package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/helixml/semsearch/domain/vector"
)

// Searcher answers free-text queries against one namespace of an index.
type Searcher struct {
	embedder  vector.Embedder
	store     vector.Store
	index     string
	namespace string
}

// NewSearcher creates a Searcher.
func NewSearcher(embedder vector.Embedder, store vector.Store, index, namespace string) (*Searcher, error) {
	if embedder == nil {
		return nil, errors.New("NewSearcher: nil embedder")
	}
	if store == nil {
		return nil, errors.New("NewSearcher: nil store")
	}
	return &Searcher{
		embedder:  embedder,
		store:     store,
		index:     index,
		namespace: namespace,
	}, nil
}

// Search embeds query and returns at most topK matches in store order.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]vector.Match, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.store.Query(ctx, s.index, vector.Query{
		Namespace:       s.namespace,
		Values:          vec.Values(),
		TopK:            topK,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.index, err)
	}

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/helixml/semsearch/domain/vector"
)

// TextEmbedder adapts a batch Embedder to the single-text vector.Embedder
// contract. Each result gets a fresh UUID and carries its text as metadata.
type TextEmbedder struct {
	embedder  Embedder
	dimension int
	newID     func() string
}

// TextEmbedderOption configures a TextEmbedder.
type TextEmbedderOption func(*TextEmbedder)

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(fn func() string) TextEmbedderOption {
	return func(e *TextEmbedder) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewTextEmbedder creates a TextEmbedder. A dimension of zero disables the
// length check.
func NewTextEmbedder(embedder Embedder, dimension int, opts ...TextEmbedderOption) (*TextEmbedder, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if dimension < 0 {
		return nil, fmt.Errorf("invalid dimension %d", dimension)
	}

	e := &TextEmbedder{
		embedder:  embedder,
		dimension: dimension,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Dimension returns the expected vector length.
func (e *TextEmbedder) Dimension() int { return e.dimension }

// Embed embeds one text.
func (e *TextEmbedder) Embed(ctx context.Context, text string) (vector.Vector, error) {
	resp, err := e.embedder.Embed(ctx, NewEmbeddingRequest([]string{text}))
	if err != nil {
		return vector.Vector{}, fmt.Errorf("embed text: %w", err)
	}

	embeddings := resp.Embeddings()
	if len(embeddings) != 1 {
		return vector.Vector{}, fmt.Errorf("embed text: %w: got %d vectors for 1 text", errEmbeddingCountMismatch, len(embeddings))
	}

	values := embeddings[0]
	if e.dimension > 0 && len(values) != e.dimension {
		return vector.Vector{}, fmt.Errorf("%w: got %d, want %d", vector.ErrDimensionMismatch, len(values), e.dimension)
	}

	vec := make([]float32, len(values))
	for i, v := range values {
		vec[i] = float32(v)
	}

	return vector.NewVector(e.newID(), vec, vector.NewMetadata(text)), nil
}

var _ vector.Embedder = (*TextEmbedder)(nil)

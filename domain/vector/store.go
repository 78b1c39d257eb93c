package vector

import "context"

// Query is a nearest-neighbour request against one namespace of an index.
type Query struct {
	Namespace       string
	Values          []float32
	TopK            int
	IncludeMetadata bool
	IncludeValues   bool
}

// Store is the contract of a vector database: index lifecycle on one side,
// namespace-scoped data operations on the other.
type Store interface {
	// ListIndexes returns every index visible to the client.
	ListIndexes(ctx context.Context) ([]Description, error)

	// CreateIndex requests creation of a new index. The index may not be
	// ready when CreateIndex returns.
	CreateIndex(ctx context.Context, spec Spec) error

	// DescribeIndex returns the current state of the named index.
	DescribeIndex(ctx context.Context, name string) (Description, error)

	// DeleteIndex removes the named index and all of its vectors.
	DeleteIndex(ctx context.Context, name string) error

	// Upsert inserts or replaces vectors by ID within a namespace.
	Upsert(ctx context.Context, index, namespace string, vectors []Vector) error

	// Query returns the nearest vectors in store order.
	Query(ctx context.Context, index string, query Query) ([]Match, error)

	// Count returns the number of vectors stored in a namespace.
	Count(ctx context.Context, index, namespace string) (int, error)
}

// Embedder turns a single text into a Vector carrying that text as metadata.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
}

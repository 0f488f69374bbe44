// Package retriever answers similarity queries against the vector index.
package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"regrag/pkg/models"
)

// DefaultTopK is how many passages a query returns unless asked otherwise.
const DefaultTopK = 5

// Index is the vector index surface the retriever needs.
type Index interface {
	Count(ctx context.Context) int
	Query(ctx context.Context, embedding []float32, k int) ([]models.Passage, error)
}

// Embedder turns the query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever embeds a question and finds its most similar indexed chunks.
type Retriever struct {
	index    Index
	embedder Embedder
}

// New creates a Retriever.
func New(index Index, embedder Embedder) *Retriever {
	return &Retriever{index: index, embedder: embedder}
}

// Retrieve returns up to k passages most similar to the query, best first.
// An empty or unreachable index yields an empty slice and no error, so
// callers can degrade to an "index is empty" answer instead of failing.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.Passage, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	count := r.index.Count(ctx)
	if count == 0 {
		slog.Debug("vector index empty or unreachable")
		return []models.Passage{}, nil
	}
	if k > count {
		k = count
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	passages, err := r.index.Query(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	if passages == nil {
		passages = []models.Passage{}
	}
	return passages, nil
}

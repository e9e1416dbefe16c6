package retrieval

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoContext signals that a query matched zero stored chunks. Callers use
// it to distinguish "the store is empty / nothing relevant" from a normal
// small result set.
var ErrNoContext = errors.New("no context available")

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher answers nearest-neighbor queries over stored chunks.
type Searcher interface {
	SearchNearest(vector []float32, k int, metric Metric) ([]ScoredChunk, error)
}

// Retriever combines query embedding and vector search to find relevant
// context. It returns ranked chunks unmodified.
type Retriever struct {
	embedder Embedder
	store    Searcher
}

// NewRetriever creates a Retriever backed by the given Embedder and Searcher.
func NewRetriever(embedder Embedder, store Searcher) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds the query and returns the top-K nearest chunks under the
// given metric, or ErrNoContext when nothing is stored.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, metric Metric) ([]ScoredChunk, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	scored, err := r.store.SearchNearest(vec, k, metric)
	if err != nil {
		return nil, fmt.Errorf("searching store: %w", err)
	}
	if len(scored) == 0 {
		return nil, ErrNoContext
	}
	return scored, nil
}

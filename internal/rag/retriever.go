package rag

import (
	"context"
	"fmt"
	"sort"
)

// DefaultRetriever implements the Retriever interface by combining an
// Embedder and a VectorStore. It embeds the query at retrieval time and
// delegates similarity search to the store.
type DefaultRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewRetriever constructs a DefaultRetriever from the given Embedder and
// VectorStore. defaultTopK sets the fallback result count when Retrieve is
// called with topK=0.
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &DefaultRetriever{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve embeds the query and returns the top-k candidates, best first.
// Embedding failures are returned as *EmbeddingError, search failures as
// *RetrievalError; an empty candidate slice with a nil error means the
// collection held nothing for this query.
func (r *DefaultRetriever) Retrieve(ctx context.Context, query string, topK int) ([]ScoredChunk, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, &EmbeddingError{Err: err}
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, &EmbeddingError{Err: fmt.Errorf("embedder returned empty vector for query")}
	}

	hits, err := r.store.Search(ctx, embeddings[0], topK)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}

	// The index contract says results arrive best-first, but the ordering is
	// re-established here so downstream policy never depends on it. The sort
	// is stable: ties keep the index's original order.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	return hits, nil
}

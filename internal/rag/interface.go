// Package rag defines the interfaces for the retrieval side of Sentinel:
// vector storage, evidence retrieval, and embedding. Concrete implementations
// (Qdrant, OpenAI, Ollama, etc.) satisfy these interfaces so the answer
// engine never depends on a specific backend.
package rag

import (
	"context"
)

// Chunk is a stored, embedded unit of source text with citation metadata.
// Chunks are created once during ingestion and immutable thereafter; the
// query path only ever reads them back out of search results.
type Chunk struct {
	// ID is the unique identifier of this chunk within the collection.
	ID string

	// Title is a short human-readable heading for the chunk.
	Title string

	// Content is the literal text that may be cited as evidence.
	Content string

	// Tags are free-form labels attached at ingestion time. May be empty.
	Tags []string

	// Topic is the subject the chunk was generated or extracted for.
	Topic string

	// DocID groups all chunks belonging to the same source document.
	DocID string

	// ChunkID is this chunk's 1-based ordinal within its document.
	ChunkID int

	// ChunkCount is the total number of chunks in the document.
	ChunkCount int

	// CreatedAt is the ingestion timestamp in RFC 3339 format.
	CreatedAt string

	// Source records provenance (e.g. "generated:doc-firewalls", "api:manual").
	Source string

	// Language is the locale tag of the content (e.g. "de", "en").
	Language string
}

// ScoredChunk pairs a Chunk's payload with the similarity score assigned by
// the vector index for one query. Scores are cosine similarities in this
// deployment but are treated as an opaque monotone relevance signal — higher
// means more relevant, exact bounds are not assumed.
type ScoredChunk struct {
	Chunk

	// Score is the similarity score for the current query.
	Score float32
}

// VectorStore is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores a batch of chunks with their pre-computed embeddings.
	// The embeddings slice must be parallel to chunks — embeddings[i] is the
	// vector for chunks[i]. The whole batch is written in one call.
	Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error

	// Search returns the top-k nearest neighbors of the query embedding,
	// ordered by descending score. An empty result is not an error — callers
	// must distinguish "no results" from a failed search.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]ScoredChunk, error)

	// Delete removes chunks by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface the answer engine uses to fetch
// scored evidence candidates for a query. It combines embedding and vector
// search. Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the top-k candidates for the query, best first.
	// A nil error with an empty slice means the collection held nothing
	// relevant; embedding and search failures are returned as
	// *EmbeddingError and *RetrievalError respectively.
	Retrieve(ctx context.Context, query string, topK int) ([]ScoredChunk, error)
}

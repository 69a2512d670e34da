package rag

import "fmt"

// EmbeddingError indicates the embedding collaborator failed or returned
// empty/malformed output for a query. It is distinguishable from a search
// failure so callers can report which external service misbehaved.
type EmbeddingError struct {
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("rag: embedding failed: %v", e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *EmbeddingError) Unwrap() error { return e.Err }

// RetrievalError indicates the vector index returned a transport or server
// error. It must never be conflated with an empty result set — "no results"
// is a valid outcome, a RetrievalError is not.
type RetrievalError struct {
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("rag: vector search failed: %v", e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *RetrievalError) Unwrap() error { return e.Err }

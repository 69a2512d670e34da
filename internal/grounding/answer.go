// Package grounding implements the policy core of Sentinel: deciding, given
// a query and a set of scored candidate chunks, whether an answer may be
// produced at all, which chunks qualify as evidence, and how confidence is
// propagated to the caller. Everything here is deterministic except the one
// generation call inside the Composer — and even that is validated and, when
// suspect, overridden.
package grounding

import "github.com/sentinelai/sentinel-go/internal/rag"

// Kind classifies the terminal outcome of a query.
type Kind string

const (
	// KindBlocked means the keyword guard rejected the query before any
	// collaborator was called.
	KindBlocked Kind = "blocked"

	// KindUnknown means the index returned no candidates at all.
	KindUnknown Kind = "unknown"

	// KindInsufficientEvidence means candidates were returned but none
	// reached the relevance threshold.
	KindInsufficientEvidence Kind = "insufficient-evidence"

	// KindNoConcreteContent means qualifying candidates existed but every
	// one of them had empty content, leaving nothing to cite.
	KindNoConcreteContent Kind = "no-concrete-content"

	// KindGrounded means an answer backed by at least one qualifying
	// candidate was produced.
	KindGrounded Kind = "grounded"
)

// Evidence is one cited chunk in a grounded answer, with its content
// truncated to the configured excerpt cap to bound payload size.
type Evidence struct {
	// Title is the chunk's heading.
	Title string `json:"title"`

	// Score is the similarity score the index assigned for this query.
	Score float32 `json:"score"`

	// Excerpt is the chunk content, truncated to the excerpt cap.
	Excerpt string `json:"content"`

	// Source records the chunk's provenance.
	Source string `json:"source,omitempty"`

	// DocID groups the chunk with its sibling chunks.
	DocID string `json:"doc_id,omitempty"`

	// ChunkID is the chunk's ordinal within its document.
	ChunkID int `json:"chunk_id,omitempty"`
}

// Answer is the terminal outcome of one query: either a structured refusal
// with a reason, or a grounded answer carrying the cited evidence subset and
// the maximum observed score. Produced fresh per query, never persisted.
type Answer struct {
	// Kind classifies the outcome.
	Kind Kind `json:"kind"`

	// Reason explains a refusal. Empty for grounded answers.
	Reason string `json:"reason,omitempty"`

	// Text is the answer (or fallback summary) shown to the user. Empty for
	// refusals that carry only a reason.
	Text string `json:"text,omitempty"`

	// MaxScore is the score of the best candidate seen for this query, or
	// 0.0 when there were no candidates. The zero is a sentinel for "no
	// evidence", not a measured similarity of exactly zero.
	MaxScore float32 `json:"max_score"`

	// Evidence lists the cited chunks, at most MaxEvidence entries.
	Evidence []Evidence `json:"evidence,omitempty"`
}

// Refused reports whether the answer is a refusal rather than a grounded
// answer.
func (a *Answer) Refused() bool {
	return a.Kind != KindGrounded
}

// Filter applies the relevance threshold to an ordered candidate sequence.
// It returns the subsequence with Score >= minScore (order preserved) and
// the score of the first candidate — 0.0 when the sequence is empty, which
// callers must treat as a sentinel for "no evidence", not a real similarity.
// Pure function, no side effects.
func Filter(candidates []rag.ScoredChunk, minScore float32) (qualifying []rag.ScoredChunk, maxScore float32) {
	if len(candidates) == 0 {
		return nil, 0.0
	}

	maxScore = candidates[0].Score
	for _, c := range candidates {
		if c.Score >= minScore {
			qualifying = append(qualifying, c)
		}
	}
	return qualifying, maxScore
}

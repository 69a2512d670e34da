// Package engine wires the query path together: keyword guard, evidence
// retrieval, relevance filtering, and grounded answer composition. One
// Engine serves both the HTTP API and the interactive console; the only
// difference between the two is how the resulting Answer is rendered.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sentinelai/sentinel-go/internal/grounding"
	"github.com/sentinelai/sentinel-go/internal/guard"
	"github.com/sentinelai/sentinel-go/internal/logging"
	"github.com/sentinelai/sentinel-go/internal/rag"
)

// Config holds the dependencies and thresholds for an Engine.
type Config struct {
	// Guard screens queries before any collaborator is called.
	Guard *guard.Guard

	// Retriever fetches scored candidates for a query.
	Retriever rag.Retriever

	// Composer turns qualifying candidates into a terminal Answer.
	Composer *grounding.Composer

	// TopK is the number of candidates requested per query. Defaults to 5.
	TopK int

	// MinScore is the relevance threshold a candidate must reach to count
	// as usable evidence. Defaults to 0.7.
	MinScore float32
}

// Engine answers one query at a time. All state is read-only after
// construction, so a single Engine is safe for concurrent queries.
type Engine struct {
	// guard is the keyword guard.
	guard *guard.Guard

	// retriever fetches scored candidates.
	retriever rag.Retriever

	// composer produces the final Answer from qualifying candidates.
	composer *grounding.Composer

	// topK is the per-query candidate count.
	topK int

	// minScore is the relevance threshold.
	minScore float32
}

// New constructs an Engine from the provided Config.
func New(cfg *Config) (*Engine, error) {
	if cfg.Guard == nil {
		return nil, fmt.Errorf("engine: guard must not be nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("engine: retriever must not be nil")
	}
	if cfg.Composer == nil {
		return nil, fmt.Errorf("engine: composer must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	minScore := cfg.MinScore
	if minScore == 0 {
		minScore = 0.7
	}

	return &Engine{
		guard:     cfg.Guard,
		retriever: cfg.Retriever,
		composer:  cfg.Composer,
		topK:      topK,
		minScore:  minScore,
	}, nil
}

// MinScore returns the configured relevance threshold.
func (e *Engine) MinScore() float32 { return e.minScore }

// Answer runs one query through guard → retrieve → filter → compose.
//
// Terminal business outcomes (blocked, unknown, insufficient evidence, a
// grounded answer) are returned as an Answer with a nil error. Collaborator
// failures — *rag.EmbeddingError and *rag.RetrievalError — are returned as
// errors so the caller can retry or report a service problem; they are never
// silently downgraded to an empty answer.
func (e *Engine) Answer(ctx context.Context, query string) (*grounding.Answer, error) {
	log := logging.FromContext(ctx)

	// The guard runs first so denylisted content never reaches the
	// embedding or generation services and a blocked query costs nothing.
	if res := e.guard.Check(query); res.Blocked {
		log.Info("engine: query blocked", slog.String("term", res.Term))
		return &grounding.Answer{
			Kind:   grounding.KindBlocked,
			Reason: "security keyword detected",
		}, nil
	}

	hits, err := e.retriever.Retrieve(ctx, query, e.topK)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	// No candidates at all and candidates-below-threshold are distinct
	// outcomes: the former means the index had nothing near the query, the
	// latter that it had near-misses. The reason codes keep them apart.
	if len(hits) == 0 {
		log.Info("engine: no candidates returned")
		return &grounding.Answer{
			Kind:     grounding.KindUnknown,
			Reason:   "no similar content in the index",
			MaxScore: 0.0,
		}, nil
	}

	qualifying, maxScore := grounding.Filter(hits, e.minScore)
	log.Debug("engine: filtered candidates",
		slog.Int("candidates", len(hits)),
		slog.Int("qualifying", len(qualifying)),
		slog.Float64("max_score", float64(maxScore)),
	)

	return e.composer.Compose(ctx, query, qualifying, maxScore), nil
}

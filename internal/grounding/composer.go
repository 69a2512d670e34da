package grounding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/sentinelai/sentinel-go/internal/logging"
	"github.com/sentinelai/sentinel-go/internal/rag"
)

// systemPrompt is the grounding instruction sent with every generation call.
// The model must answer only from the supplied sources, refuse when they are
// insufficient, and cite sources by index.
const systemPrompt = `You are SentinelAI, an assistant that answers strictly from the supplied sources.

Rules:
- Answer ONLY using the numbered sources below. No outside knowledge.
- Cite every claim with its source index, e.g. [1] or [2].
- If the sources do not contain the answer, say so plainly: "I don't know based on the available sources."
- Be concise. A few sentences at most.`

// RefusalText is the fixed conservative sentence that replaces a generated
// answer flagged as suspect, and the standing phrasing for "I can't answer
// this from the index".
const RefusalText = "I don't know based on the available sources."

// Default composer limits.
const (
	// defaultMaxEvidence bounds how many qualifying candidates are cited.
	// Truncation is deliberate: it bounds prompt size and keeps citations
	// tractable for the end user.
	defaultMaxEvidence = 3

	// defaultExcerptCap bounds the length of each evidence excerpt returned
	// to the caller.
	defaultExcerptCap = 400

	// defaultMaxTokens caps the generated answer length.
	defaultMaxTokens = 800
)

// ChatModel is the single generation call the Composer depends on.
// *provider*-constructed eino models satisfy it; tests inject a fake.
type ChatModel interface {
	// Generate produces one assistant message for the given input messages.
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// ComposerConfig holds the construction parameters for a Composer.
type ComposerConfig struct {
	// Model is the generation collaborator. May be nil — the composer then
	// always produces the deterministic evidence listing (similarity mode).
	Model ChatModel

	// Heuristic validates generated text. Defaults to DefaultHeuristic.
	Heuristic Heuristic

	// MaxEvidence caps the cited candidate count. Defaults to 3.
	MaxEvidence int

	// ExcerptCap caps each evidence excerpt's length in runes. Defaults to 400.
	ExcerptCap int

	// MaxTokens caps the generated answer. Defaults to 800.
	MaxTokens int
}

// Composer builds grounded answers from qualifying evidence. It is the only
// component allowed to call the generation collaborator, and it never lets a
// generation failure or a suspect generation reach the caller as the answer.
type Composer struct {
	// model is the optional generation collaborator.
	model ChatModel

	// heuristic flags suspect generations.
	heuristic Heuristic

	// maxEvidence is the cited candidate cap.
	maxEvidence int

	// excerptCap is the per-excerpt length cap in runes.
	excerptCap int

	// maxTokens is the generation output cap.
	maxTokens int
}

// NewComposer constructs a Composer, applying defaults for unset fields.
func NewComposer(cfg *ComposerConfig) *Composer {
	if cfg == nil {
		cfg = &ComposerConfig{}
	}
	c := &Composer{
		model:       cfg.Model,
		heuristic:   cfg.Heuristic,
		maxEvidence: cfg.MaxEvidence,
		excerptCap:  cfg.ExcerptCap,
		maxTokens:   cfg.MaxTokens,
	}
	if c.heuristic == nil {
		c.heuristic = DefaultHeuristic
	}
	if c.maxEvidence <= 0 {
		c.maxEvidence = defaultMaxEvidence
	}
	if c.excerptCap <= 0 {
		c.excerptCap = defaultExcerptCap
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	return c
}

// Compose turns qualifying candidates into a terminal Answer. qualifying
// must already be threshold-filtered and ordered best-first (see Filter);
// maxScore is the best score observed before filtering and is stamped onto
// the Answer unchanged.
//
// Generation failures never propagate: the composer degrades to a
// deterministic listing of the selected evidence instead. A generated answer
// flagged by the hallucination heuristic is replaced with RefusalText.
func (c *Composer) Compose(ctx context.Context, query string, qualifying []rag.ScoredChunk, maxScore float32) *Answer {
	if len(qualifying) == 0 {
		return &Answer{
			Kind:     KindInsufficientEvidence,
			Reason:   "no candidate reached the relevance threshold",
			MaxScore: maxScore,
		}
	}

	// Select up to maxEvidence candidates, skipping those with nothing to
	// cite. Order is already best-first with ties in original index order.
	selected := make([]rag.ScoredChunk, 0, c.maxEvidence)
	for _, cand := range qualifying {
		if len(selected) == c.maxEvidence {
			break
		}
		if strings.TrimSpace(cand.Content) == "" {
			continue
		}
		selected = append(selected, cand)
	}
	if len(selected) == 0 {
		return &Answer{
			Kind:     KindNoConcreteContent,
			Reason:   "qualifying candidates carry no citable content",
			MaxScore: maxScore,
		}
	}

	answer := &Answer{
		Kind:     KindGrounded,
		MaxScore: maxScore,
		Evidence: c.evidenceList(selected),
	}

	if c.model == nil {
		// Similarity mode — no generation configured, list the evidence.
		answer.Text = fallbackText(selected)
		return answer
	}

	text, err := c.generate(ctx, query, selected)
	if err != nil {
		// Graceful degradation is the contract at this one point: the raw
		// collaborator error is never the answer.
		logging.FromContext(ctx).Warn("grounding: generation failed, using deterministic fallback",
			slog.Any("error", err),
		)
		answer.Text = fallbackText(selected)
		return answer
	}

	if c.heuristic(query, text) {
		logging.FromContext(ctx).Warn("grounding: generated answer flagged as suspect, overriding",
			slog.Int("answer_length", len(text)),
		)
		answer.Text = RefusalText
		return answer
	}

	answer.Text = text
	return answer
}

// generate invokes the generation collaborator with the grounding system
// prompt and the labeled context block. Temperature is pinned to zero — low
// variance is a correctness requirement here, not a style preference.
func (c *Composer) generate(ctx context.Context, query string, selected []rag.ScoredChunk) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(contextBlock(selected) + "\n\nQuestion: " + query),
	}

	resp, err := c.model.Generate(ctx, messages,
		model.WithTemperature(0),
		model.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("grounding: generate: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("grounding: generate returned empty content")
	}

	return strings.TrimSpace(resp.Content), nil
}

// contextBlock formats the selected candidates as indexed citation blocks.
func contextBlock(selected []rag.ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString("Sources:\n\n")
	for i, cand := range selected {
		fmt.Fprintf(&sb, "[%d] %s\n%s\n\n", i+1, cand.Title, cand.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// fallbackText deterministically summarises the selected evidence — titles
// and scores only, asserting nothing the index did not return.
func fallbackText(selected []rag.ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString("Closest matching sources:\n")
	for i, cand := range selected {
		fmt.Fprintf(&sb, "[%d] %s (score %.2f)\n", i+1, cand.Title, cand.Score)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// evidenceList converts the selected candidates into the evidence entries
// returned to the caller, truncating each excerpt to the configured cap.
func (c *Composer) evidenceList(selected []rag.ScoredChunk) []Evidence {
	evidence := make([]Evidence, 0, len(selected))
	for _, cand := range selected {
		evidence = append(evidence, Evidence{
			Title:   cand.Title,
			Score:   cand.Score,
			Excerpt: truncate(cand.Content, c.excerptCap),
			Source:  cand.Source,
			DocID:   cand.DocID,
			ChunkID: cand.ChunkID,
		})
	}
	return evidence
}

// truncate cuts s to at most n runes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

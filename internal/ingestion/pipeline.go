// Package ingestion implements the content ingestion pipeline.
// It produces knowledge chunks either by asking the chat model to generate
// them for a topic or by accepting pre-authored items in a batch, embeds
// every chunk, and upserts the results into the vector store. The pipeline
// is invoked by the `sentinel ingest` CLI command and the POST /api/ingest
// endpoint.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/sentinelai/sentinel-go/internal/rag"
)

// generationPrompt instructs the model to emit machine-readable chunks.
const generationPrompt = `You produce knowledge base content. Respond with a JSON array only, no prose
and no markdown fences. Each element must be an object with exactly these
keys: "title" (short heading), "content" (3-6 factual sentences), "tags"
(array of lowercase keywords). Produce between 3 and %d elements covering
distinct aspects of the topic.`

// maxGeneratedChunks caps how many model-produced chunks one topic run may
// write, regardless of what the model returns.
const maxGeneratedChunks = 20

// Item is one pre-authored unit of content supplied for batch ingestion.
type Item struct {
	// Title is the chunk heading.
	Title string `json:"title"`

	// Content is the chunk body text.
	Content string `json:"content"`

	// Tags are free-form keywords attached to the chunk.
	Tags []string `json:"tags"`
}

// ChatModel is the slice of the eino chat-model surface the pipeline needs
// for topic generation.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkTarget is the upper bound of chunks requested per topic.
	// Defaults to 5 if zero.
	ChunkTarget int

	// Language is stamped on every chunk. Defaults to "en".
	Language string

	// MaxTokens caps the generation call for topic mode. Defaults to 2000.
	MaxTokens int

	// Now returns the timestamp stamped on chunks. Defaults to time.Now.
	// Injectable for tests.
	Now func() time.Time
}

// Pipeline orchestrates the generate/accept → embed → upsert flow.
type Pipeline struct {
	// model generates chunks in topic mode. May be nil when only batch
	// ingestion is used.
	model ChatModel

	// embedder converts chunk content into dense vectors.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(chatModel ChatModel, embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkTarget <= 0 {
		cfg.ChunkTarget = 5
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Pipeline{
		model:    chatModel,
		embedder: embedder,
		store:    store,
		cfg:      cfg,
	}, nil
}

// IngestTopic asks the chat model to generate chunks for topic and writes
// them to the store. It returns the number of chunks written. Any failure
// along the way aborts the run; nothing is retried and no partial count is
// reported.
func (p *Pipeline) IngestTopic(ctx context.Context, topic string) (int, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return 0, fmt.Errorf("ingestion: topic must not be empty")
	}
	if p.model == nil {
		return 0, fmt.Errorf("ingestion: topic mode requires a chat model")
	}

	msgs := []*schema.Message{
		schema.SystemMessage(fmt.Sprintf(generationPrompt, p.cfg.ChunkTarget)),
		schema.UserMessage("Topic: " + topic),
	}
	out, err := p.model.Generate(ctx, msgs, model.WithMaxTokens(p.cfg.MaxTokens), model.WithTemperature(0.3))
	if err != nil {
		return 0, fmt.Errorf("ingestion: chunk generation failed for %q: %w", topic, err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return 0, fmt.Errorf("ingestion: model returned empty output for %q", topic)
	}

	items, err := parseItems(out.Content)
	if err != nil {
		return 0, fmt.Errorf("ingestion: parsing generated chunks for %q: %w", topic, err)
	}
	if len(items) == 0 {
		return 0, fmt.Errorf("ingestion: model returned no chunks for %q", topic)
	}
	if len(items) > maxGeneratedChunks {
		items = items[:maxGeneratedChunks]
	}

	docID := "doc-" + slug.Make(topic)
	return p.write(ctx, items, topic, docID, "generated:"+docID)
}

// Ingest writes pre-authored items to the store and returns the number of
// chunks written. Items with empty content are rejected up front so a batch
// is either written whole or not at all.
func (p *Pipeline) Ingest(ctx context.Context, items []Item) (int, error) {
	if len(items) == 0 {
		return 0, fmt.Errorf("ingestion: no items to ingest")
	}
	for i, it := range items {
		if strings.TrimSpace(it.Content) == "" {
			return 0, fmt.Errorf("ingestion: item %d has no content", i)
		}
	}
	return p.write(ctx, items, "", "", "api:manual")
}

// write stamps metadata on items, embeds them, and performs one batch upsert.
// When docID is empty each item gets its own slug-derived document identity.
// Chunk ordinals count within a document, not within the batch: a batch of
// unrelated single-item documents stamps every chunk as 1 of 1.
func (p *Pipeline) write(ctx context.Context, items []Item, topic, docID, source string) (int, error) {
	createdAt := p.cfg.Now().UTC().Format(time.RFC3339)

	docIDs := make([]string, len(items))
	docTotals := make(map[string]int, len(items))
	for i, it := range items {
		d := docID
		if d == "" {
			d = "doc-" + slug.Make(it.Title)
		}
		docIDs[i] = d
		docTotals[d]++
	}

	docSeen := make(map[string]int, len(docTotals))
	chunks := make([]rag.Chunk, 0, len(items))
	texts := make([]string, 0, len(items))
	for i, it := range items {
		d := docIDs[i]
		docSeen[d]++
		chunks = append(chunks, rag.Chunk{
			ID:         uuid.NewString(),
			Title:      strings.TrimSpace(it.Title),
			Content:    strings.TrimSpace(it.Content),
			Tags:       it.Tags,
			Topic:      topic,
			DocID:      d,
			ChunkID:    docSeen[d],
			ChunkCount: docTotals[d],
			CreatedAt:  createdAt,
			Source:     source,
			Language:   p.cfg.Language,
		})
		texts = append(texts, chunks[i].Content)
	}

	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("ingestion: embedding failed: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("ingestion: embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	if err := p.store.Upsert(ctx, chunks, embeddings); err != nil {
		return 0, fmt.Errorf("ingestion: upsert failed: %w", err)
	}

	return len(chunks), nil
}

// parseItems decodes a JSON array of items from model output, tolerating
// markdown code fences the model may wrap around it.
func parseItems(raw string) ([]Item, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
		raw = strings.TrimSpace(raw)
	}

	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decoding chunk array: %w", err)
	}
	return items, nil
}

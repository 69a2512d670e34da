package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Payload keys under which chunk fields are stored in Qdrant.
const (
	payloadTitle      = "title"
	payloadContent    = "content"
	payloadTags       = "tags"
	payloadTopic      = "topic"
	payloadDocID      = "doc_id"
	payloadChunkID    = "chunk_id"
	payloadChunkCount = "chunk_count"
	payloadCreatedAt  = "created_at"
	payloadSource     = "source"
	payloadLanguage   = "language"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it with cosine distance if necessary), and returns a
// ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	clientCfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already
// exist. Creation is a no-op when the collection is present, so repeated
// ingestion runs and concurrent startups never fail here.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// Upsert stores a batch of chunks with their pre-computed embeddings in one
// call with wait=true, so the batch is either fully acknowledged by the
// index or the whole operation fails.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("qdrant: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		tags := make([]any, 0, len(c.Tags))
		for _, t := range c.Tags {
			tags = append(tags, t)
		}

		payload := map[string]any{
			payloadTitle:      c.Title,
			payloadContent:    c.Content,
			payloadTags:       tags,
			payloadTopic:      c.Topic,
			payloadDocID:      c.DocID,
			payloadChunkID:    int64(c.ChunkID),
			payloadChunkCount: int64(c.ChunkCount),
			payloadCreatedAt:  c.CreatedAt,
			payloadSource:     c.Source,
			payloadLanguage:   c.Language,
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(c.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search and returns the top-k results
// with payloads included. Vectors are excluded from the response — they are
// never needed again after search.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]ScoredChunk, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	hits := make([]ScoredChunk, 0, len(results))
	for _, r := range results {
		hit := ScoredChunk{Score: r.Score}
		hit.ID = r.Id.GetUuid()
		if p := r.Payload; p != nil {
			hit.Chunk = chunkFromPayload(hit.ID, p)
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// chunkFromPayload reconstructs a Chunk from a Qdrant payload map. Missing
// keys yield zero values — old points written before a payload field existed
// remain readable.
func chunkFromPayload(id string, p map[string]*qdrant.Value) Chunk {
	c := Chunk{ID: id}

	if v, ok := p[payloadTitle]; ok {
		c.Title = v.GetStringValue()
	}
	if v, ok := p[payloadContent]; ok {
		c.Content = v.GetStringValue()
	}
	if v, ok := p[payloadTags]; ok {
		for _, item := range v.GetListValue().GetValues() {
			if s := item.GetStringValue(); s != "" {
				c.Tags = append(c.Tags, s)
			}
		}
	}
	if v, ok := p[payloadTopic]; ok {
		c.Topic = v.GetStringValue()
	}
	if v, ok := p[payloadDocID]; ok {
		c.DocID = v.GetStringValue()
	}
	if v, ok := p[payloadChunkID]; ok {
		c.ChunkID = int(v.GetIntegerValue())
	}
	if v, ok := p[payloadChunkCount]; ok {
		c.ChunkCount = int(v.GetIntegerValue())
	}
	if v, ok := p[payloadCreatedAt]; ok {
		c.CreatedAt = v.GetStringValue()
	}
	if v, ok := p[payloadSource]; ok {
		c.Source = v.GetStringValue()
	}
	if v, ok := p[payloadLanguage]; ok {
		c.Language = v.GetStringValue()
	}

	return c
}

// Delete removes chunks from the collection by their IDs.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}

	return nil
}

// Client exposes the underlying Qdrant client for readiness probes.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

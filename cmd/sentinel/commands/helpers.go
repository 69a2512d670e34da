package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/sentinelai/sentinel-go/internal/embedder"
	"github.com/sentinelai/sentinel-go/internal/engine"
	"github.com/sentinelai/sentinel-go/internal/grounding"
	"github.com/sentinelai/sentinel-go/internal/guard"
	"github.com/sentinelai/sentinel-go/internal/querylog"
	"github.com/sentinelai/sentinel-go/internal/rag"
)

// ragStack bundles the embedding and vector-store collaborators every
// query-path command needs. Close releases the Qdrant connection.
type ragStack struct {
	// embedder converts text into dense vectors.
	embedder rag.Embedder
	// store is the Qdrant-backed vector store.
	store *rag.QdrantStore
	// retriever combines embedder and store into the query-side search.
	retriever *rag.DefaultRetriever
}

// Close releases the underlying Qdrant connection.
func (s *ragStack) Close() {
	_ = s.store.Close()
}

// buildRAGStack validates the embedding configuration, connects to Qdrant,
// and wires up the retriever. The collection is created if absent, sized to
// the configured embedding backend's dimensionality.
func buildRAGStack(ctx context.Context, log *slog.Logger) (*ragStack, error) {
	if err := embedder.Preflight(log); err != nil {
		return nil, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("backend", embedder.Backend()))

	qdrantHost := getEnvOrDefault("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", "sentinel_docs")
	vectorSize := uint64(embedder.DefaultDimensions(embedder.Backend())) //nolint:gosec // dimensions are bounded

	store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       qdrantHost,
		Port:       qdrantPort,
		Collection: collection,
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", qdrantHost, qdrantPort, err)
	}
	log.Info("qdrant store ready",
		slog.String("host", qdrantHost),
		slog.Int("port", qdrantPort),
		slog.String("collection", collection),
	)

	retriever, err := rag.NewRetriever(emb, store, getEnvInt("TOP_K", 5))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}

	return &ragStack{embedder: emb, store: store, retriever: retriever}, nil
}

// buildGuard constructs the keyword guard from the environment. BLOCK_WORDS
// replaces the default denylist (comma-separated); BLOCK_OVERRIDE=true
// disables blocking entirely.
func buildGuard() *guard.Guard {
	if getEnvBool("BLOCK_OVERRIDE", false) {
		return guard.New(nil)
	}
	if raw := os.Getenv("BLOCK_WORDS"); raw != "" {
		return guard.New(strings.Split(raw, ","))
	}
	return guard.New(guard.DefaultDenylist)
}

// newEngine wires guard, retriever, and composer into a query engine.
// A nil chatModel yields a similarity-only engine that lists closest matches
// instead of generating an answer.
func newEngine(stack *ragStack, chatModel grounding.ChatModel) (*engine.Engine, error) {
	composer := grounding.NewComposer(&grounding.ComposerConfig{
		Model: chatModel,
	})

	eng, err := engine.New(&engine.Config{
		Guard:     buildGuard(),
		Retriever: stack.retriever,
		Composer:  composer,
		TopK:      getEnvInt("TOP_K", 5),
		MinScore:  getEnvFloat32("MIN_SCORE", 0.7),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return eng, nil
}

// openQueryLog opens the query outcome log. SENTINEL_QUERYLOG_DB overrides
// the default path (~/.sentinel/querylog.db); "disabled" turns logging off.
// Failures are non-fatal — the log is an operational aid, not a dependency.
func openQueryLog(log *slog.Logger) querylog.Log {
	dbPath := os.Getenv("SENTINEL_QUERYLOG_DB")
	if dbPath == "disabled" {
		log.Info("querylog: disabled via SENTINEL_QUERYLOG_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = querylog.DefaultDBPath()
		if err != nil {
			log.Warn("querylog: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	ql, err := querylog.Open(dbPath)
	if err != nil {
		log.Warn("querylog: failed to open, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("querylog: opened", slog.String("path", dbPath))
	return ql
}

// recordOutcome appends one entry to the query log if it is enabled.
func recordOutcome(ctx context.Context, ql querylog.Log, query string, ans *grounding.Answer, origin string) {
	if ql == nil || ans == nil {
		return
	}
	_ = ql.Append(ctx, querylog.Entry{
		Query:    query,
		Outcome:  string(ans.Kind),
		MaxScore: ans.MaxScore,
		Origin:   origin,
	})
}

// getEnvOrDefault returns the value of the environment variable or a fallback.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the environment variable or a fallback.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvFloat32 returns the float value of the environment variable or a fallback.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

// getEnvBool returns the boolean value of the environment variable or a fallback.
func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

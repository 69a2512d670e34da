package embedder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// OpenAI client
// ---------------------------------------------------------------------------

func TestOpenAIEmbedder_OrdersResultsByIndex(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		// Deliberately out of order.
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0.2}},
				{"index": 0, "embedding": []float32{0.1}},
			},
		})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "text-embedding-3-small"})

	got, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got[0][0] != 0.1 || got[1][0] != 0.2 {
		t.Errorf("expected results reordered by index, got %v", got)
	}
}

func TestOpenAIEmbedder_APIErrorIsSurfaced(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "invalid api key"}})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "bad", Model: "m"})

	_, err := e.Embed(context.Background(), []string{"x"})
	if err == nil || !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("expected API error message, got %v", err)
	}
}

func TestOpenAIEmbedder_AzureURLAndHeader(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotKey = r.Header.Get("api-key")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float32{0.5}}},
		})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL: srv.URL, APIKey: "azkey", Model: "embed-deploy",
		Azure: true, APIVersion: "2025-04-01-preview",
	})

	if _, err := e.Embed(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if gotPath != "/deployments/embed-deploy/embeddings?api-version=2025-04-01-preview" {
		t.Errorf("unexpected request path %q", gotPath)
	}
	if gotKey != "azkey" {
		t.Errorf("unexpected api-key header %q", gotKey)
	}
}

// ---------------------------------------------------------------------------
// Ollama client
// ---------------------------------------------------------------------------

func TestOllamaEmbedder_RoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2}},
		})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})

	got, err := e.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 1 || len(got[0]) != 2 {
		t.Errorf("unexpected embeddings %v", got)
	}
}

func TestOllamaEmbedder_CountMismatchIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "m"})

	if _, err := e.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

// ---------------------------------------------------------------------------
// Factory and preflight
// ---------------------------------------------------------------------------

func TestNewFromEnv_DefaultsToOpenAI(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "")
	t.Setenv("MODEL_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	e, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if _, ok := e.(*OpenAIEmbedder); !ok {
		t.Errorf("expected *OpenAIEmbedder, got %T", e)
	}
}

func TestNewFromEnv_OpenAIWithoutKeyFails(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := NewFromEnv(); err == nil {
		t.Fatal("expected error without an API key")
	}
}

func TestNewFromEnv_InheritsChatProvider(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "")
	t.Setenv("MODEL_PROVIDER", "ollama")

	e, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if _, ok := e.(*OllamaEmbedder); !ok {
		t.Errorf("expected *OllamaEmbedder, got %T", e)
	}
}

func TestNewFromEnv_UnknownBackendFails(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "duckdb")

	if _, err := NewFromEnv(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestDefaultDimensions(t *testing.T) {
	t.Setenv("EMBEDDING_DIMENSIONS", "")

	if got := DefaultDimensions("openai"); got != 1536 {
		t.Errorf("openai: expected 1536, got %d", got)
	}
	if got := DefaultDimensions("ollama"); got != 768 {
		t.Errorf("ollama: expected 768, got %d", got)
	}

	t.Setenv("EMBEDDING_DIMENSIONS", "3072")
	if got := DefaultDimensions("openai"); got != 3072 {
		t.Errorf("override: expected 3072, got %d", got)
	}
}

func TestPreflight_MissingKeyFails(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	if err := Preflight(slog.Default()); err == nil {
		t.Fatal("expected preflight failure without an API key")
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	if !looksLikeChatModel("gpt-4o-mini") {
		t.Error("expected gpt-4o-mini to be flagged")
	}
	if looksLikeChatModel("text-embedding-3-small") {
		t.Error("expected embedding model to pass")
	}
}

package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sentinelai/sentinel-go/internal/grounding"
	"github.com/sentinelai/sentinel-go/internal/ingestion"
	"github.com/sentinelai/sentinel-go/internal/querylog"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20.
	RateBurst int
	// APIKey is the Bearer token required on all /api/* routes. If empty,
	// authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics. If nil a private
	// registry is created, which keeps tests hermetic.
	Registry *prometheus.Registry
	// QueryLog receives one entry per answered query. Optional.
	QueryLog querylog.Log
}

// answerer is the interface handleAnalyze calls to run a query.
// *engine.Engine satisfies it; tests inject a fake.
type answerer interface {
	// Answer runs one query to a terminal outcome.
	Answer(ctx context.Context, query string) (*grounding.Answer, error)
}

// ingester is the interface handleIngest calls to write a batch of items.
// *ingestion.Pipeline satisfies it; tests inject a fake.
type ingester interface {
	// Ingest writes pre-authored items and returns the chunk count.
	Ingest(ctx context.Context, items []ingestion.Item) (int, error)
}

// Server is the HTTP server exposing the query and ingestion APIs.
type Server struct {
	// answer runs queries in full (generation) mode.
	answer answerer
	// similarity runs queries in similarity-only mode (no generation).
	similarity answerer
	// ingest writes batches into the index. Nil disables POST /api/ingest.
	ingest ingester
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// queryLog records per-query outcomes. May be nil.
	queryLog querylog.Log
	// stopRL stops the rate limiter's eviction goroutine on shutdown.
	stopRL func()
}

// analyzeRequest is the JSON body for POST /api/analyze.
type analyzeRequest struct {
	// Query is the user's question.
	Query string `json:"query"`
	// Mode selects the answer path: "answer" (default) generates a grounded
	// answer, "similarity" returns only the matching sources.
	Mode string `json:"mode,omitempty"`
}

// analyzeResponse is the JSON body returned by POST /api/analyze.
type analyzeResponse struct {
	// Alert classifies the outcome: blocked, unknown, insufficient-evidence,
	// no-concrete-content, or grounded.
	Alert string `json:"alert"`
	// Reason explains a refusal. Empty for grounded answers.
	Reason string `json:"reason,omitempty"`
	// MaxScore is the best candidate score seen, 0 when none existed.
	MaxScore float32 `json:"max_score"`
	// Answer is the grounded answer text. Empty for refusals and for
	// similarity mode.
	Answer string `json:"answer,omitempty"`
	// Evidence lists the cited sources. Always present — refusals that went
	// through retrieval carry an empty array, not a missing field.
	Evidence []grounding.Evidence `json:"evidence"`
}

// ingestRequest is the JSON body for POST /api/ingest.
type ingestRequest struct {
	// Items are the content units to write.
	Items []ingestion.Item `json:"items"`
}

// ingestResponse is the JSON body returned by POST /api/ingest.
type ingestResponse struct {
	// Status is "ok" on success.
	Status string `json:"status"`
	// Count is the number of chunks written.
	Count int `json:"count"`
}

// errorResponse is the JSON body for error results.
type errorResponse struct {
	// Error is a short operator-safe message. Raw collaborator errors are
	// logged, never returned.
	Error string `json:"error"`
}

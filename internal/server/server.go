// Package server implements the HTTP API in front of the query engine and
// the ingestion pipeline. It is started by the `sentinel serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentinelai/sentinel-go/internal/grounding"
	"github.com/sentinelai/sentinel-go/internal/ingestion"
	"github.com/sentinelai/sentinel-go/internal/logging"
	"github.com/sentinelai/sentinel-go/internal/querylog"
	"github.com/sentinelai/sentinel-go/internal/rag"
)

// New constructs a Server. answer handles full queries, similarity handles
// similarity-only queries (it may be the same engine), and ingest may be nil
// to disable the ingest endpoint.
func New(answer, similarity answerer, ingest ingester, cfg *Config) (*Server, error) {
	if answer == nil {
		return nil, fmt.Errorf("server: answer engine must not be nil")
	}
	if similarity == nil {
		similarity = answer
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		answer:     answer,
		similarity: similarity,
		ingest:     ingest,
		cfg:        cfg,
		log:        log,
		pingers:    cfg.Pingers,
		metrics:    newServerMetrics(reg),
		queryLog:   cfg.QueryLog,
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("server: SENTINEL_API_KEY not set, API authentication is disabled")
	}

	mux := http.NewServeMux()
	protected := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(h))
	}
	mux.Handle("POST /api/analyze", protected(s.handleAnalyze))
	mux.Handle("POST /api/ingest", protected(s.handleIngest))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, s.countRequests(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the server's root handler, including all middleware.
// Used by tests with httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server: listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAnalyze handles POST /api/analyze. It runs the query through the
// engine and returns the structured outcome. Collaborator failures map to
// 502 so callers can distinguish "service broken" from "no answer".
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return
	}

	eng := s.answer
	if req.Mode == "similarity" {
		eng = s.similarity
	}

	start := time.Now()
	ans, err := eng.Answer(r.Context(), req.Query)
	if err != nil {
		var embErr *rag.EmbeddingError
		var retErr *rag.RetrievalError
		switch {
		case errors.As(err, &embErr):
			log.Error("analyze: embedding backend failed", slog.Any("error", err))
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "embedding backend unavailable"})
		case errors.As(err, &retErr):
			log.Error("analyze: vector store failed", slog.Any("error", err))
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "vector store unavailable"})
		default:
			log.Error("analyze: query failed", slog.Any("error", err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		s.metrics.queriesTotal.WithLabelValues("error").Inc()
		return
	}

	outcome := string(ans.Kind)
	s.metrics.queriesTotal.WithLabelValues(outcome).Inc()
	s.metrics.queryDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	s.recordOutcome(r.Context(), req.Query, ans)

	resp := analyzeResponse{
		Alert:    outcome,
		Reason:   ans.Reason,
		MaxScore: ans.MaxScore,
		Evidence: ans.Evidence,
	}
	if resp.Evidence == nil {
		resp.Evidence = []grounding.Evidence{}
	}
	// Similarity mode reports sources only; the deterministic listing text
	// would duplicate the evidence array.
	if ans.Kind == grounding.KindGrounded && req.Mode != "similarity" {
		resp.Answer = ans.Text
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleIngest handles POST /api/ingest. The body may be either a bare JSON
// array of items or an {"items": [...]} object.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.ingest == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "ingestion is not configured"})
		return
	}

	items, err := decodeIngestBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if len(items) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no items to ingest"})
		return
	}

	count, err := s.ingest.Ingest(r.Context(), items)
	if err != nil {
		log.Error("ingest: batch failed", slog.Any("error", err), slog.Int("items", len(items)))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "ingestion failed"})
		return
	}

	s.metrics.ingestChunksTotal.Add(float64(count))
	log.Info("ingest: batch written", slog.Int("chunks", count))
	writeJSON(w, http.StatusOK, ingestResponse{Status: "ok", Count: count})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeIngestBody accepts both request shapes the endpoint supports.
func decodeIngestBody(r *http.Request) ([]ingestion.Item, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var items []ingestion.Item
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}

	var wrapped ingestRequest
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Items, nil
}

// recordOutcome appends the query outcome to the query log. Failures are
// logged and swallowed; the log is an operational aid, not part of the
// answer path.
func (s *Server) recordOutcome(ctx context.Context, query string, ans *grounding.Answer) {
	if s.queryLog == nil {
		return
	}
	err := s.queryLog.Append(ctx, querylog.Entry{
		Query:    query,
		Outcome:  string(ans.Kind),
		MaxScore: ans.MaxScore,
		Origin:   "api",
	})
	if err != nil {
		logging.FromContext(ctx).Warn("querylog: append failed", slog.Any("error", err))
	}
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

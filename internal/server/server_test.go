package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sentinelai/sentinel-go/internal/grounding"
	"github.com/sentinelai/sentinel-go/internal/ingestion"
	"github.com/sentinelai/sentinel-go/internal/querylog"
	"github.com/sentinelai/sentinel-go/internal/rag"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeAnswerer returns a canned answer or error.
type fakeAnswerer struct {
	ans   *grounding.Answer
	err   error
	calls int
}

func (f *fakeAnswerer) Answer(_ context.Context, _ string) (*grounding.Answer, error) {
	f.calls++
	return f.ans, f.err
}

// fakeIngester records the received batch.
type fakeIngester struct {
	count int
	err   error
	got   []ingestion.Item
}

func (f *fakeIngester) Ingest(_ context.Context, items []ingestion.Item) (int, error) {
	f.got = items
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

// failingPinger always reports unreachable.
type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return fmt.Errorf("connection refused") }
func (failingPinger) Name() string               { return "qdrant" }

func groundedAnswer() *grounding.Answer {
	return &grounding.Answer{
		Kind:     grounding.KindGrounded,
		Text:     "Enrollment opens in March [1].",
		MaxScore: 0.91,
		Evidence: []grounding.Evidence{
			{Title: "Course dates", Score: 0.91, Excerpt: "Enrollment opens in March."},
		},
	}
}

// newTestServer builds a Server with the given fakes and default config.
func newTestServer(t *testing.T, answer, similarity answerer, ing ingester, cfg *Config) *Server {
	t.Helper()
	s, err := New(answer, similarity, ing, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func doJSON(t *testing.T, s *Server, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// ---------------------------------------------------------------------------
// POST /api/analyze
// ---------------------------------------------------------------------------

func TestAnalyze_GroundedAnswer(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{ans: groundedAnswer()}, nil, nil, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/analyze", `{"query":"when does the course start?"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp analyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Alert != "grounded" {
		t.Errorf("expected alert grounded, got %q", resp.Alert)
	}
	if resp.Answer == "" {
		t.Error("expected answer text")
	}
	if resp.MaxScore != 0.91 {
		t.Errorf("expected max_score 0.91, got %v", resp.MaxScore)
	}
	if len(resp.Evidence) != 1 || resp.Evidence[0].Title != "Course dates" {
		t.Errorf("unexpected evidence %+v", resp.Evidence)
	}
}

func TestAnalyze_BlockedQuery(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{ans: &grounding.Answer{
		Kind:   grounding.KindBlocked,
		Reason: "security keyword detected",
	}}, nil, nil, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/analyze", `{"query":"x"}`, nil)

	var resp analyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Alert != "blocked" || resp.Reason == "" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Answer != "" {
		t.Error("blocked response must not carry an answer")
	}
}

func TestAnalyze_RefusalCarriesEmptyEvidenceArray(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{ans: &grounding.Answer{
		Kind:   grounding.KindUnknown,
		Reason: "no similar content in the index",
	}}, nil, nil, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/analyze", `{"query":"q"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"evidence":[]`) {
		t.Errorf("expected an empty evidence array in the body, got %s", rec.Body.String())
	}
}

func TestAnalyze_SimilarityModeUsesSimilarityEngineAndOmitsAnswer(t *testing.T) {
	t.Parallel()

	full := &fakeAnswerer{ans: groundedAnswer()}
	sim := &fakeAnswerer{ans: groundedAnswer()}
	s := newTestServer(t, full, sim, nil, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/analyze", `{"query":"q","mode":"similarity"}`, nil)

	if full.calls != 0 || sim.calls != 1 {
		t.Errorf("expected similarity engine only, got full=%d sim=%d", full.calls, sim.calls)
	}
	var resp analyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "" {
		t.Error("similarity mode must not include generated answer text")
	}
	if len(resp.Evidence) == 0 {
		t.Error("similarity mode must include evidence")
	}
}

func TestAnalyze_EmbeddingFailureIs502WithoutLeak(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{err: &rag.EmbeddingError{Err: fmt.Errorf("dial tcp 10.0.0.5: refused")}}, nil, nil, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/analyze", `{"query":"q"}`, nil)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Errorf("raw collaborator error leaked: %s", rec.Body.String())
	}
}

func TestAnalyze_MissingQueryIs400(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{ans: groundedAnswer()}, nil, nil, nil)

	for _, body := range []string{`{}`, `not json`} {
		rec := doJSON(t, s, http.MethodPost, "/api/analyze", body, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestAnalyze_RecordsQueryLog(t *testing.T) {
	t.Parallel()

	ql, err := querylog.Open(":memory:")
	if err != nil {
		t.Fatalf("querylog.Open: %v", err)
	}
	defer ql.Close()

	s := newTestServer(t, &fakeAnswerer{ans: groundedAnswer()}, nil, nil, &Config{QueryLog: ql})

	doJSON(t, s, http.MethodPost, "/api/analyze", `{"query":"when does it start?"}`, nil)

	entries, err := ql.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Outcome != "grounded" || entries[0].Origin != "api" {
		t.Errorf("unexpected query log entries %+v", entries)
	}
}

// ---------------------------------------------------------------------------
// POST /api/ingest
// ---------------------------------------------------------------------------

func TestIngest_BareArrayBody(t *testing.T) {
	t.Parallel()

	ing := &fakeIngester{count: 2}
	s := newTestServer(t, &fakeAnswerer{ans: groundedAnswer()}, nil, ing, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/ingest",
		`[{"title":"a","content":"x","tags":[]},{"title":"b","content":"y","tags":[]}]`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Count != 2 {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(ing.got) != 2 || ing.got[0].Title != "a" {
		t.Errorf("unexpected items %+v", ing.got)
	}
}

func TestIngest_WrappedBody(t *testing.T) {
	t.Parallel()

	ing := &fakeIngester{count: 1}
	s := newTestServer(t, &fakeAnswerer{ans: groundedAnswer()}, nil, ing, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/ingest",
		`{"items":[{"title":"a","content":"x"}]}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(ing.got) != 1 {
		t.Errorf("unexpected items %+v", ing.got)
	}
}

func TestIngest_EmptyBatchIs400(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{ans: groundedAnswer()}, nil, &fakeIngester{}, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/ingest", `[]`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestIngest_PipelineFailureIs502(t *testing.T) {
	t.Parallel()

	ing := &fakeIngester{err: fmt.Errorf("qdrant write failed")}
	s := newTestServer(t, &fakeAnswerer{ans: groundedAnswer()}, nil, ing, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/ingest", `[{"title":"a","content":"x"}]`, nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "qdrant write failed") {
		t.Errorf("raw pipeline error leaked: %s", rec.Body.String())
	}
}

func TestIngest_NotConfiguredIs501(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{ans: groundedAnswer()}, nil, nil, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/ingest", `[{"title":"a","content":"x"}]`, nil)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("expected 501, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Health and readiness
// ---------------------------------------------------------------------------

func TestHealth_AlwaysOK(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{ans: groundedAnswer()}, nil, nil, nil)

	rec := doJSON(t, s, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReady_FailingDependencyIs503(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{ans: groundedAnswer()}, nil, nil, &Config{
		Pingers: []Pinger{failingPinger{}},
	})

	rec := doJSON(t, s, http.MethodGet, "/api/ready", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var resp readyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ready || len(resp.Checks) != 1 || resp.Checks[0].Name != "qdrant" {
		t.Errorf("unexpected readiness response %+v", resp)
	}
}

// ---------------------------------------------------------------------------
// Auth and rate limiting
// ---------------------------------------------------------------------------

func TestAuth_RequiredWhenKeyConfigured(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{ans: groundedAnswer()}, nil, nil, &Config{APIKey: "secret-token"})

	rec := doJSON(t, s, http.MethodPost, "/api/analyze", `{"query":"q"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/analyze", `{"query":"q"}`,
		map[string]string{"Authorization": "Bearer wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/analyze", `{"query":"q"}`,
		map[string]string{"Authorization": "Bearer secret-token"})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with valid token, got %d", rec.Code)
	}
}

func TestAuth_HealthStaysOpen(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{ans: groundedAnswer()}, nil, nil, &Config{APIKey: "secret-token"})

	rec := doJSON(t, s, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected health endpoint to bypass auth, got %d", rec.Code)
	}
}

func TestRateLimit_SecondBurstRequestRejected(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{ans: groundedAnswer()}, nil, nil, &Config{
		RateLimit: 0.001,
		RateBurst: 1,
	})

	first := doJSON(t, s, http.MethodPost, "/api/analyze", `{"query":"q"}`, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := doJSON(t, s, http.MethodPost, "/api/analyze", `{"query":"q"}`, nil)
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

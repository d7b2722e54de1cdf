// File path: internal/api/server_test.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nlzhang/sitechat/internal/agent"
	"github.com/nlzhang/sitechat/internal/llm/providers"
	"github.com/nlzhang/sitechat/internal/retriever"
	"github.com/nlzhang/sitechat/internal/vector"
)

type stubProvider struct{}

func (stubProvider) Chat(_ context.Context, messages []providers.Message) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}
	return "reply to: " + messages[len(messages)-1].Content, nil
}

func (stubProvider) Embed(_ context.Context, input []string) ([][]float32, error) {
	vectors := make([][]float32, len(input))
	for i := range input {
		vectors[i] = []float32{1}
	}
	return vectors, nil
}

func (stubProvider) Name() string { return "stub" }

type stubStore struct {
	matches []vector.Match
}

func (s *stubStore) Query(context.Context, []float32, vector.QueryOptions) ([]vector.Match, error) {
	return s.matches, nil
}

func (s *stubStore) Upsert(context.Context, []vector.Item) error { return nil }

func (s *stubStore) DeleteByIDs(context.Context, []string) error { return nil }

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	store := &stubStore{matches: []vector.Match{{
		ID: "m1",
		Metadata: map[string]interface{}{
			retriever.MetaText:     "站点介绍内容。",
			retriever.MetaTitle:    "介绍",
			retriever.MetaURL:      "https://example.com/blog/intro",
			retriever.MetaLanguage: "zh",
		},
	}}}
	engine := retriever.New(store, nil)
	runner, err := agent.NewRunner(stubProvider{}, engine)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	srv, err := NewServer(stubProvider{}, engine, runner, nil, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func TestChatRespondsWithSources(t *testing.T) {
	srv := newTestServer(t, Config{})
	body := strings.NewReader(`{"message":"介绍一下本站"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", body)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer == "" {
		t.Fatal("expected an answer")
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(resp.Sources))
	}
	if resp.Provider != "stub" {
		t.Fatalf("provider = %q, want stub", resp.Provider)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	srv := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"message":"  "}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSearchReturnsContext(t *testing.T) {
	srv := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodGet, "/v1/search?q=intro&k=3", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp searchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Context == "" {
		t.Fatal("expected context text")
	}
	if resp.Language != "zh" {
		t.Fatalf("language = %q, want zh default", resp.Language)
	}
}

func TestSearchRejectsInvalidK(t *testing.T) {
	srv := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodGet, "/v1/search?q=intro&k=zero", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBearerTokenEnforced(t *testing.T) {
	srv := newTestServer(t, Config{APIToken: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/v1/search?q=intro", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/search?q=intro", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with token = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz should stay open, got %d", rec.Code)
	}
}

func TestIngestUnconfigured(t *testing.T) {
	srv := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestAgentRun(t *testing.T) {
	srv := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodPost, "/v1/agent/run", strings.NewReader(`{"goal":"summarize the site"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp agent.RunResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer == "" {
		t.Fatal("expected an agent answer")
	}
}

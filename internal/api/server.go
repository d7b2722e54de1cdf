// File path: internal/api/server.go
package api

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/nlzhang/sitechat/internal/agent"
	"github.com/nlzhang/sitechat/internal/common"
	"github.com/nlzhang/sitechat/internal/ingest"
	"github.com/nlzhang/sitechat/internal/llm/providers"
	"github.com/nlzhang/sitechat/internal/retriever"
)

type Server struct {
	router   chi.Router
	provider providers.Provider
	engine   *retriever.Engine
	agent    *agent.Runner
	pipeline *ingest.Pipeline
	apiToken string

	ingestRunning atomic.Bool
}

// Config carries the API-level settings; everything else arrives already
// constructed.
type Config struct {
	APIToken string
}

// LoadConfig reads API settings from the environment.
func LoadConfig() Config {
	return Config{APIToken: strings.TrimSpace(os.Getenv("SITECHAT_API_TOKEN"))}
}

func NewServer(provider providers.Provider, engine *retriever.Engine, runner *agent.Runner, pipeline *ingest.Pipeline, cfg Config) (*Server, error) {
	logger := common.Logger()
	if provider == nil {
		return nil, fmt.Errorf("provider required")
	}
	if engine == nil {
		return nil, fmt.Errorf("retrieval engine required")
	}
	srv := &Server{
		router:   chi.NewRouter(),
		provider: provider,
		engine:   engine,
		agent:    runner,
		pipeline: pipeline,
		apiToken: cfg.APIToken,
	}
	srv.routes()
	logger.Info("api: server ready", "provider", provider.Name(), "auth", srv.apiToken != "")
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/v1/chat", s.handleChat)
		r.Get("/v1/search", s.handleSearch)
		r.Post("/v1/ingest", s.handleIngest)
		r.Post("/v1/agent/run", s.handleAgent)
		r.Get("/v1/stats", s.handleStats)
		r.Get("/v1/logs", s.handleLogs)
	})
}

// requireToken enforces bearer auth when SITECHAT_API_TOKEN is configured.
// Without a configured token the API stays open, matching local development.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.apiToken)) != 1 {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid or missing token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// File path: internal/api/search_handler.go
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nlzhang/sitechat/internal/common"
	"github.com/nlzhang/sitechat/internal/common/telemetry"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("query parameter q required"))
		return
	}
	language := normalizeLanguage(r.URL.Query().Get("lang"))
	topK := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("k")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid k %q", raw))
			return
		}
		topK = parsed
	}
	logger.Debug("api: search request", "query", query, "language", language, "k", topK)

	result, err := s.retrieve(r.Context(), query, topK, language)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Query:    query,
		Language: language,
		Context:  result.Context,
		Sources:  result.Sources,
		Fallback: result.FallbackUsed,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, telemetry.Snapshot())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, common.LogEntries())
}

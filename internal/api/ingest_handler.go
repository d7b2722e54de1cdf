// File path: internal/api/ingest_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nlzhang/sitechat/internal/agent"
	"github.com/nlzhang/sitechat/internal/common"
)

// handleIngest runs one full ingestion pass. Only one pass may run at a
// time; overlapping requests get a 409.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("ingestion not configured"))
		return
	}
	if !s.ingestRunning.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, fmt.Errorf("ingestion already running"))
		return
	}
	defer s.ingestRunning.Store(false)

	logger.Info("api: ingestion started")
	report, err := s.pipeline.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("agent not configured"))
		return
	}
	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Goal == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("goal required"))
		return
	}
	opts := req.Options
	if opts == nil {
		opts = &agent.RunOptions{}
	}
	result, err := s.agent.Run(r.Context(), req.Goal, opts)
	if err != nil {
		logger.Error("api: agent run failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/rzbill/ensdb/internal/matching"
	"github.com/rzbill/ensdb/internal/runtime"
	logpkg "github.com/rzbill/ensdb/pkg/log"
)

// MatchController runs candidate lookups against the log.
type MatchController struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
}

// NewMatchController creates a new match controller.
func NewMatchController(rt *runtime.Runtime, logger logpkg.Logger) *MatchController {
	return &MatchController{rt: rt, logger: logger}
}

// RegisterRoutes registers match routes with the given mux.
func (c *MatchController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/match", c.handleMatch)
}

// handleMatch expects {"candidates": [...]} and echoes the candidates back
// with met counts filled in.
func (c *MatchController) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	res, err := c.rt.Match(r.Context(), req.Candidates)
	if err != nil {
		c.logger.WithContext(r.Context()).Error("match failed", logpkg.Err(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	if req.Candidates == nil {
		req.Candidates = []matching.Candidate{}
	}
	writeJSON(w, matchResp{Result: res, Candidates: req.Candidates})
}

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/query"
)

// QueryEngine is the subset of query.Engine the HTTP handler depends on.
type QueryEngine interface {
	Run(ctx context.Context, question string) (*query.Result, error)
}

// QueryHandler fronts the query router with a JSON request/response
// contract and a per-request deadline.
type QueryHandler struct {
	Engine   QueryEngine
	Deadline time.Duration
	Logger   *zap.Logger
}

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	Answer   string   `json:"answer"`
	Chunks   []string `json:"chunks,omitempty"`
	Entities []string `json:"entities,omitempty"`
}

func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	deadline := h.Deadline
	if deadline <= 0 {
		deadline = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), deadline)
	defer cancel()

	result, err := h.Engine.Run(ctx, req.Question)
	if err != nil {
		h.Logger.Warn("httpapi: query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	resp := queryResponse{Answer: result.Answer}
	for _, c := range result.Chunks {
		resp.Chunks = append(resp.Chunks, c.Context)
	}
	for _, e := range result.Entities {
		resp.Entities = append(resp.Entities, e.Name)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

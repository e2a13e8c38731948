package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/graphrapids/graphapi/internal/api/types"
)

// Readiness is what /readyz checks: the registry is loaded and its
// repository answers.
type Readiness interface {
	Ready() bool
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	ready Readiness
}

func NewHealthHandler(ready Readiness) *HealthHandler { return &HealthHandler{ready: ready} }

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: map[string]string{"status": "ok"}})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, types.APIResponse{Success: false, Error: &types.APIError{Code: "unavailable", Message: "collections not loaded"}})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.ready.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, types.APIResponse{Success: false, Error: &types.APIError{Code: "unavailable", Message: "store unreachable", Meta: map[string]any{"cause": err.Error()}}})
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: map[string]string{"status": "ready"}})
}

package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse reports service and cache status
type HealthResponse struct {
	Status    string    `json:"status"`
	Cache     string    `json:"cache"`
	Backend   string    `json:"backend"`
	Timestamp time.Time `json:"timestamp"`
}

// Health reports whether the cache store is reachable. The service keeps
// answering without its cache, so a failed ping is degraded, not down.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Cache:     "connected",
		Backend:   h.cfg.Cache.Backend,
		Timestamp: time.Now().UTC(),
	}
	if err := h.market.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Cache = "disconnected: " + err.Error()
	}

	h.jsonResponse(w, r, http.StatusOK, resp)
}

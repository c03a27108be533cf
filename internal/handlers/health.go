package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"reviewhub-console/internal/apiclient"
	"reviewhub-console/internal/models"
)

const serviceName = "reviewhub-console"

// BackendChecker reports the health of the backend API
type BackendChecker interface {
	HealthCheck(ctx context.Context) (*apiclient.HealthResponse, error)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	backend BackendChecker
	version string
	timeout time.Duration
}

// NewHealthHandler creates a new health handler; backend may be nil
func NewHealthHandler(backend BackendChecker, version string) *HealthHandler {
	return &HealthHandler{backend: backend, version: version, timeout: 5 * time.Second}
}

// Health handles GET /health - the gateway is degraded while the backend is
// unreachable
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Version:   h.version,
		Backend:   "unknown",
		Timestamp: time.Now().UTC(),
	}

	if h.backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		health, err := h.backend.HealthCheck(ctx)
		if err != nil {
			slog.Warn("Backend health check failed", "error", err)
			resp.Status = "degraded"
			resp.Backend = "unreachable"
			writeJSONResponse(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Backend = health.Status
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"reviewhub-console/internal/middleware"
)

// RateLimitStatusHandler reports and resets gateway rate limits
type RateLimitStatusHandler struct {
	rateLimiter *middleware.RateLimiter
}

// NewRateLimitStatusHandler creates a new rate limit status handler; a nil
// limiter answers 503
func NewRateLimitStatusHandler(rateLimiter *middleware.RateLimiter) *RateLimitStatusHandler {
	return &RateLimitStatusHandler{rateLimiter: rateLimiter}
}

// GetRateLimitStatus handles GET /v1/rate-limit/status
func (h *RateLimitStatusHandler) GetRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	if h.rateLimiter == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "rate_limiter_unavailable", "Rate limiter not available", nil)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.rateLimiter.Stats())
}

// ResetRateLimits handles POST /v1/rate-limit/reset
func (h *RateLimitStatusHandler) ResetRateLimits(w http.ResponseWriter, r *http.Request) {
	if h.rateLimiter == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "rate_limiter_unavailable", "Rate limiter not available", nil)
		return
	}

	slog.Info("Resetting rate limits", "remote_addr", r.RemoteAddr)
	h.rateLimiter.Reset()
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"message":   "Rate limits reset successfully",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

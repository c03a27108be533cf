package handlers

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"

	"reviewhub-console/internal/app"
	"reviewhub-console/internal/middleware"
	"reviewhub-console/internal/telemetry"
)

// RouterConfig carries everything the gateway routes are built from
type RouterConfig struct {
	Apps        *app.Apps
	Backend     BackendChecker
	Telemetry   *telemetry.Telemetry
	Instruments *telemetry.Instruments
	APIKeys     []string
	// RateLimiter, when set, limits every route but /health and /metrics
	RateLimiter     *middleware.RateLimiter
	DefaultPageSize int
	// RequestTimeout bounds every /v1 request except the long-poll feed
	RequestTimeout time.Duration
	Version        string
	Logger         *slog.Logger
}

// NewRouter builds the gateway router
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	storeHandler := NewStoreHandler(cfg.Apps, cfg.DefaultPageSize)
	eventsHandler := NewEventsHandler(cfg.Apps.Events, cfg.Logger)
	syncHandler := NewSyncHandler(cfg.Apps.Reconciler)
	healthHandler := NewHealthHandler(cfg.Backend, cfg.Version)
	rateLimitHandler := NewRateLimitStatusHandler(cfg.RateLimiter)

	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(telemetry.NewMiddleware(cfg.Instruments).Handler)
	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimitMiddleware(cfg.RateLimiter))
	}

	// Health check endpoint (no auth required)
	r.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)

	if metrics, ok := cfg.Telemetry.Handler(); ok {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	auth := middleware.AuthMiddleware(cfg.APIKeys)

	// The feed holds requests open for up to a minute, so it sits outside
	// the timeout
	r.Handle("/v1/events", auth(http.HandlerFunc(eventsHandler.GetEvents))).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(auth)
	if cfg.RequestTimeout > 0 {
		v1.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	// Specific routes first: mux matches in registration order
	v1.HandleFunc("/sync/force", syncHandler.ForceSync).Methods(http.MethodPost)
	v1.HandleFunc("/sync/status", syncHandler.Status).Methods(http.MethodGet)
	v1.HandleFunc("/rate-limit/status", rateLimitHandler.GetRateLimitStatus).Methods(http.MethodGet)
	v1.HandleFunc("/rate-limit/reset", rateLimitHandler.ResetRateLimits).Methods(http.MethodPost)
	v1.HandleFunc("/{app}/reset", storeHandler.ResetApp).Methods(http.MethodPost)
	v1.HandleFunc("/{app}/company", storeHandler.SelectCompany).Methods(http.MethodPost)
	v1.HandleFunc("/{app}/{store}/filtered", storeHandler.Filtered).Methods(http.MethodGet)
	v1.HandleFunc("/{app}/{store}/state", storeHandler.State).Methods(http.MethodGet)
	v1.HandleFunc("/{app}/{store}/bulk", storeHandler.Bulk).Methods(http.MethodPost)
	v1.HandleFunc("/{app}/{store}/error", storeHandler.ClearError).Methods(http.MethodDelete)
	v1.HandleFunc("/{app}/{store}/{id}", storeHandler.Update).Methods(http.MethodPut)
	v1.HandleFunc("/{app}/{store}/{id}", storeHandler.Remove).Methods(http.MethodDelete)
	v1.HandleFunc("/{app}/{store}", storeHandler.List).Methods(http.MethodGet)
	v1.HandleFunc("/{app}/{store}", storeHandler.Create).Methods(http.MethodPost)

	return r
}

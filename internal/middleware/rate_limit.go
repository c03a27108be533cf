package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"reviewhub-console/internal/models"
)

// RateLimitType selects what requests are counted against
type RateLimitType string

const (
	// RateLimitTypeClient counts per API key, or per IP without one
	RateLimitTypeClient RateLimitType = "client"
	RateLimitTypeGlobal RateLimitType = "global"
	RateLimitTypeBoth   RateLimitType = "both"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	Type              RateLimitType
	RequestsPerMinute int
	// MutationsPerMinute is the tighter budget for POST, PUT and DELETE
	MutationsPerMinute int
	Window             time.Duration
}

// ParseRateLimitType maps a configured value to a type, defaulting to client
func ParseRateLimitType(value string) RateLimitType {
	switch RateLimitType(strings.ToLower(strings.TrimSpace(value))) {
	case RateLimitTypeGlobal:
		return RateLimitTypeGlobal
	case RateLimitTypeBoth:
		return RateLimitTypeBoth
	case RateLimitTypeClient, "":
		return RateLimitTypeClient
	default:
		slog.Warn("Invalid rate limit type, using default", "value", value, "default", RateLimitTypeClient)
		return RateLimitTypeClient
	}
}

type window struct {
	count     int
	resetTime time.Time
}

// RateLimitInfo contains rate limit information for response headers
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetTime time.Time
}

// RateLimiter counts requests in fixed windows
type RateLimiter struct {
	config  RateLimitConfig
	mu      sync.Mutex
	clients map[string]*window
	global  map[bool]*window
	now     func() time.Time

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 600
	}
	if config.MutationsPerMinute <= 0 {
		config.MutationsPerMinute = config.RequestsPerMinute
	}
	if config.Type == "" {
		config.Type = RateLimitTypeClient
	}

	rl := &RateLimiter{
		config:        config,
		clients:       make(map[string]*window),
		global:        make(map[bool]*window),
		now:           time.Now,
		cleanupTicker: time.NewTicker(config.Window),
		stopCleanup:   make(chan struct{}),
	}
	go rl.cleanupExpiredEntries()

	slog.Info("Rate limiter initialized",
		"enabled", config.Enabled,
		"type", config.Type,
		"requests_per_minute", config.RequestsPerMinute,
		"mutations_per_minute", config.MutationsPerMinute,
		"window", config.Window.String())
	return rl
}

// Stop ends the cleanup loop
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanupTicker.Stop()
		close(rl.stopCleanup)
	})
}

func (rl *RateLimiter) cleanupExpiredEntries() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, w := range rl.clients {
				if now.After(w.resetTime) {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCleanup:
			return
		}
	}
}

// IsAllowed counts one request of client and reports whether it fits
func (rl *RateLimiter) IsAllowed(client string, mutation bool) (bool, RateLimitInfo) {
	if !rl.config.Enabled {
		return true, RateLimitInfo{Limit: -1, Remaining: -1}
	}

	limit := rl.config.RequestsPerMinute
	if mutation {
		limit = rl.config.MutationsPerMinute
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()

	var windows []*window
	if rl.config.Type != RateLimitTypeGlobal {
		key := client
		if mutation {
			key = "mutation:" + client
		}
		windows = append(windows, rl.windowFor(rl.clients, key, now))
	}
	if rl.config.Type != RateLimitTypeClient {
		w, ok := rl.global[mutation]
		if !ok || now.After(w.resetTime) {
			w = &window{resetTime: now.Add(rl.config.Window)}
			rl.global[mutation] = w
		}
		windows = append(windows, w)
	}

	// the most restrictive window decides
	info := RateLimitInfo{Limit: limit, Remaining: limit}
	for _, w := range windows {
		if remaining := limit - w.count; remaining < info.Remaining || info.ResetTime.IsZero() {
			info.Remaining = min(info.Remaining, remaining)
			info.ResetTime = w.resetTime
		}
	}
	if info.Remaining <= 0 {
		info.Remaining = 0
		return false, info
	}

	for _, w := range windows {
		w.count++
	}
	info.Remaining--
	return true, info
}

func (rl *RateLimiter) windowFor(m map[string]*window, key string, now time.Time) *window {
	w, ok := m[key]
	if !ok || now.After(w.resetTime) {
		w = &window{resetTime: now.Add(rl.config.Window)}
		m[key] = w
	}
	return w
}

// Stats returns current rate limiting statistics
func (rl *RateLimiter) Stats() map[string]any {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]any{
		"enabled":              rl.config.Enabled,
		"type":                 string(rl.config.Type),
		"requests_per_minute":  rl.config.RequestsPerMinute,
		"mutations_per_minute": rl.config.MutationsPerMinute,
		"window":               rl.config.Window.String(),
		"active_clients":       len(rl.clients),
	}
}

// Reset clears every counter
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.clients = make(map[string]*window)
	rl.global = make(map[bool]*window)
	slog.Info("Rate limits reset")
}

// RateLimitMiddleware rejects requests over budget with 429. /health and
// /metrics are never limited.
func RateLimitMiddleware(rateLimiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			client := clientKey(r)
			mutation := r.Method != http.MethodGet && r.Method != http.MethodHead
			allowed, info := rateLimiter.IsAllowed(client, mutation)
			setRateLimitHeaders(w, info)

			if !allowed {
				slog.Warn("Rate limit exceeded",
					"client", redact(client),
					"path", r.URL.Path,
					"method", r.Method,
					"limit", info.Limit,
					"reset_time", info.ResetTime.Format(time.RFC3339))
				writeRateLimitErrorResponse(w, info)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey identifies the caller by API key, else by address
func clientKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return "key:" + key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// redact keeps API keys out of logs
func redact(client string) string {
	if key, ok := strings.CutPrefix(client, "key:"); ok && len(key) > 4 {
		return "key:" + key[:4] + "..."
	}
	return client
}

func setRateLimitHeaders(w http.ResponseWriter, info RateLimitInfo) {
	if info.Limit < 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	if !info.ResetTime.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

func writeRateLimitErrorResponse(w http.ResponseWriter, info RateLimitInfo) {
	retryAfter := max(int(time.Until(info.ResetTime).Seconds()), 1)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(models.ErrorResponse{
		Code:    "rate_limit_exceeded",
		Message: "Rate limit exceeded. Please try again later.",
		Details: []models.ErrorDetail{
			{Field: "rate_limit", Issue: fmt.Sprintf("Exceeded %d requests per window", info.Limit)},
			{Field: "retry_after", Issue: fmt.Sprintf("Retry after %d seconds", retryAfter)},
		},
	})
}

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewhub-console/internal/models"
)

func newLimiter(t *testing.T, config RateLimitConfig) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(config)
	t.Cleanup(rl.Stop)
	return rl
}

func TestParseRateLimitType(t *testing.T) {
	assert.Equal(t, RateLimitTypeClient, ParseRateLimitType(""))
	assert.Equal(t, RateLimitTypeGlobal, ParseRateLimitType("GLOBAL"))
	assert.Equal(t, RateLimitTypeBoth, ParseRateLimitType("both"))
	assert.Equal(t, RateLimitTypeClient, ParseRateLimitType("bogus"))
}

func TestRateLimiter_ClientWindow(t *testing.T) {
	rl := newLimiter(t, RateLimitConfig{Enabled: true, RequestsPerMinute: 2, MutationsPerMinute: 1})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	allowed, info := rl.IsAllowed("a", false)
	assert.True(t, allowed)
	assert.Equal(t, 1, info.Remaining)
	allowed, _ = rl.IsAllowed("a", false)
	assert.True(t, allowed)
	allowed, info = rl.IsAllowed("a", false)
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)

	// separate budgets per client and for mutations
	allowed, _ = rl.IsAllowed("b", false)
	assert.True(t, allowed)
	allowed, _ = rl.IsAllowed("a", true)
	assert.True(t, allowed)
	allowed, _ = rl.IsAllowed("a", true)
	assert.False(t, allowed)

	now = now.Add(time.Minute + time.Second)
	allowed, _ = rl.IsAllowed("a", false)
	assert.True(t, allowed, "window expired")
}

func TestRateLimiter_Global(t *testing.T) {
	rl := newLimiter(t, RateLimitConfig{Enabled: true, Type: RateLimitTypeGlobal, RequestsPerMinute: 2})

	allowed, _ := rl.IsAllowed("a", false)
	assert.True(t, allowed)
	allowed, _ = rl.IsAllowed("b", false)
	assert.True(t, allowed)
	allowed, _ = rl.IsAllowed("c", false)
	assert.False(t, allowed)

	rl.Reset()
	allowed, _ = rl.IsAllowed("c", false)
	assert.True(t, allowed)
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := newLimiter(t, RateLimitConfig{Enabled: false, RequestsPerMinute: 1})
	for i := 0; i < 5; i++ {
		allowed, info := rl.IsAllowed("a", true)
		assert.True(t, allowed)
		assert.Equal(t, -1, info.Limit)
	}
	assert.Equal(t, false, rl.Stats()["enabled"])
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := newLimiter(t, RateLimitConfig{Enabled: true, RequestsPerMinute: 1})
	handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(path, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if key != "" {
			req.Header.Set(APIKeyHeader, key)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	w := serve("/v1/admin/companies", "key-one")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = serve("/v1/admin/companies", "key-one")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "rate_limit_exceeded", body.Code)
	assert.Len(t, body.Details, 2)

	assert.Equal(t, http.StatusOK, serve("/v1/admin/companies", "key-two").Code)
	assert.Equal(t, http.StatusOK, serve("/health", "key-one").Code)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "key:secr...", redact("key:secret-value"))
	assert.Equal(t, "ip:10.0.0.1", redact("ip:10.0.0.1"))
}

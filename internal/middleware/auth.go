package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"reviewhub-console/internal/models"
)

// APIKeyHeader carries the caller's API key
const APIKeyHeader = "X-API-Key"

// AuthMiddleware provides API key authentication against validKeys. An empty
// key list rejects every request.
func AuthMiddleware(validKeys []string) func(http.Handler) http.Handler {
	keys := make([]string, 0, len(validKeys))
	for _, key := range validKeys {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get(APIKeyHeader)
			if apiKey == "" {
				slog.Warn("Authentication failed: missing API key", "remote_addr", r.RemoteAddr)
				writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", "API key required", nil)
				return
			}

			if !isValidAPIKey(keys, apiKey) {
				slog.Warn("Authentication failed: invalid API key", "remote_addr", r.RemoteAddr)
				writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Invalid API key", nil)
				return
			}

			slog.Debug("Authentication successful", "remote_addr", r.RemoteAddr)
			next.ServeHTTP(w, r)
		})
	}
}

func isValidAPIKey(keys []string, apiKey string) bool {
	for _, key := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			return true
		}
	}
	return false
}

// writeErrorResponse is a helper function to write error responses
func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string, details []models.ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// Package testutils holds helpers shared by package tests that run against
// the mock backend.
package testutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewhub-console/internal/apiclient"
	"reviewhub-console/internal/mockapi"
	"reviewhub-console/internal/models"
)

// TestAPIKey is accepted by the backends started here
const TestAPIKey = "test-key"

// Backend is a running mock backend plus a client pointed at it
type Backend struct {
	Mock   *mockapi.Server
	Server *httptest.Server
	Client *apiclient.Client
}

// NewBackend starts a fixture-seeded mock backend for the test's lifetime
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	mock := mockapi.NewServer(mockapi.Options{APIKeys: []string{TestAPIKey}})
	server := httptest.NewServer(mock.Router())
	t.Cleanup(func() {
		server.Close()
		mock.Close()
	})

	client, err := apiclient.New(apiclient.Config{
		BaseURL: server.URL + "/api",
		Timeout: 5 * time.Second,
		APIKey:  TestAPIKey,
	})
	require.NoError(t, err)

	return &Backend{Mock: mock, Server: server, Client: client}
}

// CreateHTTPRequest creates an HTTP request with JSON body
func CreateHTTPRequest(method, url string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, url, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// CreateHTTPRequestWithAuth creates an HTTP request with authentication header
func CreateHTTPRequestWithAuth(method, url, apiKey string, body any) (*http.Request, error) {
	req, err := CreateHTTPRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", apiKey)
	return req, nil
}

// AssertJSONResponse asserts the status and unmarshals the JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "HTTP status code mismatch, body: %s", w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type mismatch")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), target), "Failed to unmarshal JSON response")
}

// AssertErrorResponse asserts that the response contains an error with expected details
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	t.Helper()
	var errorResp models.ErrorResponse
	AssertJSONResponse(t, w, expectedStatus, &errorResp)

	assert.Equal(t, expectedCode, errorResp.Code, "Error code mismatch")
	assert.NotEmpty(t, errorResp.Message, "Error message should not be empty")
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	timeoutChan := time.After(timeout)
	for {
		if condition() {
			return
		}
		select {
		case <-ticker.C:
		case <-timeoutChan:
			t.Fatalf("Timeout waiting for condition: %s", message)
		}
	}
}

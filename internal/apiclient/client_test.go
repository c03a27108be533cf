package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type company struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		BaseURL: server.URL + "/api/",
		Timeout: 5 * time.Second,
		Headers: map[string]string{"ngrok-skip-browser-warning": "true"},
		APIKey:  "secret",
	})
	require.NoError(t, err)
	return client
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url"})
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "/relative"})
	assert.Error(t, err)
}

func TestClient_Do_SendsCommonHeadersAndBody(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/companies", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "true", r.Header.Get("ngrok-skip-browser-warning"))
		assert.Equal(t, "secret", r.Header.Get(APIKeyHeader))
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(company{ID: 7, Name: "Acme", Status: "PENDING"})
	})

	var created company
	err := client.Post(context.Background(), "/companies", map[string]string{"name": "Acme"}, &created)

	require.NoError(t, err)
	assert.Equal(t, "Acme", gotBody["name"])
	assert.Equal(t, company{ID: 7, Name: "Acme", Status: "PENDING"}, created)
}

func TestClient_Do_EmptyBodyLeavesOutUntouched(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	out := company{ID: 1, Name: "unchanged"}
	err := client.Delete(context.Background(), "/companies/1", &out)

	require.NoError(t, err)
	assert.Equal(t, "unchanged", out.Name)
}

func TestClient_Do_ServerErrorMessages(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		expectedMessage string
		expectedCode    string
	}{
		{"message field", http.StatusBadRequest, `{"message":"Name is required","code":"validation_error"}`, "Name is required", "validation_error"},
		{"error field", http.StatusConflict, `{"error":"Company already exists"}`, "Company already exists", ""},
		{"no message", http.StatusInternalServerError, `{}`, "request failed with status 500", ""},
		{"non json body", http.StatusBadGateway, `<html>bad gateway</html>`, "request failed with status 502", ""},
		{"empty body", http.StatusNotFound, ``, "request failed with status 404", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})

			err := client.Get(context.Background(), "/companies/1", nil, nil)

			apiErr, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, KindServer, apiErr.Kind)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, tc.expectedMessage, apiErr.Message)
			assert.Equal(t, tc.expectedCode, apiErr.Code)
			assert.Equal(t, tc.expectedMessage, Message(err))
		})
	}
}

func TestClient_Do_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"Company not found"}`)
	})

	err := client.Get(context.Background(), "/companies/99", nil, nil)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsCanceled(err))
}

func TestClient_Do_DecodeError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id": "not-a-number"`)
	})

	var out company
	err := client.Get(context.Background(), "/companies/1", nil, &out)

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindDecode, apiErr.Kind)
}

func TestClient_Do_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := New(Config{BaseURL: url})
	require.NoError(t, err)

	err = client.Get(context.Background(), "/companies", nil, nil)

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, apiErr.Kind)
	assert.Equal(t, MessageNetwork, apiErr.Message)
}

func TestClient_Do_Canceled(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := client.Get(ctx, "/companies", nil, nil)
	assert.True(t, IsCanceled(err))
}

func TestClient_Do_RejectsRelativePath(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not be sent")
	})

	err := client.Get(context.Background(), "companies", nil, nil)
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindRequest, apiErr.Kind)
}

func TestClient_SessionCookieIsReplayed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			w.WriteHeader(http.StatusNoContent)
		default:
			cookie, err := r.Cookie("session")
			if err != nil || cookie.Value != "abc" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			io.WriteString(w, `{"status":"ok"}`)
		}
	})

	require.NoError(t, client.Post(context.Background(), "/auth/login", map[string]string{}, nil))
	var out map[string]string
	require.NoError(t, client.Get(context.Background(), "/me", nil, &out))
	assert.Equal(t, "ok", out["status"])
}

func TestClient_HealthCheck(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		io.WriteString(w, `{"status":"healthy","service":"mock-api"}`)
	})

	health, err := client.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

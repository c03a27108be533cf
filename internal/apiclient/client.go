package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"reviewhub-console/internal/telemetry"
)

const (
	// RequestIDHeader is sent with every request for server-side correlation
	RequestIDHeader = "X-Request-ID"
	// APIKeyHeader carries the optional API key
	APIKeyHeader = "X-API-Key"
)

// Config configures a Client
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	Headers     map[string]string
	APIKey      string
	HTTPClient  *http.Client
	Instruments *telemetry.Instruments
}

// Client is the single choke point for requests to the backend REST API.
// The base URL is fixed at construction.
type Client struct {
	baseURL     string
	headers     map[string]string
	apiKey      string
	httpClient  *http.Client
	instruments *telemetry.Instruments
}

// Request describes one call relative to the base URL
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// New creates a client with a cookie jar so the session cookie set by the
// backend is sent back on every later request
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	headers := make(map[string]string, len(cfg.Headers))
	for name, value := range cfg.Headers {
		headers[name] = value
	}

	return &Client{
		baseURL:     base,
		headers:     headers,
		apiKey:      cfg.APIKey,
		httpClient:  httpClient,
		instruments: cfg.Instruments,
	}, nil
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends the request and decodes a 2xx JSON body into out. An empty body
// leaves out untouched. Failures are always *Error.
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	start := time.Now()
	status, err := c.do(ctx, r, out)

	metrics := telemetry.RequestMetrics{
		Direction:  telemetry.Outbound,
		Method:     r.Method,
		Endpoint:   telemetry.NormalizePath(r.Path),
		StatusCode: status,
		Duration:   time.Since(start),
	}
	if err != nil {
		metrics.ErrorMessage = err.Error()
	}
	c.instruments.RecordRequest(ctx, metrics)

	return err
}

func (c *Client) do(ctx context.Context, r Request, out any) (int, error) {
	if !strings.HasPrefix(r.Path, "/") {
		return 0, &Error{Kind: KindRequest, Method: r.Method, Path: r.Path, Message: fmt.Sprintf("path must start with '/': %q", r.Path)}
	}

	target := c.baseURL + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var bodyReader io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return 0, &Error{Kind: KindRequest, Method: r.Method, Path: r.Path, Message: "failed to encode request body", Err: err}
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, bodyReader)
	if err != nil {
		return 0, &Error{Kind: KindRequest, Method: r.Method, Path: r.Path, Message: "failed to create request", Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range c.headers {
		req.Header.Set(name, value)
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	slog.Debug("Sending API request", "method", r.Method, "path", r.Path, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, &Error{Kind: KindCanceled, Method: r.Method, Path: r.Path, Message: MessageCanceled, Err: ctx.Err()}
		}
		slog.Warn("API request failed to reach server", "method", r.Method, "path", r.Path, "error", err)
		return 0, &Error{Kind: KindNetwork, Method: r.Method, Path: r.Path, Message: MessageNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return resp.StatusCode, &Error{Kind: KindCanceled, Method: r.Method, Path: r.Path, Message: MessageCanceled, Err: ctx.Err()}
		}
		return resp.StatusCode, &Error{Kind: KindNetwork, Status: resp.StatusCode, Method: r.Method, Path: r.Path, Message: MessageNetwork, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := serverError(r.Method, r.Path, resp.StatusCode, body)
		slog.Debug("API request rejected",
			"method", r.Method,
			"path", r.Path,
			"status", resp.StatusCode,
			"message", apiErr.Message,
			"request_id", requestID)
		return resp.StatusCode, apiErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, &Error{Kind: KindDecode, Status: resp.StatusCode, Method: r.Method, Path: r.Path, Message: "failed to decode response", Err: err}
	}

	return resp.StatusCode, nil
}

// Get issues a GET request
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post issues a POST request with a JSON body
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put issues a PUT request with a JSON body
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Patch issues a PATCH request with a JSON body
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete issues a DELETE request
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

// HealthResponse is the body of the backend health endpoint
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service,omitempty"`
	Version   string    `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// HealthCheck checks the health of the backend
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.Get(ctx, "/health", nil, &health); err != nil {
		return nil, err
	}
	if health.Status == "" {
		return nil, errors.New("health check returned no status")
	}
	return &health, nil
}

package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Direction tells whether a request was sent to the backend or served by the gateway
type Direction string

const (
	Outbound Direction = "outbound"
	Inbound  Direction = "inbound"
)

// Instruments records request and store metrics for the console
type Instruments struct {
	requestCounter    metric.Int64Counter
	errorCounter      metric.Int64Counter
	durationHistogram metric.Float64Histogram
	transitionCounter metric.Int64Counter
	discardedCounter  metric.Int64Counter
}

// RequestMetrics contains the telemetry data for one HTTP exchange
type RequestMetrics struct {
	Direction    Direction
	Method       string
	Endpoint     string
	StatusCode   int
	Duration     time.Duration
	ErrorMessage string
}

// NewInstruments creates all instruments from the global meter provider
func NewInstruments() (*Instruments, error) {
	meter := otel.Meter("reviewhub-console")
	t := &Instruments{}

	var err error
	t.requestCounter, err = meter.Int64Counter(
		"console_requests_total",
		metric.WithDescription("Total number of HTTP requests handled or issued by the console"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	t.errorCounter, err = meter.Int64Counter(
		"console_request_errors_total",
		metric.WithDescription("Total number of failed HTTP requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	t.durationHistogram, err = meter.Float64Histogram(
		"console_request_duration_seconds",
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	t.transitionCounter, err = meter.Int64Counter(
		"console_store_transitions_total",
		metric.WithDescription("Total number of applied entity store state transitions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transition counter: %w", err)
	}

	t.discardedCounter, err = meter.Int64Counter(
		"console_store_discarded_results_total",
		metric.WithDescription("Responses discarded because they were superseded or canceled"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discarded counter: %w", err)
	}

	return t, nil
}

// RecordRequest records count, errors and duration of one request
func (t *Instruments) RecordRequest(ctx context.Context, m RequestMetrics) {
	if t == nil {
		return
	}

	// Low-cardinality attributes only
	attrs := []attribute.KeyValue{
		attribute.String("direction", string(m.Direction)),
		attribute.String("method", m.Method),
		attribute.String("endpoint", m.Endpoint),
		attribute.Int("status_code", m.StatusCode),
	}

	t.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	t.durationHistogram.Record(ctx, m.Duration.Seconds(), metric.WithAttributes(attrs...))

	if m.StatusCode >= 400 || m.ErrorMessage != "" {
		errAttrs := append(attrs, attribute.String("error_type", CategorizeError(m.StatusCode, m.ErrorMessage)))
		t.errorCounter.Add(ctx, 1, metric.WithAttributes(errAttrs...))
		slog.Debug("Recorded request error",
			"direction", m.Direction,
			"method", m.Method,
			"endpoint", m.Endpoint,
			"status_code", m.StatusCode,
			"error", m.ErrorMessage)
	}
}

// RecordTransition counts one applied store transition
func (t *Instruments) RecordTransition(ctx context.Context, storeName, kind string) {
	if t == nil {
		return
	}
	t.transitionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", storeName),
		attribute.String("kind", kind),
	))
}

// RecordDiscarded counts one response dropped by fencing or cancellation
func (t *Instruments) RecordDiscarded(ctx context.Context, storeName, reason string) {
	if t == nil {
		return
	}
	t.discardedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", storeName),
		attribute.String("reason", reason),
	))
}

// CategorizeError groups similar errors to prevent high cardinality
func CategorizeError(statusCode int, errorMessage string) string {
	switch {
	case statusCode == 0 && strings.Contains(errorMessage, "connect"):
		return "network"
	case statusCode == 0 && strings.Contains(errorMessage, "canceled"):
		return "canceled"
	case statusCode == 0:
		return "other"
	case statusCode == 400 || statusCode == 422:
		return "bad_request"
	case statusCode == 401:
		return "unauthorized"
	case statusCode == 403:
		return "forbidden"
	case statusCode == 404:
		return "not_found"
	case statusCode == 409:
		return "conflict"
	case statusCode >= 500:
		return "server_error"
	default:
		return "http_" + strconv.Itoa(statusCode)
	}
}

// NormalizePath replaces id-like path segments with {id} for metric labels
func NormalizePath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if looksLikeID(segment) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

func looksLikeID(segment string) bool {
	if segment == "" {
		return false
	}
	if _, err := strconv.ParseInt(segment, 10, 64); err == nil {
		return true
	}
	// uuid-shaped invitation tokens
	return len(segment) == 36 && strings.Count(segment, "-") == 4
}

package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Exporter names accepted by InitMetrics
const (
	ExporterScraper = "scraper"
	ExporterGRPC    = "grpc"
	ExporterNone    = "none"
)

// Telemetry owns the OpenTelemetry meter provider for the process
type Telemetry struct {
	Provider *metric.MeterProvider
	exporter string
}

// InitMetrics installs a global meter provider for the requested exporter.
// "scraper" exposes a Prometheus registry served by Handler, "grpc" pushes to
// OTEL_EXPORTER_OTLP_METRICS_ENDPOINT (localhost:4317 when unset), "none"
// leaves the no-op provider in place.
func InitMetrics(ctx context.Context, exporter string) (*Telemetry, error) {
	t := &Telemetry{exporter: exporter}

	switch exporter {
	case ExporterNone, "":
		slog.Info("Metrics export disabled")
		return t, nil
	case ExporterScraper:
		slog.Info("Starting metrics with scraper exporter")
		promExporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		t.Provider = metric.NewMeterProvider(metric.WithReader(promExporter))
	case ExporterGRPC:
		slog.Info("Starting metrics with grpc exporter")
		grpcExporter, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create grpc exporter: %w", err)
		}
		t.Provider = metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(grpcExporter)))
	default:
		return nil, fmt.Errorf("unknown metrics exporter: %s", exporter)
	}

	otel.SetMeterProvider(t.Provider)
	return t, nil
}

// Handler returns the /metrics handler when the scrape exporter is active
func (t *Telemetry) Handler() (http.Handler, bool) {
	if t == nil || t.exporter != ExporterScraper {
		return nil, false
	}
	return promhttp.Handler(), true
}

// Close flushes and shuts down the meter provider
func (t *Telemetry) Close(ctx context.Context) {
	if t == nil || t.Provider == nil {
		return
	}
	if err := t.Provider.ForceFlush(ctx); err != nil {
		slog.Warn("Failed to flush metrics", "error", err)
	}
	if err := t.Provider.Shutdown(ctx); err != nil {
		slog.Warn("Failed to shut down meter provider", "error", err)
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reviewhub-console/internal/apiclient"
	"reviewhub-console/internal/app"
	"reviewhub-console/internal/config"
	"reviewhub-console/internal/events"
	"reviewhub-console/internal/handlers"
	"reviewhub-console/internal/middleware"
	viewsync "reviewhub-console/internal/sync"
	"reviewhub-console/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(opts *globalOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the console gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(opts, cmd.OutOrStdout())
			if port != "" {
				cfg.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runGateway(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}

func runGateway(ctx context.Context, cfg *config.Config) error {
	slog.Info("Starting ReviewHub console gateway", "version", version)

	tel, err := telemetry.InitMetrics(ctx, cfg.MetricsExporter)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	instruments, err := telemetry.NewInstruments()
	if err != nil {
		return fmt.Errorf("failed to initialize instruments: %w", err)
	}

	client, err := newClient(cfg, instruments)
	if err != nil {
		return err
	}

	queue := events.NewEventQueue(events.EventQueueConfig{
		MaxEvents: cfg.MaxEvents,
		Logger:    slog.Default(),
	})
	reconciler := viewsync.NewReconciler(slog.Default(), cfg.SyncInterval)
	apps := app.New(client, queue, reconciler, app.Options{
		PageSize:        cfg.DefaultPageSize,
		BulkConcurrency: cfg.BulkConcurrency,
		Instruments:     instruments,
		Logger:          slog.Default(),
	})

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Enabled:            cfg.RateLimitEnabled,
		Type:               middleware.ParseRateLimitType(cfg.RateLimitType),
		RequestsPerMinute:  cfg.RateLimitRequestsPerMinute,
		MutationsPerMinute: cfg.RateLimitMutationsPerMinute,
	})
	defer rateLimiter.Stop()

	router := handlers.NewRouter(handlers.RouterConfig{
		Apps:            apps,
		Backend:         client,
		Telemetry:       tel,
		Instruments:     instruments,
		APIKeys:         cfg.GatewayAPIKeys,
		RateLimiter:     rateLimiter,
		DefaultPageSize: cfg.DefaultPageSize,
		RequestTimeout:  cfg.RequestTimeout,
		Version:         version,
		Logger:          slog.Default(),
	})

	reconciler.Start(ctx)
	defer reconciler.Stop()

	slog.Debug("Available endpoints",
		"v1_endpoints", []string{
			"GET /v1/{app}/{store}?page=&size=&status=&search=",
			"GET /v1/{app}/{store}/state",
			"POST /v1/{app}/{store}",
			"PUT|DELETE /v1/{app}/{store}/{id}",
			"POST /v1/{app}/{store}/bulk",
			"DELETE /v1/{app}/{store}/error",
			"GET /v1/reviewer/reviews/filtered?rating=&keyword=&status=&page=",
			"POST /v1/{app}/reset",
			"POST /v1/{app}/company",
			"GET /v1/events?offset=&limit=&wait=",
			"POST /v1/sync/force",
			"GET /v1/sync/status",
			"GET /v1/rate-limit/status",
			"POST /v1/rate-limit/reset",
		},
		"system_endpoints", []string{"GET /health", "GET /metrics"})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serveUntilDone(ctx, server, tel.Close)
}

func newClient(cfg *config.Config, instruments *telemetry.Instruments) (*apiclient.Client, error) {
	client, err := apiclient.New(apiclient.Config{
		BaseURL:     cfg.APIBaseURL,
		Timeout:     cfg.RequestTimeout,
		Headers:     cfg.BypassHeaders,
		APIKey:      cfg.APIKey,
		Instruments: instruments,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, nil
}

// serveUntilDone runs server until ctx ends, then shuts it down gracefully
// and runs cleanup with the shutdown deadline
func serveUntilDone(ctx context.Context, server *http.Server, cleanup func(context.Context)) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server ready to accept connections", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}
	if cleanup != nil {
		cleanup(shutdownCtx)
	}

	slog.Info("Server exited")
	return nil
}

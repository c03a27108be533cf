package cli

import (
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reviewhub-console/internal/mockapi"
)

func newMockAPICommand(opts *globalOptions) *cobra.Command {
	var (
		port    string
		latency time.Duration
		apiKeys []string
	)

	cmd := &cobra.Command{
		Use:   "mock-api",
		Short: "Run the fixture-seeded mock backend",
		Long: `Mock-api serves in-memory fixtures for every entity under /api with the
paginated envelopes, error bodies and bulk endpoints of the real backend.
Data resets on restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(opts, cmd.OutOrStdout())
			if port == "" {
				port = cfg.MockAPIPort
			}
			if len(apiKeys) == 0 && cfg.APIKey != "" {
				apiKeys = []string{cfg.APIKey}
			}

			mock := mockapi.NewServer(mockapi.Options{
				APIKeys: apiKeys,
				Latency: latency,
			})
			defer mock.Close()

			slog.Info("Starting mock backend",
				"port", port,
				"latency", latency.String(),
				"auth_enabled", len(apiKeys) > 0)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := &http.Server{
				Addr:              ":" + port,
				Handler:           mock.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return serveUntilDone(ctx, server, nil)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides MOCK_API_PORT)")
	cmd.Flags().DurationVar(&latency, "latency", 0, "delay added to every response")
	cmd.Flags().StringSliceVar(&apiKeys, "api-key", nil, "API keys accepted in X-API-Key (default API_KEY when set, else no auth)")
	return cmd
}

// Package cli holds the cobra commands of the console binary.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"reviewhub-console/internal/config"
	"reviewhub-console/internal/output"
	"reviewhub-console/internal/utils"
)

// Set at build time via -ldflags "-X reviewhub-console/internal/cli.version=x.y.z"
var (
	version   = "0.1.0"
	buildTime = "dev"
)

const appName = "console"

type globalOptions struct {
	output   string
	logLevel string
}

// NewRootCommand builds the console command tree
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "ReviewHub console: gateway, CLI and mock backend for the review platform",
		Long: `Console hosts the admin, business and reviewer store containers of the
ReviewHub review platform.

It provides:
- serve: the HTTP gateway over every application's stores
- get: fetch one page of a store from the terminal
- mock-api: a fixture-seeded backend for development and tests`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", output.FormatTable, "output format: table, json, yaml")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	cmd.AddCommand(
		newServeCommand(opts),
		newMockAPICommand(opts),
		newGetCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig reads the environment and applies global flag overrides
func loadConfig(opts *globalOptions, logOutput io.Writer) *config.Config {
	cfg := config.LoadConfigTo(logOutput)
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
		utils.SetupLoggingTo(logOutput, cfg.LogLevel)
	}
	return cfg
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, version, buildTime)
		},
	}
}

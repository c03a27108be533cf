package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"reviewhub-console/internal/utils"
)

// Config holds all configuration for the console gateway, CLI and mock backend
type Config struct {
	Port            string
	MockAPIPort     string
	Environment     string
	LogLevel        string
	APIBaseURL      string
	APIKey          string
	GatewayAPIKeys  []string
	BypassHeaders   map[string]string
	RequestTimeout  time.Duration
	DefaultPageSize int
	BulkConcurrency int
	MetricsExporter string
	// SyncInterval is the period of background view reconciliation, 0 disables it
	SyncInterval time.Duration
	MaxEvents    int

	RateLimitEnabled            bool
	RateLimitType               string
	RateLimitRequestsPerMinute  int
	RateLimitMutationsPerMinute int
}

// LoadConfig loads configuration from .env file and environment variables.
// The base URL is resolved here once and treated as immutable afterwards.
func LoadConfig() *Config {
	return LoadConfigTo(os.Stdout)
}

// LoadConfigTo is LoadConfig with logs written to logOutput, so commands
// printing data on stdout can keep logs on stderr
func LoadConfigTo(logOutput io.Writer) *Config {
	// Does not override variables already present in the environment
	if err := godotenv.Load(); err != nil {
		slog.Debug("Could not load .env file, continuing with system environment variables only", "error", err)
	} else {
		slog.Info("Successfully loaded .env file")
	}

	cfg := &Config{
		Port:            getEnvWithDefault("PORT", "8090"),
		MockAPIPort:     getEnvWithDefault("MOCK_API_PORT", "8091"),
		Environment:     getEnvWithDefault("ENVIRONMENT", "development"),
		LogLevel:        getEnvWithDefault("LOG_LEVEL", "info"),
		APIBaseURL:      strings.TrimRight(getEnvWithDefault("API_BASE_URL", "http://localhost:8091/api"), "/"),
		APIKey:          getEnvWithDefault("API_KEY", ""),
		GatewayAPIKeys:  splitList(getEnvWithDefault("GATEWAY_API_KEYS", "console-key,demo")),
		BypassHeaders:   parseHeaders(getEnvWithDefault("API_BYPASS_HEADERS", "ngrok-skip-browser-warning=true")),
		RequestTimeout:  parseDuration(getEnvWithDefault("API_REQUEST_TIMEOUT", "30s"), 30*time.Second),
		DefaultPageSize: parseInt(getEnvWithDefault("DEFAULT_PAGE_SIZE", "10"), 10),
		BulkConcurrency: parseInt(getEnvWithDefault("BULK_CONCURRENCY", "4"), 4),
		MetricsExporter: getEnvWithDefault("METRICS_EXPORTER", "scraper"),
		SyncInterval:    parseInterval(getEnvWithDefault("SYNC_INTERVAL", "5m"), 5*time.Minute),
		MaxEvents:       parseInt(getEnvWithDefault("MAX_EVENTS_IN_QUEUE", "1000"), 1000),

		RateLimitEnabled:            parseBool(getEnvWithDefault("RATE_LIMIT_ENABLED", "true"), true),
		RateLimitType:               getEnvWithDefault("RATE_LIMIT_TYPE", "client"),
		RateLimitRequestsPerMinute:  parseInt(getEnvWithDefault("RATE_LIMIT_REQUESTS_PER_MINUTE", "600"), 600),
		RateLimitMutationsPerMinute: parseInt(getEnvWithDefault("RATE_LIMIT_MUTATIONS_PER_MINUTE", "120"), 120),
	}

	utils.SetupLoggingTo(logOutput, cfg.LogLevel)

	slog.Info("Configuration loaded",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"log_level", cfg.LogLevel,
		"api_base_url", cfg.APIBaseURL,
		"request_timeout", cfg.RequestTimeout.String(),
		"default_page_size", cfg.DefaultPageSize,
		"bulk_concurrency", cfg.BulkConcurrency,
		"metrics_exporter", cfg.MetricsExporter,
		"sync_interval", cfg.SyncInterval.String(),
		"rate_limit_enabled", cfg.RateLimitEnabled)

	return cfg
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnvWithDefault gets an environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseInt parses a positive integer, falling back to the default
func parseInt(value string, defaultValue int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		slog.Warn("Invalid integer value, using default", "value", value, "default", defaultValue)
		return defaultValue
	}
	return parsed
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		slog.Warn("Invalid duration value, using default", "value", value, "default", defaultValue.String())
		return defaultValue
	}
	return parsed
}

func parseBool(value string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on", "enabled":
		return true
	case "false", "0", "no", "off", "disabled":
		return false
	default:
		slog.Warn("Invalid boolean value, using default", "value", value, "default", defaultValue)
		return defaultValue
	}
}

// parseInterval is parseDuration that also accepts "0" or "off"
func parseInterval(value string, defaultValue time.Duration) time.Duration {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "0", "off":
		return 0
	}
	return parseDuration(value, defaultValue)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseHeaders reads "Name=value,Other=value" pairs
func parseHeaders(value string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range splitList(value) {
		name, val, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			slog.Warn("Ignoring malformed header pair", "pair", pair)
			continue
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(val)
	}
	return headers
}

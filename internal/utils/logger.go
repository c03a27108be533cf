package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ParseLevel maps a textual level to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured text logger writing to w with the given level
func NewLogger(w io.Writer, level LogLevel) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(string(level)),
	})
	return slog.New(handler)
}

// SetupLogging configures the global slog handler based on log level.
// Call once at startup; every package logs through the default logger.
func SetupLogging(logLevel string) {
	SetupLoggingTo(os.Stdout, logLevel)
}

// SetupLoggingTo is SetupLogging writing to w
func SetupLoggingTo(w io.Writer, logLevel string) {
	slog.SetDefault(NewLogger(w, LogLevel(logLevel)))
}

// GetLogLevelFromEnv gets the log level from the LOG_LEVEL environment variable
func GetLogLevelFromEnv(defaultLevel LogLevel) LogLevel {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return defaultLevel
	}
}

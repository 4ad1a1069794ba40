// Package log sets up structured logging and defines the shared field
// vocabulary used across components.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldBackend     = "backend"
	FieldError       = "error"
	FieldPort        = "port"
	FieldStatementID = "statement_id"
	FieldCount       = "count"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentBackend = "backend"
	ComponentFinance = "finance"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentIngest  = "ingest"
	ComponentSheets  = "sheets"
)

// New builds the application logger writing text lines to stdout and
// installs it as the slog default.
func New(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// ForComponent derives a logger tagged with a component name.
func ForComponent(base *slog.Logger, component string) *slog.Logger {
	return base.With(FieldComponent, component)
}

// LevelFromEnv maps a LOG_LEVEL value to a slog level, defaulting to Info.
func LevelFromEnv(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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

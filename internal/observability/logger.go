// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package observability builds the zerolog logger and Prometheus metrics used
// across a harvest run.
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/faculty-papers/pkg/types"
)

// DefaultLoggingConfig returns console logging at info level on stderr.
func DefaultLoggingConfig() types.LoggingConfig {
	return types.LoggingConfig{
		Level:  "info",
		Format: "console",
		Output: "stderr",
	}
}

// NewLogger creates a zerolog logger from cfg. If w is non-nil it replaces
// the configured output, which tests use to capture log lines.
func NewLogger(cfg types.LoggingConfig, w io.Writer) zerolog.Logger {
	output := w
	if output == nil {
		switch strings.ToLower(cfg.Output) {
		case "stdout":
			output = os.Stdout
		default:
			output = os.Stderr
		}
	}

	if strings.ToLower(cfg.Format) == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// parseLevel converts a string log level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithRun tags a logger with the run ID.
func WithRun(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

// WithWorker tags a logger with the worker group index.
func WithWorker(logger zerolog.Logger, group int) zerolog.Logger {
	return logger.With().Int("group", group).Logger()
}

// WithSubject tags a logger with the subject being processed.
func WithSubject(logger zerolog.Logger, subject string) zerolog.Logger {
	return logger.With().Str("subject", subject).Logger()
}

package infra

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. level overrides the per-environment
// default when it names a zerolog level.
func NewLogger(appEnv, level string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).
		Level(logLevel(appEnv, level)).
		With().
		Timestamp().
		Str("service", "genstudio").
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger
}

func logLevel(appEnv, raw string) zerolog.Level {
	if raw = strings.TrimSpace(raw); raw != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil && lvl != zerolog.NoLevel {
			return lvl
		}
	}
	if appEnv == "development" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// Logger is the logger type shared across packages.
type Logger = zerolog.Logger

// Package logger builds the process-wide zerolog logger for the asyncproc binary.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvProduction selects JSON output. Any other APP_ENV value gets the console writer.
const EnvProduction = "production"

// New returns a timestamped logger writing to w at level.
// JSON is used for production, a human-readable console writer otherwise.
func New(w io.Writer, env string, level zerolog.Level) zerolog.Logger {
	if env != EnvProduction {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// FromEnv builds a stderr logger from APP_ENV and LOG_LEVEL.
// An empty or unparsable LOG_LEVEL means info.
func FromEnv() zerolog.Logger {
	return New(os.Stderr, os.Getenv("APP_ENV"), ParseLevel(os.Getenv("LOG_LEVEL")))
}

// ParseLevel converts a level name to a zerolog.Level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Package logging sets up the engine's structured logger, adapted from
// adred-codev-ws_poc's src/logger.go: same Level/Format enums and the
// same JSON-for-shipping vs. pretty-for-a-terminal split, renamed to
// tagengine's own service name and defaults.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level is the minimum severity a logger emits.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects the logger's output encoding.
type Format string

const (
	// FormatJSON is structured, machine-parseable output.
	FormatJSON Format = "json"
	// FormatPretty is a human-readable console writer, for local runs.
	FormatPretty Format = "pretty"
)

// Config configures New.
type Config struct {
	Level  Level
	Format Format
}

// New builds a zerolog.Logger tagged with service=tagengine.
func New(cfg Config) zerolog.Logger {
	var output io.Writer = os.Stderr

	var level zerolog.Level
	switch cfg.Level {
	case LevelDebug:
		level = zerolog.DebugLevel
	case LevelWarn:
		level = zerolog.WarnLevel
	case LevelError:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	if cfg.Format == FormatPretty {
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).Level(level).With().
		Timestamp().
		Str("service", "tagengine").
		Logger()
}

// Discard returns a logger that writes nowhere, used as the Engine's
// default when the embedder supplies none.
func Discard() zerolog.Logger {
	return zerolog.New(io.Discard)
}

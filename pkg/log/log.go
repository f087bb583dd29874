package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is shared by every package. It is replaced by Init.
var Logger = New(Config{Level: zerolog.InfoLevel, JSONOutput: true})

// Config selects the level, encoding and destination of log output
type Config struct {
	Level      zerolog.Level
	JSONOutput bool
	// Output defaults to stderr
	Output io.Writer
}

// ParseLevel accepts debug, info, warn and error in any case. Anything else,
// including trace and the disabling levels, maps to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.InfoLevel
	}
	switch lvl {
	case zerolog.DebugLevel, zerolog.InfoLevel, zerolog.WarnLevel, zerolog.ErrorLevel:
		return lvl
	default:
		return zerolog.InfoLevel
	}
}

// New builds a timestamped logger for cfg without touching package state
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if !cfg.JSONOutput {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
}

// Init replaces the shared Logger. Child loggers derived before the call keep
// their old destination.
func Init(cfg Config) {
	Logger = New(cfg)
}

// WithComponent derives a logger tagged with the emitting component
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithWorkerID derives a logger tagged with the worker a message is about
func WithWorkerID(workerID string) zerolog.Logger {
	return Logger.With().Str("worker_id", workerID).Logger()
}

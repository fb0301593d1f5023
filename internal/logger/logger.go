// Package logger builds the zerolog.Logger handed to every component.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger for env at the given level.
// Production writes JSON lines to stdout; anything else gets colourised
// console output on stderr. Both include the caller's file and line.
// An unknown level falls back to info.
func New(env, level string) zerolog.Logger {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if env == "production" {
		out = os.Stdout
	}
	return newWithWriter(out, level)
}

func newWithWriter(out io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Logger()
}

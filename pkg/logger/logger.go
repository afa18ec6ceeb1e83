// Package logger builds the service's structured logger
package logger

import (
	"io"
	"log/slog"
	"os"
)

// New creates a JSON structured logger that writes to stdout. Debug lowers
// the level to slog.LevelDebug.
func New(debug bool) *slog.Logger {
	return NewWithWriter(os.Stdout, debug)
}

// NewWithWriter is New with an explicit destination
func NewWithWriter(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", "evmarket")
}

// Module returns a child logger tagged with a module name
func Module(l *slog.Logger, name string) *slog.Logger {
	return l.With("module", name)
}

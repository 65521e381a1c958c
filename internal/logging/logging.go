// Package logging builds the slog loggers used by the sampler and its CLI.
package logging

import (
	"io"
	"log/slog"
)

func level(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// New returns a text logger writing to w. Verbose enables debug output such
// as per-class pool sizes; otherwise only lifecycle events are logged.
func New(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level(verbose)}))
}

// NewJSON is New with JSON output, for collecting logs from batch runs.
func NewJSON(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level(verbose)}))
}

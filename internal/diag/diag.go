// Package diag provides the library's own diagnostic logging. Nothing in the
// capture/report path may surface an error to the host application, so
// delivery failures and recovered internal faults are downgraded to log
// lines emitted through a logger from this package.
package diag

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a text slog.Logger writing to w at the given level.
func NewLogger(w io.Writer, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler)
}

// Default returns a logger writing diagnostic lines to standard error.
func Default() *slog.Logger {
	return NewLogger(os.Stderr, "info")
}

// ParseLevel maps a level name onto a slog.Leveler, defaulting to info.
func ParseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

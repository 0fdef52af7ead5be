package cli

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the CLI logger. Verbosity lowers the level to debug, quiet
// raises it to warn; format is "text" or "json".
func NewLogger(w io.Writer, verbose int, quiet bool, format string) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelWarn
	case verbose > 0:
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: verbose > 1}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

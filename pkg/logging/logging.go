package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds a logger writing to w. format "json" selects the JSON handler;
// anything else uses the text handler.
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Init creates a stderr logger and installs it as the slog default.
func Init(format string, level slog.Level) *slog.Logger {
	logger := New(os.Stderr, format, level)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

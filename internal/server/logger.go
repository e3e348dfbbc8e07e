// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// setupLogger configures the global slog logger.
func setupLogger(level, format string) {
	slog.SetDefault(newLogger(os.Stdout, level, format))
}

// newLogger writes JSON lines for format "json" and colored text otherwise.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	logLevel := parseLevel(level)

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = tint.NewHandler(w, &tint.Options{Level: logLevel, TimeFormat: time.DateTime})
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

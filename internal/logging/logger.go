// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/pterm/pterm"
)

var (
	globalMu     sync.RWMutex
	globalLogger *slog.Logger
)

// ParseLevel converts a config level name to a slog level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// New builds a structured logger writing to w. Format "json" produces one JSON
// object per line; anything else renders through pterm for the terminal.
func New(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	}
	pl := pterm.DefaultLogger.
		WithWriter(w).
		WithLevel(ptermLevel(lvl))
	return slog.New(pterm.NewSlogHandler(pl))
}

func ptermLevel(l slog.Level) pterm.LogLevel {
	switch {
	case l <= slog.LevelDebug:
		return pterm.LogLevelDebug
	case l <= slog.LevelInfo:
		return pterm.LogLevelInfo
	case l <= slog.LevelWarn:
		return pterm.LogLevelWarn
	default:
		return pterm.LogLevelError
	}
}

// Initialize sets the global logger used by Get and the package-level helpers.
// Logs go to stderr so command output on stdout stays machine-readable.
func Initialize(level, format string) *slog.Logger {
	l := New(os.Stderr, level, format)
	SetDefault(l)
	return l
}

// SetDefault replaces the global logger.
func SetDefault(l *slog.Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// Get returns the global logger instance.
func Get() *slog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

func Debug(msg string, args ...any) { Get().Debug(msg, args...) }
func Info(msg string, args ...any)  { Get().Info(msg, args...) }

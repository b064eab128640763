// Package logging holds the process-wide operational logger. Cache and store
// components log backend degradation through it; nothing here is on the
// request path beyond a pointer load.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	opLogger atomic.Pointer[slog.Logger]
	logLevel = new(slog.LevelVar)
)

func init() {
	logLevel.Set(slog.LevelInfo)
	opLogger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

// Op returns the operational logger.
func Op() *slog.Logger {
	return opLogger.Load()
}

// SetLogger replaces the operational logger. Tests use it to capture output.
func SetLogger(l *slog.Logger) {
	if l != nil {
		opLogger.Store(l)
	}
}

func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

// SetLevelFromString sets the level from "debug", "info", "warn" or "error".
// Unknown values leave the level unchanged and report false.
func SetLevelFromString(level string) bool {
	switch strings.ToLower(level) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "info":
		logLevel.Set(slog.LevelInfo)
	case "warn", "warning":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		return false
	}
	return true
}

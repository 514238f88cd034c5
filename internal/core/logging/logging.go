// Package logging builds the slog loggers used across launchrules.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Levels beyond slog's built-in four.
const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// New returns a logger writing to w. format is "json" or "text"; level is
// parsed with ParseLevel. The returned LevelVar adjusts the level at runtime.
func New(level, format string, w io.Writer) (*slog.Logger, *slog.LevelVar, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	programLevel := new(slog.LevelVar)
	programLevel.Set(lvl)
	opts := &slog.HandlerOptions{
		Level:       programLevel,
		ReplaceAttr: replaceLevelNames,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, nil, fmt.Errorf("unknown log format: %s", format)
	}
	return slog.New(handler), programLevel, nil
}

// ParseLevel maps a level name to a slog.Level, case-insensitively.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToUpper(levelStr) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", levelStr)
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// replaceLevelNames prints TRACE and FATAL instead of DEBUG-4 and ERROR+4.
func replaceLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	switch a.Value.Any().(slog.Level) {
	case LevelTrace:
		a.Value = slog.StringValue("TRACE")
	case LevelFatal:
		a.Value = slog.StringValue("FATAL")
	}
	return a
}

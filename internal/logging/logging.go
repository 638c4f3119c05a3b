// Package logging provides structured logging on top of log/slog.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

var defaultLogger *slog.Logger

func init() {
	Init(os.Stderr, LevelInfo, FormatText)
}

// Level represents a log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps "debug", "info", "warn" and "error" to a Level. Unknown
// names give LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format represents a log output format.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat maps "json" to FormatJSON and anything else to FormatText.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Init replaces the global logger. Logs go to w so that command output on
// stdout stays clean.
func Init(w io.Writer, level Level, format Format) {
	var slogLevel slog.Level
	switch level {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// Logger returns the global logger.
func Logger() *slog.Logger {
	return defaultLogger
}

func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// Assignment logs the outcome of tagging a selection of an interview.
func Assignment(interview string, paragraph int, category string, tokens int, err error) {
	if err != nil {
		defaultLogger.Warn("assignment rejected",
			"interview", interview,
			"paragraph", paragraph,
			"category", category,
			"tokens", tokens,
			"error", err.Error(),
		)
		return
	}
	defaultLogger.Info("assignment applied",
		"interview", interview,
		"paragraph", paragraph,
		"category", category,
		"tokens", tokens,
	)
}

// HTTPRequest logs a served HTTP request.
func HTTPRequest(method, path string, status int, duration time.Duration) {
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	} else if status >= 400 {
		level = slog.LevelWarn
	}
	defaultLogger.Log(context.Background(), level, "http request",
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", duration.Milliseconds(),
	)
}

// Persistence logs a project load or save.
func Persistence(op, path string, duration time.Duration, err error) {
	if err != nil {
		defaultLogger.Error("persistence failed",
			"op", op,
			"path", path,
			"error", err.Error(),
		)
		return
	}
	defaultLogger.Debug("persistence",
		"op", op,
		"path", path,
		"duration_ms", duration.Milliseconds(),
	)
}

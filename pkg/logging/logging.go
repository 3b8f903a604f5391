// Package logging configures structured logging for log/slog: colored tint
// output for terminals and JSON for log collectors.
//
// Usage:
//
//	logging.Setup()                                  // from LOG_LEVEL and LOG_FORMAT env
//	logging.SetupWith(slog.LevelDebug, logging.JSON) // explicit override
//
// Environment variables:
//
//	LOG_LEVEL: debug, info, warn, error (default: info)
//	LOG_FORMAT: text, json (default: text)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Format selects the handler.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
)

// Setup configures the default logger from LOG_LEVEL and LOG_FORMAT.
func Setup() *slog.Logger {
	return SetupWith(ParseLevel(os.Getenv("LOG_LEVEL")), ParseFormat(os.Getenv("LOG_FORMAT")))
}

// SetupWith configures the default logger at the given level and format and
// returns it.
func SetupWith(level slog.Level, format Format) *slog.Logger {
	logger := New(os.Stderr, level, format)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w without touching the default.
func New(w io.Writer, level slog.Level, format Format) *slog.Logger {
	if format == JSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	}))
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// ParseFormat returns JSON for "json" and Text otherwise.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(JSON)) {
		return JSON
	}
	return Text
}

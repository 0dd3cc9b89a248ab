// Package logger provides the structured logger used across snapfetch.
//
// The [Logger] interface supports leveled logging with printf formatting,
// contextual metadata via [Logger.With], and message prefixes. The console
// implementation colors output when attached to a terminal; the JSON
// implementation emits one object per line for machine consumption. A [Sink]
// can be attached to tee plain-text output elsewhere, which the refresh
// coordinator uses to capture per-refresh log files.
package logger

import (
	"io"
	"os"
	"strings"
)

// LogLevel defines the level of logging.
type LogLevel int

const (
	LevelTrace LogLevel = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// GetLevelFromEnv reads SNAPFETCH_LOG_LEVEL and converts it into a LogLevel.
// Unset or unrecognized values default to LevelInfo.
func GetLevelFromEnv() LogLevel {
	switch strings.ToLower(os.Getenv("SNAPFETCH_LOG_LEVEL")) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	case "none":
		return LevelNone
	default:
		return LevelInfo
	}
}

// Sink receives a plain-text copy of everything logged at or above the sink
// level, independent of the logger's own level.
type Sink io.Writer

// Logger is the logging interface used across the module.
type Logger interface {
	// With returns a new logger using metadata as the base context.
	With(metadata map[string]any) Logger
	// WithPrefix returns a new logger with a prefix prepended to messages.
	WithPrefix(prefix string) Logger
	// Trace level logging.
	Trace(msg string, args ...any)
	// Debug level logging.
	Debug(msg string, args ...any)
	// Info level logging.
	Info(msg string, args ...any)
	// Warn level logging.
	Warn(msg string, args ...any)
	// Error level logging.
	Error(msg string, args ...any)
}

// SinkLogger is a Logger that can tee plain-text output into a Sink.
type SinkLogger interface {
	Logger
	// WithSink returns a new logger that additionally writes everything at
	// or above level to sink.
	WithSink(sink Sink, level LogLevel) Logger
}

func levelString(level LogLevel) string {
	switch level {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// Package log provides the structured logging interface used across modelflow.
//
// The Logger interface mirrors log/slog's key/value style so call sites read the
// same regardless of backend. The default backend is rs/zerolog:
//
//	logger := log.GetLoggerWithName("tune").With(log.WorkflowIDKey, wf.ID())
//	logger.Info("candidate evaluated",
//	    log.CandidateKey, 3,
//	    log.FoldKey, "Fold07",
//	    log.MetricValueKey, 0.42,
//	)
package log

import (
	"context"
	"fmt"
	"strings"
)

// Logger is a slog-style structured logger.
//
// Fields are alternating key/value pairs. Error additionally accepts an error
// value as its first field, which is logged under ErrAttrKey with its stack
// trace when the error carries one.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a child logger that always includes fields.
	With(fields ...any) Logger

	// Enabled reports whether records at level would be emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level is a logging level. Values match slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ToLogLevel parses "debug", "info", "warn" or "error" (case-insensitive).
func ToLogLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

// LoggerProvider creates loggers sharing one backend and level.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}

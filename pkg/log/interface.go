// Package log provides the structured logging used by piven's estimators.
//
// Logger mirrors the shape of log/slog: a message plus alternating key/value
// fields. The default implementation writes JSON through zerolog; tests use
// TestLogger to capture records in memory.
//
//	logger := log.GetLogger().With(log.ModelNameKey, "MLPModel")
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 1000,
//	    log.FeaturesKey, 5,
//	)
package log

import (
	"context"
)

// Logger is a structured, leveled logger.
type Logger interface {
	// Debug logs diagnostic detail such as per-batch losses.
	Debug(msg string, fields ...any)

	// Info logs lifecycle events such as the start and end of training.
	Info(msg string, fields ...any)

	// Warn logs recoverable problems.
	Warn(msg string, fields ...any)

	// Error logs failures. When the first field is an error it is attached
	// under the "error" key together with its stack trace, if any.
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every record.
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

// String returns the upper-case level name.
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

// LoggerProvider hands out loggers. Estimators accept one through options so
// tests can capture their output.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}

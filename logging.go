// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Field represents a structured logging field with a key-value pair.
type Field struct {
	Key   string
	Value interface{}
}

// Logger defines the interface for structured logging used by the engine,
// its sessions and the viewer surface.
type Logger interface {
	// Debug logs debug-level messages with optional structured fields.
	Debug(msg string, fields ...Field)

	// Info logs info-level messages with optional structured fields.
	Info(msg string, fields ...Field)

	// Warn logs warning-level messages with optional structured fields.
	Warn(msg string, fields ...Field)

	// Error logs error-level messages with optional structured fields.
	Error(msg string, fields ...Field)

	// With creates a new logger instance with the provided fields pre-populated.
	With(fields ...Field) Logger
}

// LogLevel orders log severities for StandardLogger filtering.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) tag() string {
	switch l {
	case LevelDebug:
		return "[DEBUG]"
	case LevelInfo:
		return "[INFO]"
	case LevelWarn:
		return "[WARN]"
	default:
		return "[ERROR]"
	}
}

// NoOpLogger is a Logger implementation that discards all log messages.
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}

func (l *NoOpLogger) Info(msg string, fields ...Field) {}

func (l *NoOpLogger) Warn(msg string, fields ...Field) {}

func (l *NoOpLogger) Error(msg string, fields ...Field) {}

// With returns the receiver; a discarding logger has no context to carry.
func (l *NoOpLogger) With(fields ...Field) Logger {
	return l
}

// StandardLogger wraps Go's standard log package to implement the Logger interface.
// Messages below MinLevel are dropped.
type StandardLogger struct {
	// Logger is the underlying standard library logger.
	Logger *log.Logger

	// MinLevel is the lowest level that is written. The zero value logs everything.
	MinLevel LogLevel

	contextFields []Field
}

// NewStandardLogger returns a StandardLogger writing to stderr at the given level.
func NewStandardLogger(level LogLevel) *StandardLogger {
	return &StandardLogger{
		Logger:   log.New(os.Stderr, "RFB: ", log.LstdFlags),
		MinLevel: level,
	}
}

func (l *StandardLogger) ensureLogger() *log.Logger {
	if l.Logger == nil {
		l.Logger = log.New(os.Stderr, "RFB: ", log.LstdFlags|log.Lshortfile)
	}
	return l.Logger
}

func (l *StandardLogger) log(level LogLevel, msg string, fields []Field) {
	if level < l.MinLevel {
		return
	}
	logger := l.ensureLogger()
	logger.Print(l.formatMessage(level.tag(), msg, fields...))
}

// formatMessage renders "LEVEL msg k=v ..." with context fields first.
func (l *StandardLogger) formatMessage(level, msg string, fields ...Field) string {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, set := range [][]Field{l.contextFields, fields} {
		for _, field := range set {
			b.WriteByte(' ')
			b.WriteString(field.Key)
			b.WriteByte('=')
			b.WriteString(formatFieldValue(field.Value))
		}
	}
	return b.String()
}

// formatFieldValue converts a field value to a string representation for logging.
// Strings containing whitespace and all errors are quoted.
func formatFieldValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		if containsSpace(v) {
			return `"` + v + `"`
		}
		return v
	case error:
		return `"` + v.Error() + `"`
	case fmt.Stringer:
		return formatFieldValue(v.String())
	default:
		return fmt.Sprintf("%v", v)
	}
}

func containsSpace(s string) bool {
	return strings.ContainsAny(s, " \t\n\r")
}

// Debug logs a debug-level message with structured fields.
func (l *StandardLogger) Debug(msg string, fields ...Field) {
	l.log(LevelDebug, msg, fields)
}

// Info logs an info-level message with structured fields.
func (l *StandardLogger) Info(msg string, fields ...Field) {
	l.log(LevelInfo, msg, fields)
}

// Warn logs a warning-level message with structured fields.
func (l *StandardLogger) Warn(msg string, fields ...Field) {
	l.log(LevelWarn, msg, fields)
}

// Error logs an error-level message with structured fields.
func (l *StandardLogger) Error(msg string, fields ...Field) {
	l.log(LevelError, msg, fields)
}

// With creates a new StandardLogger instance with additional context fields.
// The returned logger shares the underlying log.Logger and level.
func (l *StandardLogger) With(fields ...Field) Logger {
	newContextFields := make([]Field, 0, len(l.contextFields)+len(fields))
	newContextFields = append(newContextFields, l.contextFields...)
	newContextFields = append(newContextFields, fields...)

	return &StandardLogger{
		Logger:        l.ensureLogger(),
		MinLevel:      l.MinLevel,
		contextFields: newContextFields,
	}
}

func orNoOp(logger Logger) Logger {
	if logger == nil {
		return &NoOpLogger{}
	}
	return logger
}

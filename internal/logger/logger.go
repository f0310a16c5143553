// Package logger is the small printf-style logging seam the tools
// share. Packages log through the Logger interface and stay decoupled
// from where the lines go; the default sink is the standard log package
// with debug lines gated behind APPSCALE_DEBUG.
package logger

import (
	"fmt"
	"log"
	"os"
)

// debugEnv enables Debug output when set to anything non-empty.
const debugEnv = "APPSCALE_DEBUG"

// Logger is the logging surface handed to provisioners, runners, and
// other components. Methods take fmt.Printf-style arguments.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// envLogger writes through the log package. A prefix like "[keys]"
// identifies the component on every line.
type envLogger struct {
	prefix string
}

// NewEnvLogger creates a logger whose Debug output is controlled by the
// APPSCALE_DEBUG environment variable.
func NewEnvLogger(prefix string) Logger {
	return &envLogger{prefix: prefix}
}

func (l *envLogger) emit(tag, format string, args ...any) {
	msg := format
	if tag != "" {
		msg = tag + ": " + msg
	}
	if l.prefix != "" {
		msg = l.prefix + " " + msg
	}
	log.Printf(msg, args...)
}

func (l *envLogger) Debug(format string, args ...any) {
	if os.Getenv(debugEnv) == "" {
		return
	}
	l.emit("", format, args...)
}

func (l *envLogger) Info(format string, args ...any)  { l.emit("", format, args...) }
func (l *envLogger) Warn(format string, args ...any)  { l.emit("WARN", format, args...) }
func (l *envLogger) Error(format string, args ...any) { l.emit("ERROR", format, args...) }

// noopLogger drops everything. Tests use it when log output is noise.
type noopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() Logger {
	return noopLogger{}
}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// LogMessage is one line captured by a BufferLogger.
type LogMessage struct {
	Level   string
	Message string
}

// BufferLogger collects messages in memory so tests can assert on what
// a component logged.
type BufferLogger struct {
	Messages []LogMessage
}

// NewBufferLogger creates an empty capturing logger.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{}
}

func (l *BufferLogger) record(level, format string, args ...any) {
	l.Messages = append(l.Messages, LogMessage{
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
}

func (l *BufferLogger) Debug(format string, args ...any) { l.record("debug", format, args...) }
func (l *BufferLogger) Info(format string, args ...any)  { l.record("info", format, args...) }
func (l *BufferLogger) Warn(format string, args ...any)  { l.record("warn", format, args...) }
func (l *BufferLogger) Error(format string, args ...any) { l.record("error", format, args...) }

// HasLevel reports whether any message was captured at the given level.
func (l *BufferLogger) HasLevel(level string) bool {
	for _, m := range l.Messages {
		if m.Level == level {
			return true
		}
	}
	return false
}

// Clear drops all captured messages.
func (l *BufferLogger) Clear() {
	l.Messages = l.Messages[:0]
}

var defaultLogger Logger = NewEnvLogger("")

// Default returns the package-level logger, an env-gated logger with no
// prefix.
func Default() Logger {
	return defaultLogger
}

// SetDefault replaces the package-level logger.
func SetDefault(l Logger) {
	defaultLogger = l
}

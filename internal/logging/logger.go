// Package logging provides the leveled logger used across the service and
// bridges it into gorm's SQL logger.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Level orders log severities.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level. Unknown values mean info.
func ParseLevel(v string) Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
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

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger provides leveled logging throughout the application.
type Logger struct {
	out   *log.Logger
	err   *log.Logger
	level atomic.Int32
	now   func() time.Time
}

// New creates a Logger writing info and below to stdout and errors to stderr.
func New(level Level) *Logger {
	return NewWithWriters(os.Stdout, os.Stderr, level)
}

// NewWithWriters creates a Logger with explicit sinks.
func NewWithWriters(out, errOut io.Writer, level Level) *Logger {
	l := &Logger{
		out: log.New(out, "", 0),
		err: log.New(errOut, "", 0),
		now: time.Now,
	}
	l.level.Store(int32(level))
	return l
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewWithWriters(io.Discard, io.Discard, LevelError+1)
}

// SetLevel changes the minimum level that is written.
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// Enabled reports whether messages at level are written.
func (l *Logger) Enabled(level Level) bool {
	return int32(level) >= l.level.Load()
}

func (l *Logger) write(level Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	line := fmt.Sprintf("[%s] %-5s %s", l.now().Format("2006-01-02 15:04:05"), level, fmt.Sprintf(format, args...))
	if level >= LevelError {
		l.err.Println(line)
		return
	}
	l.out.Println(line)
}

func (l *Logger) Debug(format string, args ...any) { l.write(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.write(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.write(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.write(LevelError, format, args...) }

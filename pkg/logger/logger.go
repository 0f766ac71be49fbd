// Package logger is a thin component-scoped wrapper around the standard
// library logger.
package logger

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

var minLevel atomic.Int32

func init() { minLevel.Store(int32(LevelInfo)) }

// SetLevel sets the process-wide threshold from "debug", "info", "warn" or
// "error". Unknown names leave it unchanged.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		minLevel.Store(int32(LevelDebug))
	case "info":
		minLevel.Store(int32(LevelInfo))
	case "warn", "warning":
		minLevel.Store(int32(LevelWarn))
	case "error":
		minLevel.Store(int32(LevelError))
	}
}

// Logger prefixes every line with a timestamp, level and component.
type Logger struct {
	*log.Logger
	component string
}

// New creates a logger for the given component writing to stdout.
func New(component string) *Logger {
	return NewWithWriter(component, os.Stdout)
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(component string, w io.Writer) *Logger {
	return &Logger{
		Logger:    log.New(w, "", 0),
		component: component,
	}
}

// With returns a logger for a sub-component, e.g. "feeder/mqtt".
func (l *Logger) With(sub string) *Logger {
	name := sub
	if l.component != "" {
		name = l.component + "/" + sub
	}
	return &Logger{Logger: l.Logger, component: name}
}

func (l *Logger) formatMessage(level, format string, v ...interface{}) string {
	timestamp := time.Now().Format(time.RFC3339)
	message := fmt.Sprintf(format, v...)

	if l.component != "" {
		return fmt.Sprintf("[%s] [%s] %s: %s", timestamp, level, l.component, message)
	}
	return fmt.Sprintf("[%s] [%s] %s", timestamp, level, message)
}

func (l *Logger) emit(level Level, name, format string, v ...interface{}) {
	if int32(level) < minLevel.Load() {
		return
	}
	l.Logger.Println(l.formatMessage(name, format, v...))
}

func (l *Logger) Debug(format string, v ...interface{}) { l.emit(LevelDebug, "DEBUG", format, v...) }

func (l *Logger) Info(format string, v ...interface{}) { l.emit(LevelInfo, "INFO", format, v...) }

func (l *Logger) Warn(format string, v ...interface{}) { l.emit(LevelWarn, "WARN", format, v...) }

func (l *Logger) Error(format string, v ...interface{}) { l.emit(LevelError, "ERROR", format, v...) }

// Global logger instance for application-wide logging
var Global = New("")

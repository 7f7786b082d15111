package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	default:
		return "ERROR"
	}
}

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(raw string) Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Logger is the minimal printf-style logging contract components depend on.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type writerLogger struct {
	mu        sync.Mutex
	out       *log.Logger
	level     Level
	component string
}

// New returns a logger scoped to a component, writing to stderr.
func New(component string) Logger {
	return NewWithWriter(component, os.Stderr, defaultLevel())
}

// NewWithWriter builds a logger for an explicit sink and level.
func NewWithWriter(component string, w io.Writer, level Level) Logger {
	return &writerLogger{
		out:       log.New(w, "", 0),
		level:     level,
		component: component,
	}
}

func defaultLevel() Level {
	return ParseLevel(os.Getenv("QUESTMIND_LOG_LEVEL"))
}

func (l *writerLogger) logf(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := time.Now().Format("2006-01-02 15:04:05")
	l.out.Printf("%s [%s] [%s] %s", ts, level, l.component, fmt.Sprintf(format, args...))
}

func (l *writerLogger) Debug(format string, args ...any) { l.logf(DEBUG, format, args...) }
func (l *writerLogger) Info(format string, args ...any)  { l.logf(INFO, format, args...) }
func (l *writerLogger) Warn(format string, args ...any)  { l.logf(WARN, format, args...) }
func (l *writerLogger) Error(format string, args ...any) { l.logf(ERROR, format, args...) }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger { return nopLogger{} }

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	name := strings.ToUpper(strings.TrimSpace(levelStr))
	if name == "WARNING" {
		return LevelWarn, true
	}
	for l, n := range levelNames {
		if n == name {
			return LogLevel(l), true
		}
	}
	return LevelInfo, false
}

// currentLevel holds the current global log level atomically.
var currentLevel atomic.Uint32

// logger writes every message, with date and microsecond time.
var logger = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)

// std backs the package-level functions.
var std = &Logger{}

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// Enabled reports whether messages at level are written.
func Enabled(level LogLevel) bool {
	return level >= GetLevel()
}

// SetOutput redirects all log output. A nil writer restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	logger.SetOutput(w)
}

// Logger writes leveled messages with an optional component prefix. All
// loggers share the global level and output.
type Logger struct {
	prefix string
}

// Named returns a logger for one component, e.g. Named("engine").
func Named(component string) *Logger {
	return std.Named(component)
}

// Named returns a logger for a sub-component: "udp" becomes "udp/sender".
func (l *Logger) Named(component string) *Logger {
	if l.prefix == "" {
		return &Logger{prefix: component + ": "}
	}
	return &Logger{prefix: strings.TrimSuffix(l.prefix, ": ") + "/" + component + ": "}
}

func (l *Logger) logf(level LogLevel, format string, v []any) {
	if !Enabled(level) {
		return
	}
	// Pad the shorter level names so messages line up.
	pad := " "
	if len(level.String()) == 4 {
		pad = "  "
	}
	logger.Printf("[%s]%s%s%s", level, pad, l.prefix, fmt.Sprintf(format, v...))
}

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, v ...any) { l.logf(LevelDebug, format, v) }

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, v ...any) { l.logf(LevelInfo, format, v) }

// Warnf logs a formatted warning.
func (l *Logger) Warnf(format string, v ...any) { l.logf(LevelWarn, format, v) }

// Errorf logs a formatted error.
func (l *Logger) Errorf(format string, v ...any) { l.logf(LevelError, format, v) }

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) { std.logf(LevelDebug, format, v) }

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) { std.logf(LevelInfo, format, v) }

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) { std.logf(LevelWarn, format, v) }

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) { std.logf(LevelError, format, v) }

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...any) {
	logger.Fatalf("[%s] %s", LevelFatal, fmt.Sprintf(format, v...))
}

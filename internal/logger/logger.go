package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	TRACE LogLevel = iota // Raw frames, hex dumps
	DEBUG                 // Requests, responses, state transitions
	INFO                  // Scan, connect, phase changes
	WARN                  // Recoverable problems
	ERROR                 // Errors
)

var (
	currentLevel LogLevel  = INFO
	output       io.Writer = os.Stderr
	mu           sync.RWMutex
)

// SetLevel sets the global log level
func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = level
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// SetOutput redirects log lines, mostly for tests
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Enabled reports whether messages at level would be written
func Enabled(level LogLevel) bool {
	return level >= GetLevel()
}

// ParseLevel converts a string to a LogLevel
func ParseLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "TRACE":
		return TRACE
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

func log(level LogLevel, prefix, format string, args ...any) {
	if !Enabled(level) {
		return
	}

	msg := fmt.Sprintf(format, args...)

	mu.RLock()
	w := output
	mu.RUnlock()

	if prefix != "" {
		fmt.Fprintf(w, "[%s %-5s] %s\n", prefix, level, msg)
	} else {
		fmt.Fprintf(w, "[%-5s] %s\n", level, msg)
	}
}

// Trace logs wire-level detail
func Trace(prefix, format string, args ...any) {
	log(TRACE, prefix, format, args...)
}

// Debug logs protocol messages
func Debug(prefix, format string, args ...any) {
	log(DEBUG, prefix, format, args...)
}

// Info logs high-level events
func Info(prefix, format string, args ...any) {
	log(INFO, prefix, format, args...)
}

// Warn logs a warning message
func Warn(prefix, format string, args ...any) {
	log(WARN, prefix, format, args...)
}

// Error logs an error message
func Error(prefix, format string, args ...any) {
	log(ERROR, prefix, format, args...)
}

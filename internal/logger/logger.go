// Package logger provides the application-wide logging front.
// It wraps hashicorp/go-hclog so every package logs through the same
// named, leveled logger without carrying a logger handle around.
package logger

import (
	"fmt"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
)

var (
	mu   sync.RWMutex
	root hclog.Logger = hclog.New(&hclog.LoggerOptions{
		Name:   "curator",
		Level:  hclog.Info,
		Output: os.Stdout,
	})
)

// Configure replaces the root logger. level is one of trace, debug, info,
// warn, error; format "json" switches to JSON output.
func Configure(level, format string) {
	mu.Lock()
	defer mu.Unlock()
	root = hclog.New(&hclog.LoggerOptions{
		Name:       "curator",
		Level:      hclog.LevelFromString(level),
		Output:     os.Stdout,
		JSONFormat: format == "json",
	})
}

// Named returns a sub-logger for a component, e.g. logger.Named("scanner").
func Named(name string) hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(name)
}

// Info logs an informational message. Args are printf-style when format
// contains verbs, matching how call sites throughout the codebase use it.
func Info(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	root.Info(sprintf(format, args...))
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	root.Warn(sprintf(format, args...))
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	root.Error(sprintf(format, args...))
}

// Debug logs a debug message.
func Debug(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	root.Debug(sprintf(format, args...))
}

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

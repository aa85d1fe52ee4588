// Package logging provides the service-wide slog logger
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/giygas/marchart-api/config"
)

type LoggingService struct {
	Logger   *slog.Logger
	rotating *RotatingLogger
}

var (
	DefaultLoggingService *LoggingService
	serviceMu             sync.Mutex
)

// InitLogger initializes the global logger with development defaults.
// An empty logDir logs to the console only.
func InitLogger(logDir string) {
	InitLoggerWithEnvironment(logDir, config.EnvDevelopment, "", 4, 100*1024*1024)
}

// InitLoggerWithEnvironment initializes the global logger for the given environment
func InitLoggerWithEnvironment(logDir string, env config.Environment, logLevel string, retentionWeeks int, maxFileSize int64) {
	verbose := os.Getenv("TEST_VERBOSE") == "1"
	consoleLevel := GetConsoleLogLevel(env, logLevel, verbose)

	logger, rotating := newLogger(logDir, consoleLevel, retentionWeeks, maxFileSize)

	serviceMu.Lock()
	previous := DefaultLoggingService
	DefaultLoggingService = &LoggingService{Logger: logger, rotating: rotating}
	serviceMu.Unlock()

	if previous != nil && previous.rotating != nil {
		_ = previous.rotating.Close()
	}
	slog.SetDefault(logger)
}

// Close flushes and closes the log file, if any
func Close() {
	serviceMu.Lock()
	defer serviceMu.Unlock()

	if DefaultLoggingService != nil && DefaultLoggingService.rotating != nil {
		_ = DefaultLoggingService.rotating.Close()
		DefaultLoggingService.rotating = nil
	}
}

// ResetForTest installs a fresh logger and closes it when the test ends
func ResetForTest(t testing.TB, logDir string, env config.Environment, logLevel string, retentionWeeks int, maxFileSize int64) {
	t.Helper()
	InitLoggerWithEnvironment(logDir, env, logLevel, retentionWeeks, maxFileSize)
	t.Cleanup(Close)
}

// parseLogLevel converts a LOG_LEVEL value to a slog level, defaulting to info
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConsoleLogLevel picks the console level: tests stay quiet unless verbose,
// an explicit LOG_LEVEL wins elsewhere, production defaults to warn.
func GetConsoleLogLevel(env config.Environment, logLevel string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}

	if logLevel != "" {
		return parseLogLevel(logLevel)
	}

	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel returns the file level; the JSON file always gets everything
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

func current() *slog.Logger {
	serviceMu.Lock()
	defer serviceMu.Unlock()
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return nil
	}
	return DefaultLoggingService.Logger
}

// Logger returns the global logger, or a stderr logger when none is initialized
func Logger() *slog.Logger {
	if l := current(); l != nil {
		return l
	}
	return fallback(slog.LevelInfo)
}

func fallback(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	if l := current(); l != nil {
		l.Info(msg, args...)
		return
	}
	fallback(slog.LevelInfo).Info(msg, args...)
}

func Error(msg string, args ...any) {
	if l := current(); l != nil {
		l.Error(msg, args...)
		return
	}
	fallback(slog.LevelError).Error(msg, args...)
}

func Warn(msg string, args ...any) {
	if l := current(); l != nil {
		l.Warn(msg, args...)
		return
	}
	fallback(slog.LevelWarn).Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	if l := current(); l != nil {
		l.Debug(msg, args...)
		return
	}
	fallback(slog.LevelDebug).Debug(msg, args...)
}

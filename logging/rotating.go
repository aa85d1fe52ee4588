package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const filePrefix = "marchart-"

var numberedFileRe = regexp.MustCompile(`^marchart-\d{4}-W\d{2}_(\d{2})\.log$`)

// RotatingLogger writes to one log file per ISO week, rolling over to a
// numbered file when the size limit is reached.
type RotatingLogger struct {
	logDir      string
	retention   time.Duration
	maxFileSize int64

	mu          sync.Mutex
	file        *os.File
	week        string
	size        int64
	stopCleanup context.CancelFunc
	cleanupDone chan struct{}
}

// NewRotatingLogger creates a rotating logger with a 100MB size limit
func NewRotatingLogger(logDir string, retentionWeeks int) *RotatingLogger {
	return NewRotatingLoggerWithSizeLimit(logDir, retentionWeeks, 100*1024*1024)
}

// NewRotatingLoggerWithSizeLimit creates a rotating logger; maxFileSize 0 disables size rollover
func NewRotatingLoggerWithSizeLimit(logDir string, retentionWeeks int, maxFileSize int64) *RotatingLogger {
	return &RotatingLogger{
		logDir:      logDir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
	}
}

// getWeekKey returns the ISO week as YYYY-Www
func getWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// openFor opens the file for the given week. Caller holds mu.
func (rl *RotatingLogger) openFor(week string, full bool) error {
	if rl.file != nil {
		_ = rl.file.Close()
		rl.file = nil
	}

	name := rl.pickFile(week, full)
	path := filepath.Join(rl.logDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	rl.file = file
	rl.week = week
	rl.size = 0
	if info, err := file.Stat(); err == nil {
		rl.size = info.Size()
	}
	return nil
}

// pickFile returns the base weekly file unless it (or the latest numbered file) is full
func (rl *RotatingLogger) pickFile(week string, full bool) string {
	base := filePrefix + week + ".log"

	if !full {
		info, err := os.Stat(filepath.Join(rl.logDir, base))
		if err != nil || rl.maxFileSize == 0 || info.Size() < rl.maxFileSize {
			return base
		}
	}

	highest, lastSize := 0, int64(0)
	matches, _ := filepath.Glob(filepath.Join(rl.logDir, filePrefix+week+"_??.log"))
	for _, match := range matches {
		m := numberedFileRe.FindStringSubmatch(filepath.Base(match))
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		if num > highest {
			highest = num
			lastSize = 0
			if info, err := os.Stat(match); err == nil {
				lastSize = info.Size()
			}
		}
	}

	if highest > 0 && !full && lastSize < rl.maxFileSize {
		return fmt.Sprintf("%s%s_%02d.log", filePrefix, week, highest)
	}
	return fmt.Sprintf("%s%s_%02d.log", filePrefix, week, highest+1)
}

// Write implements io.Writer, rotating on week change or size limit
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	week := getWeekKey(time.Now())
	full := rl.maxFileSize > 0 && rl.file != nil && rl.size+int64(len(p)) > rl.maxFileSize

	if rl.file == nil || rl.week != week || full {
		if err := rl.openFor(week, full); err != nil {
			return 0, err
		}
	}

	n, err := rl.file.Write(p)
	rl.size += int64(n)
	return n, err
}

// cleanupOldLogs removes log files older than the retention period
func (rl *RotatingLogger) cleanupOldLogs() error {
	entries, err := os.ReadDir(rl.logDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := time.Now().Add(-rl.retention)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), filePrefix) || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(rl.logDir, entry.Name())) == nil {
			deleted++
		}
	}

	if deleted > 0 {
		// Console only, the file handler would recurse
		fmt.Fprintf(os.Stderr, "Cleaned up %d old log files\n", deleted)
	}
	return nil
}

// startCleanup runs cleanupOldLogs once a day until Close
func (rl *RotatingLogger) startCleanup() {
	ctx, cancel := context.WithCancel(context.Background())
	rl.stopCleanup = cancel
	rl.cleanupDone = make(chan struct{})

	go func() {
		defer close(rl.cleanupDone)
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := rl.cleanupOldLogs(); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to cleanup old logs: %v\n", err)
				}
			}
		}
	}()
}

// Close stops the cleanup goroutine and closes the current file
func (rl *RotatingLogger) Close() error {
	if rl.stopCleanup != nil {
		rl.stopCleanup()
		select {
		case <-rl.cleanupDone:
		case <-time.After(time.Second):
		}
		rl.stopCleanup = nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.file == nil {
		return nil
	}
	err := rl.file.Close()
	rl.file = nil
	return err
}

// newLogger builds the console+file logger. Without a usable logDir it logs to the console only.
func newLogger(logDir string, consoleLevel slog.Level, retentionWeeks int, maxFileSize int64) (*slog.Logger, *RotatingLogger) {
	console := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: consoleLevel})
	if logDir == "" {
		return slog.New(console), nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		logger := slog.New(console)
		logger.Error("Failed to create logs directory", "error", err)
		return logger, nil
	}

	rl := NewRotatingLoggerWithSizeLimit(logDir, retentionWeeks, maxFileSize)
	rl.mu.Lock()
	err := rl.openFor(getWeekKey(time.Now()), false)
	rl.mu.Unlock()
	if err != nil {
		logger := slog.New(console)
		logger.Error("Failed to initialize rotating logger", "error", err)
		return logger, nil
	}
	rl.startCleanup()

	file := slog.NewJSONHandler(rl, &slog.HandlerOptions{Level: GetFileLogLevel()})
	return slog.New(&multiHandler{handlers: []slog.Handler{console, file}}), rl
}

// multiHandler fans records out to the console and file handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

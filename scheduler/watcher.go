package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/giygas/marchart-api/labels"
	"github.com/giygas/marchart-api/logging"
)

// DefaultDebounce groups the events of an editor save or a file copy into one reload
const DefaultDebounce = 2 * time.Second

// Watcher reloads the reference data when a reference file changes
type Watcher struct {
	dir      string
	debounce time.Duration
	reload   func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher watches dir and calls the scheduler reload on changes
func NewWatcher(dir string, s *Scheduler) *Watcher {
	return newWatcher(dir, DefaultDebounce, func() {
		if err := s.ReloadReferenceData(TriggerWatch); err != nil {
			logging.Warn("Reference data reload after file change failed", "error", err)
		}
	})
}

func newWatcher(dir string, debounce time.Duration, reload func()) *Watcher {
	return &Watcher{dir: dir, debounce: debounce, reload: reload}
}

// Run blocks until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	logging.Info("Watching reference data directory", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if isReferenceChange(event) {
				logging.Debug("Reference file changed", "file", event.Name, "op", event.Op.String())
				w.schedule()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.Warn("File watcher error", "error", err)
		}
	}
}

func isReferenceChange(event fsnotify.Event) bool {
	if !slices.Contains(labels.ReferenceFiles, filepath.Base(event.Name)) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) ||
		event.Op.Has(fsnotify.Rename) || event.Op.Has(fsnotify.Remove)
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
}

// Package watch reports changes to individual files for hot reload.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/timeouts"
)

// Watcher calls its callbacks when a watched file is written, created or
// renamed into place. The parent directory is watched so editors that
// replace the file are still observed. Bursts of events are coalesced.
type Watcher struct {
	watcher   *fsnotify.Watcher
	log       logger.LoggerInterface
	debounce  time.Duration
	mu        sync.RWMutex
	callbacks []func(path string)
	watched   map[string]context.Context
	dirs      map[string]int
	timers    map[string]*time.Timer
	stopCh    chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// Option configures a Watcher
type Option func(*Watcher)

// WithDebounce sets how long the watcher waits for events to settle
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a watcher
func New(log logger.LoggerInterface, opts ...Option) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if log == nil {
		log = logger.NewNoOpLogger()
	}

	w := &Watcher{
		watcher:  fsWatcher,
		log:      log,
		debounce: timeouts.ReloadDebounce,
		watched:  make(map[string]context.Context),
		dirs:     make(map[string]int),
		timers:   make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Watch starts watching path until ctx is done or the watcher is closed
func (w *Watcher) Watch(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	dir := filepath.Dir(absPath)

	w.mu.Lock()
	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			w.mu.Unlock()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.watched[absPath] = ctx
	w.mu.Unlock()

	w.log.Debug("Watching file", slog.String("path", absPath))

	go func() {
		select {
		case <-ctx.Done():
		case <-w.stopCh:
			return
		}

		w.unwatch(absPath, dir)
	}()

	w.startOnce.Do(func() {
		go w.handleEvents()
	})

	return nil
}

func (w *Watcher) unwatch(path, dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.watched, path)
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}

	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		_ = w.watcher.Remove(dir)
	}
}

// OnChange registers a callback invoked with the changed file's path
func (w *Watcher) OnChange(callback func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.callbacks = append(w.callbacks, callback)
}

func (w *Watcher) handleEvents() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.mu.Lock()
			pathCtx, watched := w.watched[event.Name]
			if watched && pathCtx.Err() == nil {
				w.scheduleLocked(event.Name)
			}
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			w.log.Warn("File watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) scheduleLocked(path string) {
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}

	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		w.notify(path)
	})
}

func (w *Watcher) notify(path string) {
	select {
	case <-w.stopCh:
		return
	default:
	}

	w.mu.RLock()
	callbacks := make([]func(string), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	w.log.Debug("File changed", slog.String("path", path))

	for _, callback := range callbacks {
		if callback != nil {
			callback(path)
		}
	}
}

// Close stops the watcher and releases resources
func (w *Watcher) Close() error {
	var closeErr error

	w.closeOnce.Do(func() {
		close(w.stopCh)

		w.mu.Lock()
		for path, t := range w.timers {
			t.Stop()
			delete(w.timers, path)
		}
		w.mu.Unlock()

		if err := w.watcher.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close watcher: %w", err)
		}
	})

	return closeErr
}

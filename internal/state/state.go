// Package state is the process-wide key/value store shared by the input
// facade, the task manager and the host.
//
// Listeners run synchronously on the writer's goroutine after the store lock
// is released. A listener may read or write the store, but a listener that
// writes the key it is watching will recurse.
package state

import (
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/Norgate-AV/winpilot/internal/logger"
)

// Well-known keys
const (
	// KeyTargetWindow holds the windows.WindowInfo under automation
	KeyTargetWindow = "target_window"
)

// DefaultHistoryLimit bounds the change history
const DefaultHistoryLimit = 1000

// TaskStatusKey is where a task's run status is mirrored
func TaskStatusKey(taskID string) string {
	return fmt.Sprintf("task.%s.status", taskID)
}

// TaskStartTimeKey is where a task's last start time is mirrored
func TaskStartTimeKey(taskID string) string {
	return fmt.Sprintf("task.%s.start_time", taskID)
}

// Listener receives a key's new and previous value. Old is nil for a new
// key and New is nil for a deleted one.
type Listener func(key string, newValue, oldValue any)

// Change is one recorded notification
type Change struct {
	Key string
	New any
	Old any
	At  time.Time
}

type subscription struct {
	id uint64
	fn Listener
}

// Store is a mutex-guarded map with change notification
type Store struct {
	mu           sync.RWMutex
	values       map[string]any
	listeners    map[string][]subscription
	nextID       uint64
	history      []Change
	historyLimit int
	log          logger.LoggerInterface
	now          func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithHistoryLimit caps the number of recorded changes
func WithHistoryLimit(n int) Option {
	return func(s *Store) { s.historyLimit = n }
}

// WithClock replaces time.Now for change timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store
func New(log logger.LoggerInterface, opts ...Option) *Store {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	s := &Store{
		values:       make(map[string]any),
		listeners:    make(map[string][]subscription),
		historyLimit: DefaultHistoryLimit,
		log:          log,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Get returns the value under key
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	return v, ok
}

// Value returns the value under key when it holds a T
func Value[T any](s *Store, key string) (T, bool) {
	var zero T

	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}

	typed, ok := v.(T)
	if !ok {
		return zero, false
	}

	return typed, true
}

// Has reports whether key is present
func (s *Store) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Set stores value and notifies key's listeners when it differs from the
// previous value
func (s *Store) Set(key string, value any) {
	s.set(key, value, true)
}

// SetQuiet stores value without notifying anyone
func (s *Store) SetQuiet(key string, value any) {
	s.set(key, value, false)
}

func (s *Store) set(key string, value any, notify bool) {
	s.mu.Lock()
	old, existed := s.values[key]
	s.values[key] = value

	changed := !existed || !reflect.DeepEqual(old, value)

	var subs []subscription
	if notify && changed {
		subs = s.recordLocked(key, value, old)
	}
	s.mu.Unlock()

	s.log.Trace("State set", slog.String("key", key), slog.Any("value", value))

	s.dispatch(subs, key, value, old)
}

// Update sets every entry of values, notifying per key
func (s *Store) Update(values map[string]any) {
	for key, value := range values {
		s.Set(key, value)
	}
}

// Delete removes key. Listeners get a nil new value. It reports whether the
// key existed.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	old, existed := s.values[key]
	if !existed {
		s.mu.Unlock()
		return false
	}

	delete(s.values, key)
	subs := s.recordLocked(key, nil, old)
	s.mu.Unlock()

	s.dispatch(subs, key, nil, old)

	return true
}

// Snapshot returns a copy of every key and value
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}

	return out
}

// Subscribe registers fn for changes to key and returns a function that
// removes it
func (s *Store) Subscribe(key string, fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners[key] = append(s.listeners[key], subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			s.listeners[key] = slices.DeleteFunc(s.listeners[key], func(sub subscription) bool {
				return sub.id == id
			})
		})
	}
}

// History returns up to limit of the most recent changes, oldest first.
// A non-positive limit returns all of them.
func (s *Store) History(limit int) []Change {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if limit > 0 && len(s.history) > limit {
		start = len(s.history) - limit
	}

	return slices.Clone(s.history[start:])
}

// recordLocked appends to history and returns the listeners to call
func (s *Store) recordLocked(key string, value, old any) []subscription {
	s.history = append(s.history, Change{Key: key, New: value, Old: old, At: s.now()})
	if s.historyLimit > 0 && len(s.history) > s.historyLimit {
		s.history = slices.Delete(s.history, 0, len(s.history)-s.historyLimit)
	}

	return slices.Clone(s.listeners[key])
}

func (s *Store) dispatch(subs []subscription, key string, value, old any) {
	for _, sub := range subs {
		s.call(sub.fn, key, value, old)
	}
}

func (s *Store) call(fn Listener, key string, value, old any) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("State listener panicked",
				slog.String("key", key),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	fn(key, value, old)
}

package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Norgate-AV/winpilot/internal/input"
	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/state"
	"github.com/Norgate-AV/winpilot/internal/timeouts"
)

// active is one entry of the live runner table
type active struct {
	runner *Runner
	// gate holds the body back until task_started has been delivered
	gate chan struct{}

	// Guarded by Manager.mu
	announced   bool
	stopPending bool
	ended       bool
}

type observerEntry struct {
	id uint64
	fn Observer
}

// Manager is the single place tasks are started, stopped and queried
type Manager struct {
	registry    *Registry
	catalog     *Catalog
	settings    SettingsProvider
	input       *input.Manager
	store       *state.Store
	log         logger.LoggerInterface
	stopTimeout time.Duration
	now         func() time.Time

	mu      sync.Mutex
	runners map[string]*active
	locks   map[string]*sync.Mutex

	obsMu        sync.RWMutex
	observers    []observerEntry
	nextObserver uint64
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithSettings sets where task settings are looked up
func WithSettings(p SettingsProvider) ManagerOption {
	return func(m *Manager) { m.settings = p }
}

// WithInput hands the input facade to every task body
func WithInput(in *input.Manager) ManagerOption {
	return func(m *Manager) { m.input = in }
}

// WithState sets the store task status is mirrored into
func WithState(store *state.Store) ManagerOption {
	return func(m *Manager) { m.store = store }
}

// WithTaskStopTimeout bounds how long stopping one task waits for its body
func WithTaskStopTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.stopTimeout = d }
}

// WithEventClock replaces time.Now for event timestamps
func WithEventClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager over registry and catalog
func NewManager(registry *Registry, catalog *Catalog, log logger.LoggerInterface, opts ...ManagerOption) *Manager {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	m := &Manager{
		registry:    registry,
		catalog:     catalog,
		log:         log,
		stopTimeout: timeouts.TaskStopTimeout,
		now:         time.Now,
		runners:     make(map[string]*active),
		locks:       make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Manager) Registry() *Registry {
	return m.registry
}

// Categories returns the registry's category order
func (m *Manager) Categories() []string {
	return m.registry.Categories()
}

// Reload reloads task definitions. Live runners keep the definition they
// were started with.
func (m *Manager) Reload() error {
	return m.registry.Reload()
}

// lockFor serializes start and stop for one id
func (m *Manager) lockFor(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}

	return l
}

// StartTask launches id. It fails with ErrAlreadyRunning when id already
// has a live runner, and leaves the task Ready when its body cannot be
// built. task_started is published only on success.
func (m *Manager) StartTask(id string) error {
	def, ok := m.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}

	if !m.registry.IsAvailable(def) {
		return fmt.Errorf("%w: %s", ErrUnavailable, id)
	}

	lock := m.lockFor(id)
	lock.Lock()

	m.mu.Lock()
	current := m.runners[id]
	m.mu.Unlock()

	if current != nil && current.runner.State() == Running {
		lock.Unlock()
		m.log.Warn("Task is already running", slog.String("task", id))
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, id)
	}

	factory, _ := m.catalog.Lookup(def.ScriptReference)

	env := Env{
		TaskID:   id,
		Settings: resolveSettings(m.settings, id),
		Input:    m.input,
		State:    m.store,
		Log:      m.log.With(slog.String(logger.TaskKey, id)),
	}

	entry := &active{gate: make(chan struct{})}
	entry.runner = NewRunner(def, factory, env, m.store, m.log,
		WithStopTimeout(m.stopTimeout),
		WithGate(entry.gate),
		WithExitHandler(func(_ *Runner, s RunState, err error) {
			m.onExit(entry, s, err)
		}),
	)

	if err := entry.runner.Start(); err != nil {
		lock.Unlock()
		return err
	}

	m.mu.Lock()
	m.runners[id] = entry
	m.mu.Unlock()
	lock.Unlock()

	runID := entry.runner.RunID()
	m.notify(Event{Type: EventStarted, Definition: def, RunID: runID, At: m.now()})

	m.mu.Lock()
	entry.announced = true
	pending := entry.stopPending
	m.mu.Unlock()

	close(entry.gate)

	// A stop that raced the announcement is published after it
	if pending {
		m.notify(Event{Type: EventStopped, Definition: def, RunID: runID, At: m.now()})
	}

	return nil
}

func (m *Manager) onExit(entry *active, s RunState, err error) {
	def := entry.runner.Definition()

	m.mu.Lock()
	if entry.ended {
		m.mu.Unlock()
		return
	}

	ev := Event{Definition: def, RunID: entry.runner.RunID(), At: m.now()}
	if s == Error {
		// An errored runner stays in the table so its state stays visible
		// until the task is stopped or restarted
		ev.Type = EventError
		ev.Err = err
	} else {
		ev.Type = EventStopped
		entry.ended = true
		if m.runners[def.ID] == entry {
			delete(m.runners, def.ID)
		}
	}
	m.mu.Unlock()

	m.notify(ev)
}

// StopTask stops and removes id's runner and publishes task_stopped. It
// reports whether there was a runner. A task stopping itself must pass its
// body's context; with any other context the call waits out the stop
// timeout for the goroutine it is running on.
func (m *Manager) StopTask(ctx context.Context, id string) bool {
	found, _ := m.stopTask(ctx, id)
	return found
}

func (m *Manager) stopTask(ctx context.Context, id string) (found, returned bool) {
	lock := m.lockFor(id)
	lock.Lock()

	m.mu.Lock()
	entry := m.runners[id]
	m.mu.Unlock()

	if entry == nil {
		lock.Unlock()
		return false, true
	}

	returned = entry.runner.Stop(ctx)

	m.mu.Lock()
	if m.runners[id] == entry {
		delete(m.runners, id)
	}
	publish := !entry.ended
	entry.ended = true
	if publish && !entry.announced {
		entry.stopPending = true
		publish = false
	}
	m.mu.Unlock()

	// Observers may start id again
	lock.Unlock()

	if publish {
		m.notify(Event{
			Type:       EventStopped,
			Definition: entry.runner.Definition(),
			RunID:      entry.runner.RunID(),
			At:         m.now(),
		})
	}

	return true, returned
}

// StopAll stops every live runner concurrently. It fails when a body did
// not return within the stop timeout; those runners are still removed.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.runners))
	for id := range m.runners {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	slices.Sort(ids)

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			if _, returned := m.stopTask(ctx, id); !returned {
				return fmt.Errorf("task %s did not stop in time", id)
			}
			return nil
		})
	}

	return g.Wait()
}

// GetStatus derives what id looks like to an operator
func (m *Manager) GetStatus(id string) DisplayState {
	def, ok := m.registry.Get(id)
	if !ok || !def.Enabled {
		return Disabled
	}

	m.mu.Lock()
	entry := m.runners[id]
	m.mu.Unlock()

	if entry == nil {
		return Ready
	}

	switch entry.runner.State() {
	case Running:
		return DisplayRunning
	case Error:
		return DisplayError
	default:
		return Ready
	}
}

// Running returns the ids whose runner is executing, sorted
func (m *Manager) Running() []string {
	m.mu.Lock()
	entries := make(map[string]*active, len(m.runners))
	for id, entry := range m.runners {
		entries[id] = entry
	}
	m.mu.Unlock()

	var ids []string
	for id, entry := range entries {
		if entry.runner.State() == Running {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	return ids
}

// Runner returns id's live runner
func (m *Manager) Runner(id string) (*Runner, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.runners[id]
	if !ok {
		return nil, false
	}

	return entry.runner, true
}

// Subscribe registers fn for lifecycle events and returns a function that
// removes it
func (m *Manager) Subscribe(fn Observer) func() {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()

	m.nextObserver++
	id := m.nextObserver
	m.observers = append(m.observers, observerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.obsMu.Lock()
			defer m.obsMu.Unlock()

			m.observers = slices.DeleteFunc(m.observers, func(o observerEntry) bool {
				return o.id == id
			})
		})
	}
}

func (m *Manager) notify(ev Event) {
	m.obsMu.RLock()
	observers := slices.Clone(m.observers)
	m.obsMu.RUnlock()

	m.log.Debug("Task event",
		slog.String("event", string(ev.Type)),
		slog.String("task", ev.Definition.ID),
	)

	for _, o := range observers {
		m.call(o.fn, ev)
	}
}

func (m *Manager) call(fn Observer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("Task observer panicked",
				slog.String("event", string(ev.Type)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	fn(ev)
}

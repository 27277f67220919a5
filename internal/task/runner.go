package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/state"
	"github.com/Norgate-AV/winpilot/internal/timeouts"
)

type runKey struct{}

// RunIDFromContext returns the run id when ctx descends from a task body's
// context
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	id, ok := ctx.Value(runKey{}).(string)
	return id, ok
}

// Runner owns one execution of one task
type Runner struct {
	def         Definition
	factory     Factory
	env         Env
	store       *state.Store
	log         logger.LoggerInterface
	stopTimeout time.Duration
	now         func() time.Time

	mu        sync.Mutex
	state     RunState
	err       error
	runID     string
	body      Body
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time

	stopRequested atomic.Bool
	onExit        func(r *Runner, state RunState, err error)
	gate          <-chan struct{}
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithStopTimeout bounds how long Stop waits for the body to return
func WithStopTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.stopTimeout = d }
}

// WithExitHandler is called from the run goroutine when the body returns on
// its own. It is not called after Stop.
func WithExitHandler(fn func(r *Runner, state RunState, err error)) RunnerOption {
	return func(r *Runner) { r.onExit = fn }
}

// WithGate holds the body back until gate is closed. A stop before that
// ends the run without calling the body.
func WithGate(gate <-chan struct{}) RunnerOption {
	return func(r *Runner) { r.gate = gate }
}

// NewRunner prepares a runner in the Stopped state
func NewRunner(def Definition, factory Factory, env Env, store *state.Store, log logger.LoggerInterface, opts ...RunnerOption) *Runner {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	r := &Runner{
		def:         def,
		factory:     factory,
		env:         env,
		store:       store,
		log:         log.With(slog.String(logger.TaskKey, def.ID)),
		stopTimeout: timeouts.TaskStopTimeout,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Runner) Definition() Definition {
	return r.def
}

// State returns the current run state
func (r *Runner) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Err returns the failure behind an Error state
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}

// RunID identifies the current or last execution
func (r *Runner) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.runID
}

// StartedAt is when the current or last execution began
func (r *Runner) StartedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.startedAt
}

// Done is closed when the body goroutine of the current run has returned
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.done
}

// Start builds the body and launches it on its own goroutine. A failure to
// build the body moves the runner to Error without it ever running.
func (r *Runner) Start() error {
	r.mu.Lock()

	if r.state == Running {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, r.def.ID)
	}

	body, err := r.build()
	if err != nil {
		r.state = Error
		r.err = err
		r.mu.Unlock()

		r.log.Error("Task failed to start", slog.Any("error", err))
		return err
	}

	r.runID = uuid.NewString()
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), runKey{}, r.runID))

	r.body = body
	r.cancel = cancel
	r.done = make(chan struct{})
	r.state = Running
	r.err = nil
	r.startedAt = r.now()
	r.stopRequested.Store(false)

	runID, done, startedAt := r.runID, r.done, r.startedAt
	r.mu.Unlock()

	r.publish(Running)
	if r.store != nil {
		r.store.SetQuiet(state.TaskStartTimeKey(r.def.ID), startedAt)
	}

	r.log.Info("Task started", slog.String("run", runID))

	go r.run(ctx, body, done, runID)

	return nil
}

func (r *Runner) build() (body Body, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %w: %v", ErrStartFailed, ErrBodyPanic, p)
		}
	}()

	if r.factory == nil {
		return nil, fmt.Errorf("%w: no factory for %q", ErrStartFailed, r.def.ScriptReference)
	}

	body, err = r.factory(r.env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: factory returned no body", ErrStartFailed)
	}

	return body, nil
}

func (r *Runner) run(ctx context.Context, body Body, done chan struct{}, runID string) {
	defer close(done)

	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return
		}
	}

	ok, err := r.invoke(ctx, body)

	r.mu.Lock()
	// Stop owns the transition once it has been requested, and a restart
	// owns the runner once a new run began
	if r.runID != runID || r.stopRequested.Load() || r.state != Running {
		r.mu.Unlock()
		r.log.Debug("Task body returned after stop")
		return
	}

	next := Stopped
	if err != nil {
		next = Error
	}
	r.state = next
	r.err = err
	cancel := r.cancel
	r.mu.Unlock()

	cancel()

	switch {
	case err != nil:
		r.log.Error("Task failed", slog.Any("error", err))
	case !ok:
		r.log.Warn("Task body reported failure")
	default:
		r.log.Info("Task finished")
	}

	r.publish(next)

	// A Stop that landed while next was published has the final word
	r.mu.Lock()
	settled, current := r.state, r.runID == runID
	r.mu.Unlock()

	if current && settled != next {
		r.publish(settled)
	}

	if r.onExit != nil {
		r.onExit(r, next, err)
	}
}

func (r *Runner) invoke(ctx context.Context, body Body) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrBodyPanic, p)
			r.log.Error("Task body panicked",
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	return body.Start(ctx)
}

// Stop cancels the body and waits up to the stop timeout for it to return.
// It is safe to call repeatedly and from any goroutine. Called with a
// context derived from this run's body context it does not wait, since the
// caller is the goroutine it would wait for. Self-stop is only recognized
// through that context: a body calling Stop with an unrelated context blocks
// for the full stop timeout. Stopping an errored runner clears the error and
// records Stopped. It reports whether the body is known to have returned.
func (r *Runner) Stop(ctx context.Context) bool {
	r.mu.Lock()
	if r.state != Running {
		cleared := r.state == Error
		if cleared {
			r.state = Stopped
			r.err = nil
		}
		r.mu.Unlock()

		if cleared {
			r.publish(Stopped)
		}

		return true
	}

	r.stopRequested.Store(true)
	r.cancel()
	body, done, runID := r.body, r.done, r.runID
	r.mu.Unlock()

	r.log.Info("Stopping task")

	if stopper, ok := body.(Stopper); ok {
		r.callStop(stopper)
	}

	returned := true
	if id, ok := RunIDFromContext(ctx); ok && id == runID {
		r.log.Warn("Task stopped from its own goroutine, not waiting for it")
		returned = false
	} else {
		timer := time.NewTimer(r.stopTimeout)
		select {
		case <-done:
		case <-timer.C:
			returned = false
			r.log.Warn("Task did not stop in time and may still be running",
				slog.Duration("timeout", r.stopTimeout),
			)
			r.log.Warn("If the task stopped itself, pass its body context to Stop to skip the wait")
		}
		timer.Stop()
	}

	r.mu.Lock()
	r.state = Stopped
	r.err = nil
	r.mu.Unlock()

	r.publish(Stopped)

	r.log.Info("Task stopped")

	return returned
}

func (r *Runner) callStop(stopper Stopper) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Task stop hook panicked", slog.Any("panic", p))
		}
	}()

	if err := stopper.Stop(); err != nil {
		r.log.Error("Task stop hook failed", slog.Any("error", err))
	}
}

// publish mirrors s into shared state. It runs without r.mu held since
// store listeners execute synchronously.
func (r *Runner) publish(s RunState) {
	if r.store != nil {
		r.store.Set(state.TaskStatusKey(r.def.ID), s.String())
	}
}

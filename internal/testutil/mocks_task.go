package testutil

import (
	"context"
	"sync"

	"github.com/Norgate-AV/winpilot/internal/task"
)

// FakeBody is a scripted task body. By default Start blocks until its
// context is cancelled or Finish is called, then reports success.
type FakeBody struct {
	mu           sync.Mutex
	ok           bool
	err          error
	panicValue   any
	immediate    bool
	ignoreCancel bool
	stopErr      error
	onStart      func(ctx context.Context)
	startCalls   int
	stopCalls    int
	env          task.Env

	started     chan struct{}
	startedOnce sync.Once
	release     chan struct{}
	releaseOnce sync.Once
}

func NewFakeBody() *FakeBody {
	return &FakeBody{
		ok:      true,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

// Helper methods for fluent configuration

// WithResult sets what Start returns
func (b *FakeBody) WithResult(ok bool, err error) *FakeBody {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ok, b.err = ok, err
	return b
}

// WithPanic makes Start panic with v
func (b *FakeBody) WithPanic(v any) *FakeBody {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.panicValue = v
	return b
}

// Immediate makes Start return without blocking
func (b *FakeBody) Immediate() *FakeBody {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.immediate = true
	return b
}

// IgnoringCancel makes Start keep blocking after its context is cancelled,
// like a body that never checks for stop. Only Finish releases it.
func (b *FakeBody) IgnoringCancel() *FakeBody {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ignoreCancel = true
	return b
}

// WithStopError makes the Stop hook fail
func (b *FakeBody) WithStopError(err error) *FakeBody {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopErr = err
	return b
}

// OnStart runs fn at the top of Start on the body's goroutine
func (b *FakeBody) OnStart(fn func(ctx context.Context)) *FakeBody {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.onStart = fn
	return b
}

func (b *FakeBody) Start(ctx context.Context) (bool, error) {
	b.mu.Lock()
	b.startCalls++
	ok, err, panicValue := b.ok, b.err, b.panicValue
	immediate, ignoreCancel, onStart := b.immediate, b.ignoreCancel, b.onStart
	b.mu.Unlock()

	b.startedOnce.Do(func() { close(b.started) })

	if onStart != nil {
		onStart(ctx)
	}

	if panicValue != nil {
		panic(panicValue)
	}

	if !immediate {
		if ignoreCancel {
			<-b.release
		} else {
			select {
			case <-b.release:
			case <-ctx.Done():
			}
		}
	}

	return ok, err
}

func (b *FakeBody) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopCalls++
	return b.stopErr
}

// Started is closed when Start is first entered
func (b *FakeBody) Started() <-chan struct{} {
	return b.started
}

// Finish makes a blocked Start return
func (b *FakeBody) Finish() {
	b.releaseOnce.Do(func() { close(b.release) })
}

func (b *FakeBody) StartCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.startCalls
}

func (b *FakeBody) StopCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.stopCalls
}

// Env returns the environment the factory was last called with
func (b *FakeBody) Env() task.Env {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.env
}

// Factory returns a factory that always yields b
func (b *FakeBody) Factory() task.Factory {
	return func(env task.Env) (task.Body, error) {
		b.mu.Lock()
		b.env = env
		b.mu.Unlock()

		return b, nil
	}
}

// FailingFactory returns a factory that fails with err
func FailingFactory(err error) task.Factory {
	return func(task.Env) (task.Body, error) {
		return nil, err
	}
}

// EventRecorder collects task events. It is safe for concurrent use.
type EventRecorder struct {
	mu     sync.Mutex
	events []task.Event
}

func (r *EventRecorder) Observe(ev task.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
}

// Events returns every recorded event in delivery order
func (r *EventRecorder) Events() []task.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]task.Event, len(r.events))
	copy(out, r.events)

	return out
}

// Types returns the recorded event types in delivery order
func (r *EventRecorder) Types() []task.EventType {
	var types []task.EventType
	for _, ev := range r.Events() {
		types = append(types, ev.Type)
	}

	return types
}

package task_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/winpilot/internal/state"
	"github.com/Norgate-AV/winpilot/internal/task"
	"github.com/Norgate-AV/winpilot/internal/testutil"
)

var runnerDef = task.Definition{ID: "R1", Name: "R1", ScriptReference: "r", Category: "Test", Enabled: true}

func waitDone(t *testing.T, r *task.Runner) {
	t.Helper()

	select {
	case <-r.Done():
	case <-time.After(eventually):
		t.Fatal("runner did not finish")
	}
}

func TestRunner_StartAndStop(t *testing.T) {
	t.Parallel()

	store := state.New(nil)
	body := testutil.NewFakeBody()
	r := task.NewRunner(runnerDef, body.Factory(), task.Env{TaskID: "R1"}, store, nil)

	assert.Equal(t, task.Stopped, r.State())
	require.NoError(t, r.Start())
	assert.Equal(t, task.Running, r.State())
	assert.NotEmpty(t, r.RunID())
	assert.False(t, r.StartedAt().IsZero())

	status, _ := store.Get(state.TaskStatusKey("R1"))
	assert.Equal(t, "running", status)
	assert.True(t, store.Has(state.TaskStartTimeKey("R1")))

	<-body.Started()
	assert.True(t, r.Stop(context.Background()))
	assert.Equal(t, task.Stopped, r.State())

	status, _ = store.Get(state.TaskStatusKey("R1"))
	assert.Equal(t, "stopped", status)
}

func TestRunner_StartWhileRunning(t *testing.T) {
	t.Parallel()

	body := testutil.NewFakeBody()
	r := task.NewRunner(runnerDef, body.Factory(), task.Env{}, nil, nil)
	defer r.Stop(context.Background())

	require.NoError(t, r.Start())
	assert.ErrorIs(t, r.Start(), task.ErrAlreadyRunning)
}

func TestRunner_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	body := testutil.NewFakeBody()
	r := task.NewRunner(runnerDef, body.Factory(), task.Env{}, nil, nil)

	assert.True(t, r.Stop(context.Background()), "stopping a runner that never ran")

	require.NoError(t, r.Start())
	<-body.Started()

	assert.True(t, r.Stop(context.Background()))
	assert.True(t, r.Stop(context.Background()))
	assert.Equal(t, task.Stopped, r.State())
	assert.Equal(t, 1, body.StopCalls())
}

func TestRunner_ConcurrentStopsAreSafe(t *testing.T) {
	t.Parallel()

	body := testutil.NewFakeBody()
	r := task.NewRunner(runnerDef, body.Factory(), task.Env{}, nil, nil)
	require.NoError(t, r.Start())
	<-body.Started()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Stop(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, task.Stopped, r.State())
}

func TestRunner_FactoryFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("missing template")
	r := task.NewRunner(runnerDef, testutil.FailingFactory(cause), task.Env{}, nil, nil)

	err := r.Start()
	require.ErrorIs(t, err, task.ErrStartFailed)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, task.Error, r.State())
	assert.ErrorIs(t, r.Err(), cause)
}

func TestRunner_FactoryPanic(t *testing.T) {
	t.Parallel()

	factory := func(task.Env) (task.Body, error) { panic("bad settings") }
	r := task.NewRunner(runnerDef, factory, task.Env{}, nil, nil)

	err := r.Start()
	assert.ErrorIs(t, err, task.ErrStartFailed)
	assert.ErrorIs(t, err, task.ErrBodyPanic)
	assert.Equal(t, task.Error, r.State())
}

func TestRunner_NilFactoryOrBody(t *testing.T) {
	t.Parallel()

	r := task.NewRunner(runnerDef, nil, task.Env{}, nil, nil)
	assert.ErrorIs(t, r.Start(), task.ErrStartFailed)

	nilBody := func(task.Env) (task.Body, error) { return nil, nil }
	r = task.NewRunner(runnerDef, nilBody, task.Env{}, nil, nil)
	assert.ErrorIs(t, r.Start(), task.ErrStartFailed)
}

func TestRunner_NaturalEnd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		ok    bool
		err   error
		state task.RunState
	}{
		{"success", true, nil, task.Stopped},
		{"handled failure", false, nil, task.Stopped},
		{"error", false, errors.New("lost connection"), task.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var mu sync.Mutex
			var exits []task.RunState

			body := testutil.NewFakeBody().Immediate().WithResult(tt.ok, tt.err)
			r := task.NewRunner(runnerDef, body.Factory(), task.Env{}, state.New(nil), nil,
				task.WithExitHandler(func(_ *task.Runner, s task.RunState, _ error) {
					mu.Lock()
					defer mu.Unlock()
					exits = append(exits, s)
				}),
			)

			require.NoError(t, r.Start())
			waitDone(t, r)

			assert.Equal(t, tt.state, r.State())
			mu.Lock()
			assert.Equal(t, []task.RunState{tt.state}, exits)
			mu.Unlock()
		})
	}
}

func TestRunner_StopClearsError(t *testing.T) {
	t.Parallel()

	store := state.New(nil)
	body := testutil.NewFakeBody().Immediate().WithResult(false, errors.New("lost connection"))
	r := task.NewRunner(runnerDef, body.Factory(), task.Env{}, store, nil)

	require.NoError(t, r.Start())
	waitDone(t, r)
	require.Equal(t, task.Error, r.State())

	assert.True(t, r.Stop(context.Background()))
	assert.Equal(t, task.Stopped, r.State())
	assert.NoError(t, r.Err())

	status, _ := store.Get(state.TaskStatusKey("R1"))
	assert.Equal(t, "stopped", status)
	assert.Zero(t, body.StopCalls())
}

func TestRunner_ExitHandlerNotCalledAfterStop(t *testing.T) {
	t.Parallel()

	called := false
	body := testutil.NewFakeBody()
	r := task.NewRunner(runnerDef, body.Factory(), task.Env{}, nil, nil,
		task.WithExitHandler(func(*task.Runner, task.RunState, error) { called = true }),
	)

	require.NoError(t, r.Start())
	<-body.Started()
	r.Stop(context.Background())
	waitDone(t, r)

	assert.False(t, called)
}

func TestRunner_StopTimeout(t *testing.T) {
	t.Parallel()

	body := testutil.NewFakeBody().IgnoringCancel()
	defer body.Finish()

	r := task.NewRunner(runnerDef, body.Factory(), task.Env{}, nil, nil, task.WithStopTimeout(30*time.Millisecond))
	require.NoError(t, r.Start())
	<-body.Started()

	assert.False(t, r.Stop(context.Background()))
	assert.Equal(t, task.Stopped, r.State())
}

func TestRunner_GateHoldsBody(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	body := testutil.NewFakeBody().Immediate()
	r := task.NewRunner(runnerDef, body.Factory(), task.Env{}, nil, nil, task.WithGate(gate))

	require.NoError(t, r.Start())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, body.StartCalls())

	close(gate)
	waitDone(t, r)
	assert.Equal(t, 1, body.StartCalls())
}

func TestRunIDFromContext(t *testing.T) {
	t.Parallel()

	_, ok := task.RunIDFromContext(context.Background())
	assert.False(t, ok)

	seen := make(chan string, 1)
	body := testutil.NewFakeBody().Immediate().OnStart(func(ctx context.Context) {
		id, _ := task.RunIDFromContext(ctx)
		seen <- id
	})

	r := task.NewRunner(runnerDef, body.Factory(), task.Env{}, nil, nil)
	require.NoError(t, r.Start())
	waitDone(t, r)

	assert.Equal(t, r.RunID(), <-seen)
}

func TestSettings_Decode(t *testing.T) {
	t.Parallel()

	var cfg struct {
		Interval time.Duration `mapstructure:"interval"`
		Count    int           `mapstructure:"count"`
		Enabled  bool          `mapstructure:"enabled"`
		Keys     []string      `mapstructure:"keys"`
	}

	s := task.Settings{"interval": "1.5s", "count": "3", "enabled": 1, "keys": "a,b"}
	require.NoError(t, s.Decode(&cfg))

	assert.Equal(t, 1500*time.Millisecond, cfg.Interval)
	assert.Equal(t, 3, cfg.Count)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, []string{"a", "b"}, cfg.Keys)

	assert.Error(t, task.Settings{"count": "many"}.Decode(&cfg))
}

func TestCatalog(t *testing.T) {
	t.Parallel()

	c := task.NewCatalog()
	require.NoError(t, c.Register("b", testutil.NewFakeBody().Factory()))
	require.NoError(t, c.Register("a", testutil.NewFakeBody().Factory()))

	assert.Error(t, c.Register("a", testutil.NewFakeBody().Factory()))
	assert.Error(t, c.Register("", testutil.NewFakeBody().Factory()))
	assert.Panics(t, func() { c.MustRegister("a", testutil.NewFakeBody().Factory()) })

	assert.True(t, c.Has("a"))
	assert.False(t, c.Has("z"))
	assert.Equal(t, []string{"a", "b"}, c.Names())
}

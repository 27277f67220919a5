package bodies_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/winpilot/internal/bodies"
	"github.com/Norgate-AV/winpilot/internal/input"
	"github.com/Norgate-AV/winpilot/internal/keyboard"
	"github.com/Norgate-AV/winpilot/internal/mouse"
	"github.com/Norgate-AV/winpilot/internal/state"
	"github.com/Norgate-AV/winpilot/internal/task"
	"github.com/Norgate-AV/winpilot/internal/testutil"
	"github.com/Norgate-AV/winpilot/internal/windows"
	"github.com/Norgate-AV/winpilot/internal/winmsg"
)

const (
	targetHwnd uintptr = 0x42

	vkQ winmsg.VirtualKey = 0x51
)

// waits records input.Manager waits without blocking and cancels the run
// once a limit is reached
type waits struct {
	mu     sync.Mutex
	got    []time.Duration
	limit  int
	cancel context.CancelFunc
}

func (w *waits) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.got = append(w.got, d)
	hit := w.limit > 0 && len(w.got) >= w.limit
	w.mu.Unlock()

	if hit && w.cancel != nil {
		w.cancel()
	}

	return ctx.Err()
}

func (w *waits) Got() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]time.Duration(nil), w.got...)
}

type fixture struct {
	ft    *testutil.FakeTransport
	store *state.Store
	waits *waits
	input *input.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ft:    testutil.NewFakeTransport(),
		store: state.New(nil),
		waits: &waits{},
	}
	f.store.Set(state.KeyTargetWindow, windows.WindowInfo{Hwnd: targetHwnd, Title: "Game", Visible: true})

	clock := testutil.NewFakeClock()
	prim := winmsg.NewPrimitives(f.ft, nil)
	dev := input.Devices{
		Primitives: prim,
		Keyboard:   keyboard.New(prim, nil, keyboard.WithSleep(clock.Sleep), keyboard.WithClock(clock.Now)),
		Mouse:      mouse.New(prim, nil, mouse.WithSleep(clock.Sleep), mouse.WithClock(clock.Now)),
	}
	f.input = input.NewManager(f.store, dev, nil,
		input.WithSleep(testutil.NoSleep),
		input.WithWait(f.waits.wait),
	)
	t.Cleanup(f.input.Close)

	return f
}

func (f *fixture) env(settings map[string]any) task.Env {
	return task.Env{TaskID: "t", Settings: settings, Input: f.input, State: f.store}
}

func (f *fixture) clicksAt(x, y int) int {
	n := 0
	for _, ev := range f.ft.MouseEvents() {
		if ev.Msg == winmsg.WM_LBUTTONDOWN && ev.X == x && ev.Y == y {
			n++
		}
	}

	return n
}

func TestRegister(t *testing.T) {
	t.Parallel()

	c := task.NewCatalog()
	require.NoError(t, bodies.Register(c))
	assert.Equal(t, []string{bodies.RefActions, bodies.RefAutoClick, bodies.RefKeyHold}, c.Names())

	assert.Error(t, bodies.Register(c), "second registration collides")
}

func TestFactories_RequireInput(t *testing.T) {
	t.Parallel()

	for _, factory := range []task.Factory{bodies.NewActions, bodies.NewAutoClick, bodies.NewKeyHold} {
		_, err := factory(task.Env{Settings: task.Settings{"key": "a", "actions": []any{map[string]any{"type": "wait"}}}})
		assert.ErrorIs(t, err, bodies.ErrNoInput)
	}
}

func TestFactories_RejectBadSettings(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	tests := []struct {
		name     string
		factory  task.Factory
		settings map[string]any
	}{
		{"actions missing", bodies.NewActions, map[string]any{}},
		{"actions invalid step", bodies.NewActions, map[string]any{"actions": []any{map[string]any{"type": "teleport"}}}},
		{"actions negative loop", bodies.NewActions, map[string]any{"loop": -1, "actions": []any{map[string]any{"type": "wait"}}}},
		{"autoclick bad button", bodies.NewAutoClick, map[string]any{"button": "fourth"}},
		{"autoclick zero interval", bodies.NewAutoClick, map[string]any{"interval": "0s"}},
		{"autoclick bad duration", bodies.NewAutoClick, map[string]any{"interval": "soon"}},
		{"keyhold missing key", bodies.NewKeyHold, map[string]any{}},
		{"keyhold unknown key", bodies.NewKeyHold, map[string]any{"key": "hyper"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tt.factory(f.env(tt.settings))
			assert.ErrorIs(t, err, bodies.ErrInvalidSettings)
		})
	}
}

func TestActions_LoopsWithInterval(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	body, err := bodies.NewActions(f.env(map[string]any{
		"loop":     "3",
		"interval": "2s",
		"actions": []any{
			map[string]any{"type": "click", "x": 10, "y": 20},
			map[string]any{"type": "key", "key": "f", "delay": "100ms"},
		},
	}))
	require.NoError(t, err)

	ok, err := body.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 3, f.clicksAt(10, 20))
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond, 2 * time.Second,
		100 * time.Millisecond, 2 * time.Second,
		100 * time.Millisecond,
	}, f.waits.Got())
}

func TestActions_UntilStopped(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.waits.limit, f.waits.cancel = 4, cancel

	body, err := bodies.NewActions(f.env(map[string]any{
		"loop":     0,
		"interval": "1s",
		"actions":  []any{map[string]any{"type": "click", "x": 1, "y": 1}},
	}))
	require.NoError(t, err)

	ok, err := body.Start(ctx)
	require.NoError(t, err, "cancellation is a clean stop")
	assert.True(t, ok)
	assert.Equal(t, 4, f.clicksAt(1, 1))
}

func TestActions_InputFailureIsAnError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.Delete(state.KeyTargetWindow)

	body, err := bodies.NewActions(f.env(map[string]any{
		"actions": []any{map[string]any{"type": "click", "x": 1, "y": 1}},
	}))
	require.NoError(t, err)

	ok, err := body.Start(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, input.ErrNoTargetWindow)
}

func TestAutoClick_Count(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	body, err := bodies.NewAutoClick(f.env(map[string]any{
		"x": 300, "y": 200, "count": 5, "interval": "250ms",
	}))
	require.NoError(t, err)

	ok, err := body.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 5, f.clicksAt(300, 200))
	assert.Len(t, f.waits.Got(), 4)
	for _, d := range f.waits.Got() {
		assert.Equal(t, 250*time.Millisecond, d)
	}
}

func TestAutoClick_RightButtonHold(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	body, err := bodies.NewAutoClick(f.env(map[string]any{
		"x": 5, "y": 6, "count": 1, "button": "Right", "hold": "300ms",
	}))
	require.NoError(t, err)

	_, err = body.Start(context.Background())
	require.NoError(t, err)

	var msgs []uint32
	for _, ev := range f.ft.MouseEvents() {
		msgs = append(msgs, ev.Msg)
	}
	assert.Contains(t, msgs, uint32(winmsg.WM_RBUTTONDOWN))
	assert.Contains(t, msgs, uint32(winmsg.WM_RBUTTONUP))
	assert.NotContains(t, msgs, uint32(winmsg.WM_LBUTTONDOWN))
}

func TestKeyHold(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	body, err := bodies.NewKeyHold(f.env(map[string]any{
		"key": "Q", "count": 2, "hold": "1s", "interval": "3s",
	}))
	require.NoError(t, err)

	ok, err := body.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []testutil.KeyEvent{
		testutil.Down(vkQ), testutil.Up(vkQ),
		testutil.Down(vkQ), testutil.Up(vkQ),
	}, f.ft.KeyEvents())
	assert.Equal(t, []time.Duration{3 * time.Second}, f.waits.Got())
}

func TestBodies_RunUnderManager(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	catalog := task.NewCatalog()
	require.NoError(t, bodies.Register(catalog))

	defs := []task.Definition{{ID: "clicker", Name: "Clicker", ScriptReference: bodies.RefAutoClick, Category: "Combat", Enabled: true}}
	registry, err := task.NewRegistry(task.StaticSource{Definitions: defs}, catalog, nil)
	require.NoError(t, err)

	manager := task.NewManager(registry, catalog, nil,
		task.WithInput(f.input),
		task.WithState(f.store),
		task.WithSettings(task.StaticSettings{"clicker": {"x": 7, "y": 8, "count": 2, "interval": "10ms"}}),
	)
	recorder := &testutil.EventRecorder{}
	manager.Subscribe(recorder.Observe)

	require.NoError(t, manager.StartTask("clicker"))

	assert.Eventually(t, func() bool {
		return len(recorder.Types()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []task.EventType{task.EventStarted, task.EventStopped}, recorder.Types())
	assert.Equal(t, 2, f.clicksAt(7, 8))
	assert.Equal(t, task.Ready, manager.GetStatus("clicker"))
}

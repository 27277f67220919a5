package mouse_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/winpilot/internal/mouse"
	"github.com/Norgate-AV/winpilot/internal/testutil"
	"github.com/Norgate-AV/winpilot/internal/winmsg"
)

const hwnd = uintptr(0xCAFE)

func newController(ft *testutil.FakeTransport, clock *testutil.FakeClock) *mouse.Controller {
	return mouse.New(winmsg.NewPrimitives(ft, nil), nil,
		mouse.WithSleep(clock.Sleep),
		mouse.WithClock(clock.Now),
	)
}

func TestClick(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	m := newController(ft, testutil.NewFakeClock())

	require.NoError(t, m.Click(hwnd, 10, 20, winmsg.ButtonLeft))

	assert.Equal(t, []testutil.MouseEvent{
		{Msg: winmsg.WM_LBUTTONDOWN, X: 10, Y: 20},
		{Msg: winmsg.WM_LBUTTONUP, X: 10, Y: 20},
	}, ft.MouseEvents())
}

func TestClick_UnknownButton(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	m := newController(ft, testutil.NewFakeClock())

	assert.ErrorIs(t, m.Click(hwnd, 1, 1, winmsg.Button("thumb")), winmsg.ErrUnknownButton)
	assert.Empty(t, ft.Messages())
}

func TestDoubleClick(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	m := newController(ft, testutil.NewFakeClock())

	require.NoError(t, m.DoubleClick(hwnd, 3, 4, winmsg.ButtonRight))

	assert.Equal(t, []testutil.MouseEvent{
		{Msg: winmsg.WM_RBUTTONDOWN, X: 3, Y: 4},
		{Msg: winmsg.WM_RBUTTONUP, X: 3, Y: 4},
		{Msg: winmsg.WM_RBUTTONDBLCLK, X: 3, Y: 4},
		{Msg: winmsg.WM_RBUTTONUP, X: 3, Y: 4},
	}, ft.MouseEvents())
}

func TestDownUpAreUnpaired(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	m := newController(ft, testutil.NewFakeClock())

	require.NoError(t, m.Down(hwnd, 5, 5, winmsg.ButtonMiddle))
	assert.Equal(t, []testutil.MouseEvent{{Msg: winmsg.WM_MBUTTONDOWN, X: 5, Y: 5}}, ft.MouseEvents())

	require.NoError(t, m.Up(hwnd, 6, 6, winmsg.ButtonMiddle))
	assert.Len(t, ft.MouseEvents(), 2)
}

func TestPressAndHold(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	clock := testutil.NewFakeClock()
	m := newController(ft, clock)

	require.NoError(t, m.PressAndHold(hwnd, 1, 2, winmsg.ButtonLeft, 300*time.Millisecond))
	assert.Len(t, ft.MouseEvents(), 2)
	assert.Equal(t, 300*time.Millisecond, clock.Elapsed())

	ft.Reset()
	require.NoError(t, m.PressAndHold(hwnd, 1, 2, winmsg.ButtonLeft, -1))
	assert.Len(t, ft.MouseEvents(), 2)
}

func TestScroll(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	m := newController(ft, testutil.NewFakeClock())

	require.NoError(t, m.Scroll(hwnd, "down", 3, 50, 60))
	require.NoError(t, m.Scroll(hwnd, "up", 0, 50, 60))
	assert.ErrorIs(t, m.Scroll(hwnd, "sideways", 1, 0, 0), mouse.ErrUnknownDirection)

	msgs := ft.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, -360, winmsg.UnpackWheelWParam(msgs[0].WParam))
	assert.Equal(t, 120, winmsg.UnpackWheelWParam(msgs[1].WParam))
}

func TestMultiButtonPress(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	m := newController(ft, testutil.NewFakeClock())

	require.NoError(t, m.MultiButtonPress(hwnd, 0, 0, []winmsg.Button{winmsg.ButtonLeft, winmsg.ButtonRight}))

	assert.Equal(t, []testutil.MouseEvent{
		{Msg: winmsg.WM_LBUTTONDOWN},
		{Msg: winmsg.WM_RBUTTONDOWN},
	}, ft.MouseEvents())
}

func TestMultiButtonPress_FailureReleasesPressedButtons(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport().WithMessageFailure(winmsg.WM_MBUTTONDOWN)
	m := newController(ft, testutil.NewFakeClock())

	err := m.MultiButtonPress(hwnd, 0, 0, []winmsg.Button{winmsg.ButtonLeft, winmsg.ButtonRight, winmsg.ButtonMiddle})
	assert.ErrorIs(t, err, winmsg.ErrSendFailed)

	assert.Equal(t, []testutil.MouseEvent{
		{Msg: winmsg.WM_LBUTTONDOWN},
		{Msg: winmsg.WM_RBUTTONDOWN},
		{Msg: winmsg.WM_RBUTTONUP},
		{Msg: winmsg.WM_LBUTTONUP},
	}, ft.MouseEvents())
}

func TestReleaseMultiButton_ReverseOrder(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	m := newController(ft, testutil.NewFakeClock())

	require.NoError(t, m.ReleaseMultiButton(hwnd, 0, 0, []winmsg.Button{winmsg.ButtonLeft, winmsg.ButtonRight}))

	assert.Equal(t, []testutil.MouseEvent{
		{Msg: winmsg.WM_RBUTTONUP},
		{Msg: winmsg.WM_LBUTTONUP},
	}, ft.MouseEvents())
}

func TestReleaseMultiButton_FirstFailureShortCircuits(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport().WithMessageFailure(winmsg.WM_RBUTTONUP)
	m := newController(ft, testutil.NewFakeClock())

	err := m.ReleaseMultiButton(hwnd, 0, 0, []winmsg.Button{winmsg.ButtonLeft, winmsg.ButtonRight})
	assert.ErrorIs(t, err, winmsg.ErrSendFailed)

	// left is never attempted
	assert.Empty(t, ft.MouseEvents())
	assert.Len(t, ft.Failed(), 1)
}

func TestGesture_RequiresTwoPoints(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	m := newController(ft, testutil.NewFakeClock())

	assert.ErrorIs(t, m.Gesture(hwnd, nil), mouse.ErrGestureTooShort)
	assert.ErrorIs(t, m.Gesture(hwnd, []mouse.GesturePoint{{X: 1, Y: 1}}), mouse.ErrGestureTooShort)
	assert.Empty(t, ft.Messages())
}

func TestGesture_PressesAtPoints(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	m := newController(ft, testutil.NewFakeClock())

	err := m.Gesture(hwnd, []mouse.GesturePoint{
		{X: 0, Y: 0},
		{X: 10, Y: 10, Button: winmsg.ButtonLeft, Hold: 50 * time.Millisecond},
		{X: 20, Y: 5, Button: winmsg.ButtonRight},
	})
	require.NoError(t, err)

	assert.Equal(t, []testutil.MouseEvent{
		{Msg: winmsg.WM_MOUSEMOVE, X: 0, Y: 0},
		{Msg: winmsg.WM_MOUSEMOVE, X: 10, Y: 10},
		{Msg: winmsg.WM_LBUTTONDOWN, X: 10, Y: 10},
		{Msg: winmsg.WM_LBUTTONUP, X: 10, Y: 10},
		{Msg: winmsg.WM_MOUSEMOVE, X: 20, Y: 5},
		{Msg: winmsg.WM_RBUTTONDOWN, X: 20, Y: 5},
	}, ft.MouseEvents())
}

func TestDrag_Horizontal(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	m := newController(ft, testutil.NewFakeClock())

	require.NoError(t, m.Drag(hwnd, 0, 0, 100, 0, winmsg.ButtonLeft))

	events := ft.MouseEvents()
	require.GreaterOrEqual(t, len(events), 4)

	// first press is at the start
	var down, up int = -1, -1
	for i, e := range events {
		if e.Msg == winmsg.WM_LBUTTONDOWN && down < 0 {
			down = i
		}
		if e.Msg == winmsg.WM_LBUTTONUP {
			up = i
		}
	}

	require.GreaterOrEqual(t, down, 0)
	assert.Equal(t, testutil.MouseEvent{Msg: winmsg.WM_LBUTTONDOWN, X: 0, Y: 0}, events[down])
	assert.Equal(t, testutil.MouseEvent{Msg: winmsg.WM_LBUTTONUP, X: 100, Y: 0}, events[up])
	assert.Equal(t, len(events)-1, up)

	moves := events[down+1 : up]
	require.Len(t, moves, mouse.DragSteps(100, 0))

	last := 0
	for _, mv := range moves {
		assert.Equal(t, uint32(winmsg.WM_MOUSEMOVE), mv.Msg)
		assert.Greater(t, mv.X, last)
		assert.Equal(t, 0, mv.Y)
		last = mv.X
	}
	assert.Equal(t, 100, last)
}

func TestDrag_IsDeterministic(t *testing.T) {
	t.Parallel()

	first := mouse.DragPath(5, 7, -40, 93)
	second := mouse.DragPath(5, 7, -40, 93)

	assert.Equal(t, first, second)
	assert.Equal(t, mouse.Point{X: -40, Y: 93}, first[len(first)-1])
	assert.Len(t, first, 8)
}

func TestDragSteps(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, mouse.DragSteps(0, 0))
	assert.Equal(t, 1, mouse.DragSteps(9, 3))
	assert.Equal(t, 10, mouse.DragSteps(100, 0))
	assert.Equal(t, 10, mouse.DragSteps(-30, -100))
}

func TestDrag_MoveFailureReleasesButton(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport().WithFailure(winmsg.WM_MOUSEMOVE, winmsg.MK_LBUTTON)
	m := newController(ft, testutil.NewFakeClock())

	err := m.Drag(hwnd, 0, 0, 50, 0, winmsg.ButtonLeft)
	assert.ErrorIs(t, err, winmsg.ErrSendFailed)

	events := ft.MouseEvents()
	require.Len(t, events, 3)
	assert.Equal(t, uint32(winmsg.WM_LBUTTONUP), events[2].Msg)
}

func TestClickSequence(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	clock := testutil.NewFakeClock()
	m := newController(ft, clock)

	points := []mouse.Point{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	require.NoError(t, m.ClickSequence(hwnd, points, winmsg.ButtonLeft, 100*time.Millisecond))

	assert.Len(t, ft.MouseEvents(), 6)
	assert.Equal(t, 3*10*time.Millisecond+2*100*time.Millisecond, clock.Elapsed())
}

func TestSequence(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	m := newController(ft, testutil.NewFakeClock())

	err := m.Sequence(hwnd, []mouse.Step{
		{X: 1, Y: 1, Button: winmsg.ButtonLeft, Press: true},
		{X: 2, Y: 2, Button: winmsg.ButtonLeft, Press: false},
		{X: 3, Y: 3, Button: winmsg.ButtonRight, Press: true, Hold: time.Millisecond},
	})
	require.NoError(t, err)

	assert.Equal(t, []testutil.MouseEvent{
		{Msg: winmsg.WM_LBUTTONDOWN, X: 1, Y: 1},
		{Msg: winmsg.WM_LBUTTONUP, X: 2, Y: 2},
		{Msg: winmsg.WM_RBUTTONDOWN, X: 3, Y: 3},
		{Msg: winmsg.WM_RBUTTONUP, X: 3, Y: 3},
	}, ft.MouseEvents())
}

func TestIsPressedAndWaitForRelease(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport().WithKeyDown(winmsg.VK_RBUTTON)
	clock := testutil.NewFakeClock()
	m := newController(ft, clock)

	pressed, err := m.IsPressed(winmsg.ButtonRight)
	require.NoError(t, err)
	assert.True(t, pressed)

	released, err := m.WaitForRelease(winmsg.ButtonRight, 200*time.Millisecond, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, released)
	assert.Equal(t, 200*time.Millisecond, clock.Elapsed())

	released, err = m.WaitForRelease(winmsg.ButtonLeft, 200*time.Millisecond, 0)
	require.NoError(t, err)
	assert.True(t, released)

	_, err = m.WaitForRelease(winmsg.Button("x2"), time.Second, 0)
	assert.ErrorIs(t, err, winmsg.ErrUnknownButton)
}

package winmsg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/winpilot/internal/testutil"
	"github.com/Norgate-AV/winpilot/internal/winmsg"
)

const hwnd = uintptr(0x1234)

func TestMouseLParam_RoundTrip(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uintptr(20<<16|10), winmsg.MouseLParam(10, 20))

	x, y := winmsg.UnpackMouseLParam(winmsg.MouseLParam(-5, 300))
	assert.Equal(t, -5, x)
	assert.Equal(t, 300, y)
}

func TestKeyLParam(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uintptr(1), winmsg.KeyLParam(0, 1, false, false))
	assert.Equal(t, uintptr(0xC0000001), winmsg.KeyLParam(0, 1, false, true))
	assert.Equal(t, uintptr(0x011E0001), winmsg.KeyLParam(0x1E, 1, true, false))
}

func TestWheelWParam(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 120, winmsg.UnpackWheelWParam(winmsg.WheelWParam(120, 0)))
	assert.Equal(t, -240, winmsg.UnpackWheelWParam(winmsg.WheelWParam(-240, 0)))
}

func TestPrimitives_KeyDownUp(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	p := winmsg.NewPrimitives(ft, nil)

	require.NoError(t, p.KeyDownName(hwnd, "a"))
	require.NoError(t, p.KeyUp(hwnd, 0x41))

	msgs := ft.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, testutil.Message{Hwnd: hwnd, Msg: winmsg.WM_KEYDOWN, WParam: 0x41, LParam: 1}, msgs[0])
	assert.Equal(t, uint32(winmsg.WM_KEYUP), msgs[1].Msg)
}

func TestPrimitives_UnknownKeySendsNothing(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	p := winmsg.NewPrimitives(ft, nil)

	err := p.KeyDownName(hwnd, "hyper")
	assert.ErrorIs(t, err, winmsg.ErrUnknownKey)
	assert.Empty(t, ft.Messages())
}

func TestPrimitives_InvalidWindow(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport().WithInvalidWindow(hwnd)
	p := winmsg.NewPrimitives(ft, nil)

	assert.ErrorIs(t, p.KeyDown(hwnd, 0x41), winmsg.ErrInvalidWindow)
	assert.ErrorIs(t, p.MouseMove(0, 1, 1), winmsg.ErrInvalidWindow)
	assert.Empty(t, ft.Messages())
}

func TestPrimitives_SendFailureIsWrapped(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport().WithMessageFailure(winmsg.WM_LBUTTONDOWN)
	p := winmsg.NewPrimitives(ft, nil)

	err := p.MouseDown(hwnd, 1, 2, winmsg.ButtonLeft)
	assert.ErrorIs(t, err, winmsg.ErrSendFailed)
	assert.ErrorIs(t, err, testutil.ErrInjectedSend)
	assert.Len(t, ft.Failed(), 1)
}

func TestPrimitives_MouseMessages(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	p := winmsg.NewPrimitives(ft, nil)

	require.NoError(t, p.MouseDown(hwnd, 5, 6, winmsg.ButtonRight))
	require.NoError(t, p.MouseUp(hwnd, 5, 6, winmsg.ButtonRight))
	require.NoError(t, p.DoubleClick(hwnd, 7, 8, winmsg.ButtonMiddle))
	require.NoError(t, p.MouseWheel(hwnd, -120, 0, 0))

	msgs := ft.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, uint32(winmsg.WM_RBUTTONDOWN), msgs[0].Msg)
	assert.Equal(t, uintptr(winmsg.MK_RBUTTON), msgs[0].WParam)
	assert.Equal(t, uint32(winmsg.WM_RBUTTONUP), msgs[1].Msg)
	assert.Equal(t, uint32(winmsg.WM_MBUTTONDBLCLK), msgs[2].Msg)
	assert.Equal(t, -120, winmsg.UnpackWheelWParam(msgs[3].WParam))

	assert.ErrorIs(t, p.MouseDown(hwnd, 0, 0, winmsg.Button("x1")), winmsg.ErrUnknownButton)
}

func TestPrimitives_Char(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	p := winmsg.NewPrimitives(ft, nil)

	require.NoError(t, p.Char(hwnd, 'h'))
	require.NoError(t, p.Char(hwnd, '😀'))

	msgs := ft.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, uintptr('h'), msgs[0].WParam)
	assert.Equal(t, uintptr(0xD83D), msgs[1].WParam)
	assert.Equal(t, uintptr(0xDE00), msgs[2].WParam)
}

func TestPrimitives_SystemCommand(t *testing.T) {
	t.Parallel()

	ft := testutil.NewFakeTransport()
	p := winmsg.NewPrimitives(ft, nil)

	require.NoError(t, p.SystemCommand(hwnd, "Minimize"))
	require.NoError(t, p.SystemCommand(hwnd, "activate"))
	assert.ErrorIs(t, p.SystemCommand(hwnd, "explode"), winmsg.ErrUnknownCommand)

	msgs := ft.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, uintptr(winmsg.SC_MINIMIZE), msgs[0].WParam)
	assert.Equal(t, uint32(winmsg.WM_ACTIVATE), msgs[1].Msg)
	assert.Equal(t, []uintptr{hwnd}, ft.Activated())
}

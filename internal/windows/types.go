// Package windows wraps the Win32 calls used to find a target window and
// deliver synthetic input to it.
package windows

import "errors"

// ErrUnsupported is returned by every call on platforms without Win32
var ErrUnsupported = errors.New("win32 input is not supported on this platform")

// WindowInfo describes a top-level window and its client area
type WindowInfo struct {
	Hwnd    uintptr
	Title   string
	Pid     uint32
	X       int // client origin in screen coordinates
	Y       int
	Width   int // client area size
	Height  int
	Visible bool
}

// IsZero reports whether no window is described
func (w WindowInfo) IsZero() bool {
	return w.Hwnd == 0
}

// Console control event types
const (
	CTRL_C_EVENT        = 0
	CTRL_BREAK_EVENT    = 1
	CTRL_CLOSE_EVENT    = 2
	CTRL_LOGOFF_EVENT   = 5
	CTRL_SHUTDOWN_EVENT = 6
)

// GetCtrlTypeName returns a human-readable name for a control event type
func GetCtrlTypeName(ctrlType uint32) string {
	switch ctrlType {
	case CTRL_C_EVENT:
		return "CTRL_C"
	case CTRL_BREAK_EVENT:
		return "CTRL_BREAK"
	case CTRL_CLOSE_EVENT:
		return "CTRL_CLOSE"
	case CTRL_LOGOFF_EVENT:
		return "CTRL_LOGOFF"
	case CTRL_SHUTDOWN_EVENT:
		return "CTRL_SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// ConsoleCtrlHandler is a callback function for console control events
type ConsoleCtrlHandler func(ctrlType uint32) uintptr

// Package winmsg encodes and delivers atomic window messages to a window handle.
package winmsg

// Window message identifiers
const (
	WM_ACTIVATE      = 0x0006
	WM_KEYDOWN       = 0x0100
	WM_KEYUP         = 0x0101
	WM_CHAR          = 0x0102
	WM_SYSCOMMAND    = 0x0112
	WM_MOUSEMOVE     = 0x0200
	WM_LBUTTONDOWN   = 0x0201
	WM_LBUTTONUP     = 0x0202
	WM_LBUTTONDBLCLK = 0x0203
	WM_RBUTTONDOWN   = 0x0204
	WM_RBUTTONUP     = 0x0205
	WM_RBUTTONDBLCLK = 0x0206
	WM_MBUTTONDOWN   = 0x0207
	WM_MBUTTONUP     = 0x0208
	WM_MBUTTONDBLCLK = 0x0209
	WM_MOUSEWHEEL    = 0x020A
)

// Mouse key-state flags carried in wParam
const (
	MK_LBUTTON = 0x0001
	MK_RBUTTON = 0x0002
	MK_MBUTTON = 0x0010
)

// WHEEL_DELTA is one notch of the mouse wheel
const WHEEL_DELTA = 120

// WA_ACTIVE is the wParam for WM_ACTIVATE
const WA_ACTIVE = 1

// System command identifiers sent with WM_SYSCOMMAND
const (
	SC_MINIMIZE = 0xF020
	SC_MAXIMIZE = 0xF030
	SC_CLOSE    = 0xF060
	SC_RESTORE  = 0xF120
)

// MessageName returns a readable name for the messages this package sends
func MessageName(msg uint32) string {
	switch msg {
	case WM_ACTIVATE:
		return "WM_ACTIVATE"
	case WM_KEYDOWN:
		return "WM_KEYDOWN"
	case WM_KEYUP:
		return "WM_KEYUP"
	case WM_CHAR:
		return "WM_CHAR"
	case WM_SYSCOMMAND:
		return "WM_SYSCOMMAND"
	case WM_MOUSEMOVE:
		return "WM_MOUSEMOVE"
	case WM_LBUTTONDOWN:
		return "WM_LBUTTONDOWN"
	case WM_LBUTTONUP:
		return "WM_LBUTTONUP"
	case WM_LBUTTONDBLCLK:
		return "WM_LBUTTONDBLCLK"
	case WM_RBUTTONDOWN:
		return "WM_RBUTTONDOWN"
	case WM_RBUTTONUP:
		return "WM_RBUTTONUP"
	case WM_RBUTTONDBLCLK:
		return "WM_RBUTTONDBLCLK"
	case WM_MBUTTONDOWN:
		return "WM_MBUTTONDOWN"
	case WM_MBUTTONUP:
		return "WM_MBUTTONUP"
	case WM_MBUTTONDBLCLK:
		return "WM_MBUTTONDBLCLK"
	case WM_MOUSEWHEEL:
		return "WM_MOUSEWHEEL"
	default:
		return "UNKNOWN"
	}
}

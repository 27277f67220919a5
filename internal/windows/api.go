//go:build windows

package windows

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	procSendMessageTimeoutW      = user32.NewProc("SendMessageTimeoutW")
	procIsWindow                 = user32.NewProc("IsWindow")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procGetAsyncKeyState         = user32.NewProc("GetAsyncKeyState")
	procSetForegroundWindow      = user32.NewProc("SetForegroundWindow")
	procShowWindow               = user32.NewProc("ShowWindow")
	procEnumWindows              = user32.NewProc("EnumWindows")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procGetClientRect            = user32.NewProc("GetClientRect")
	procClientToScreen           = user32.NewProc("ClientToScreen")
	kernel32                     = windows.NewLazySystemDLL("kernel32.dll")
	procSetConsoleCtrlHandler    = kernel32.NewProc("SetConsoleCtrlHandler")
)

const (
	SMTO_ABORTIFHUNG = 0x0002
	SW_RESTORE       = 9
)

// DefaultSendTimeout bounds a single SendMessageTimeoutW call against a hung window
const DefaultSendTimeout = 5 * time.Second

// API is the Win32 implementation of the message transport and window enumeration
type API struct {
	sendTimeout time.Duration
}

// NewAPI creates an API. A zero timeout uses DefaultSendTimeout.
func NewAPI(sendTimeout time.Duration) *API {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}

	return &API{sendTimeout: sendTimeout}
}

// SendMessage delivers msg with SendMessageTimeoutW and blocks until the
// target window procedure returns, the window hangs, or the timeout elapses.
func (a *API) SendMessage(hwnd uintptr, msg uint32, wParam, lParam uintptr) (uintptr, error) {
	var result uintptr

	ret, _, err := procSendMessageTimeoutW.Call(
		hwnd,
		uintptr(msg),
		wParam,
		lParam,
		SMTO_ABORTIFHUNG,
		uintptr(a.sendTimeout.Milliseconds()),
		uintptr(unsafe.Pointer(&result)),
	)

	if ret == 0 {
		if errors.Is(err, windows.ERROR_SUCCESS) {
			return 0, fmt.Errorf("SendMessageTimeoutW timed out after %s", a.sendTimeout)
		}

		return 0, fmt.Errorf("SendMessageTimeoutW: %w", err)
	}

	return result, nil
}

// IsWindow reports whether hwnd identifies an existing window
func (a *API) IsWindow(hwnd uintptr) bool {
	ret, _, _ := procIsWindow.Call(hwnd)
	return ret != 0
}

// IsKeyDown reads the global async state of a virtual key
func (a *API) IsKeyDown(vk uint16) bool {
	ret, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return uint16(ret)&0x8000 != 0
}

// Activate restores and brings hwnd to the foreground
func (a *API) Activate(hwnd uintptr) error {
	procShowWindow.Call(hwnd, SW_RESTORE)

	ret, _, err := procSetForegroundWindow.Call(hwnd)
	if ret == 0 {
		return fmt.Errorf("SetForegroundWindow: %w", err)
	}

	return nil
}

// EnumerateWindows lists visible top-level windows with their client geometry
func (a *API) EnumerateWindows() []WindowInfo {
	return EnumerateWindows()
}

// IsElevated reports whether the process token is elevated
func (a *API) IsElevated() bool {
	return IsElevated()
}

// RelaunchAsAdmin restarts the current executable through the runas verb
func (a *API) RelaunchAsAdmin() error {
	return RelaunchAsAdmin()
}

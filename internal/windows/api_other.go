//go:build !windows

package windows

import "time"

// DefaultSendTimeout bounds a single message send
const DefaultSendTimeout = 5 * time.Second

// API fails every call on non-Windows platforms
type API struct{}

func NewAPI(_ time.Duration) *API {
	return &API{}
}

func (a *API) SendMessage(_ uintptr, _ uint32, _, _ uintptr) (uintptr, error) {
	return 0, ErrUnsupported
}

func (a *API) IsWindow(_ uintptr) bool { return false }

func (a *API) IsKeyDown(_ uint16) bool { return false }

func (a *API) Activate(_ uintptr) error { return ErrUnsupported }

func (a *API) EnumerateWindows() []WindowInfo { return nil }

func (a *API) IsElevated() bool { return IsElevated() }

func (a *API) RelaunchAsAdmin() error { return RelaunchAsAdmin() }

// IsElevated always reports true so no relaunch is attempted
func IsElevated() bool { return true }

func RelaunchAsAdmin() error { return ErrUnsupported }

func EnumerateWindows() []WindowInfo { return nil }

func SetConsoleCtrlHandler(_ ConsoleCtrlHandler) error { return nil }

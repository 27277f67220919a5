// Package interfaces defines core interfaces for dependency injection and testing.
package interfaces

import (
	"github.com/Norgate-AV/winpilot/internal/windows"
)

// MessageSender delivers window messages synchronously
type MessageSender interface {
	// SendMessage blocks until the target window has processed the message
	SendMessage(hwnd uintptr, msg uint32, wParam, lParam uintptr) (uintptr, error)
	IsWindow(hwnd uintptr) bool
}

// KeyStateReader reads global (not window-scoped) key and button state
type KeyStateReader interface {
	IsKeyDown(vk uint16) bool
}

// Transport is everything the message primitives need from the OS
type Transport interface {
	MessageSender
	KeyStateReader
	Activate(hwnd uintptr) error
}

// WindowEnumerator lists candidate target windows
type WindowEnumerator interface {
	EnumerateWindows() []windows.WindowInfo
}

// Elevator handles administrator privilege checks
type Elevator interface {
	IsElevated() bool
	RelaunchAsAdmin() error
}

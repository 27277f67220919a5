//go:build windows

package windows

import (
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

type rect struct {
	Left, Top, Right, Bottom int32
}

type point struct {
	X, Y int32
}

var (
	foundWindows []WindowInfo
	windowsMu    sync.Mutex
	enumCallback = syscall.NewCallback(enumWindowsCallback)
)

func enumWindowsCallback(hwnd uintptr, _ uintptr) uintptr {
	if IsWindowVisible(hwnd) {
		info := WindowInfo{
			Hwnd:    hwnd,
			Title:   GetWindowText(hwnd),
			Pid:     GetWindowPid(hwnd),
			Visible: true,
		}

		info.X, info.Y, info.Width, info.Height = ClientGeometry(hwnd)
		foundWindows = append(foundWindows, info)
	}

	return 1 // Continue enumeration
}

// EnumerateWindows performs a thread-safe enumeration of visible top-level windows
func EnumerateWindows() []WindowInfo {
	windowsMu.Lock()
	defer windowsMu.Unlock()

	foundWindows = nil
	ret, _, _ := procEnumWindows.Call(enumCallback, 0)
	if ret == 0 {
		return nil
	}

	result := make([]WindowInfo, len(foundWindows))
	copy(result, foundWindows)

	return result
}

// GetWindowText retrieves the text of a window
func GetWindowText(hwnd uintptr) string {
	buf := make([]uint16, 256)

	ret, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if ret == 0 {
		return ""
	}

	return windows.UTF16ToString(buf)
}

// GetWindowPid returns the id of the process that owns hwnd
func GetWindowPid(hwnd uintptr) uint32 {
	var pid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	return pid
}

// IsWindowVisible reports the WS_VISIBLE state of hwnd
func IsWindowVisible(hwnd uintptr) bool {
	ret, _, _ := procIsWindowVisible.Call(hwnd)
	return ret != 0
}

// ClientGeometry returns the screen origin and size of the client area
func ClientGeometry(hwnd uintptr) (x, y, width, height int) {
	var r rect
	if ret, _, _ := procGetClientRect.Call(hwnd, uintptr(unsafe.Pointer(&r))); ret == 0 {
		return 0, 0, 0, 0
	}

	var origin point
	procClientToScreen.Call(hwnd, uintptr(unsafe.Pointer(&origin)))

	return int(origin.X), int(origin.Y), int(r.Right - r.Left), int(r.Bottom - r.Top)
}

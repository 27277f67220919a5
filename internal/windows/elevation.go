//go:build windows

package windows

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/windows"
)

// IsElevated reports whether the current process token is elevated.
// Messages to an elevated game client are dropped by UIPI unless we are too.
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

func RelaunchAsAdmin() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	// Check if running via 'go run' (exe will be in temp dir)
	if strings.Contains(exe, "go-build") {
		return fmt.Errorf("cannot relaunch when run via 'go run', please build the executable first with: go build -o winpilot.exe")
	}

	verb, err := windows.UTF16PtrFromString("runas")
	if err != nil {
		return err
	}

	file, err := windows.UTF16PtrFromString(exe)
	if err != nil {
		return err
	}

	args, err := windows.UTF16PtrFromString(strings.Join(os.Args[1:], " "))
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	dir, err := windows.UTF16PtrFromString(cwd)
	if err != nil {
		return err
	}

	return windows.ShellExecute(0, verb, file, args, dir, windows.SW_SHOWNORMAL)
}

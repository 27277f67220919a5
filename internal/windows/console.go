//go:build windows

package windows

import (
	"sync"
	"sync/atomic"
	"syscall"
)

var (
	ctrlHandler    atomic.Pointer[ConsoleCtrlHandler]
	ctrlRegistered sync.Once
	ctrlErr        error
)

// SetConsoleCtrlHandler routes Ctrl+C, Ctrl+Break, console close, logoff and
// shutdown events to handler. The OS callback is installed once; later calls
// only swap the handler. A nil handler lets the default processing run.
func SetConsoleCtrlHandler(handler ConsoleCtrlHandler) error {
	if handler == nil {
		ctrlHandler.Store(nil)
	} else {
		ctrlHandler.Store(&handler)
	}

	ctrlRegistered.Do(func() {
		ret, _, err := procSetConsoleCtrlHandler.Call(
			syscall.NewCallback(consoleCtrlHandlerCallback),
			1, // TRUE - add handler
		)
		if ret == 0 {
			ctrlErr = err
		}
	})

	return ctrlErr
}

func consoleCtrlHandlerCallback(ctrlType uint32) uintptr {
	if h := ctrlHandler.Load(); h != nil {
		return (*h)(ctrlType)
	}

	return 0 // FALSE - let default handler process it
}

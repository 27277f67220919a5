package winmsg

import "errors"

var (
	// ErrUnknownKey is returned when a key name has no virtual-key mapping
	ErrUnknownKey = errors.New("unknown key")

	// ErrUnknownButton is returned for anything other than left, right or middle
	ErrUnknownButton = errors.New("unknown mouse button")

	// ErrUnknownCommand is returned for an unsupported system command name
	ErrUnknownCommand = errors.New("unknown system command")

	// ErrInvalidWindow is returned when the handle is zero or no longer a window
	ErrInvalidWindow = errors.New("invalid window handle")

	// ErrSendFailed wraps a message delivery failure reported by the OS
	ErrSendFailed = errors.New("message delivery failed")
)

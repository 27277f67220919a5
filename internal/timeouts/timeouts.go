// Package timeouts defines timeout and delay constants for input delivery
// and task lifecycle operations.
package timeouts

import "time"

const (
	// Keyboard Delays

	// KeystrokeDelay separates the down and up stages of a single key press
	// so the target's input handling sees two distinct events.
	KeystrokeDelay = 10 * time.Millisecond

	// ModifierDelay is the pause after each modifier goes down (and up) in a chord.
	ModifierDelay = 10 * time.Millisecond

	// SequenceStepDelay is the fixed pause between replayed sequence steps.
	SequenceStepDelay = 1 * time.Millisecond

	// TypingDelay is the default pause between characters of typed text.
	TypingDelay = 10 * time.Millisecond

	// Mouse Delays

	// ClickDelay separates button down and button up in a click.
	ClickDelay = 10 * time.Millisecond

	// DefaultHoldDuration is used when a press-and-hold gives no duration.
	DefaultHoldDuration = 100 * time.Millisecond

	// GestureStepDelay is the pause after moving to each gesture point.
	GestureStepDelay = 5 * time.Millisecond

	// DragStepDelay is the pause between interpolated drag moves.
	DragStepDelay = 1 * time.Millisecond

	// DragSettleDelay is the pause after pressing at the start of a drag and
	// before releasing at its end.
	DragSettleDelay = 10 * time.Millisecond

	// Polling

	// ReleasePollInterval is the default poll interval for wait-for-release.
	ReleasePollInterval = 10 * time.Millisecond

	// ReleaseWaitTimeout is the default bound for wait-for-release.
	ReleaseWaitTimeout = 5 * time.Second

	// Task Lifecycle

	// TaskStopTimeout bounds how long a stop waits for a task body to return.
	// After it elapses the task is recorded as stopped even if the body is
	// still winding down.
	TaskStopTimeout = 5 * time.Second

	// StopAllTimeout bounds stopping every running task on shutdown.
	StopAllTimeout = 15 * time.Second

	// Window Discovery

	// WindowAppearTimeout is the maximum time to wait for the target window.
	WindowAppearTimeout = 2 * time.Minute

	// WindowPollInterval is the delay between window enumeration attempts.
	WindowPollInterval = 500 * time.Millisecond

	// MessageSendTimeout bounds a single synchronous send to a hung window.
	MessageSendTimeout = 5 * time.Second

	// Configuration

	// ReloadDebounce coalesces bursts of file events from editors that write
	// a file in several steps.
	ReloadDebounce = 200 * time.Millisecond
)

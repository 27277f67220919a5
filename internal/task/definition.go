// Package task loads task definitions, runs task bodies and publishes their
// lifecycle.
//
// A Manager holds at most one live Runner per task id. Runners execute their
// body on a dedicated goroutine and stop it cooperatively by cancelling the
// body's context and calling its optional Stop hook.
package task

import (
	"errors"
	"time"
)

var (
	// ErrUnknownTask is returned for an id the registry does not hold
	ErrUnknownTask = errors.New("unknown task")

	// ErrAlreadyRunning is returned when a task already has a live runner
	ErrAlreadyRunning = errors.New("task is already running")

	// ErrUnavailable is returned for a disabled task or one whose body is
	// not in the catalog
	ErrUnavailable = errors.New("task is unavailable")

	// ErrStartFailed wraps failures while creating a task body
	ErrStartFailed = errors.New("task failed to start")

	// ErrBodyPanic wraps a panic recovered from a task body
	ErrBodyPanic = errors.New("task body panicked")
)

// Defaults applied to definitions that omit the field
const (
	DefaultIcon     = "📋"
	DefaultCategory = "Other"
)

// Definition describes one task. It is immutable once loaded.
type Definition struct {
	ID              string `yaml:"id" validate:"required,taskid"`
	Name            string `yaml:"name" validate:"required"`
	Description     string `yaml:"description"`
	Icon            string `yaml:"icon"`
	ScriptReference string `yaml:"script_reference" validate:"required"`
	Category        string `yaml:"category" validate:"required"`
	Enabled         bool   `yaml:"enabled"`
}

// RunState is a runner's execution state
type RunState int

const (
	Stopped RunState = iota
	Running
	Error
)

func (s RunState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// DisplayState is what a task looks like to an operator
type DisplayState int

const (
	Disabled DisplayState = iota
	Ready
	DisplayRunning
	DisplayError
)

func (s DisplayState) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Ready:
		return "ready"
	case DisplayRunning:
		return "running"
	case DisplayError:
		return "error"
	default:
		return "unknown"
	}
}

// EventType names a lifecycle event
type EventType string

const (
	EventStarted EventType = "task_started"
	EventStopped EventType = "task_stopped"
	EventError   EventType = "task_error"
)

// Event is delivered to every observer. Err is set for EventError.
type Event struct {
	Type       EventType
	Definition Definition
	RunID      string
	Err        error
	At         time.Time
}

// Observer receives lifecycle events
type Observer func(Event)

package input

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Norgate-AV/winpilot/internal/keyboard"
	"github.com/Norgate-AV/winpilot/internal/timeouts"
	"github.com/Norgate-AV/winpilot/internal/winmsg"
)

// ErrInvalidAction is returned for an action that cannot be executed
var ErrInvalidAction = errors.New("invalid action")

// Action types understood by RunActions
const (
	ActionClick       = "click"
	ActionDoubleClick = "double_click"
	ActionMove        = "move"
	ActionKey         = "key"
	ActionCombo       = "combo"
	ActionHold        = "hold"
	ActionMouseHold   = "mouse_hold"
	ActionType        = "type"
	ActionScroll      = "scroll"
	ActionDrag        = "drag"
	ActionWait        = "wait"
)

// Action is one step of a declarative input script
type Action struct {
	Type      string        `mapstructure:"type" yaml:"type"`
	Key       string        `mapstructure:"key" yaml:"key,omitempty"`
	Combo     string        `mapstructure:"combo" yaml:"combo,omitempty"`
	Text      string        `mapstructure:"text" yaml:"text,omitempty"`
	X         int           `mapstructure:"x" yaml:"x,omitempty"`
	Y         int           `mapstructure:"y" yaml:"y,omitempty"`
	ToX       int           `mapstructure:"to_x" yaml:"to_x,omitempty"`
	ToY       int           `mapstructure:"to_y" yaml:"to_y,omitempty"`
	Button    string        `mapstructure:"button" yaml:"button,omitempty"`
	Direction string        `mapstructure:"direction" yaml:"direction,omitempty"`
	Lines     int           `mapstructure:"lines" yaml:"lines,omitempty"`
	Duration  time.Duration `mapstructure:"duration" yaml:"duration,omitempty"`
	Delay     time.Duration `mapstructure:"delay" yaml:"delay,omitempty"`
}

// ActionError reports which action of a script failed
type ActionError struct {
	Index int
	Type  string
	Err   error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d (%s): %v", e.Index, e.Type, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Validate checks that a carries what its type needs
func (a Action) Validate() error {
	switch a.Type {
	case ActionClick, ActionDoubleClick, ActionMouseHold, ActionDrag:
		if _, err := winmsg.ParseButton(a.Button); err != nil {
			return err
		}
	case ActionMove, ActionWait:
	case ActionKey, ActionHold:
		if _, err := winmsg.ResolveKey(a.Key); err != nil {
			return err
		}
	case ActionCombo:
		mods, key, err := keyboard.ParseCombo(a.Combo)
		if err != nil {
			return err
		}
		if _, err := winmsg.ResolveKeys(append(mods, key)); err != nil {
			return err
		}
	case ActionType:
		if a.Text == "" {
			return fmt.Errorf("%w: type needs text", ErrInvalidAction)
		}
	case ActionScroll:
		if a.Direction != "up" && a.Direction != "down" {
			return fmt.Errorf("%w: scroll direction %q", ErrInvalidAction, a.Direction)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
	}

	if a.Duration < 0 || a.Delay < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidAction)
	}

	return nil
}

// RunActions validates every action, then executes them in order.
// It stops at the first failure or when ctx is done.
func (m *Manager) RunActions(ctx context.Context, actions []Action) error {
	for i, a := range actions {
		if err := a.Validate(); err != nil {
			return &ActionError{Index: i, Type: a.Type, Err: err}
		}
	}

	for i, a := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := m.runAction(ctx, a); err != nil {
			return &ActionError{Index: i, Type: a.Type, Err: err}
		}

		m.log.Trace("Action done", slog.Int("index", i), slog.String("type", a.Type))

		if a.Delay > 0 {
			if err := m.Wait(ctx, a.Delay); err != nil {
				return err
			}
		}
	}

	return nil
}

func (m *Manager) runAction(ctx context.Context, a Action) error {
	// Validate already accepted the button name
	b, _ := winmsg.ParseButton(a.Button)

	switch a.Type {
	case ActionClick:
		return m.Click(a.X, a.Y, b)
	case ActionDoubleClick:
		return m.DoubleClick(a.X, a.Y, b)
	case ActionMove:
		return m.Move(a.X, a.Y)
	case ActionKey:
		if a.Duration > 0 {
			return m.PressAndHold(a.Key, a.Duration)
		}
		return m.Press(a.Key)
	case ActionCombo:
		return m.Combo(a.Combo)
	case ActionHold:
		return m.PressAndHold(a.Key, a.Duration)
	case ActionMouseHold:
		return m.MousePressAndHold(a.X, a.Y, b, a.Duration)
	case ActionType:
		return m.TypeText(a.Text, timeouts.TypingDelay)
	case ActionScroll:
		return m.Scroll(a.Direction, a.Lines, a.X, a.Y)
	case ActionDrag:
		return m.Drag(a.X, a.Y, a.ToX, a.ToY, b)
	case ActionWait:
		return m.Wait(ctx, a.Duration)
	}

	return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
}

// Wait pauses for d or until ctx is done
func (m *Manager) Wait(ctx context.Context, d time.Duration) error {
	if m.waitFn != nil {
		return m.waitFn(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

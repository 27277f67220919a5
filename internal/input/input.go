// Package input binds the keyboard and mouse controllers to the window held
// in shared state under state.KeyTargetWindow.
package input

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Norgate-AV/winpilot/internal/interfaces"
	"github.com/Norgate-AV/winpilot/internal/keyboard"
	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/mouse"
	"github.com/Norgate-AV/winpilot/internal/state"
	"github.com/Norgate-AV/winpilot/internal/timeouts"
	"github.com/Norgate-AV/winpilot/internal/windows"
	"github.com/Norgate-AV/winpilot/internal/winmsg"
)

var (
	// ErrNoTargetWindow is returned when shared state holds no usable target
	ErrNoTargetWindow = errors.New("no target window")

	// ErrDisabled is returned while input is disabled
	ErrDisabled = errors.New("input is disabled")
)

// Devices are the controllers a Manager drives
type Devices struct {
	Primitives *winmsg.Primitives
	Keyboard   *keyboard.Controller
	Mouse      *mouse.Controller
}

// NewDevices builds controllers with default timing over transport
func NewDevices(transport interfaces.Transport, log logger.LoggerInterface) Devices {
	prim := winmsg.NewPrimitives(transport, log)

	return Devices{
		Primitives: prim,
		Keyboard:   keyboard.New(prim, log),
		Mouse:      mouse.New(prim, log),
	}
}

// Recorder observes every facade operation and its outcome
type Recorder interface {
	RecordInput(op string, err error)
}

// Manager is the single entry point task bodies use to drive the target.
// The target is read from the store on every call and never cached.
type Manager struct {
	store       *state.Store
	prim        *winmsg.Primitives
	kb          *keyboard.Controller
	ms          *mouse.Controller
	log         logger.LoggerInterface
	recorder    Recorder
	enabled     atomic.Bool
	unsubscribe func()
	sleep       func(time.Duration)
	waitFn      func(context.Context, time.Duration) error
}

// Option configures a Manager
type Option func(*Manager)

// WithRecorder reports every operation to r
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithSleep replaces time.Sleep for the pauses the facade adds itself
func WithSleep(sleep func(time.Duration)) Option {
	return func(m *Manager) { m.sleep = sleep }
}

// WithWait replaces the context-aware timer behind wait actions and delays
func WithWait(wait func(context.Context, time.Duration) error) Option {
	return func(m *Manager) { m.waitFn = wait }
}

// NewManager creates an enabled facade and subscribes to target changes
// for diagnostic logging
func NewManager(store *state.Store, dev Devices, log logger.LoggerInterface, opts ...Option) *Manager {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	m := &Manager{
		store: store,
		prim:  dev.Primitives,
		kb:    dev.Keyboard,
		ms:    dev.Mouse,
		log:   log,
		sleep: time.Sleep,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.enabled.Store(true)
	m.unsubscribe = store.Subscribe(state.KeyTargetWindow, m.onTargetChanged)

	return m
}

// Close stops listening for target changes
func (m *Manager) Close() {
	m.unsubscribe()
}

func (m *Manager) onTargetChanged(_ string, newValue, oldValue any) {
	next, _ := newValue.(windows.WindowInfo)
	prev, _ := oldValue.(windows.WindowInfo)

	if next.IsZero() {
		m.log.Info("Target window cleared", slog.Uint64("previous", uint64(prev.Hwnd)))
		return
	}

	m.log.Info("Target window changed",
		slog.String("title", next.Title),
		slog.Uint64("hwnd", uint64(next.Hwnd)),
		slog.Uint64("previous", uint64(prev.Hwnd)),
	)
}

// Enable turns input delivery on
func (m *Manager) Enable() {
	if !m.enabled.Swap(true) {
		m.log.Info("Input enabled")
	}
}

// Disable makes every sending operation fail with ErrDisabled
func (m *Manager) Disable() {
	if m.enabled.Swap(false) {
		m.log.Info("Input disabled")
	}
}

// IsEnabled reports whether input delivery is on
func (m *Manager) IsEnabled() bool {
	return m.enabled.Load()
}

// Target resolves the current target window
func (m *Manager) Target() (windows.WindowInfo, error) {
	info, ok := state.Value[windows.WindowInfo](m.store, state.KeyTargetWindow)
	if !ok || info.IsZero() {
		return windows.WindowInfo{}, ErrNoTargetWindow
	}

	return info, nil
}

// do resolves the target for this call only and runs fn against it
func (m *Manager) do(op string, fn func(hwnd uintptr) error) error {
	err := m.run(fn)

	if m.recorder != nil {
		m.recorder.RecordInput(op, err)
	}

	if err != nil {
		m.log.Debug("Input operation failed", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (m *Manager) run(fn func(hwnd uintptr) error) error {
	if !m.enabled.Load() {
		return ErrDisabled
	}

	target, err := m.Target()
	if err != nil {
		return err
	}

	return fn(target.Hwnd)
}

// Keyboard

func (m *Manager) KeyDown(key string) error {
	return m.do("key_down", func(h uintptr) error { return m.kb.Down(h, key) })
}

func (m *Manager) KeyUp(key string) error {
	return m.do("key_up", func(h uintptr) error { return m.kb.Up(h, key) })
}

func (m *Manager) Press(key string) error {
	return m.do("press", func(h uintptr) error { return m.kb.Press(h, key) })
}

func (m *Manager) PressAndHold(key string, d time.Duration) error {
	return m.do("press_and_hold", func(h uintptr) error { return m.kb.PressAndHold(h, key, d) })
}

func (m *Manager) Repeat(key string, count int, interval time.Duration) error {
	return m.do("repeat", func(h uintptr) error { return m.kb.Repeat(h, key, count, interval) })
}

func (m *Manager) KeySequence(steps []keyboard.Step) error {
	return m.do("key_sequence", func(h uintptr) error { return m.kb.Sequence(h, steps) })
}

func (m *Manager) TimedKeySequence(steps []keyboard.TimedStep) error {
	return m.do("timed_key_sequence", func(h uintptr) error { return m.kb.TimedSequence(h, steps) })
}

func (m *Manager) Chord(modifiers []string, key string) error {
	return m.do("chord", func(h uintptr) error { return m.kb.Chord(h, modifiers, key) })
}

func (m *Manager) Combo(combo string) error {
	return m.do("combo", func(h uintptr) error { return m.kb.Combo(h, combo) })
}

func (m *Manager) PressModifiers(modifiers []string) error {
	return m.do("press_modifiers", func(h uintptr) error { return m.kb.PressModifiers(h, modifiers) })
}

func (m *Manager) ReleaseModifiers(modifiers []string) error {
	return m.do("release_modifiers", func(h uintptr) error { return m.kb.ReleaseModifiers(h, modifiers) })
}

func (m *Manager) TypeText(text string, delay time.Duration) error {
	return m.do("type_text", func(h uintptr) error { return m.kb.TypeText(h, text, delay) })
}

func (m *Manager) MenuShortcut(key string) error {
	return m.do("menu_shortcut", func(h uintptr) error { return m.kb.MenuShortcut(h, key) })
}

func (m *Manager) Toggle(key string) error {
	return m.do("toggle", func(h uintptr) error { return m.kb.Toggle(h, key) })
}

// IsKeyPressed reads global key state; it needs no target
func (m *Manager) IsKeyPressed(key string) (bool, error) {
	return m.kb.IsPressed(key)
}

// WaitForKeyRelease polls global key state; it needs no target
func (m *Manager) WaitForKeyRelease(key string, timeout, interval time.Duration) (bool, error) {
	return m.kb.WaitForRelease(key, timeout, interval)
}

// Shortcuts

func (m *Manager) Copy() error      { return m.Combo("ctrl+c") }
func (m *Manager) Paste() error     { return m.Combo("ctrl+v") }
func (m *Manager) Cut() error       { return m.Combo("ctrl+x") }
func (m *Manager) SelectAll() error { return m.Combo("ctrl+a") }
func (m *Manager) Save() error      { return m.Combo("ctrl+s") }
func (m *Manager) Undo() error      { return m.Combo("ctrl+z") }
func (m *Manager) Redo() error      { return m.Combo("ctrl+y") }
func (m *Manager) Enter() error     { return m.Press("enter") }
func (m *Manager) Escape() error    { return m.Press("esc") }
func (m *Manager) Tab() error       { return m.Press("tab") }
func (m *Manager) Space() error     { return m.Press("space") }

// Mouse

func (m *Manager) MouseDown(x, y int, b winmsg.Button) error {
	return m.do("mouse_down", func(h uintptr) error { return m.ms.Down(h, x, y, b) })
}

func (m *Manager) MouseUp(x, y int, b winmsg.Button) error {
	return m.do("mouse_up", func(h uintptr) error { return m.ms.Up(h, x, y, b) })
}

func (m *Manager) Click(x, y int, b winmsg.Button) error {
	return m.do("click", func(h uintptr) error { return m.ms.Click(h, x, y, b) })
}

func (m *Manager) RightClick(x, y int) error {
	return m.Click(x, y, winmsg.ButtonRight)
}

func (m *Manager) DoubleClick(x, y int, b winmsg.Button) error {
	return m.do("double_click", func(h uintptr) error { return m.ms.DoubleClick(h, x, y, b) })
}

func (m *Manager) MousePressAndHold(x, y int, b winmsg.Button, d time.Duration) error {
	return m.do("mouse_press_and_hold", func(h uintptr) error { return m.ms.PressAndHold(h, x, y, b, d) })
}

func (m *Manager) Move(x, y int) error {
	return m.do("move", func(h uintptr) error { return m.ms.Move(h, x, y) })
}

func (m *Manager) Wheel(delta, x, y int) error {
	return m.do("wheel", func(h uintptr) error { return m.ms.Wheel(h, delta, x, y) })
}

func (m *Manager) Scroll(direction string, lines, x, y int) error {
	return m.do("scroll", func(h uintptr) error { return m.ms.Scroll(h, direction, lines, x, y) })
}

func (m *Manager) Drag(sx, sy, ex, ey int, b winmsg.Button) error {
	return m.do("drag", func(h uintptr) error { return m.ms.Drag(h, sx, sy, ex, ey, b) })
}

func (m *Manager) Gesture(points []mouse.GesturePoint) error {
	return m.do("gesture", func(h uintptr) error { return m.ms.Gesture(h, points) })
}

func (m *Manager) MultiButtonPress(x, y int, buttons []winmsg.Button) error {
	return m.do("multi_button_press", func(h uintptr) error { return m.ms.MultiButtonPress(h, x, y, buttons) })
}

func (m *Manager) ReleaseMultiButton(x, y int, buttons []winmsg.Button) error {
	return m.do("release_multi_button", func(h uintptr) error { return m.ms.ReleaseMultiButton(h, x, y, buttons) })
}

func (m *Manager) ClickSequence(points []mouse.Point, b winmsg.Button, delay time.Duration) error {
	return m.do("click_sequence", func(h uintptr) error { return m.ms.ClickSequence(h, points, b, delay) })
}

func (m *Manager) MouseSequence(steps []mouse.Step) error {
	return m.do("mouse_sequence", func(h uintptr) error { return m.ms.Sequence(h, steps) })
}

// IsButtonPressed reads global button state; it needs no target
func (m *Manager) IsButtonPressed(b winmsg.Button) (bool, error) {
	return m.ms.IsPressed(b)
}

// WaitForButtonRelease polls global button state; it needs no target
func (m *Manager) WaitForButtonRelease(b winmsg.Button, timeout, interval time.Duration) (bool, error) {
	return m.ms.WaitForRelease(b, timeout, interval)
}

// ClickAndType clicks (x, y) to focus a field and types text into it
func (m *Manager) ClickAndType(x, y int, text string) error {
	return m.do("click_and_type", func(h uintptr) error {
		if err := m.ms.Click(h, x, y, winmsg.ButtonLeft); err != nil {
			return err
		}

		m.sleep(timeouts.ClickDelay)

		return m.kb.TypeText(h, text, timeouts.TypingDelay)
	})
}

// SystemCommand sends minimize, maximize, restore, close or activate
func (m *Manager) SystemCommand(command string) error {
	return m.do("system_command", func(h uintptr) error { return m.prim.SystemCommand(h, command) })
}

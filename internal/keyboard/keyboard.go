// Package keyboard builds timed keyboard operations out of window-message
// primitives. The controller is stateless: every call names its window.
package keyboard

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/timeouts"
	"github.com/Norgate-AV/winpilot/internal/winmsg"
)

// ErrEmptyCombo is returned when a combo string names no key
var ErrEmptyCombo = errors.New("empty key combination")

// Step is one entry of a key sequence
type Step struct {
	Key   string
	Press bool // true sends key-down, false sends key-up
}

// TimedStep is a sequence entry with an optional hold
type TimedStep struct {
	Key   string
	Press bool
	Hold  time.Duration // with Press, hold this long and release
}

// StepError reports which sequence step failed
type StepError struct {
	Index int
	Key   string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Key, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Controller sends keyboard input to a window
type Controller struct {
	prim           *winmsg.Primitives
	log            logger.LoggerInterface
	sleep          func(time.Duration)
	now            func() time.Time
	keystrokeDelay time.Duration
	modifierDelay  time.Duration
	stepDelay      time.Duration
}

// Option configures a Controller
type Option func(*Controller)

// WithSleep replaces time.Sleep, mainly for tests
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Controller) { c.sleep = sleep }
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithKeystrokeDelay sets the pause between down and up of a press
func WithKeystrokeDelay(d time.Duration) Option {
	return func(c *Controller) { c.keystrokeDelay = d }
}

// WithModifierDelay sets the pause after each modifier transition in a chord
func WithModifierDelay(d time.Duration) Option {
	return func(c *Controller) { c.modifierDelay = d }
}

// WithStepDelay sets the pause between sequence steps
func WithStepDelay(d time.Duration) Option {
	return func(c *Controller) { c.stepDelay = d }
}

// New creates a keyboard controller over prim
func New(prim *winmsg.Primitives, log logger.LoggerInterface, opts ...Option) *Controller {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	c := &Controller{
		prim:           prim,
		log:            log,
		sleep:          time.Sleep,
		now:            time.Now,
		keystrokeDelay: timeouts.KeystrokeDelay,
		modifierDelay:  timeouts.ModifierDelay,
		stepDelay:      timeouts.SequenceStepDelay,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Controller) pause(d time.Duration) {
	if d > 0 {
		c.sleep(d)
	}
}

// Down sends key-down only. The caller owns the matching Up.
func (c *Controller) Down(hwnd uintptr, key string) error {
	vk, err := winmsg.ResolveKey(key)
	if err != nil {
		return err
	}

	return c.prim.KeyDown(hwnd, vk)
}

// Up sends key-up only
func (c *Controller) Up(hwnd uintptr, key string) error {
	vk, err := winmsg.ResolveKey(key)
	if err != nil {
		return err
	}

	return c.prim.KeyUp(hwnd, vk)
}

func (c *Controller) press(hwnd uintptr, vk winmsg.VirtualKey, hold time.Duration) error {
	if err := c.prim.KeyDown(hwnd, vk); err != nil {
		return err
	}

	c.pause(hold)

	return c.prim.KeyUp(hwnd, vk)
}

// Press sends down, waits the keystroke delay, then sends up
func (c *Controller) Press(hwnd uintptr, key string) error {
	vk, err := winmsg.ResolveKey(key)
	if err != nil {
		return err
	}

	return c.press(hwnd, vk, c.keystrokeDelay)
}

// PressAndHold sends down, blocks the calling goroutine for d, then sends up.
// A zero or negative d releases immediately. Up is always attempted once down
// has been delivered.
func (c *Controller) PressAndHold(hwnd uintptr, key string, d time.Duration) error {
	vk, err := winmsg.ResolveKey(key)
	if err != nil {
		return err
	}

	c.log.Debug("Holding key", slog.String("key", key), slog.Duration("duration", d))

	return c.press(hwnd, vk, d)
}

// Repeat presses key count times with interval between presses
func (c *Controller) Repeat(hwnd uintptr, key string, count int, interval time.Duration) error {
	vk, err := winmsg.ResolveKey(key)
	if err != nil {
		return err
	}

	for i := range count {
		if i > 0 {
			c.pause(interval)
		}

		if err := c.press(hwnd, vk, c.keystrokeDelay); err != nil {
			return &StepError{Index: i, Key: key, Err: err}
		}
	}

	return nil
}

// Sequence replays steps strictly in order with the step delay between them.
// Every key is resolved before anything is sent. The first failed send aborts
// the rest; effects of earlier steps are not rolled back.
func (c *Controller) Sequence(hwnd uintptr, steps []Step) error {
	codes := make([]winmsg.VirtualKey, len(steps))
	for i, s := range steps {
		vk, err := winmsg.ResolveKey(s.Key)
		if err != nil {
			return &StepError{Index: i, Key: s.Key, Err: err}
		}

		codes[i] = vk
	}

	for i, s := range steps {
		if i > 0 {
			c.pause(c.stepDelay)
		}

		var err error
		if s.Press {
			err = c.prim.KeyDown(hwnd, codes[i])
		} else {
			err = c.prim.KeyUp(hwnd, codes[i])
		}

		if err != nil {
			c.log.Debug("Key sequence aborted", slog.Int("step", i), slog.Any("error", err))
			return &StepError{Index: i, Key: s.Key, Err: err}
		}
	}

	return nil
}

// TimedSequence replays steps where a press may carry a hold. A press with a
// positive Hold is sent as press-and-hold; otherwise Press sends down only
// and !Press sends up.
func (c *Controller) TimedSequence(hwnd uintptr, steps []TimedStep) error {
	codes := make([]winmsg.VirtualKey, len(steps))
	for i, s := range steps {
		vk, err := winmsg.ResolveKey(s.Key)
		if err != nil {
			return &StepError{Index: i, Key: s.Key, Err: err}
		}

		codes[i] = vk
	}

	for i, s := range steps {
		if i > 0 {
			c.pause(c.stepDelay)
		}

		var err error
		switch {
		case s.Press && s.Hold > 0:
			err = c.press(hwnd, codes[i], s.Hold)
		case s.Press:
			err = c.prim.KeyDown(hwnd, codes[i])
		default:
			err = c.prim.KeyUp(hwnd, codes[i])
		}

		if err != nil {
			return &StepError{Index: i, Key: s.Key, Err: err}
		}
	}

	return nil
}

// releaseQuietly sends key-up for codes in reverse order, logging failures
func (c *Controller) releaseQuietly(hwnd uintptr, codes []winmsg.VirtualKey) {
	for i := len(codes) - 1; i >= 0; i-- {
		if err := c.prim.KeyUp(hwnd, codes[i]); err != nil {
			c.log.Warn("Failed to release modifier during cleanup",
				slog.String("vk", codes[i].String()),
				slog.Any("error", err),
			)
		}
	}
}

// Chord presses modifiers in order, presses and releases key, then releases
// the modifiers in reverse order. If a modifier or the main key cannot be
// pressed, the modifiers already down are released before returning.
func (c *Controller) Chord(hwnd uintptr, modifiers []string, key string) error {
	mods, err := winmsg.ResolveKeys(modifiers)
	if err != nil {
		return err
	}

	main, err := winmsg.ResolveKey(key)
	if err != nil {
		return err
	}

	for i, vk := range mods {
		if err := c.prim.KeyDown(hwnd, vk); err != nil {
			c.releaseQuietly(hwnd, mods[:i])
			return fmt.Errorf("press modifier %q: %w", modifiers[i], err)
		}

		c.pause(c.modifierDelay)
	}

	if err := c.prim.KeyDown(hwnd, main); err != nil {
		c.releaseQuietly(hwnd, mods)
		return fmt.Errorf("press %q: %w", key, err)
	}

	c.pause(c.keystrokeDelay)

	if err := c.prim.KeyUp(hwnd, main); err != nil {
		c.releaseQuietly(hwnd, mods)
		return fmt.Errorf("release %q: %w", key, err)
	}

	var firstErr error
	for i := len(mods) - 1; i >= 0; i-- {
		c.pause(c.modifierDelay)

		if err := c.prim.KeyUp(hwnd, mods[i]); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("release modifier %q: %w", modifiers[i], err)
		}
	}

	return firstErr
}

// ParseCombo splits "ctrl+shift+s" into its modifiers and main key
func ParseCombo(combo string) (modifiers []string, key string, err error) {
	if strings.TrimSpace(combo) == "+" {
		return []string{}, "+", nil
	}

	var parts []string
	for _, p := range strings.Split(combo, "+") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	// "ctrl++" means ctrl and the '+' character
	if strings.HasSuffix(strings.TrimSpace(combo), "++") {
		parts = append(parts, "+")
	}

	if len(parts) == 0 {
		return nil, "", fmt.Errorf("%w: %q", ErrEmptyCombo, combo)
	}

	return parts[:len(parts)-1], parts[len(parts)-1], nil
}

// Combo parses and sends a combination like "ctrl+c". A single key is a press.
func (c *Controller) Combo(hwnd uintptr, combo string) error {
	mods, key, err := ParseCombo(combo)
	if err != nil {
		return err
	}

	if len(mods) == 0 {
		return c.Press(hwnd, key)
	}

	return c.Chord(hwnd, mods, key)
}

// PressModifiers sends key-down for each modifier in order. On failure the
// ones already down are released.
func (c *Controller) PressModifiers(hwnd uintptr, modifiers []string) error {
	mods, err := winmsg.ResolveKeys(modifiers)
	if err != nil {
		return err
	}

	for i, vk := range mods {
		if err := c.prim.KeyDown(hwnd, vk); err != nil {
			c.releaseQuietly(hwnd, mods[:i])
			return fmt.Errorf("press modifier %q: %w", modifiers[i], err)
		}

		c.pause(c.modifierDelay)
	}

	return nil
}

// ReleaseModifiers sends key-up for each modifier in reverse order and stops
// at the first failure.
func (c *Controller) ReleaseModifiers(hwnd uintptr, modifiers []string) error {
	mods, err := winmsg.ResolveKeys(modifiers)
	if err != nil {
		return err
	}

	for i := len(mods) - 1; i >= 0; i-- {
		if err := c.prim.KeyUp(hwnd, mods[i]); err != nil {
			return fmt.Errorf("release modifier %q: %w", modifiers[i], err)
		}

		c.pause(c.modifierDelay)
	}

	return nil
}

// MenuShortcut sends alt+key
func (c *Controller) MenuShortcut(hwnd uintptr, key string) error {
	return c.Chord(hwnd, []string{"alt"}, key)
}

// TypeText sends text as WM_CHAR messages. Newline and tab are sent as enter
// and tab presses; carriage returns are dropped.
func (c *Controller) TypeText(hwnd uintptr, text string, delay time.Duration) error {
	first := true

	for _, r := range text {
		if r == '\r' {
			continue
		}

		if !first {
			c.pause(delay)
		}
		first = false

		var err error
		switch r {
		case '\n':
			err = c.press(hwnd, winmsg.VK_RETURN, c.keystrokeDelay)
		case '\t':
			err = c.press(hwnd, winmsg.VK_TAB, c.keystrokeDelay)
		default:
			err = c.prim.Char(hwnd, r)
		}

		if err != nil {
			return fmt.Errorf("type %q: %w", r, err)
		}
	}

	return nil
}

// IsPressed reports the global OS state of key, not the window's view of it
func (c *Controller) IsPressed(key string) (bool, error) {
	vk, err := winmsg.ResolveKey(key)
	if err != nil {
		return false, err
	}

	return c.prim.AsyncKeyDown(vk), nil
}

// WaitForRelease polls the global state of key every interval until it is
// released or timeout elapses, ReleaseWaitTimeout when timeout is zero.
// Timing out returns false, not an error.
func (c *Controller) WaitForRelease(key string, timeout, interval time.Duration) (bool, error) {
	vk, err := winmsg.ResolveKey(key)
	if err != nil {
		return false, err
	}

	if timeout <= 0 {
		timeout = timeouts.ReleaseWaitTimeout
	}

	if interval <= 0 {
		interval = timeouts.ReleasePollInterval
	}

	return winmsg.Poll(c.now, c.sleep, timeout, interval, func() bool {
		return !c.prim.AsyncKeyDown(vk)
	}), nil
}

// Toggle reads the current global state of key and sends the opposite
// transition. External key activity between the read and the send can make
// it send the wrong one.
func (c *Controller) Toggle(hwnd uintptr, key string) error {
	vk, err := winmsg.ResolveKey(key)
	if err != nil {
		return err
	}

	if c.prim.AsyncKeyDown(vk) {
		return c.prim.KeyUp(hwnd, vk)
	}

	return c.prim.KeyDown(hwnd, vk)
}

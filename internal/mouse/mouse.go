// Package mouse builds timed mouse operations out of window-message
// primitives. Coordinates are in the target window's client space.
package mouse

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/timeouts"
	"github.com/Norgate-AV/winpilot/internal/winmsg"
)

// DragStepPixels is the distance covered by one interpolated drag move
const DragStepPixels = 10

var (
	// ErrGestureTooShort is returned for a gesture with fewer than two points
	ErrGestureTooShort = errors.New("gesture needs at least two points")

	// ErrUnknownDirection is returned by Scroll for anything but up or down
	ErrUnknownDirection = errors.New("unknown scroll direction")
)

// Point is a client-space coordinate
type Point struct {
	X, Y int
}

// GesturePoint is a gesture waypoint. With a Button set the button is
// pressed at the point and, when Hold is positive, held and released.
type GesturePoint struct {
	X, Y   int
	Button winmsg.Button
	Hold   time.Duration
}

// Step is one entry of a click sequence
type Step struct {
	X, Y   int
	Button winmsg.Button
	Press  bool          // false releases
	Hold   time.Duration // with Press, hold and release
}

// Controller sends mouse input to a window
type Controller struct {
	prim          *winmsg.Primitives
	log           logger.LoggerInterface
	sleep         func(time.Duration)
	now           func() time.Time
	clickDelay    time.Duration
	gestureDelay  time.Duration
	dragStepDelay time.Duration
	dragSettle    time.Duration
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

// WithClickDelay sets the pause between down and up of a click
func WithClickDelay(d time.Duration) Option {
	return func(c *Controller) { c.clickDelay = d }
}

// WithDragTiming sets the pause between drag moves and around press/release
func WithDragTiming(step, settle time.Duration) Option {
	return func(c *Controller) {
		c.dragStepDelay = step
		c.dragSettle = settle
	}
}

// New creates a mouse controller over prim
func New(prim *winmsg.Primitives, log logger.LoggerInterface, opts ...Option) *Controller {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	c := &Controller{
		prim:          prim,
		log:           log,
		sleep:         time.Sleep,
		now:           time.Now,
		clickDelay:    timeouts.ClickDelay,
		gestureDelay:  timeouts.GestureStepDelay,
		dragStepDelay: timeouts.DragStepDelay,
		dragSettle:    timeouts.DragSettleDelay,
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

// Down presses b at (x, y). The caller owns the matching Up; nothing
// releases it automatically.
func (c *Controller) Down(hwnd uintptr, x, y int, b winmsg.Button) error {
	return c.prim.MouseDown(hwnd, x, y, b)
}

// Up releases b at (x, y)
func (c *Controller) Up(hwnd uintptr, x, y int, b winmsg.Button) error {
	return c.prim.MouseUp(hwnd, x, y, b)
}

func (c *Controller) press(hwnd uintptr, x, y int, b winmsg.Button, hold time.Duration) error {
	if err := c.prim.MouseDown(hwnd, x, y, b); err != nil {
		return err
	}

	c.pause(hold)

	return c.prim.MouseUp(hwnd, x, y, b)
}

// Click presses and releases b at (x, y) with the click delay in between
func (c *Controller) Click(hwnd uintptr, x, y int, b winmsg.Button) error {
	return c.press(hwnd, x, y, b, c.clickDelay)
}

// DoubleClick sends a click followed by the double-click message, which is
// the order a real double click produces
func (c *Controller) DoubleClick(hwnd uintptr, x, y int, b winmsg.Button) error {
	if err := c.Click(hwnd, x, y, b); err != nil {
		return err
	}

	if err := c.prim.DoubleClick(hwnd, x, y, b); err != nil {
		return err
	}

	return c.prim.MouseUp(hwnd, x, y, b)
}

// PressAndHold presses b, blocks for d, then releases. Zero or negative d
// releases immediately.
func (c *Controller) PressAndHold(hwnd uintptr, x, y int, b winmsg.Button, d time.Duration) error {
	if err := b.Validate(); err != nil {
		return err
	}

	c.log.Debug("Holding mouse button",
		slog.String("button", string(b)),
		slog.Int("x", x),
		slog.Int("y", y),
		slog.Duration("duration", d),
	)

	return c.press(hwnd, x, y, b, d)
}

// Move sends a plain move to (x, y)
func (c *Controller) Move(hwnd uintptr, x, y int) error {
	return c.prim.MouseMove(hwnd, x, y)
}

// Wheel sends a raw wheel delta at (x, y)
func (c *Controller) Wheel(hwnd uintptr, delta, x, y int) error {
	return c.prim.MouseWheel(hwnd, delta, x, y)
}

// Scroll turns the wheel lines notches up or down at (x, y)
func (c *Controller) Scroll(hwnd uintptr, direction string, lines, x, y int) error {
	var sign int
	switch direction {
	case "up":
		sign = 1
	case "down":
		sign = -1
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDirection, direction)
	}

	if lines <= 0 {
		lines = 1
	}

	return c.prim.MouseWheel(hwnd, sign*winmsg.WHEEL_DELTA*lines, x, y)
}

// ClickSequence clicks each point in order with delay between clicks
func (c *Controller) ClickSequence(hwnd uintptr, points []Point, b winmsg.Button, delay time.Duration) error {
	if err := b.Validate(); err != nil {
		return err
	}

	for i, p := range points {
		if i > 0 {
			c.pause(delay)
		}

		if err := c.Click(hwnd, p.X, p.Y, b); err != nil {
			return fmt.Errorf("click %d at (%d,%d): %w", i, p.X, p.Y, err)
		}
	}

	return nil
}

// MultiButtonPress presses every button at (x, y) in order. If one fails,
// the buttons already pressed are released in reverse order before returning.
func (c *Controller) MultiButtonPress(hwnd uintptr, x, y int, buttons []winmsg.Button) error {
	for _, b := range buttons {
		if err := b.Validate(); err != nil {
			return err
		}
	}

	for i, b := range buttons {
		if err := c.prim.MouseDown(hwnd, x, y, b); err != nil {
			for j := i - 1; j >= 0; j-- {
				if uerr := c.prim.MouseUp(hwnd, x, y, buttons[j]); uerr != nil {
					c.log.Warn("Failed to release button during cleanup",
						slog.String("button", string(buttons[j])),
						slog.Any("error", uerr),
					)
				}
			}

			return fmt.Errorf("press %s: %w", b, err)
		}
	}

	return nil
}

// ReleaseMultiButton releases buttons in reverse order. The first failure
// aborts; buttons after it in release order stay down.
func (c *Controller) ReleaseMultiButton(hwnd uintptr, x, y int, buttons []winmsg.Button) error {
	for _, b := range buttons {
		if err := b.Validate(); err != nil {
			return err
		}
	}

	for i := len(buttons) - 1; i >= 0; i-- {
		if err := c.prim.MouseUp(hwnd, x, y, buttons[i]); err != nil {
			return fmt.Errorf("release %s: %w", buttons[i], err)
		}
	}

	return nil
}

// Sequence replays click steps in order, aborting on the first failure
func (c *Controller) Sequence(hwnd uintptr, steps []Step) error {
	for _, s := range steps {
		if err := s.Button.Validate(); err != nil {
			return err
		}
	}

	for i, s := range steps {
		var err error
		switch {
		case s.Press && s.Hold > 0:
			err = c.press(hwnd, s.X, s.Y, s.Button, s.Hold)
		case s.Press:
			err = c.prim.MouseDown(hwnd, s.X, s.Y, s.Button)
		default:
			err = c.prim.MouseUp(hwnd, s.X, s.Y, s.Button)
		}

		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		c.pause(c.gestureDelay)
	}

	return nil
}

// Gesture moves through points in order. At a point with a button the
// button is pressed there: held and released when Hold is positive, left
// down otherwise.
func (c *Controller) Gesture(hwnd uintptr, points []GesturePoint) error {
	if len(points) < 2 {
		return fmt.Errorf("%w: got %d", ErrGestureTooShort, len(points))
	}

	for _, p := range points {
		if p.Button == "" {
			continue
		}

		if err := p.Button.Validate(); err != nil {
			return err
		}
	}

	for i, p := range points {
		if err := c.prim.MouseMove(hwnd, p.X, p.Y); err != nil {
			return fmt.Errorf("gesture point %d: %w", i, err)
		}

		if p.Button != "" {
			var err error
			if p.Hold > 0 {
				err = c.press(hwnd, p.X, p.Y, p.Button, p.Hold)
			} else {
				err = c.prim.MouseDown(hwnd, p.X, p.Y, p.Button)
			}

			if err != nil {
				return fmt.Errorf("gesture point %d: %w", i, err)
			}
		}

		c.pause(c.gestureDelay)
	}

	return nil
}

// DragSteps is the number of interpolated moves for a drag over (dx, dy):
// one per DragStepPixels along the longer axis, at least one
func DragSteps(dx, dy int) int {
	return max(1, max(abs(dx), abs(dy))/DragStepPixels)
}

// DragPath returns the interpolated positions a drag passes through, ending
// exactly at (ex, ey)
func DragPath(sx, sy, ex, ey int) []Point {
	dx, dy := ex-sx, ey-sy
	steps := DragSteps(dx, dy)

	path := make([]Point, 0, steps)
	for i := 1; i <= steps; i++ {
		path = append(path, Point{X: sx + dx*i/steps, Y: sy + dy*i/steps})
	}

	return path
}

// Drag moves to the start, presses b, moves along DragPath with b held and
// releases at the end. The path is deterministic for a given start and end.
func (c *Controller) Drag(hwnd uintptr, sx, sy, ex, ey int, b winmsg.Button) error {
	if err := b.Validate(); err != nil {
		return err
	}

	if err := c.prim.MouseMove(hwnd, sx, sy); err != nil {
		return err
	}

	if err := c.prim.MouseDown(hwnd, sx, sy, b); err != nil {
		return err
	}

	c.pause(c.dragSettle)

	for _, p := range DragPath(sx, sy, ex, ey) {
		if err := c.prim.MouseMoveHeld(hwnd, p.X, p.Y, b); err != nil {
			c.releaseQuietly(hwnd, p.X, p.Y, b)
			return fmt.Errorf("drag move to (%d,%d): %w", p.X, p.Y, err)
		}

		c.pause(c.dragStepDelay)
	}

	c.pause(c.dragSettle)

	return c.prim.MouseUp(hwnd, ex, ey, b)
}

func (c *Controller) releaseQuietly(hwnd uintptr, x, y int, b winmsg.Button) {
	if err := c.prim.MouseUp(hwnd, x, y, b); err != nil {
		c.log.Warn("Failed to release button during cleanup",
			slog.String("button", string(b)),
			slog.Any("error", err),
		)
	}
}

// IsPressed reports the global OS state of b
func (c *Controller) IsPressed(b winmsg.Button) (bool, error) {
	vk, err := b.VirtualKey()
	if err != nil {
		return false, err
	}

	return c.prim.AsyncKeyDown(vk), nil
}

// WaitForRelease polls the global state of b until it is released or timeout
// elapses, ReleaseWaitTimeout when timeout is zero. Timing out returns false,
// not an error.
func (c *Controller) WaitForRelease(b winmsg.Button, timeout, interval time.Duration) (bool, error) {
	vk, err := b.VirtualKey()
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

func abs(v int) int {
	if v < 0 {
		return -v
	}

	return v
}

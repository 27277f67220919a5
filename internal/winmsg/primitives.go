package winmsg

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Norgate-AV/winpilot/internal/interfaces"
	"github.com/Norgate-AV/winpilot/internal/logger"
)

// Primitives sends exactly one synchronous message per call. It keeps no
// state beyond the transport and never retries.
type Primitives struct {
	transport interfaces.Transport
	log       logger.LoggerInterface
}

// NewPrimitives binds the primitives to a transport
func NewPrimitives(transport interfaces.Transport, log logger.LoggerInterface) *Primitives {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Primitives{
		transport: transport,
		log:       log,
	}
}

// IsValidWindow reports whether hwnd is non-zero and still a window
func (p *Primitives) IsValidWindow(hwnd uintptr) bool {
	return hwnd != 0 && p.transport.IsWindow(hwnd)
}

func (p *Primitives) send(hwnd uintptr, msg uint32, wParam, lParam uintptr) error {
	if !p.IsValidWindow(hwnd) {
		return fmt.Errorf("%w: 0x%X", ErrInvalidWindow, hwnd)
	}

	p.log.Trace("Sending message",
		slog.String("msg", MessageName(msg)),
		slog.Uint64("hwnd", uint64(hwnd)),
		slog.Uint64("wParam", uint64(wParam)),
		slog.Uint64("lParam", uint64(lParam)),
	)

	if _, err := p.transport.SendMessage(hwnd, msg, wParam, lParam); err != nil {
		return fmt.Errorf("%w: %s to 0x%X: %w", ErrSendFailed, MessageName(msg), hwnd, err)
	}

	return nil
}

// KeyDown sends WM_KEYDOWN for vk
func (p *Primitives) KeyDown(hwnd uintptr, vk VirtualKey) error {
	return p.send(hwnd, WM_KEYDOWN, uintptr(vk), KeyLParam(0, 1, false, false))
}

// KeyUp sends WM_KEYUP for vk
func (p *Primitives) KeyUp(hwnd uintptr, vk VirtualKey) error {
	return p.send(hwnd, WM_KEYUP, uintptr(vk), KeyLParam(0, 1, false, true))
}

// KeyDownName resolves name and sends WM_KEYDOWN. Unknown names fail before any send.
func (p *Primitives) KeyDownName(hwnd uintptr, name string) error {
	vk, err := ResolveKey(name)
	if err != nil {
		return err
	}

	return p.KeyDown(hwnd, vk)
}

// KeyUpName resolves name and sends WM_KEYUP
func (p *Primitives) KeyUpName(hwnd uintptr, name string) error {
	vk, err := ResolveKey(name)
	if err != nil {
		return err
	}

	return p.KeyUp(hwnd, vk)
}

// Char sends WM_CHAR carrying the UTF-16 code of r. Runes outside the BMP are
// sent as a surrogate pair, one message per unit.
func (p *Primitives) Char(hwnd uintptr, r rune) error {
	if r < 0x10000 {
		return p.send(hwnd, WM_CHAR, uintptr(r), 1)
	}

	r -= 0x10000
	if err := p.send(hwnd, WM_CHAR, uintptr(0xD800+(r>>10)), 1); err != nil {
		return err
	}

	return p.send(hwnd, WM_CHAR, uintptr(0xDC00+(r&0x3FF)), 1)
}

// MouseDown sends the button-down message at client coordinates (x, y)
func (p *Primitives) MouseDown(hwnd uintptr, x, y int, b Button) error {
	m, err := b.messages()
	if err != nil {
		return err
	}

	return p.send(hwnd, m.down, m.flag, MouseLParam(x, y))
}

// MouseUp sends the button-up message at client coordinates (x, y)
func (p *Primitives) MouseUp(hwnd uintptr, x, y int, b Button) error {
	m, err := b.messages()
	if err != nil {
		return err
	}

	return p.send(hwnd, m.up, 0, MouseLParam(x, y))
}

// DoubleClick sends the button double-click message
func (p *Primitives) DoubleClick(hwnd uintptr, x, y int, b Button) error {
	m, err := b.messages()
	if err != nil {
		return err
	}

	return p.send(hwnd, m.dblclk, m.flag, MouseLParam(x, y))
}

// MouseMove sends WM_MOUSEMOVE with no buttons held
func (p *Primitives) MouseMove(hwnd uintptr, x, y int) error {
	return p.send(hwnd, WM_MOUSEMOVE, 0, MouseLParam(x, y))
}

// MouseMoveHeld sends WM_MOUSEMOVE flagged with b held, as during a drag
func (p *Primitives) MouseMoveHeld(hwnd uintptr, x, y int, b Button) error {
	m, err := b.messages()
	if err != nil {
		return err
	}

	return p.send(hwnd, WM_MOUSEMOVE, m.flag, MouseLParam(x, y))
}

// MouseWheel sends WM_MOUSEWHEEL. A positive delta scrolls away from the user.
func (p *Primitives) MouseWheel(hwnd uintptr, delta, x, y int) error {
	return p.send(hwnd, WM_MOUSEWHEEL, WheelWParam(delta, 0), MouseLParam(x, y))
}

var systemCommands = map[string]uintptr{
	"minimize": SC_MINIMIZE,
	"maximize": SC_MAXIMIZE,
	"restore":  SC_RESTORE,
	"close":    SC_CLOSE,
}

// SystemCommand sends WM_SYSCOMMAND (minimize, maximize, restore, close).
// "activate" brings the window to the foreground and sends WM_ACTIVATE.
func (p *Primitives) SystemCommand(hwnd uintptr, command string) error {
	name := strings.ToLower(strings.TrimSpace(command))

	if name == "activate" {
		if !p.IsValidWindow(hwnd) {
			return fmt.Errorf("%w: 0x%X", ErrInvalidWindow, hwnd)
		}

		if err := p.transport.Activate(hwnd); err != nil {
			p.log.Debug("Foreground activation failed", slog.Any("error", err))
		}

		return p.send(hwnd, WM_ACTIVATE, WA_ACTIVE, 0)
	}

	sc, ok := systemCommands[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}

	return p.send(hwnd, WM_SYSCOMMAND, sc, 0)
}

// AsyncKeyDown reports the global pressed state of vk
func (p *Primitives) AsyncKeyDown(vk VirtualKey) bool {
	return p.transport.IsKeyDown(uint16(vk))
}

package testutil

import (
	"errors"
	"sync"

	"github.com/Norgate-AV/winpilot/internal/winmsg"
)

// ErrInjectedSend is returned by FakeTransport for scripted failures
var ErrInjectedSend = errors.New("injected send failure")

// Message is one delivered window message
type Message struct {
	Hwnd   uintptr
	Msg    uint32
	WParam uintptr
	LParam uintptr
}

// KeyEvent is a delivered WM_KEYDOWN or WM_KEYUP
type KeyEvent struct {
	Down bool
	VK   winmsg.VirtualKey
}

// MouseEvent is a delivered mouse message with unpacked coordinates
type MouseEvent struct {
	Msg  uint32
	X, Y int
}

type failRule struct {
	msg       uint32
	wParam    uintptr
	anyWParam bool
	remaining int // -1 fails forever
}

// FakeTransport records every delivered message. Every non-zero handle is a
// window unless marked invalid. It is safe for concurrent use.
type FakeTransport struct {
	mu           sync.Mutex
	messages     []Message
	failed       []Message
	invalid      map[uintptr]bool
	failures     []*failRule
	keyDown      map[uint16]bool
	releaseAfter map[uint16]int
	activated    []uintptr
	sendHook     func(Message)
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		invalid:      make(map[uintptr]bool),
		keyDown:      make(map[uint16]bool),
		releaseAfter: make(map[uint16]int),
	}
}

func (f *FakeTransport) SendMessage(hwnd uintptr, msg uint32, wParam, lParam uintptr) (uintptr, error) {
	m := Message{Hwnd: hwnd, Msg: msg, WParam: wParam, LParam: lParam}

	f.mu.Lock()
	for _, rule := range f.failures {
		if rule.remaining == 0 || rule.msg != msg || (!rule.anyWParam && rule.wParam != wParam) {
			continue
		}

		if rule.remaining > 0 {
			rule.remaining--
		}

		f.failed = append(f.failed, m)
		f.mu.Unlock()
		return 0, ErrInjectedSend
	}

	f.messages = append(f.messages, m)
	hook := f.sendHook
	f.mu.Unlock()

	if hook != nil {
		hook(m)
	}

	return 0, nil
}

func (f *FakeTransport) IsWindow(hwnd uintptr) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return hwnd != 0 && !f.invalid[hwnd]
}

// IsKeyDown reports scripted key state. Keys set with WithKeyReleasedAfter
// report pressed for that many polls.
func (f *FakeTransport) IsKeyDown(vk uint16) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n, ok := f.releaseAfter[vk]; ok {
		if n <= 0 {
			delete(f.releaseAfter, vk)
			return false
		}

		f.releaseAfter[vk] = n - 1
		return true
	}

	return f.keyDown[vk]
}

func (f *FakeTransport) Activate(hwnd uintptr) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.activated = append(f.activated, hwnd)
	return nil
}

// Helper methods for fluent configuration

// WithInvalidWindow makes hwnd fail IsWindow
func (f *FakeTransport) WithInvalidWindow(hwnd uintptr) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.invalid[hwnd] = true
	return f
}

// WithFailure fails every send of msg carrying wParam
func (f *FakeTransport) WithFailure(msg uint32, wParam uintptr) *FakeTransport {
	return f.addFailure(&failRule{msg: msg, wParam: wParam, remaining: -1})
}

// WithFailureOnce fails the next send of msg carrying wParam
func (f *FakeTransport) WithFailureOnce(msg uint32, wParam uintptr) *FakeTransport {
	return f.addFailure(&failRule{msg: msg, wParam: wParam, remaining: 1})
}

// WithMessageFailure fails every send of msg regardless of wParam
func (f *FakeTransport) WithMessageFailure(msg uint32) *FakeTransport {
	return f.addFailure(&failRule{msg: msg, anyWParam: true, remaining: -1})
}

func (f *FakeTransport) addFailure(rule *failRule) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures = append(f.failures, rule)
	return f
}

// WithKeyDown marks vk as held in global key state
func (f *FakeTransport) WithKeyDown(vk winmsg.VirtualKey) *FakeTransport {
	f.SetKeyDown(vk, true)
	return f
}

// WithKeyReleasedAfter reports vk held for the next polls queries, then released
func (f *FakeTransport) WithKeyReleasedAfter(vk winmsg.VirtualKey, polls int) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.releaseAfter[uint16(vk)] = polls
	return f
}

// WithSendHook calls fn after each delivered message, outside the lock
func (f *FakeTransport) WithSendHook(fn func(Message)) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sendHook = fn
	return f
}

// SetKeyDown changes global key state
func (f *FakeTransport) SetKeyDown(vk winmsg.VirtualKey, down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.keyDown[uint16(vk)] = down
}

// Messages returns a copy of every delivered message in order
func (f *FakeTransport) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Message, len(f.messages))
	copy(out, f.messages)

	return out
}

// Failed returns the sends that were rejected by a scripted failure
func (f *FakeTransport) Failed() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Message, len(f.failed))
	copy(out, f.failed)

	return out
}

// Activated returns every handle passed to Activate
func (f *FakeTransport) Activated() []uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]uintptr, len(f.activated))
	copy(out, f.activated)

	return out
}

// KeyEvents returns delivered key-down and key-up messages in order
func (f *FakeTransport) KeyEvents() []KeyEvent {
	var events []KeyEvent

	for _, m := range f.Messages() {
		switch m.Msg {
		case winmsg.WM_KEYDOWN:
			events = append(events, KeyEvent{Down: true, VK: winmsg.VirtualKey(m.WParam)})
		case winmsg.WM_KEYUP:
			events = append(events, KeyEvent{Down: false, VK: winmsg.VirtualKey(m.WParam)})
		}
	}

	return events
}

// Chars returns the delivered WM_CHAR payloads as a string
func (f *FakeTransport) Chars() string {
	var out []rune

	for _, m := range f.Messages() {
		if m.Msg == winmsg.WM_CHAR {
			out = append(out, rune(m.WParam))
		}
	}

	return string(out)
}

// MouseEvents returns delivered mouse messages with unpacked coordinates
func (f *FakeTransport) MouseEvents() []MouseEvent {
	var events []MouseEvent

	for _, m := range f.Messages() {
		if m.Msg < winmsg.WM_MOUSEMOVE || m.Msg > winmsg.WM_MOUSEWHEEL {
			continue
		}

		x, y := winmsg.UnpackMouseLParam(m.LParam)
		events = append(events, MouseEvent{Msg: m.Msg, X: x, Y: y})
	}

	return events
}

// Reset forgets delivered and failed messages
func (f *FakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.messages = nil
	f.failed = nil
}

// Down is a key-down event for vk
func Down(vk winmsg.VirtualKey) KeyEvent {
	return KeyEvent{Down: true, VK: vk}
}

// Up is a key-up event for vk
func Up(vk winmsg.VirtualKey) KeyEvent {
	return KeyEvent{Down: false, VK: vk}
}

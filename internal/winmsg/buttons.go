package winmsg

import (
	"fmt"
	"strings"
)

// Button is a mouse button
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

type buttonMessages struct {
	down, up, dblclk uint32
	flag             uintptr
	vk               VirtualKey
}

var buttons = map[Button]buttonMessages{
	ButtonLeft:   {WM_LBUTTONDOWN, WM_LBUTTONUP, WM_LBUTTONDBLCLK, MK_LBUTTON, VK_LBUTTON},
	ButtonRight:  {WM_RBUTTONDOWN, WM_RBUTTONUP, WM_RBUTTONDBLCLK, MK_RBUTTON, VK_RBUTTON},
	ButtonMiddle: {WM_MBUTTONDOWN, WM_MBUTTONUP, WM_MBUTTONDBLCLK, MK_MBUTTON, VK_MBUTTON},
}

// ParseButton accepts left, right or middle in any case. An empty name means left.
func ParseButton(name string) (Button, error) {
	b := Button(strings.ToLower(strings.TrimSpace(name)))
	if b == "" {
		return ButtonLeft, nil
	}

	if _, ok := buttons[b]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownButton, name)
	}

	return b, nil
}

// Validate checks that b is one of the known buttons
func (b Button) Validate() error {
	if _, ok := buttons[b]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownButton, string(b))
	}

	return nil
}

// VirtualKey returns the code used to query the button's async state
func (b Button) VirtualKey() (VirtualKey, error) {
	m, ok := buttons[b]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownButton, string(b))
	}

	return m.vk, nil
}

func (b Button) messages() (buttonMessages, error) {
	m, ok := buttons[b]
	if !ok {
		return buttonMessages{}, fmt.Errorf("%w: %q", ErrUnknownButton, string(b))
	}

	return m, nil
}

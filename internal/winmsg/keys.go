package winmsg

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// VirtualKey is a Windows virtual-key code
type VirtualKey uint16

// Modifier virtual keys
const (
	VK_BACK    VirtualKey = 0x08
	VK_TAB     VirtualKey = 0x09
	VK_RETURN  VirtualKey = 0x0D
	VK_SHIFT   VirtualKey = 0x10
	VK_CONTROL VirtualKey = 0x11
	VK_MENU    VirtualKey = 0x12
	VK_ESCAPE  VirtualKey = 0x1B
	VK_SPACE   VirtualKey = 0x20
	VK_LWIN    VirtualKey = 0x5B
)

// Mouse button virtual keys, used for async state queries
const (
	VK_LBUTTON VirtualKey = 0x01
	VK_RBUTTON VirtualKey = 0x02
	VK_MBUTTON VirtualKey = 0x04
)

var virtualKeys = map[string]VirtualKey{
	// letters
	"a": 0x41, "b": 0x42, "c": 0x43, "d": 0x44, "e": 0x45, "f": 0x46,
	"g": 0x47, "h": 0x48, "i": 0x49, "j": 0x4A, "k": 0x4B, "l": 0x4C,
	"m": 0x4D, "n": 0x4E, "o": 0x4F, "p": 0x50, "q": 0x51, "r": 0x52,
	"s": 0x53, "t": 0x54, "u": 0x55, "v": 0x56, "w": 0x57, "x": 0x58,
	"y": 0x59, "z": 0x5A,

	// digits
	"0": 0x30, "1": 0x31, "2": 0x32, "3": 0x33, "4": 0x34,
	"5": 0x35, "6": 0x36, "7": 0x37, "8": 0x38, "9": 0x39,

	// function keys
	"f1": 0x70, "f2": 0x71, "f3": 0x72, "f4": 0x73, "f5": 0x74, "f6": 0x75,
	"f7": 0x76, "f8": 0x77, "f9": 0x78, "f10": 0x79, "f11": 0x7A, "f12": 0x7B,

	// navigation and editing
	"space": 0x20, "enter": 0x0D, "esc": 0x1B, "tab": 0x09,
	"backspace": 0x08, "delete": 0x2E, "insert": 0x2D, "home": 0x24,
	"end": 0x23, "pageup": 0x21, "pagedown": 0x22,
	"left": 0x25, "up": 0x26, "right": 0x27, "down": 0x28,

	// OEM symbols (US layout)
	";": 0xBA, "=": 0xBB, ",": 0xBC, "-": 0xBD, ".": 0xBE, "/": 0xBF,
	"`": 0xC0, "[": 0xDB, "\\": 0xDC, "]": 0xDD, "'": 0xDE,

	// modifiers
	"shift": 0x10, "ctrl": 0x11, "alt": 0x12, "win": 0x5B,
}

var keyAliases = map[string]string{
	"control": "ctrl",
	"windows": "win",
	"return":  "enter",
	"escape":  "esc",
	"del":     "delete",
	"ins":     "insert",
	"pgup":    "pageup",
	"pgdn":    "pagedown",
}

var modifierNames = map[string]bool{
	"shift": true,
	"ctrl":  true,
	"alt":   true,
	"win":   true,
}

// normalizeKey lowercases a name and applies aliases
func normalizeKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := keyAliases[key]; ok {
		return alias
	}

	return key
}

// ResolveKey maps a symbolic key name to its virtual-key code. Lookup is
// case-insensitive; a single printable ASCII character outside the table
// resolves to the code of its upper-case form.
func ResolveKey(name string) (VirtualKey, error) {
	key := normalizeKey(name)

	if vk, ok := virtualKeys[key]; ok {
		return vk, nil
	}

	if len(key) == 1 && key[0] > 0x20 && key[0] < 0x7F {
		return VirtualKey(strings.ToUpper(key)[0]), nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownKey, name)
}

// ResolveKeys resolves every name or fails on the first unknown one
func ResolveKeys(names []string) ([]VirtualKey, error) {
	codes := make([]VirtualKey, 0, len(names))

	for _, name := range names {
		vk, err := ResolveKey(name)
		if err != nil {
			return nil, err
		}

		codes = append(codes, vk)
	}

	return codes, nil
}

// IsModifier reports whether name is shift, ctrl, alt or win (aliases included)
func IsModifier(name string) bool {
	return modifierNames[normalizeKey(name)]
}

// KeyNames returns the table's key names in sorted order
func KeyNames() []string {
	return slices.Sorted(maps.Keys(virtualKeys))
}

// KeyMap returns a copy of the virtual-key table
func KeyMap() map[string]VirtualKey {
	return maps.Clone(virtualKeys)
}

// String renders the code the way key tables usually show it
func (vk VirtualKey) String() string {
	return fmt.Sprintf("0x%02X", uint16(vk))
}

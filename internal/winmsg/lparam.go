package winmsg

// Key lParam bit layout
const (
	keyExtendedBit   = 1 << 24
	keyPreviousBit   = 1 << 30
	keyTransitionBit = 1 << 31
)

// KeyLParam builds the lParam for WM_KEYDOWN/WM_KEYUP: repeat count in bits
// 0-15, scan code in 16-23, extended flag in 24. Key-up messages also carry
// the previous-state and transition bits.
func KeyLParam(scanCode uint8, repeat uint16, extended, up bool) uintptr {
	l := uintptr(repeat) | uintptr(scanCode)<<16

	if extended {
		l |= keyExtendedBit
	}

	if up {
		l |= keyPreviousBit | keyTransitionBit
	}

	return l
}

// MouseLParam packs client-space coordinates as (y << 16) | (x & 0xFFFF)
func MouseLParam(x, y int) uintptr {
	return uintptr(uint32(uint16(int16(y)))<<16 | uint32(uint16(int16(x))))
}

// UnpackMouseLParam reverses MouseLParam, sign-extending each coordinate
func UnpackMouseLParam(l uintptr) (x, y int) {
	return int(int16(uint16(l & 0xFFFF))), int(int16(uint16((l >> 16) & 0xFFFF)))
}

// WheelWParam places the signed wheel delta in the high word
func WheelWParam(delta int, keyState uint16) uintptr {
	return uintptr(uint32(uint16(int16(delta)))<<16 | uint32(keyState))
}

// UnpackWheelWParam returns the signed wheel delta from a wParam
func UnpackWheelWParam(w uintptr) int {
	return int(int16(uint16((w >> 16) & 0xFFFF)))
}

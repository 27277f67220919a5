package winmsg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/winpilot/internal/winmsg"
)

func TestResolveKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want winmsg.VirtualKey
	}{
		{"a", 0x41},
		{"Z", 0x5A},
		{"0", 0x30},
		{"9", 0x39},
		{"f1", 0x70},
		{"F12", 0x7B},
		{"space", 0x20},
		{"Enter", 0x0D},
		{"return", 0x0D},
		{"esc", 0x1B},
		{"escape", 0x1B},
		{"pageup", 0x21},
		{"down", 0x28},
		{";", 0xBA},
		{"'", 0xDE},
		{"ctrl", winmsg.VK_CONTROL},
		{"Control", winmsg.VK_CONTROL},
		{"windows", winmsg.VK_LWIN},
		{"*", '*'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := winmsg.ResolveKey(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveKey_Unknown(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "hyper", "f13", "é"} {
		_, err := winmsg.ResolveKey(name)
		assert.ErrorIs(t, err, winmsg.ErrUnknownKey, "name %q", name)
	}
}

func TestResolveKeys_StopsAtFirstUnknown(t *testing.T) {
	t.Parallel()

	_, err := winmsg.ResolveKeys([]string{"ctrl", "nope", "c"})
	require.ErrorIs(t, err, winmsg.ErrUnknownKey)
	assert.Contains(t, err.Error(), "nope")
}

func TestIsModifier(t *testing.T) {
	t.Parallel()

	assert.True(t, winmsg.IsModifier("Shift"))
	assert.True(t, winmsg.IsModifier("control"))
	assert.False(t, winmsg.IsModifier("c"))
}

func TestKeyMap_IsACopy(t *testing.T) {
	t.Parallel()

	m := winmsg.KeyMap()
	m["a"] = 0

	vk, err := winmsg.ResolveKey("a")
	require.NoError(t, err)
	assert.Equal(t, winmsg.VirtualKey(0x41), vk)
	assert.Contains(t, winmsg.KeyNames(), "backspace")
}

func TestParseButton(t *testing.T) {
	t.Parallel()

	b, err := winmsg.ParseButton("")
	require.NoError(t, err)
	assert.Equal(t, winmsg.ButtonLeft, b)

	b, err = winmsg.ParseButton("RIGHT")
	require.NoError(t, err)
	assert.Equal(t, winmsg.ButtonRight, b)

	_, err = winmsg.ParseButton("x1")
	assert.ErrorIs(t, err, winmsg.ErrUnknownButton)

	_, err = winmsg.Button("side").VirtualKey()
	assert.ErrorIs(t, err, winmsg.ErrUnknownButton)
}

package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKeyMap_Bindings(t *testing.T) {
	km := DefaultKeyMap()
	require.NotNil(t, km)

	tests := []struct {
		name    string
		matches bool
		binding func(*KeyMap) bool
	}{
		{"enter sends", true, func(k *KeyMap) bool { return Matches("enter", k.Send) }},
		{"esc quits", true, func(k *KeyMap) bool { return Matches("esc", k.Quit) }},
		{"ctrl+c quits", true, func(k *KeyMap) bool { return Matches("ctrl+c", k.Quit) }},
		{"q does not quit", false, func(k *KeyMap) bool { return Matches("q", k.Quit) }},
		{"ctrl+r toggles retrieval", true, func(k *KeyMap) bool { return Matches("ctrl+r", k.ToggleRetrieval) }},
		{"ctrl+s toggles sources", true, func(k *KeyMap) bool { return Matches("ctrl+s", k.ToggleSources) }},
		{"ctrl+n starts a session", true, func(k *KeyMap) bool { return Matches("ctrl+n", k.NewSession) }},
		{"pgup scrolls", true, func(k *KeyMap) bool { return Matches("pgup", k.ScrollUp) }},
		{"pgdown scrolls", true, func(k *KeyMap) bool { return Matches("pgdown", k.ScrollDown) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.matches, tt.binding(km))
		})
	}
}

func TestKeyMap_ShortHelp(t *testing.T) {
	km := DefaultKeyMap()
	help := km.ShortHelp()

	require.Len(t, help, 4)
	assert.Equal(t, "send", help[0].Help().Desc)
	assert.Equal(t, "quit", help[3].Help().Desc)
}

func TestKeyMap_FullHelp(t *testing.T) {
	km := DefaultKeyMap()
	groups := km.FullHelp()

	count := 0
	for _, g := range groups {
		count += len(g)
	}
	assert.Equal(t, 7, count)
}

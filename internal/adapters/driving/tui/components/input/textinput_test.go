package input

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/libris/internal/adapters/driving/tui/styles"
)

func TestNewMessageInput(t *testing.T) {
	in := NewMessageInput(styles.DefaultStyles())

	require.NotNil(t, in)
	assert.Equal(t, "", in.Value())
	assert.True(t, in.Focused())
}

func TestNewMessageInput_NilStyles(t *testing.T) {
	in := NewMessageInput(nil)

	require.NotNil(t, in)
	assert.NotNil(t, in.styles)
}

func TestMessageInput_Init(t *testing.T) {
	assert.NotNil(t, NewMessageInput(nil).Init())
}

func TestMessageInput_Typing(t *testing.T) {
	in := NewMessageInput(nil)

	for _, r := range "who is Paul" {
		in, _ = in.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	assert.Equal(t, "who is Paul", in.Value())
}

func TestMessageInput_View(t *testing.T) {
	in := NewMessageInput(nil)
	in.SetValue("hello")

	assert.Contains(t, in.View(), "hello")
}

func TestMessageInput_FocusBlur(t *testing.T) {
	in := NewMessageInput(nil)

	in.Blur()
	assert.False(t, in.Focused())

	in.Focus()
	assert.True(t, in.Focused())
}

func TestMessageInput_SetWidth(t *testing.T) {
	tests := []struct {
		name      string
		width     int
		wantInner int
	}{
		{"wide terminal", 100, 92},
		{"narrow terminal clamps", 10, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewMessageInput(nil)
			in.SetWidth(tt.width)

			assert.Equal(t, tt.width, in.Width())
			assert.Equal(t, tt.wantInner, in.textinput.Width)
		})
	}
}

func TestMessageInput_Reset(t *testing.T) {
	in := NewMessageInput(nil)
	in.SetValue("draft")

	in.Reset()

	assert.Equal(t, "", in.Value())
}

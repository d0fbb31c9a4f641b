package status

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/libris/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/libris/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/libris/internal/core/domain"
)

func wideBar() *Bar {
	b := NewBar(nil, nil)
	b.SetWidth(200)
	return b
}

func TestNewBar(t *testing.T) {
	bar := NewBar(styles.DefaultStyles(), keymap.DefaultKeyMap())

	require.NotNil(t, bar)
	assert.Equal(t, StateReady, bar.State())
	assert.Equal(t, "", bar.Message())
	assert.Equal(t, domain.Outcome(""), bar.Outcome())
}

func TestNewBar_NilDependencies(t *testing.T) {
	bar := NewBar(nil, nil)

	require.NotNil(t, bar)
	assert.NotNil(t, bar.styles)
	assert.NotNil(t, bar.keymap)
}

func TestBar_Update(t *testing.T) {
	bar := NewBar(nil, nil)

	updated, cmd := bar.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, bar, updated)
	assert.Nil(t, cmd)
	assert.Nil(t, bar.Init())
}

func TestBar_View(t *testing.T) {
	tests := []struct {
		name  string
		setup func(b *Bar)
		want  []string
	}{
		{
			name:  "ready",
			setup: func(_ *Bar) {},
			want:  []string{"Ready", "retrieval on", "enter: send"},
		},
		{
			name:  "thinking",
			setup: func(b *Bar) { b.SetState(StateThinking) },
			want:  []string{"Thinking..."},
		},
		{
			name: "error with message",
			setup: func(b *Bar) {
				b.SetState(StateError)
				b.SetMessage("index unavailable")
			},
			want: []string{"Error: index unavailable"},
		},
		{
			name: "rag reply",
			setup: func(b *Bar) {
				b.SetReply(domain.ChatReply{
					SessionID:  "0123456789abcdef",
					UsedRAG:    true,
					Confidence: 0.72,
					Outcome:    domain.OutcomeSuccess,
				})
			},
			want: []string{"success, confidence 0.72", "session 01234567"},
		},
		{
			name: "direct reply hides confidence",
			setup: func(b *Bar) {
				b.SetReply(domain.ChatReply{SessionID: "s1", Outcome: domain.OutcomeDegraded})
			},
			want: []string{"degraded", "session s1"},
		},
		{
			name:  "retrieval off",
			setup: func(b *Bar) { b.SetRetrieval(false) },
			want:  []string{"retrieval off"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := wideBar()
			tt.setup(bar)

			view := bar.View()
			for _, w := range tt.want {
				assert.Contains(t, view, w)
			}
		})
	}
}

func TestBar_DirectReplyHasNoConfidence(t *testing.T) {
	bar := wideBar()
	bar.SetReply(domain.ChatReply{Outcome: domain.OutcomeSuccess, Confidence: 0.5})

	assert.NotContains(t, bar.View(), "confidence")
}

func TestBar_SetReplyClearsError(t *testing.T) {
	bar := NewBar(nil, nil)
	bar.SetState(StateError)
	bar.SetMessage("boom")

	bar.SetReply(domain.ChatReply{Outcome: domain.OutcomeSuccess})

	assert.Equal(t, StateReady, bar.State())
	assert.Equal(t, "", bar.Message())
	assert.Equal(t, domain.OutcomeSuccess, bar.Outcome())
}

func TestBar_Clear(t *testing.T) {
	bar := wideBar()
	bar.SetReply(domain.ChatReply{SessionID: "s1", Outcome: domain.OutcomeFailed})

	bar.Clear()

	assert.Equal(t, StateReady, bar.State())
	assert.Equal(t, domain.Outcome(""), bar.Outcome())
	assert.NotContains(t, bar.View(), "session s1")
}

func TestBar_Width(t *testing.T) {
	bar := NewBar(nil, nil)
	assert.Equal(t, 80, bar.Width())

	bar.SetWidth(120)
	assert.Equal(t, 120, bar.Width())
}

// Package status provides the chat status bar.
package status

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/libris/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/libris/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/libris/internal/core/domain"
)

// State represents the current chat state for display.
type State string

const (
	StateReady    State = "ready"
	StateThinking State = "thinking"
	StateError    State = "error"
)

// Bar displays the last reply's outcome and keybinding hints.
type Bar struct {
	styles *styles.Styles
	keymap *keymap.KeyMap

	state      State
	message    string
	outcome    domain.Outcome
	confidence float64
	usedRAG    bool
	retrieval  bool
	sessionID  string
	width      int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles:    s,
		keymap:    km,
		state:     StateReady,
		retrieval: true,
		width:     80,
	}
}

// Init initialises the status bar.
func (b *Bar) Init() tea.Cmd {
	return nil
}

// Update handles status bar messages.
func (b *Bar) Update(_ tea.Msg) (*Bar, tea.Cmd) {
	// Bar is passive, updated via Set methods
	return b, nil
}

// View renders the status bar.
func (b *Bar) View() string {
	left := b.renderLeft()
	right := b.renderRight()

	padding := b.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return b.styles.StatusBar.Width(b.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (b *Bar) renderLeft() string {
	parts := []string{b.renderState()}

	mode := "retrieval off"
	if b.retrieval {
		mode = "retrieval on"
	}
	parts = append(parts, b.styles.Muted.Render(mode))

	if b.sessionID != "" {
		parts = append(parts, b.styles.Muted.Render("session "+shortID(b.sessionID)))
	}
	return strings.Join(parts, b.styles.Muted.Render(" | "))
}

func (b *Bar) renderState() string {
	switch b.state {
	case StateThinking:
		return b.styles.Muted.Render("Thinking...")
	case StateError:
		if b.message != "" {
			return b.styles.Error.Render("Error: " + b.message)
		}
		return b.styles.Error.Render("Error")
	case StateReady:
		if b.outcome == "" {
			return b.styles.Muted.Render("Ready")
		}
	}

	text := string(b.outcome)
	if b.usedRAG {
		text = fmt.Sprintf("%s, confidence %.2f", text, b.confidence)
	}
	switch b.outcome {
	case domain.OutcomeSuccess:
		return b.styles.Success.Render(text)
	case domain.OutcomeDegraded:
		return b.styles.Warning.Render(text)
	default:
		return b.styles.Error.Render(text)
	}
}

func (b *Bar) renderRight() string {
	bindings := b.keymap.ShortHelp()
	hints := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return b.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetReply records the outcome of the latest reply.
func (b *Bar) SetReply(reply domain.ChatReply) {
	b.state = StateReady
	b.message = ""
	b.outcome = reply.Outcome
	b.confidence = reply.Confidence
	b.usedRAG = reply.UsedRAG
	b.sessionID = reply.SessionID
}

// SetState sets the current state.
func (b *Bar) SetState(state State) {
	b.state = state
}

// State returns the current state.
func (b *Bar) State() State {
	return b.state
}

// SetMessage sets the error message.
func (b *Bar) SetMessage(message string) {
	b.message = message
}

// Message returns the current message.
func (b *Bar) Message() string {
	return b.message
}

// SetRetrieval records whether retrieval is enabled.
func (b *Bar) SetRetrieval(on bool) {
	b.retrieval = on
}

// Outcome returns the outcome of the latest reply.
func (b *Bar) Outcome() domain.Outcome {
	return b.outcome
}

// SetWidth sets the status bar width.
func (b *Bar) SetWidth(width int) {
	b.width = width
}

// Width returns the current width.
func (b *Bar) Width() int {
	return b.width
}

// Clear resets the bar for a new session.
func (b *Bar) Clear() {
	b.state = StateReady
	b.message = ""
	b.outcome = ""
	b.confidence = 0
	b.usedRAG = false
	b.sessionID = ""
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

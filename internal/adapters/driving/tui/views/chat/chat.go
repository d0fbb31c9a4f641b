// Package chat provides the conversation view for the TUI.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/libris/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/libris/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/libris/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/libris/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/libris/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driving"
)

// ErrNoRAGService is reported when the view has no service to talk to.
var ErrNoRAGService = errors.New("rag service not available")

// Reserved rows: title, blank line, bordered input (3) and status bar.
const chromeHeight = 6

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryNotice
	entryError
)

type entry struct {
	kind    entryKind
	text    string
	sources []domain.ContextChunk
}

// View is the chat transcript with its input and status bar.
type View struct {
	styles *styles.Styles
	keymap *keymap.KeyMap
	rag    driving.RAGService
	ctx    context.Context

	input     *input.MessageInput
	statusbar *status.Bar
	viewport  viewport.Model

	entries     []entry
	sessionID   string
	documentID  string
	retrieval   bool
	showSources bool
	pending     bool

	width  int
	height int
}

// NewView creates a chat view. sessionID resumes an existing session when set.
func NewView(s *styles.Styles, rag driving.RAGService, sessionID, documentID string) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	km := keymap.DefaultKeyMap()

	v := &View{
		styles:      s,
		keymap:      km,
		rag:         rag,
		ctx:         context.Background(),
		input:       input.NewMessageInput(s),
		statusbar:   status.NewBar(s, km),
		viewport:    viewport.New(80, 20),
		sessionID:   sessionID,
		documentID:  documentID,
		retrieval:   true,
		showSources: true,
	}
	v.SetDimensions(80, 20+chromeHeight)
	return v
}

// WithContext sets the context used for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init starts the cursor blink and loads the pipeline status.
func (v *View) Init() tea.Cmd {
	return tea.Batch(v.input.Init(), v.loadStatus())
}

// Update handles messages.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		return v, cmd

	case messages.ReplyReceived:
		v.handleReply(msg)
		return v, nil

	case messages.SessionEnded:
		v.handleSessionEnded(msg)
		return v, nil

	case messages.StatusLoaded:
		v.handleStatus(msg.Status)
		return v, nil

	case messages.ErrorOccurred:
		v.pending = false
		v.appendEntry(entry{kind: entryError, text: msg.Err.Error()})
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()
	var cmd tea.Cmd

	switch {
	case keymap.Matches(keyStr, v.keymap.Send):
		return v, v.submit()

	case keymap.Matches(keyStr, v.keymap.ScrollUp), keymap.Matches(keyStr, v.keymap.ScrollDown):
		v.viewport, cmd = v.viewport.Update(msg)
		return v, cmd

	case keymap.Matches(keyStr, v.keymap.ToggleRetrieval):
		v.retrieval = !v.retrieval
		v.statusbar.SetRetrieval(v.retrieval)
		return v, nil

	case keymap.Matches(keyStr, v.keymap.ToggleSources):
		v.showSources = !v.showSources
		v.refresh()
		return v, nil

	case keymap.Matches(keyStr, v.keymap.NewSession):
		if v.pending {
			return v, nil
		}
		return v, v.endSession()
	}

	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) submit() tea.Cmd {
	text := strings.TrimSpace(v.input.Value())
	if text == "" || v.pending {
		return nil
	}

	v.input.Reset()
	v.pending = true
	v.statusbar.SetState(status.StateThinking)
	v.appendEntry(entry{kind: entryUser, text: text})

	req := domain.ChatRequest{
		SessionID:    v.sessionID,
		DocumentID:   v.documentID,
		Message:      text,
		UseRetrieval: v.retrieval,
	}
	return func() tea.Msg {
		if v.rag == nil {
			return messages.ErrorOccurred{Err: ErrNoRAGService}
		}
		reply, err := v.rag.Chat(v.ctx, req)
		return messages.ReplyReceived{Reply: reply, Err: err}
	}
}

func (v *View) endSession() tea.Cmd {
	id := v.sessionID
	return func() tea.Msg {
		if id == "" || v.rag == nil {
			return messages.SessionEnded{}
		}
		return messages.SessionEnded{SessionID: id, Err: v.rag.EndSession(id)}
	}
}

func (v *View) loadStatus() tea.Cmd {
	return func() tea.Msg {
		if v.rag == nil {
			return messages.ErrorOccurred{Err: ErrNoRAGService}
		}
		return messages.StatusLoaded{Status: v.rag.Status(v.ctx)}
	}
}

func (v *View) handleReply(msg messages.ReplyReceived) {
	v.pending = false
	if msg.Err != nil {
		v.appendEntry(entry{kind: entryError, text: msg.Err.Error()})
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return
	}

	v.sessionID = msg.Reply.SessionID
	v.statusbar.SetReply(msg.Reply)
	v.appendEntry(entry{kind: entryAssistant, text: msg.Reply.Reply, sources: msg.Reply.Context})
}

func (v *View) handleSessionEnded(msg messages.SessionEnded) {
	v.entries = nil
	v.sessionID = ""
	v.statusbar.Clear()
	if msg.Err != nil && !errors.Is(msg.Err, domain.ErrSessionNotFound) {
		v.appendEntry(entry{kind: entryError, text: msg.Err.Error()})
		return
	}
	v.appendEntry(entry{kind: entryNotice, text: "Started a new session."})
}

func (v *View) handleStatus(st domain.ServiceStatus) {
	if !st.Healthy() {
		v.appendEntry(entry{kind: entryNotice, text: fmt.Sprintf(
			"Retrieval is unavailable (embedding %s, vector store %s). Replies will not use your books.",
			st.Embedding.Status, st.VectorStore.Status)})
	}
	if st.Generation.Status != domain.StatusHealthy {
		v.appendEntry(entry{kind: entryNotice, text: "No LLM is configured; answers are excerpts of the best passages."})
	}
}

func (v *View) appendEntry(e entry) {
	v.entries = append(v.entries, e)
	v.refresh()
}

func (v *View) refresh() {
	v.viewport.SetContent(v.renderTranscript())
	v.viewport.GotoBottom()
}

func (v *View) renderTranscript() string {
	wrap := lipgloss.NewStyle().Width(v.viewport.Width)
	var b strings.Builder

	for i, e := range v.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		switch e.kind {
		case entryUser:
			b.WriteString(v.styles.UserLabel.Render("You"))
			b.WriteString("\n")
			b.WriteString(wrap.Render(e.text))
		case entryAssistant:
			b.WriteString(v.styles.AssistantLabel.Render("Libris"))
			b.WriteString("\n")
			b.WriteString(wrap.Render(e.text))
			if v.showSources {
				for j, c := range e.sources {
					b.WriteString("\n")
					b.WriteString(v.styles.Source.Render(fmt.Sprintf("[%d] %s #%d (%.2f)", j+1, c.DocumentID, c.Index, c.Score)))
				}
			}
		case entryNotice:
			b.WriteString(v.styles.Muted.Render(wrap.Render(e.text)))
		case entryError:
			b.WriteString(v.styles.Error.Render(wrap.Render("Error: " + e.text)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// View renders the chat.
func (v *View) View() string {
	title := v.styles.Title.Render("libris chat")
	if v.documentID != "" {
		title += v.styles.Muted.Render("  " + v.documentID)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		v.viewport.View(),
		"",
		v.input.View(),
		v.statusbar.View(),
	)
}

// SetDimensions sizes the transcript, input and status bar.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height

	vpHeight := height - chromeHeight
	if vpHeight < 3 {
		vpHeight = 3
	}
	v.viewport.Width = width
	v.viewport.Height = vpHeight
	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)
	v.refresh()
}

// SessionID returns the current session, empty before the first reply.
func (v *View) SessionID() string {
	return v.sessionID
}

// Retrieval reports whether messages may be routed through retrieval.
func (v *View) Retrieval() bool {
	return v.retrieval
}

// Pending reports whether a reply is outstanding.
func (v *View) Pending() bool {
	return v.pending
}

// Transcript returns the rendered conversation.
func (v *View) Transcript() string {
	return v.renderTranscript()
}

package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/libris/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/libris/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/libris/internal/adapters/driving/tui/views/chat"
)

// Option configures an App.
type Option func(*options)

type options struct {
	sessionID  string
	documentID string
}

// WithSession resumes an existing chat session.
func WithSession(id string) Option {
	return func(o *options) {
		o.sessionID = id
	}
}

// WithDocument scopes retrieval to one document.
func WithDocument(id string) Option {
	return func(o *options) {
		o.documentID = id
	}
}

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	chatView *chat.View

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports, opts ...Option) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	s := styles.DefaultStyles()
	return &App{
		ports:    ports,
		ctx:      context.Background(),
		styles:   s,
		keymap:   keymap.DefaultKeyMap(),
		chatView: chat.NewView(s, ports.RAG, o.sessionID, o.documentID),
	}, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.chatView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("libris"),
		a.chatView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.chatView.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if keymap.Matches(msg.String(), a.keymap.Quit) {
			return a, tea.Quit
		}
	}

	var cmd tea.Cmd
	a.chatView, cmd = a.chatView.Update(msg)
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}
	return a.chatView.View()
}

// SessionID returns the session the conversation ended in.
func (a *App) SessionID() string {
	return a.chatView.SessionID()
}

// Ready reports whether the terminal size is known.
func (a *App) Ready() bool {
	return a.ready
}

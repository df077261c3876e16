// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/jeranaias/rigrun-chat/internal/auth"
	"github.com/jeranaias/rigrun-chat/internal/chat"
	"github.com/jeranaias/rigrun-chat/internal/store"
	"github.com/jeranaias/rigrun-chat/internal/ui/styles"
)

// =============================================================================
// SCREENS
// =============================================================================

// Screen is what the model currently shows.
type Screen int

const (
	ScreenLoading Screen = iota // waiting for hydration or session restore
	ScreenSignIn                // no user
	ScreenChat                  // signed in
)

// String returns the screen name.
func (s Screen) String() string {
	switch s {
	case ScreenLoading:
		return "loading"
	case ScreenSignIn:
		return "sign-in"
	case ScreenChat:
		return "chat"
	default:
		return "unknown"
	}
}

// =============================================================================
// MODEL
// =============================================================================

// Options wire the model to the rest of the application.
type Options struct {
	// Context bounds streams started from the UI.
	Context context.Context

	Store   *store.Store
	Auth    *auth.Manager
	Session *chat.Session

	Theme        string
	Markdown     bool
	SidebarWidth int

	// Label is shown in the header, e.g. "openai / gpt-4o-mini".
	Label string

	Logger *zap.Logger
}

// Model is the root Bubble Tea model.
type Model struct {
	ctx     context.Context
	store   *store.Store
	auth    *auth.Manager
	session *chat.Session
	logger  *zap.Logger

	theme        *styles.Theme
	keys         KeyMap
	markdown     bool
	sidebarWidth int
	label        string

	width  int
	height int
	ready  bool

	state     store.State
	authState auth.State

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	signIn   signInForm

	pendingImages []string
	status        string
	statusErr     bool

	lastActiveID string
	renderer     *glamour.TermRenderer
	rendererKey  string
	rendered     map[string]renderedMessage
}

type renderedMessage struct {
	content string
	width   int
	out     string
}

// New creates the root model.
func New(opts Options) *Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SidebarWidth <= 0 {
		opts.SidebarWidth = 28
	}

	ta := textarea.New()
	ta.Placeholder = "Send a message... (/attach <path> to add an image)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()

	theme := styles.NewTheme(opts.Theme)
	sp := spinner.New(
		spinner.WithSpinner(styles.LineSpinner.Bubble()),
		spinner.WithStyle(theme.Spinner),
	)

	return &Model{
		ctx:          opts.Context,
		store:        opts.Store,
		auth:         opts.Auth,
		session:      opts.Session,
		logger:       opts.Logger.Named("ui"),
		theme:        theme,
		keys:         DefaultKeyMap(),
		markdown:     opts.Markdown,
		sidebarWidth: opts.SidebarWidth,
		label:        opts.Label,
		state:        store.State{Loading: true},
		authState:    auth.State{Loading: true},
		viewport:     viewport.New(80, 20),
		input:        ta,
		spinner:      sp,
		rendered:     make(map[string]renderedMessage),
	}
}

// Init starts the spinner and loads persisted state.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textarea.Blink, m.startupCmd())
}

// startupCmd hydrates the store and restores the auth session.
func (m *Model) startupCmd() tea.Cmd {
	return func() tea.Msg {
		if !m.store.Hydrated() {
			m.store.Hydrate(m.ctx)
		}
		m.auth.Restore(m.ctx)
		return startupDoneMsg{}
	}
}

// Screen returns the screen the model is showing.
func (m *Model) Screen() Screen {
	if !m.ready || m.state.Loading || m.authState.Loading {
		return ScreenLoading
	}
	if !m.authState.SignedIn() {
		return ScreenSignIn
	}
	return ScreenChat
}

// State returns the store snapshot the model last rendered.
func (m *Model) State() store.State {
	return m.state
}

// PendingImages returns attachments queued for the next message.
func (m *Model) PendingImages() []string {
	return append([]string(nil), m.pendingImages...)
}

// Status returns the status line text.
func (m *Model) Status() string {
	return m.status
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/rigrun-chat/internal/chat"
	"github.com/jeranaias/rigrun-chat/internal/ui/styles"
)

// attachCommand prefixes an input line that attaches an image.
const attachCommand = "/attach"

// Update handles all messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.layout()
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state.Streaming {
			m.refreshViewport()
		}
		return m, cmd

	case startupDoneMsg:
		m.ready = true
		m.state = m.store.Snapshot()
		m.authState = m.auth.State()
		m.signIn = newSignInForm(m.auth.Prompts())
		m.refreshViewport()
		return m, nil

	case StoreChangedMsg:
		if msg.State.Version >= m.state.Version {
			m.state = msg.State
			m.refreshViewport()
		}
		return m, nil

	case AuthChangedMsg:
		wasSignedIn := m.authState.SignedIn()
		m.authState = msg.State
		if wasSignedIn && !msg.State.SignedIn() {
			m.signIn = newSignInForm(m.auth.Prompts())
			m.pendingImages = nil
			m.input.Reset()
			m.setStatus("Signed out", false)
		}
		return m, nil

	case ThemeChangedMsg:
		m.theme = styles.NewTheme(msg.Theme)
		m.theme.SetSize(m.width, m.height)
		m.spinner.Style = m.theme.Spinner
		m.renderer = nil
		m.rendered = make(map[string]renderedMessage)
		m.refreshViewport()
		return m, nil

	case StatusMsg:
		m.setStatus(msg.Text, msg.Error)
		return m, nil

	case loginResultMsg:
		m.signIn.busy = false
		if msg.err != nil {
			m.signIn.err = signInError(msg.err)
			return m, nil
		}
		m.signIn = newSignInForm(m.auth.Prompts())
		m.authState = m.auth.State()
		m.setStatus("", false)
		m.refreshViewport()
		return m, nil

	case attachResultMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("Could not attach %s: %v", filepath.Base(msg.path), msg.err), true)
			return m, nil
		}
		m.pendingImages = append(m.pendingImages, msg.url)
		m.setStatus(fmt.Sprintf("Attached %s (%d image(s) will be sent with your next message)",
			filepath.Base(msg.path), len(m.pendingImages)), false)
		return m, nil

	case tea.MouseMsg:
		if m.Screen() == ScreenChat {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			if m.session != nil {
				m.session.Stop()
			}
			return m, tea.Quit
		}
		switch m.Screen() {
		case ScreenSignIn:
			return m, m.updateSignIn(msg)
		case ScreenChat:
			return m, m.updateChat(msg)
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) updateSignIn(msg tea.KeyMsg) tea.Cmd {
	submit, cmd := m.signIn.update(msg)
	if !submit {
		return cmd
	}
	m.signIn.busy = true
	m.signIn.err = ""
	creds := m.signIn.credentials()
	return func() tea.Msg {
		return loginResultMsg{err: m.auth.Login(m.ctx, creds)}
	}
}

func (m *Model) updateChat(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Stop):
		if m.session.Busy() {
			m.session.Stop()
			m.setStatus("Stopping...", false)
		}
		return nil

	case key.Matches(msg, m.keys.Send):
		return m.handleSend()

	case key.Matches(msg, m.keys.New):
		if _, err := m.store.Create(); err != nil {
			m.setStatus("Could not create a chat: "+err.Error(), true)
		}
		m.pendingImages = nil
		m.syncState()
		return nil

	case key.Matches(msg, m.keys.Delete):
		active := m.state.Active()
		if active == nil {
			return nil
		}
		if err := m.store.Delete(active.ID); err != nil {
			m.setStatus("Could not delete the chat: "+err.Error(), true)
		} else {
			m.setStatus(fmt.Sprintf("Deleted %q", active.GetTitle()), false)
		}
		m.syncState()
		return nil

	case key.Matches(msg, m.keys.Prev):
		m.selectRelative(-1)
		return nil

	case key.Matches(msg, m.keys.Next):
		m.selectRelative(1)
		return nil

	case key.Matches(msg, m.keys.Regenerate):
		if _, err := m.session.Regenerate(m.ctx); err != nil {
			m.setStatus(submitError(err), true)
		}
		m.syncState()
		return nil

	case key.Matches(msg, m.keys.Logout):
		return func() tea.Msg {
			m.session.Stop()
			m.auth.Logout(m.ctx)
			return AuthChangedMsg{State: m.auth.State()}
		}

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// handleSend submits the input, or starts an upload for /attach.
func (m *Model) handleSend() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())

	if text == attachCommand || strings.HasPrefix(text, attachCommand+" ") {
		path := cleanPath(strings.TrimSpace(strings.TrimPrefix(text, attachCommand)))
		if path == "" {
			m.setStatus("Usage: /attach <path to image>", true)
			return nil
		}
		m.input.Reset()
		m.setStatus("Uploading "+filepath.Base(path)+"...", false)
		return func() tea.Msg {
			url, err := m.session.AttachFile(m.ctx, path)
			return attachResultMsg{path: path, url: url, err: err}
		}
	}

	if text == "" && len(m.pendingImages) == 0 {
		return nil
	}

	_, err := m.session.Submit(m.ctx, chat.Prompt{Text: text, Images: m.pendingImages})
	if err != nil {
		m.setStatus(submitError(err), true)
		return nil
	}
	m.logger.Debug("prompt submitted", zap.Int("chars", len(text)), zap.Int("images", len(m.pendingImages)))
	m.input.Reset()
	m.pendingImages = nil
	m.setStatus("", false)
	m.syncState()
	return nil
}

// selectRelative activates the conversation delta rows away from the active
// one in sidebar order.
func (m *Model) selectRelative(delta int) {
	convs := m.state.Conversations
	if len(convs) == 0 {
		return
	}
	idx := 0
	for i, c := range convs {
		if c.ID == m.state.ActiveID {
			idx = i
			break
		}
	}
	next := idx + delta
	if next < 0 || next >= len(convs) {
		return
	}
	if err := m.store.Select(convs[next].ID); err != nil {
		m.setStatus("Could not switch chats: "+err.Error(), true)
	}
	m.syncState()
}

// syncState reads the store directly after a change made from Update, so
// the next frame does not wait for the bridge.
func (m *Model) syncState() {
	snap := m.store.Snapshot()
	if snap.Version >= m.state.Version {
		m.state = snap
		m.refreshViewport()
	}
}

func submitError(err error) string {
	switch {
	case errors.Is(err, chat.ErrBusy):
		return "A response is still being generated (esc to stop)."
	case errors.Is(err, chat.ErrNothingToRegenerate):
		return "Nothing to regenerate yet."
	case errors.Is(err, chat.ErrEmptyPrompt):
		return "Type a message or attach an image first."
	default:
		return err.Error()
	}
}

// cleanPath strips quotes and expands a leading ~.
func cleanPath(p string) string {
	p = strings.Trim(p, `"'`)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

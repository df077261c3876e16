// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

const (
	headerHeight = 1
	statusHeight = 1
	inputHeight  = 5 // textarea rows plus border
)

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) showSidebar() bool {
	return m.theme.SidebarVisible()
}

func (m *Model) mainWidth() int {
	w := m.width
	if m.showSidebar() {
		w -= m.sidebarWidth + 1
	}
	return max(w, 10)
}

func (m *Model) bodyHeight() int {
	return max(m.height-headerHeight-statusHeight-inputHeight, 1)
}

// layout resizes the components after a window change.
func (m *Model) layout() {
	m.viewport.Width = m.mainWidth()
	m.viewport.Height = m.bodyHeight()
	m.input.SetWidth(max(m.width-2, 10))
	for i := range m.signIn.inputs {
		m.signIn.inputs[i].Width = min(max(m.width-20, 10), 48)
	}
}

// refreshViewport re-renders the active conversation into the viewport,
// following the newest message when the view was already at the bottom,
// while streaming, or after switching conversations.
func (m *Model) refreshViewport() {
	active := m.state.Active()
	activeID := ""
	if active != nil {
		activeID = active.ID
	}
	follow := m.viewport.AtBottom() || m.state.Streaming || activeID != m.lastActiveID
	m.lastActiveID = activeID

	m.viewport.SetContent(m.renderConversation(active, m.viewport.Width))
	if follow {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the current screen.
func (m *Model) View() string {
	switch m.Screen() {
	case ScreenLoading:
		return m.viewLoading()
	case ScreenSignIn:
		return m.viewSignIn()
	default:
		return m.viewChat()
	}
}

func (m *Model) place(content string) string {
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) viewLoading() string {
	return m.place(m.spinner.View() + " " + m.theme.LoadingText.Render("Loading your conversations..."))
}

func (m *Model) viewSignIn() string {
	var b strings.Builder
	b.WriteString(m.theme.SignInTitle.Render("Sign in to rigchat"))
	b.WriteString("\n")

	if len(m.signIn.inputs) == 0 {
		b.WriteString(m.theme.SignInLabel.Render("Press enter to continue."))
		b.WriteString("\n")
	}
	for i, p := range m.signIn.prompts {
		b.WriteString(m.theme.SignInLabel.Render(p.Label))
		b.WriteString("\n")
		b.WriteString(m.signIn.inputs[i].View())
		b.WriteString("\n\n")
	}

	switch {
	case m.signIn.busy:
		b.WriteString(m.spinner.View() + " Signing in...")
	case m.signIn.err != "":
		b.WriteString(m.theme.ErrorStyle.Render(m.signIn.err))
	default:
		b.WriteString(m.theme.ShortcutDesc.Render("tab to move, enter to sign in, ctrl+c to quit"))
	}
	return m.place(m.theme.SignInBox.Render(b.String()))
}

func (m *Model) viewChat() string {
	main := m.viewport.View()
	body := main
	if m.showSidebar() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(m.bodyHeight()), main)
	}

	input := m.theme.InputContainer.Width(max(m.width-2, 10)).Render(m.input.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		input,
		m.renderStatusBar(),
	)
}

func (m *Model) renderHeader() string {
	left := m.theme.HeaderTitle.Render("rigchat")
	if active := m.state.Active(); active != nil {
		left += "  " + util.SingleLine(active.GetTitle())
	}

	var right []string
	if m.label != "" {
		right = append(right, m.label)
	}
	if u := m.authState.User; u != nil {
		right = append(right, m.theme.HeaderUser.Render(u.DisplayName()))
	}
	rightText := strings.Join(right, " | ")

	inner := max(m.width-2, 0)
	gap := inner - lipgloss.Width(left) - lipgloss.Width(rightText)
	line := left
	if gap > 0 {
		line += strings.Repeat(" ", gap) + rightText
	}
	return m.theme.Header.Width(m.width).MaxHeight(1).Render(line)
}

func (m *Model) renderStatusBar() string {
	var line string
	switch {
	case m.status != "" && m.statusErr:
		line = m.theme.ErrorStyle.Render(m.status)
	case m.status != "":
		line = m.theme.InfoStyle.Render(m.status)
	case len(m.pendingImages) > 0:
		line = m.theme.InfoStyle.Render(fmt.Sprintf("%d image(s) attached", len(m.pendingImages)))
	case m.state.Streaming:
		line = m.spinner.View() + " " + m.theme.ShortcutDesc.Render("generating... esc to stop")
	default:
		var parts []string
		for _, b := range m.keys.ShortHelp() {
			h := b.Help()
			parts = append(parts, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
		}
		line = strings.Join(parts, "  ")
	}
	return m.theme.StatusBar.Width(m.width).MaxHeight(1).Render(line)
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m *Model) renderSidebar(height int) string {
	inner := max(m.sidebarWidth-2, 4)
	lines := []string{m.theme.SidebarHeading.Render("Chats")}

	convs := m.state.Conversations
	if len(convs) == 0 {
		lines = append(lines, m.theme.SidebarMeta.Render(util.TruncateWidth("No chats yet", inner)))
	}

	// Keep the active row visible.
	visible := max(height-2, 1)
	start := 0
	for i, c := range convs {
		if c.ID == m.state.ActiveID && i >= visible {
			start = i - visible + 1
		}
	}
	end := min(start+visible, len(convs))

	for _, c := range convs[start:end] {
		title := util.PadRight(util.SingleLine(c.GetTitle()), inner)
		if c.ID == m.state.ActiveID {
			lines = append(lines, m.theme.SidebarItemSelected.Render(title))
		} else {
			lines = append(lines, m.theme.SidebarItem.Render(title))
		}
	}

	return m.theme.Sidebar.
		Width(m.sidebarWidth).
		Height(height).
		MaxHeight(height).
		Render(strings.Join(lines, "\n"))
}

// =============================================================================
// MESSAGES
// =============================================================================

func (m *Model) renderConversation(conv *model.Conversation, width int) string {
	if conv == nil || len(conv.Messages) == 0 {
		return m.theme.EmptyState.Render("Start a conversation by typing a message below.")
	}

	bodyWidth := max(width-3, 10)
	blocks := make([]string, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		blocks = append(blocks, m.renderMessage(msg, bodyWidth))
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) renderMessage(msg *model.Message, width int) string {
	var label, body string
	bubble := m.theme.AssistantBubble

	switch {
	case msg.Role == model.RoleUser:
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
		bubble = m.theme.UserBubble
		body = msg.Content
	case msg.IsStreaming:
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
		bubble = m.theme.StreamingBubble
		if msg.Content == "" {
			body = m.spinner.View() + " Thinking..."
		} else {
			body = msg.Content + " " + m.spinner.View()
		}
	default:
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
		body = m.renderMarkdown(msg, width)
	}

	for _, img := range msg.Images {
		body += "\n" + m.theme.Attachment.Render("[image] "+util.TruncateWidth(img, max(width-8, 8)))
	}

	header := label + " " + m.theme.MessageMeta.Render(msg.Timestamp.Local().Format("15:04"))
	return header + "\n" + bubble.Width(width).Render(strings.TrimRight(body, "\n"))
}

// renderMarkdown renders a finished assistant message with glamour,
// caching the output per message and width.
func (m *Model) renderMarkdown(msg *model.Message, width int) string {
	if !m.markdown || msg.Content == "" {
		return msg.Content
	}
	if r, ok := m.rendered[msg.ID]; ok && r.content == msg.Content && r.width == width {
		return r.out
	}

	renderer := m.glamourRenderer(width)
	if renderer == nil {
		return msg.Content
	}
	out, err := renderer.Render(msg.Content)
	if err != nil {
		return msg.Content
	}
	out = strings.Trim(out, "\n")
	m.rendered[msg.ID] = renderedMessage{content: msg.Content, width: width, out: out}
	return out
}

func (m *Model) glamourRenderer(width int) *glamour.TermRenderer {
	k := fmt.Sprintf("%s/%d", m.theme.GlamourStyle(), width)
	if m.renderer != nil && m.rendererKey == k {
		return m.renderer
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.theme.GlamourStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		m.renderer = nil
		return nil
	}
	m.renderer, m.rendererKey = r, k
	return r
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme and the ui.theme config key.
const (
	ModeDark  = "dark"
	ModeLight = "light"
	ModeAuto  = "auto"
)

// MinSidebarWidth is the narrowest window that still shows the conversation
// list next to the transcript.
const MinSidebarWidth = 60

// Theme is the set of styles the chat screens render with, plus the current
// window size.
type Theme struct {
	IsDark bool

	Width  int
	Height int

	Header, HeaderTitle, HeaderUser lipgloss.Style

	Sidebar             lipgloss.Style
	SidebarHeading      lipgloss.Style
	SidebarItem         lipgloss.Style
	SidebarItemSelected lipgloss.Style
	SidebarMeta         lipgloss.Style

	UserLabel, AssistantLabel                    lipgloss.Style
	UserBubble, AssistantBubble, StreamingBubble lipgloss.Style
	MessageMeta, Attachment, EmptyState          lipgloss.Style

	InputContainer, StatusBar lipgloss.Style
	ShortcutKey, ShortcutDesc lipgloss.Style
	Spinner                   lipgloss.Style

	LoadingText, SignInBox, SignInTitle, SignInLabel lipgloss.Style

	ErrorStyle, InfoStyle lipgloss.Style
}

// NewTheme builds the theme for mode. Unknown modes fall back to dark; auto
// queries the terminal background.
func NewTheme(mode string) *Theme {
	dark := true
	switch strings.ToLower(mode) {
	case ModeLight:
		dark = false
	case ModeAuto:
		dark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(dark)

	t := &Theme{IsDark: dark}
	t.build()
	return t
}

// GlamourStyle names the glamour standard style for rendered replies.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func fg(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func (t *Theme) build() {
	chrome := fg(TextSecondary).Background(SurfaceDim).Padding(0, 1)
	framed := lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(Purple)

	t.Header = chrome
	t.HeaderTitle = fg(Purple).Bold(true)
	t.HeaderUser = fg(Cyan)

	// Width of the sidebar includes its padding but not the right border.
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.SidebarHeading = fg(TextSecondary).Bold(true).MarginBottom(1)
	t.SidebarItem = fg(TextPrimary)
	t.SidebarItemSelected = fg(Cyan).Bold(true).Background(SelectionBg)
	t.SidebarMeta = fg(TextMuted)

	t.UserLabel = fg(Cyan).Bold(true)
	t.AssistantLabel = fg(Purple).Bold(true)
	t.UserBubble = userColors.bubble()
	t.AssistantBubble = assistantColors.bubble()
	t.StreamingBubble = t.AssistantBubble.BorderForeground(Amber)
	t.MessageMeta = fg(TextMuted).Italic(true)
	t.Attachment = fg(Emerald).Underline(true)
	t.EmptyState = fg(TextMuted).Italic(true).Padding(1, 2)

	t.InputContainer = framed
	t.StatusBar = chrome
	t.ShortcutKey = fg(Cyan).Bold(true)
	t.ShortcutDesc = fg(TextMuted)
	t.Spinner = fg(Amber)

	t.LoadingText = fg(TextSecondary)
	t.SignInBox = framed.Padding(1, 3)
	t.SignInTitle = fg(Purple).Bold(true).MarginBottom(1)
	t.SignInLabel = fg(TextSecondary)

	t.ErrorStyle = fg(Rose).Bold(true)
	t.InfoStyle = fg(Cyan)
}

// SetSize records the window size from the latest resize.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// SidebarVisible reports whether the window is wide enough for the sidebar.
func (t *Theme) SidebarVisible() bool {
	return t.Width >= MinSidebarWidth
}

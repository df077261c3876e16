// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// Palette. Every entry is adaptive; NewTheme decides which half applies.
var (
	// Accents: assistant and brand, user, attachments.
	Purple  = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	Cyan    = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

	// Rose marks failures; Amber marks a response still arriving.
	Rose  = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}
	Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

	// Chrome around the transcript: header, status bar, sidebar selection.
	SurfaceDim  = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}
	Overlay     = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}
	SelectionBg = lipgloss.AdaptiveColor{Light: "#BFDBFE", Dark: "#1E3A5F"}

	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}
)

// messageColors pairs the text and gutter colour of one side of the chat.
type messageColors struct {
	fg, gutter lipgloss.AdaptiveColor
}

var (
	userColors      = messageColors{fg: lipgloss.AdaptiveColor{Light: "#1E40AF", Dark: "#E0F2FE"}, gutter: lipgloss.AdaptiveColor{Light: "#3B82F6", Dark: "#3B82F6"}}
	assistantColors = messageColors{fg: lipgloss.AdaptiveColor{Light: "#5B4B8A", Dark: "#E9E4F5"}, gutter: lipgloss.AdaptiveColor{Light: "#C4B5FD", Dark: "#A78BFA"}}
)

// bubble is a message body with a coloured left gutter.
func (c messageColors) bubble() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(c.fg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(c.gutter).
		PaddingLeft(1)
}

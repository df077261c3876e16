// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the rigchat TUI.

All colors use Lip Gloss AdaptiveColor so one palette serves light and dark
terminals. NewTheme pins the background for the "dark" and "light" modes and
asks the terminal in "auto" mode.

# Color System (colors.go)

  - Purple - Assistant messages and selections
  - Cyan - Brand color and user messages
  - Emerald, Amber, Rose - Success, warning/streaming, error

# Theme System (theme.go)

	theme := styles.NewTheme(cfg.UI.Theme)
	header := theme.Header.Render("rigchat")
	md := glamour.WithStandardStyle(theme.GlamourStyle())

# Spinners (spinner.go)

	s := spinner.New(spinner.WithSpinner(styles.LineSpinner.Bubble()))
*/
package styles

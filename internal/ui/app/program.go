// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	tea "github.com/charmbracelet/bubbletea"
)

// NewProgram builds the full-screen program for opts and the bridge that
// feeds it store and auth changes. Close the bridge after Run returns.
func NewProgram(opts Options, fps int) (*tea.Program, *Bridge) {
	m := New(opts)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(m.ctx),
	)
	return p, NewBridge(p, opts.Store, opts.Auth, fps)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/jeranaias/rigrun-chat/internal/auth"
	"github.com/jeranaias/rigrun-chat/internal/store"
)

// StoreChangedMsg carries a new store snapshot.
type StoreChangedMsg struct {
	State store.State
}

// AuthChangedMsg carries a new auth state.
type AuthChangedMsg struct {
	State auth.State
}

// ThemeChangedMsg switches the theme, e.g. after a config reload.
type ThemeChangedMsg struct {
	Theme string
}

// StatusMsg shows a transient line in the status bar.
type StatusMsg struct {
	Text  string
	Error bool
}

// startupDoneMsg is sent once hydration and session restore finish.
type startupDoneMsg struct{}

// loginResultMsg reports a sign-in attempt.
type loginResultMsg struct {
	err error
}

// attachResultMsg reports an upload started with /attach.
type attachResultMsg struct {
	path string
	url  string
	err  error
}

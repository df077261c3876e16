// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the full-screen conversation view.
//
// The root model moves through three screens: loading (until the store is
// hydrated and the auth session restored), sign-in (inputs built from the
// authenticator's prompts) and chat (sidebar, message viewport, input).
// Store and auth changes reach the model as StoreChangedMsg and
// AuthChangedMsg through a Bridge, which throttles redraws while a response
// streams.
//
// # Usage
//
//	p, bridge := app.NewProgram(app.Options{
//	    Context: ctx,
//	    Store:   st,
//	    Auth:    authMgr,
//	    Session: sess,
//	    Theme:   cfg.UI.Theme,
//	}, cfg.UI.RenderFPS)
//	defer bridge.Close()
//	_, err := p.Run()
package app

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth tracks who is signed in to rigchat.
//
// A Manager exposes the current auth State (user, loading) to subscribers,
// performs logins through a pluggable Authenticator and persists the session
// in the key-value store so the next start skips the sign-in screen.
//
// # Authenticators
//
//   - Anonymous: mode "none"; signs in as the OS user without prompting
//   - Local: username + bcrypt password hash, optional TOTP second factor
//   - Token: JWT bearer token checked against an HMAC secret or a JWKS URL
//
// # Usage
//
//	mgr := auth.NewManager(authenticator, kv, auth.Options{Logger: logger})
//	unsubscribe := mgr.Subscribe(func(s auth.State) { ... })
//	mgr.Restore(ctx)
//	err := mgr.Login(ctx, auth.Credentials{Username: "me", Password: "secret"})
package auth

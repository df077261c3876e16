// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the rigchat command line.
//
// With no command rigchat opens the full-screen chat. The line-mode
// commands share the same config, conversation storage and sign-in session:
//
//   - ask: send one prompt and stream the answer to stdout
//   - chat: interactive line-mode chat with history editing
//   - list, show, export, delete: manage saved conversations
//   - login, logout, whoami: sign-in session
//   - auth hash-password, auth totp-setup: prepare local-mode credentials
//   - models: known models per provider
//   - config show/get/set/path/keys: settings
//
// # Usage
//
//	os.Exit(cli.Execute())
//
// Errors are printed once by Execute and mapped to exit codes (see
// GetExitCode).
package cli

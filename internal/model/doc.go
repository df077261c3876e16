// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types shared by the store, the
// persistence layer, the gateway clients and the terminal UI.
//
// # Key Types
//
//   - Conversation: A chat thread with an auto-derived title and its messages
//   - Message: Single message with role, content, timestamp and optional images
//   - ModelInfo: Catalogue entry for a completion model (provider, vision support)
//   - Role: Message role enumeration (user, assistant)
//
// # Usage
//
// Create a conversation and append the first user message:
//
//	conv := model.NewConversation()
//	conv.AddMessage(model.NewMessage(model.RoleUser, "Explain recursion in five words", nil))
//	fmt.Println(conv.Title) // "Explain recursion in five words"
//
// Look up a model:
//
//	info, ok := model.GetModelInfo("gpt-4o-mini")
//	if ok && info.SupportsVision { ... }
package model

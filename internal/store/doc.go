// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the in-memory conversation state and its mutation
// interface.
//
// A Store owns the conversation list (most recently created first), the
// active conversation id, and the loading and streaming flags. Every
// mutation is applied under a mutex, written through to the persister in
// full, and then announced to subscribers with a snapshot of the new state.
//
// # Key Types
//
//   - Store: The state container; one per process
//   - State: Immutable snapshot handed to subscribers and the UI
//   - MessageInput: Role, content and images for AppendMessage
//   - Persister: Load/Save collaborator (storage.ConversationPersister)
//
// # Usage
//
//	s := store.New(storage.NewConversationPersister(kv, logger), logger)
//	s.Hydrate(ctx)
//
//	id := s.Create()
//	msgID, err := s.AppendMessage(store.MessageInput{Role: model.RoleUser, Content: "hi"})
//
//	unsubscribe := s.Subscribe(func(st store.State) { render(st) })
//	defer unsubscribe()
package store

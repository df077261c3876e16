// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "errors"

// Mutations that cannot apply leave the state untouched and return one of
// these. Callers that only care about the state may ignore them.
var (
	// ErrNotHydrated is returned by mutations issued before Hydrate.
	ErrNotHydrated = errors.New("store not hydrated")

	// ErrNoActiveConversation is returned by AppendMessage when no
	// conversation is active (or the active id names nothing).
	ErrNoActiveConversation = errors.New("no active conversation")

	// ErrMessageNotFound is returned when a message id is not present in
	// the active conversation.
	ErrMessageNotFound = errors.New("message not found")

	// ErrConversationNotFound is returned by Delete for an unknown id.
	ErrConversationNotFound = errors.New("conversation not found")
)

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeranaias/rigrun-chat/internal/model"
)

// ConversationsKey is the fixed key under which the conversation list lives.
const ConversationsKey = "rigchat.conversations"

// corruptSuffix is appended to ConversationsKey to keep an unparseable
// document around for inspection.
const corruptSuffix = ".corrupt"

// =============================================================================
// CONVERSATION PERSISTER
// =============================================================================

// ConversationPersister reads and writes the full conversation list as one
// JSON document. It has no notion of partial updates.
type ConversationPersister struct {
	kv     KV
	key    string
	logger *zap.Logger
}

// NewConversationPersister creates a persister over kv. A nil logger is
// replaced with a no-op logger.
func NewConversationPersister(kv KV, logger *zap.Logger) *ConversationPersister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationPersister{kv: kv, key: ConversationsKey, logger: logger}
}

// Key returns the storage key used for the conversation document.
func (p *ConversationPersister) Key() string {
	return p.key
}

// Load returns the persisted conversations in stored order. It never fails:
// a missing key, a read error or a parse error all produce an empty list.
// Parse and read errors are logged, and an unparseable document is copied
// aside before it can be overwritten.
func (p *ConversationPersister) Load(ctx context.Context) []*model.Conversation {
	data, err := p.kv.Get(ctx, p.key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			p.logger.Warn("failed to read conversations, starting empty", zap.Error(err))
		}
		return []*model.Conversation{}
	}

	convs, err := DecodeConversations(data)
	if err != nil {
		p.logger.Warn("failed to parse conversations, starting empty",
			zap.Error(err), zap.Int("bytes", len(data)))
		if err := p.kv.Put(ctx, p.key+corruptSuffix, data); err != nil {
			p.logger.Warn("failed to back up corrupt conversations", zap.Error(err))
		}
		return []*model.Conversation{}
	}

	p.logger.Debug("loaded conversations", zap.Int("count", len(convs)))
	return convs
}

// Save serialises the entire list and writes it under the fixed key.
func (p *ConversationPersister) Save(ctx context.Context, convs []*model.Conversation) error {
	data, err := EncodeConversations(convs)
	if err != nil {
		return err
	}
	if err := p.kv.Put(ctx, p.key, data); err != nil {
		return fmt.Errorf("save conversations: %w", err)
	}
	return nil
}

// =============================================================================
// DOCUMENT CODEC
// =============================================================================

// EncodeConversations renders the conversation list as a JSON array.
// A nil list encodes as [].
func EncodeConversations(convs []*model.Conversation) ([]byte, error) {
	if convs == nil {
		convs = []*model.Conversation{}
	}
	data, err := json.Marshal(convs)
	if err != nil {
		return nil, fmt.Errorf("encode conversations: %w", err)
	}
	return data, nil
}

// DecodeConversations parses a JSON array of conversations. Null entries are
// dropped and nil message slices are normalised to empty ones.
func DecodeConversations(data []byte) ([]*model.Conversation, error) {
	var raw []*model.Conversation
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	convs := make([]*model.Conversation, 0, len(raw))
	for _, c := range raw {
		if c == nil || c.ID == "" {
			continue
		}
		msgs := make([]*model.Message, 0, len(c.Messages))
		for _, m := range c.Messages {
			if m != nil {
				msgs = append(msgs, m)
			}
		}
		c.Messages = msgs
		convs = append(convs, c)
	}
	return convs, nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-chat/internal/model"
)

// failingKV returns readErr from every Get and records Puts.
type failingKV struct {
	*MemoryKV
	readErr error
}

func (f *failingKV) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, f.readErr
}

func sampleConversations() []*model.Conversation {
	older := model.NewConversation()
	older.AddMessage(model.NewMessage(model.RoleUser, "What is a monad in simple terms please", nil))
	older.AddMessage(model.NewMessage(model.RoleAssistant, "A monad is a design pattern...", nil))

	newer := model.NewConversation()
	newer.AddMessage(model.NewMessage(model.RoleUser, "Describe this", []string{"https://cdn.example.com/chat-images/u/a.png"}))

	return []*model.Conversation{newer, older}
}

func TestConversationPersister_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	p := NewConversationPersister(NewMemoryKV(), nil)
	convs := sampleConversations()

	require.NoError(t, p.Save(ctx, convs))
	loaded := p.Load(ctx)

	require.Len(t, loaded, 2)
	for i := range convs {
		assert.Equal(t, convs[i].ID, loaded[i].ID)
		assert.Equal(t, convs[i].Title, loaded[i].Title)
		require.Len(t, loaded[i].Messages, len(convs[i].Messages))
		for j, m := range convs[i].Messages {
			got := loaded[i].Messages[j]
			assert.Equal(t, m.ID, got.ID)
			assert.Equal(t, m.Role, got.Role)
			assert.Equal(t, m.Content, got.Content)
			assert.Equal(t, m.Images, got.Images)
			assert.True(t, m.Timestamp.Equal(got.Timestamp))
		}
		assert.True(t, convs[i].CreatedAt.Equal(loaded[i].CreatedAt))
	}
}

func TestConversationPersister_LoadMissingIsEmpty(t *testing.T) {
	p := NewConversationPersister(NewMemoryKV(), nil)

	loaded := p.Load(context.Background())
	assert.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestConversationPersister_LoadCorruptIsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Put(ctx, ConversationsKey, []byte(`[{"id": "conv_1", "messages": [`)))
	p := NewConversationPersister(kv, nil)

	loaded := p.Load(ctx)
	assert.Empty(t, loaded)

	backup, err := kv.Get(ctx, ConversationsKey+".corrupt")
	require.NoError(t, err)
	assert.Contains(t, string(backup), "conv_1")
}

func TestConversationPersister_LoadWrongShapeIsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Put(ctx, ConversationsKey, []byte(`{"not":"an array"}`)))

	assert.Empty(t, NewConversationPersister(kv, nil).Load(ctx))
}

func TestConversationPersister_LoadReadErrorIsEmpty(t *testing.T) {
	kv := &failingKV{MemoryKV: NewMemoryKV(), readErr: errors.New("disk on fire")}

	assert.Empty(t, NewConversationPersister(kv, nil).Load(context.Background()))
}

func TestConversationPersister_SaveOverwritesWholeDocument(t *testing.T) {
	ctx := context.Background()
	p := NewConversationPersister(NewMemoryKV(), nil)
	convs := sampleConversations()

	require.NoError(t, p.Save(ctx, convs))
	require.NoError(t, p.Save(ctx, convs[:1]))

	loaded := p.Load(ctx)
	require.Len(t, loaded, 1)
	assert.Equal(t, convs[0].ID, loaded[0].ID)
}

func TestDecodeConversations_DropsNulls(t *testing.T) {
	data := []byte(`[null, {"id":"conv_a","title":"A","messages":null,"created_at":"2025-01-02T03:04:05Z","updated_at":"2025-01-02T03:04:05Z"}, {"title":"no id"}]`)

	convs, err := DecodeConversations(data)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "conv_a", convs[0].ID)
	assert.NotNil(t, convs[0].Messages)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), convs[0].CreatedAt.UTC())
}

func TestEncodeConversations_NilIsEmptyArray(t *testing.T) {
	data, err := EncodeConversations(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestEncodeConversations_StreamingFlag(t *testing.T) {
	conv := model.NewConversation()
	msg := model.NewMessage(model.RoleAssistant, "", nil)
	msg.IsStreaming = true
	conv.AddMessage(msg)

	data, err := EncodeConversations([]*model.Conversation{conv})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"is_streaming":true`)
}

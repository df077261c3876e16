// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for rigchat.
//
// All state lives in a key-value store. The conversation list is serialised
// as a single JSON document under a fixed key and rewritten in full on every
// change. A missing, unreadable or corrupt document loads as an empty list.
//
// # Key Types
//
//   - KV: Minimal key-value interface implemented by every backend
//   - FileKV: One file per key in a directory, written atomically
//   - BoltKV: Single bbolt database file
//   - SQLiteKV: Single-table SQLite database (pure Go driver)
//   - MemoryKV: In-process map, used by tests
//   - ConversationPersister: Loads and saves the conversation document
//
// # Usage
//
//	kv, err := storage.Open(storage.BackendBolt, filepath.Join(dir, "rigchat.db"))
//	if err != nil {
//	    return err
//	}
//	defer kv.Close()
//
//	p := storage.NewConversationPersister(kv, logger)
//	convs := p.Load(ctx)       // never fails
//	err = p.Save(ctx, convs)   // full rewrite
package storage

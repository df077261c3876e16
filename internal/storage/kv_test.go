// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends opens every KV implementation in a fresh temp dir.
func backends(t *testing.T) map[string]KV {
	t.Helper()
	dir := t.TempDir()

	fileKV, err := NewFileKV(filepath.Join(dir, "files"))
	require.NoError(t, err)
	boltKV, err := NewBoltKV(filepath.Join(dir, "rigchat.db"))
	require.NoError(t, err)
	sqliteKV, err := NewSQLiteKV(filepath.Join(dir, "rigchat.sqlite"))
	require.NoError(t, err)

	all := map[string]KV{
		BackendMemory: NewMemoryKV(),
		BackendFile:   fileKV,
		BackendBolt:   boltKV,
		BackendSQLite: sqliteKV,
	}
	t.Cleanup(func() {
		for _, kv := range all {
			kv.Close()
		}
	})
	return all
}

func TestKV_Contract(t *testing.T) {
	ctx := context.Background()

	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get(ctx, "missing")
			assert.True(t, errors.Is(err, ErrKeyNotFound), "got %v", err)

			require.NoError(t, kv.Put(ctx, "k", []byte("v1")))
			got, err := kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v1", string(got))

			require.NoError(t, kv.Put(ctx, "k", []byte("v2")))
			got, err = kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v2", string(got))

			require.NoError(t, kv.Delete(ctx, "k"))
			_, err = kv.Get(ctx, "k")
			assert.True(t, errors.Is(err, ErrKeyNotFound))

			require.NoError(t, kv.Delete(ctx, "never-written"))
		})
	}
}

func TestKV_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, backend := range []string{BackendFile, BackendBolt, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(dir, backend)
			kv, err := Open(backend, path)
			require.NoError(t, err)
			require.NoError(t, kv.Put(ctx, ConversationsKey, []byte(`[]`)))
			require.NoError(t, kv.Close())

			kv, err = Open(backend, path)
			require.NoError(t, err)
			defer kv.Close()
			got, err := kv.Get(ctx, ConversationsKey)
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(got))
		})
	}
}

func TestMemoryKV_CopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	value := []byte("abc")
	require.NoError(t, kv.Put(ctx, "k", value))
	value[0] = 'X'

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	require.NoError(t, kv.Close())
	_, err = kv.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestFileKV_KeyCannotEscapeDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	kv, err := NewFileKV(filepath.Join(dir, "data"))
	require.NoError(t, err)

	require.NoError(t, kv.Put(ctx, "../escape", []byte("x")))

	_, err = os.Stat(filepath.Join(dir, "escape.json"))
	assert.True(t, os.IsNotExist(err), "key must not write outside BaseDir")
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("cassandra", t.TempDir())
	assert.True(t, errors.Is(err, ErrUnknownBackend))
}

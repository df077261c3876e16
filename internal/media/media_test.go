// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0600))
	return p
}

func TestObjectPath(t *testing.T) {
	p := ObjectPath("user@example.com", "/tmp/My Cat (1).PNG")

	parts := strings.Split(p, "/")
	require.Len(t, parts, 3)
	assert.Equal(t, ObjectPrefix, parts[0])
	assert.Equal(t, "user_example.com", parts[1])
	assert.True(t, strings.HasSuffix(parts[2], "-My_Cat__1_.PNG"), parts[2])

	assert.Contains(t, ObjectPath("", "../.."), "/anonymous/")
	assert.NotEqual(t, ObjectPath("u", "a.png"), ObjectPath("u", "a.png"))
}

func TestUploadFile_Local(t *testing.T) {
	ctx := context.Background()
	up, err := NewLocal(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	src := writeFile(t, "pixel.png", pngBytes)
	raw, err := UploadFile(ctx, up, "alice", src)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "file", u.Scheme)
	assert.Contains(t, u.Path, "/chat-images/alice/")

	stored, err := os.ReadFile(filepath.FromSlash(u.Path))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, stored)
}

func TestUploadFile_RejectsNonImage(t *testing.T) {
	up, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	src := writeFile(t, "notes.png", []byte("definitely not a png"))
	_, err = UploadFile(context.Background(), up, "alice", src)
	assert.True(t, errors.Is(err, ErrNotImage), "got %v", err)

	_, err = UploadFile(context.Background(), up, "alice", t.TempDir())
	assert.True(t, errors.Is(err, ErrNotImage))

	_, err = UploadFile(context.Background(), up, "alice", filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

// fakeS3 accepts PUT object requests and records them.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.objects[r.URL.Path] = body
	f.types[r.URL.Path] = r.Header.Get("Content-Type")
	f.mu.Unlock()
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.WriteHeader(http.StatusOK)
}

func TestMinIO_UploadPublicURL(t *testing.T) {
	s3 := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(s3)
	defer srv.Close()

	m, err := NewMinIO(MinIOConfig{
		Endpoint:      strings.TrimPrefix(srv.URL, "http://"),
		AccessKey:     "minio",
		SecretKey:     "minio123",
		Bucket:        "rigchat",
		Region:        "us-east-1",
		PublicBaseURL: "https://cdn.example.com/",
	}, nil)
	require.NoError(t, err)

	src := writeFile(t, "pixel.png", pngBytes)
	got, err := UploadFile(context.Background(), m, "bob", src)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "https://cdn.example.com/rigchat/chat-images/bob/"), got)

	s3.mu.Lock()
	defer s3.mu.Unlock()
	require.Len(t, s3.objects, 1)
	for key, body := range s3.objects {
		assert.True(t, strings.HasPrefix(key, "/rigchat/chat-images/bob/"), key)
		// Plain-HTTP uploads use aws-chunked framing around the payload.
		assert.True(t, bytes.Contains(body, pngBytes))
		assert.Equal(t, "image/png", s3.types[key])
	}
}

func TestNew_Backends(t *testing.T) {
	up, err := New(context.Background(), Config{Backend: "local", LocalDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Local{}, up)

	_, err = New(context.Background(), Config{Backend: "ftp"}, nil)
	assert.True(t, errors.Is(err, ErrUnknownBackend))

	_, err = NewMinIO(MinIOConfig{}, nil)
	assert.Error(t, err)
}

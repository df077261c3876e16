// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-chat/internal/model"
)

// pngBytes is a 1x1 transparent PNG.
var pngBytes, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

// recordedBody captures the last JSON request body a test server saw.
type recordedBody struct {
	mu   sync.Mutex
	body map[string]any
}

func (r *recordedBody) set(req *http.Request) {
	data, _ := io.ReadAll(req.Body)
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	r.mu.Lock()
	r.body = m
	r.mu.Unlock()
}

func (r *recordedBody) get() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body
}

// =============================================================================
// OPENAI-COMPATIBLE BACKEND
// =============================================================================

func openAIServer(t *testing.T, rec *recordedBody, chunks ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		rec.set(r)
		w.Header().Set("Content-Type", "text/event-stream")
		for i, c := range chunks {
			payload, _ := json.Marshal(map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion.chunk",
				"created": 1700000000 + i,
				"model":   "gpt-4o-mini",
				"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": c}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
			w.(http.Flusher).Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_StreamsChunks(t *testing.T) {
	rec := &recordedBody{}
	srv := openAIServer(t, rec, "Functions ", "calling ", "themselves.")

	c := NewOpenAI(Config{Provider: ProviderOpenAI, APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini", MaxTokens: 256})

	var got []string
	err := c.Complete(context.Background(), Request{
		Prompt:  "Explain recursion in five words",
		History: []Turn{{Role: model.RoleUser, Content: "hi"}, {Role: model.RoleAssistant, Content: "hello"}},
	}, func(s string) { got = append(got, s) })

	require.NoError(t, err)
	assert.Equal(t, "Functions calling themselves.", strings.Join(got, ""))

	body := rec.get()
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, true, body["stream"])
	assert.EqualValues(t, 256, body["max_tokens"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 3)
	last := msgs[2].(map[string]any)
	assert.Equal(t, "user", last["role"])
	assert.Equal(t, "Explain recursion in five words", last["content"])
}

func TestOpenAI_MultipartWithLocalImage(t *testing.T) {
	rec := &recordedBody{}
	srv := openAIServer(t, rec, "A pixel.")

	path := filepath.Join(t.TempDir(), "pixel.png")
	require.NoError(t, os.WriteFile(path, pngBytes, 0600))

	c := NewOpenAI(Config{Provider: ProviderOpenAI, APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-4o"})
	err := c.Complete(context.Background(), Request{
		Prompt: "What is this?",
		Images: []string{"file://" + path, "https://cdn.example.com/cat.jpg"},
	}, func(string) {})
	require.NoError(t, err)

	msgs := rec.get()["messages"].([]any)
	parts := msgs[len(msgs)-1].(map[string]any)["content"].([]any)
	require.Len(t, parts, 3)
	assert.Equal(t, "text", parts[0].(map[string]any)["type"])

	local := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(local, "data:image/png;base64,"), local)
	remote := parts[2].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.Equal(t, "https://cdn.example.com/cat.jpg", remote)
}

func TestOpenAI_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"auth", 401, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, ErrAuthFailed},
		{"rate", 429, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`, ErrRateLimited},
		{"policy", 400, `{"error":{"message":"Your request was rejected","type":"invalid_request_error","code":"content_policy_violation"}}`, ErrContentPolicy},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			c := NewOpenAI(Config{Provider: ProviderOpenAI, APIKey: "sk", BaseURL: srv.URL + "/v1", Model: "gpt-4o"})
			err := c.Complete(context.Background(), Request{Prompt: "x"}, func(string) {})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestOpenAI_ThroughStreamStop(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":"Hello"}}]}`+"\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewOpenAI(Config{Provider: ProviderOpenAI, APIKey: "sk", BaseURL: srv.URL + "/v1", Model: "m"})
	first := make(chan struct{})
	var once sync.Once
	s := Start(context.Background(), c, Request{Prompt: "hi"}, func(string) { once.Do(func() { close(first) }) })

	<-first
	s.Stop()
	res := s.Wait()
	assert.Equal(t, OutcomeStopped, res.Outcome)
	assert.Equal(t, "Hello", res.Content)
}

// =============================================================================
// ANTHROPIC BACKEND
// =============================================================================

func anthropicServer(t *testing.T, rec *recordedBody, chunks ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		rec.set(r)
		w.Header().Set("Content-Type", "text/event-stream")
		send := func(event string, payload any) {
			data, _ := json.Marshal(payload)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
			w.(http.Flusher).Flush()
		}
		send("message_start", map[string]any{
			"type": "message_start",
			"message": map[string]any{
				"id": "msg_01", "type": "message", "role": "assistant", "model": "claude-sonnet-4-20250514",
				"content": []any{}, "stop_reason": nil, "stop_sequence": nil,
				"usage": map[string]any{"input_tokens": 10, "output_tokens": 1},
			},
		})
		send("content_block_start", map[string]any{
			"type": "content_block_start", "index": 0,
			"content_block": map[string]any{"type": "text", "text": ""},
		})
		for _, c := range chunks {
			send("content_block_delta", map[string]any{
				"type": "content_block_delta", "index": 0,
				"delta": map[string]any{"type": "text_delta", "text": c},
			})
		}
		send("content_block_stop", map[string]any{"type": "content_block_stop", "index": 0})
		send("message_delta", map[string]any{
			"type":  "message_delta",
			"delta": map[string]any{"stop_reason": "end_turn", "stop_sequence": nil},
			"usage": map[string]any{"output_tokens": 5},
		})
		send("message_stop", map[string]any{"type": "message_stop"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropic_StreamsChunksWithImage(t *testing.T) {
	rec := &recordedBody{}
	srv := anthropicServer(t, rec, "Base ", "case ", "matters.")

	img := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes)
	}))
	defer img.Close()

	c := NewAnthropic(Config{APIKey: "sk-ant", BaseURL: srv.URL, Model: "claude-sonnet-4-20250514", MaxTokens: 512, SystemPrompt: "Be brief."})

	var sb strings.Builder
	err := c.Complete(context.Background(), Request{
		Prompt: "Describe",
		Images: []string{img.URL + "/pixel"},
	}, func(s string) { sb.WriteString(s) })
	require.NoError(t, err)
	assert.Equal(t, "Base case matters.", sb.String())

	body := rec.get()
	assert.Equal(t, "claude-sonnet-4-20250514", body["model"])
	assert.EqualValues(t, 512, body["max_tokens"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	blocks := msgs[0].(map[string]any)["content"].([]any)
	require.Len(t, blocks, 2)
	source := blocks[0].(map[string]any)["source"].(map[string]any)
	assert.Equal(t, "base64", source["type"])
	assert.Equal(t, "image/png", source["media_type"])
	assert.Equal(t, "text", blocks[1].(map[string]any)["type"])
}

func TestAnthropic_AuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	c := NewAnthropic(Config{APIKey: "bad", BaseURL: srv.URL, Model: "claude-3-5-haiku-latest"})
	err := c.Complete(context.Background(), Request{Prompt: "hi"}, func(string) {})
	assert.ErrorIs(t, err, ErrAuthFailed)
}

// =============================================================================
// IMAGE LOADING
// =============================================================================

func TestFetchImage(t *testing.T) {
	ctx := context.Background()

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
	img, err := fetchImage(ctx, http.DefaultClient, dataURL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MediaType)
	assert.Equal(t, dataURL, img.dataURL())

	txt := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("just text"), 0600))
	_, err = fetchImage(ctx, http.DefaultClient, "file://"+txt)
	assert.ErrorContains(t, err, "not an image")

	_, err = fetchImage(ctx, http.DefaultClient, "ftp://example.com/x.png")
	assert.Error(t, err)
}

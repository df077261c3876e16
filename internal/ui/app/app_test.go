// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-chat/internal/auth"
	"github.com/jeranaias/rigrun-chat/internal/chat"
	"github.com/jeranaias/rigrun-chat/internal/gateway"
	"github.com/jeranaias/rigrun-chat/internal/media"
	"github.com/jeranaias/rigrun-chat/internal/storage"
	"github.com/jeranaias/rigrun-chat/internal/store"
)

type harness struct {
	m     *Model
	store *store.Store
	auth  *auth.Manager
	sess  *chat.Session
}

func newHarness(t *testing.T, a auth.Authenticator, completer gateway.Completer, up media.Uploader) *harness {
	t.Helper()
	st := store.New(storage.NewConversationPersister(storage.NewMemoryKV(), nil), nil)
	am := auth.NewManager(a, storage.NewMemoryKV(), auth.Options{})
	sess := chat.NewSession(st, completer, chat.Options{Uploader: up})
	m := New(Options{Store: st, Auth: am, Session: sess, Theme: "dark"})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return &harness{m: m, store: st, auth: am, sess: sess}
}

// start runs the startup command synchronously.
func (h *harness) start(t *testing.T) {
	t.Helper()
	msg := h.m.startupCmd()()
	h.m.Update(msg)
}

func (h *harness) key(k tea.KeyType) tea.Cmd {
	_, cmd := h.m.Update(tea.KeyMsg{Type: k})
	return cmd
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !h.sess.Busy() && !h.store.Snapshot().Streaming
	}, 5*time.Second, 5*time.Millisecond)
	h.m.Update(StoreChangedMsg{State: h.store.Snapshot()})
}

func echo(reply string) gateway.Completer {
	return gateway.CompleterFunc(func(_ context.Context, _ gateway.Request, emit gateway.EmitFunc) error {
		emit(reply)
		return nil
	})
}

// =============================================================================
// SCREENS
// =============================================================================

func TestScreens_LoadingThenChat(t *testing.T) {
	h := newHarness(t, auth.Anonymous{}, echo("hi"), nil)

	assert.Equal(t, ScreenLoading, h.m.Screen())
	assert.Contains(t, h.m.View(), "Loading")

	h.start(t)
	assert.Equal(t, ScreenChat, h.m.Screen())
	assert.Contains(t, h.m.View(), "Start a conversation")
	assert.Contains(t, h.m.View(), "No chats yet")
}

func TestSignIn_LocalAuth(t *testing.T) {
	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	local, err := auth.NewLocal("alice", hash, "")
	require.NoError(t, err)

	h := newHarness(t, local, echo("hi"), nil)
	h.start(t)
	require.Equal(t, ScreenSignIn, h.m.Screen())
	require.Len(t, h.m.signIn.inputs, 2)
	assert.Contains(t, h.m.View(), "Sign in")

	// Wrong password.
	h.m.signIn.inputs[0].SetValue("alice")
	assert.Nil(t, h.key(tea.KeyEnter), "enter on the first field moves focus")
	assert.Equal(t, 1, h.m.signIn.focus)
	h.m.signIn.inputs[1].SetValue("wrong password")
	cmd := h.key(tea.KeyEnter)
	require.NotNil(t, cmd)
	h.m.Update(cmd())
	assert.Equal(t, ScreenSignIn, h.m.Screen())
	assert.Equal(t, "Invalid credentials.", h.m.signIn.err)

	// Correct password.
	h.m.signIn.inputs[1].SetValue("correct horse")
	cmd = h.key(tea.KeyEnter)
	require.NotNil(t, cmd)
	h.m.Update(cmd())
	assert.Equal(t, ScreenChat, h.m.Screen())
	assert.Contains(t, h.m.View(), "alice")
}

func TestLogout_ReturnsToSignIn(t *testing.T) {
	h := newHarness(t, auth.Anonymous{}, echo("hi"), nil)
	h.start(t)
	require.Equal(t, ScreenChat, h.m.Screen())

	cmd := h.key(tea.KeyCtrlL)
	require.NotNil(t, cmd)
	h.m.Update(cmd())
	assert.Equal(t, ScreenSignIn, h.m.Screen())
	assert.Contains(t, h.m.View(), "Press enter to continue")

	// Anonymous mode signs straight back in.
	cmd = h.key(tea.KeyEnter)
	require.NotNil(t, cmd)
	h.m.Update(cmd())
	assert.Equal(t, ScreenChat, h.m.Screen())
}

// =============================================================================
// CHAT
// =============================================================================

func TestChat_SendCreatesConversation(t *testing.T) {
	h := newHarness(t, auth.Anonymous{}, echo("Function calls itself repeatedly."), nil)
	h.start(t)

	h.m.input.SetValue("Explain recursion in five words")
	h.key(tea.KeyEnter)
	assert.Empty(t, h.m.input.Value(), "input clears after sending")
	h.waitIdle(t)

	st := h.m.State()
	require.Len(t, st.Conversations, 1)
	assert.Equal(t, "Explain recursion in five words", st.Conversations[0].Title)
	require.Len(t, st.Conversations[0].Messages, 2)

	view := h.m.View()
	assert.Contains(t, view, "Explain recursion in five words")
	assert.Contains(t, view, "calls itself")
}

func TestChat_EmptyEnterDoesNothing(t *testing.T) {
	h := newHarness(t, auth.Anonymous{}, echo("x"), nil)
	h.start(t)
	h.key(tea.KeyEnter)
	assert.Empty(t, h.store.Snapshot().Conversations)
}

func TestChat_NewDeleteAndSwitch(t *testing.T) {
	h := newHarness(t, auth.Anonymous{}, echo("x"), nil)
	h.start(t)

	h.key(tea.KeyCtrlN)
	first := h.m.State().ActiveID
	h.key(tea.KeyCtrlN)
	second := h.m.State().ActiveID
	require.Len(t, h.m.State().Conversations, 2)
	assert.NotEqual(t, first, second)

	// Sidebar order is newest first: [second, first].
	h.key(tea.KeyCtrlDown)
	assert.Equal(t, first, h.m.State().ActiveID)
	h.key(tea.KeyCtrlDown)
	assert.Equal(t, first, h.m.State().ActiveID, "stops at the end of the list")
	h.key(tea.KeyCtrlUp)
	assert.Equal(t, second, h.m.State().ActiveID)

	h.key(tea.KeyCtrlX)
	st := h.m.State()
	require.Len(t, st.Conversations, 1)
	assert.Equal(t, first, st.ActiveID)
	assert.Contains(t, h.m.Status(), "Deleted")
}

func TestChat_StopWritesStoppedText(t *testing.T) {
	started := make(chan struct{})
	blocking := gateway.CompleterFunc(func(ctx context.Context, _ gateway.Request, emit gateway.EmitFunc) error {
		emit("partial")
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	h := newHarness(t, auth.Anonymous{}, blocking, nil)
	h.start(t)

	h.m.input.SetValue("tell me a long story")
	h.key(tea.KeyEnter)
	<-started
	h.key(tea.KeyEsc)
	h.waitIdle(t)

	msgs := h.m.State().Active().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.StoppedText, msgs[1].Content)
	assert.False(t, msgs[1].IsStreaming)
}

func TestChat_BusyShowsStatus(t *testing.T) {
	release := make(chan struct{})
	blocking := gateway.CompleterFunc(func(ctx context.Context, _ gateway.Request, emit gateway.EmitFunc) error {
		<-release
		return nil
	})
	h := newHarness(t, auth.Anonymous{}, blocking, nil)
	h.start(t)

	h.m.input.SetValue("one")
	h.key(tea.KeyEnter)
	h.m.input.SetValue("two")
	h.key(tea.KeyEnter)
	assert.Contains(t, h.m.Status(), "still being generated")
	assert.Equal(t, "two", h.m.input.Value(), "input is kept when the send is refused")

	close(release)
	h.waitIdle(t)
}

func TestChat_RegenerateWithoutMessages(t *testing.T) {
	h := newHarness(t, auth.Anonymous{}, echo("x"), nil)
	h.start(t)
	h.key(tea.KeyCtrlR)
	assert.Equal(t, "Nothing to regenerate yet.", h.m.Status())
}

func TestChat_AttachThenSend(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "pixel.png")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
	require.NoError(t, os.WriteFile(img, png, 0o600))
	up, err := media.NewLocal(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	var mu sync.Mutex
	var got gateway.Request
	completer := gateway.CompleterFunc(func(_ context.Context, req gateway.Request, emit gateway.EmitFunc) error {
		mu.Lock()
		got = req
		mu.Unlock()
		emit("a tiny image")
		return nil
	})
	h := newHarness(t, auth.Anonymous{}, completer, up)
	h.start(t)

	h.m.input.SetValue("/attach")
	assert.Nil(t, h.key(tea.KeyEnter))
	assert.Contains(t, h.m.Status(), "Usage")

	h.m.input.SetValue("/attach " + img)
	cmd := h.key(tea.KeyEnter)
	require.NotNil(t, cmd)
	h.m.Update(cmd())
	require.Len(t, h.m.PendingImages(), 1)
	assert.True(t, strings.HasPrefix(h.m.PendingImages()[0], "file://"))

	h.m.input.SetValue("what is this?")
	h.key(tea.KeyEnter)
	h.waitIdle(t)
	assert.Empty(t, h.m.PendingImages())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "what is this?", got.Prompt)
	assert.Len(t, got.Images, 1)
	assert.Contains(t, h.m.View(), "[image]")
}

func TestSidebar_TruncatesWideTitles(t *testing.T) {
	h := newHarness(t, auth.Anonymous{}, echo("x"), nil)
	h.start(t)

	h.m.input.SetValue("日本語のタイトル とても 長い 会話 です ね")
	h.key(tea.KeyEnter)
	h.waitIdle(t)

	sidebar := h.m.renderSidebar(10)
	for _, line := range strings.Split(sidebar, "\n") {
		assert.LessOrEqual(t, lipgloss.Width(line), h.m.sidebarWidth+1, "width plus the right border")
	}
	assert.Contains(t, sidebar, "...")
}

func TestMarkdown_RenderedAndCached(t *testing.T) {
	h := newHarness(t, auth.Anonymous{}, echo("**bold** and `code`"), nil)
	h.m.markdown = true
	h.start(t)

	h.m.input.SetValue("format something")
	h.key(tea.KeyEnter)
	h.waitIdle(t)

	msg := h.m.State().Active().Messages[1]
	out := h.m.renderMarkdown(msg, 60)
	assert.NotContains(t, out, "**")
	assert.Contains(t, out, "bold")

	cached, ok := h.m.rendered[msg.ID]
	require.True(t, ok)
	assert.Equal(t, out, cached.out)
	assert.Equal(t, out, h.m.renderMarkdown(msg, 60))
}

func TestThemeChange(t *testing.T) {
	h := newHarness(t, auth.Anonymous{}, echo("x"), nil)
	h.start(t)
	h.m.Update(ThemeChangedMsg{Theme: "light"})
	assert.False(t, h.m.theme.IsDark)
}

// =============================================================================
// BRIDGE
// =============================================================================

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingSender) lastStore() (store.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if m, ok := r.msgs[i].(StoreChangedMsg); ok {
			return m.State, true
		}
	}
	return store.State{}, false
}

func (r *recordingSender) count() (storeMsgs, authMsgs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		switch m.(type) {
		case StoreChangedMsg:
			storeMsgs++
		case AuthChangedMsg:
			authMsgs++
		}
	}
	return
}

func TestBridge_DeliversLatestState(t *testing.T) {
	st := store.New(storage.NewConversationPersister(storage.NewMemoryKV(), nil), nil)
	am := auth.NewManager(auth.Anonymous{}, nil, auth.Options{})
	rec := &recordingSender{}
	b := NewBridge(rec, st, am, 5)
	defer b.Close()

	st.Hydrate(context.Background())
	am.Restore(context.Background())

	// A burst of streaming updates followed by the terminal state.
	_, err := st.Create()
	require.NoError(t, err)
	id, err := st.AppendMessage(store.MessageInput{Role: "assistant", Streaming: true})
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.NoError(t, st.UpdateStreamingContent(id, strings.Repeat("x", i+1)))
	}
	require.NoError(t, st.PatchMessageContent(id, "final"))

	final := st.Snapshot().Version
	require.Eventually(t, func() bool {
		s, ok := rec.lastStore()
		return ok && s.Version == final
	}, 5*time.Second, 10*time.Millisecond)

	s, _ := rec.lastStore()
	assert.False(t, s.Streaming)
	assert.Equal(t, "final", s.Active().Messages[0].Content)

	storeMsgs, authMsgs := rec.count()
	assert.Less(t, storeMsgs, 50, "streaming updates are throttled")
	assert.GreaterOrEqual(t, authMsgs, 1)
}

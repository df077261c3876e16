// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/rigrun-chat/internal/model"
)

// Persister loads and saves the whole conversation list.
// storage.ConversationPersister satisfies it.
type Persister interface {
	Load(ctx context.Context) []*model.Conversation
	Save(ctx context.Context, convs []*model.Conversation) error
}

// Listener is called with a snapshot after every state change.
type Listener func(State)

// MessageInput describes a message to append.
type MessageInput struct {
	Role      model.Role
	Content   string
	Images    []string
	Streaming bool
}

// =============================================================================
// STATE
// =============================================================================

// State is a point-in-time copy of the store. Callers own it and may modify
// it freely.
type State struct {
	// Conversations are ordered most recently created first.
	Conversations []*model.Conversation

	// ActiveID is "" when no conversation is active.
	ActiveID string

	// Loading is true until persisted state has been read once.
	Loading bool

	// Streaming is true while an assistant response is in flight.
	Streaming bool

	// Version increases with every change; listeners can use it to drop
	// snapshots that arrive out of order.
	Version uint64
}

// Active returns the active conversation, or nil.
func (s State) Active() *model.Conversation {
	return findConversation(s.Conversations, s.ActiveID)
}

// =============================================================================
// STORE
// =============================================================================

// Store is the single source of truth for conversation state.
type Store struct {
	mu        sync.Mutex
	state     State
	hydrated  bool
	persister Persister
	logger    *zap.Logger

	subMu   sync.Mutex
	subs    map[int]Listener
	nextSub int
}

// New creates a store in the loading state. Nothing can be mutated until
// Hydrate has run.
func New(persister Persister, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		state:     State{Conversations: []*model.Conversation{}, Loading: true},
		persister: persister,
		logger:    logger.Named("store"),
		subs:      make(map[int]Listener),
	}
}

// Hydrate reads persisted conversations once and leaves the loading state.
// The first conversation becomes active. Assistant messages still marked as
// streaming by an earlier process are finalised with the stopped text, the
// same content a cancelled turn gets. Calling Hydrate again is a no-op.
func (s *Store) Hydrate(ctx context.Context) {
	s.mu.Lock()
	if s.hydrated {
		s.mu.Unlock()
		return
	}

	convs := s.persister.Load(ctx)
	if convs == nil {
		convs = []*model.Conversation{}
	}
	repaired := 0
	for _, c := range convs {
		for _, m := range c.Messages {
			if m.IsStreaming {
				m.IsStreaming = false
				m.Content = model.StoppedResponseText
				repaired++
			}
		}
	}

	s.state.Conversations = convs
	s.state.Loading = false
	s.state.Streaming = false
	s.state.ActiveID = ""
	if len(convs) > 0 {
		s.state.ActiveID = convs[0].ID
	}
	s.hydrated = true
	if repaired > 0 {
		s.logger.Info("finalised interrupted responses", zap.Int("count", repaired))
		s.persistLocked()
	}
	s.logger.Debug("hydrated", zap.Int("conversations", len(convs)))
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Hydrated reports whether Hydrate has completed.
func (s *Store) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// =============================================================================
// READS
// =============================================================================

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Active returns a copy of the active conversation, or nil.
func (s *Store) Active() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findConversation(s.state.Conversations, s.state.ActiveID).Clone()
}

// Conversation returns a copy of the conversation with id, or nil.
func (s *Store) Conversation(id string) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findConversation(s.state.Conversations, id).Clone()
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Create inserts a new empty conversation at the front of the list, makes it
// active and returns its id.
func (s *Store) Create() (string, error) {
	var id string
	err := s.mutate(true, func(st *State) error {
		conv := model.NewConversation()
		st.Conversations = append([]*model.Conversation{conv}, st.Conversations...)
		st.ActiveID = conv.ID
		id = conv.ID
		return nil
	})
	return id, err
}

// Select makes id the active conversation. The id is not validated; an
// unknown id leaves no conversation effectively active.
func (s *Store) Select(id string) error {
	return s.mutate(false, func(st *State) error {
		st.ActiveID = id
		return nil
	})
}

// AppendMessage appends a message with a fresh id and timestamp to the
// active conversation and returns the id. The first user message sets the
// conversation title. Appending a streaming message raises the streaming
// flag in the same change.
func (s *Store) AppendMessage(in MessageInput) (string, error) {
	if !in.Role.Valid() {
		return "", fmt.Errorf("append message: invalid role %q", in.Role)
	}
	if in.Streaming && in.Role != model.RoleAssistant {
		return "", fmt.Errorf("append message: only assistant messages can stream")
	}

	var id string
	err := s.mutate(true, func(st *State) error {
		conv := findConversation(st.Conversations, st.ActiveID)
		if conv == nil {
			return ErrNoActiveConversation
		}
		msg := model.NewMessage(in.Role, in.Content, in.Images)
		msg.IsStreaming = in.Streaming
		conv.AddMessage(msg)
		id = msg.ID
		if in.Streaming {
			st.Streaming = true
		}
		return nil
	})
	return id, err
}

// PatchMessageContent replaces the content of a message and clears its
// streaming marker. The active conversation is searched first, then the
// rest, so a response still lands if the user switched threads mid-stream.
// The streaming flag follows whether any message is still streaming.
func (s *Store) PatchMessageContent(messageID, content string) error {
	return s.mutate(true, func(st *State) error {
		conv, msg := findMessage(st, messageID)
		if msg == nil {
			return ErrMessageNotFound
		}
		msg.Content = content
		msg.IsStreaming = false
		conv.Touch()
		st.Streaming = anyStreaming(st.Conversations)
		return nil
	})
}

// UpdateStreamingContent replaces the content of a message that is still
// streaming and keeps the marker set. A message that has already been
// finalised is reported as not found.
func (s *Store) UpdateStreamingContent(messageID, content string) error {
	return s.mutate(true, func(st *State) error {
		conv, msg := findMessage(st, messageID)
		if msg == nil || !msg.IsStreaming {
			return ErrMessageNotFound
		}
		msg.Content = content
		conv.Touch()
		return nil
	})
}

// Delete removes a conversation. When it was active the first remaining
// conversation becomes active, or none when the list is empty.
func (s *Store) Delete(id string) error {
	return s.mutate(true, func(st *State) error {
		idx := -1
		for i, c := range st.Conversations {
			if c.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrConversationNotFound
		}
		st.Conversations = append(st.Conversations[:idx:idx], st.Conversations[idx+1:]...)
		st.Streaming = anyStreaming(st.Conversations)
		if st.ActiveID == id {
			st.ActiveID = ""
			if len(st.Conversations) > 0 {
				st.ActiveID = st.Conversations[0].ID
			}
		}
		return nil
	})
}

// SetStreaming sets the in-flight flag. AppendMessage, PatchMessageContent
// and Delete keep the flag in step with the streaming markers; SetStreaming
// is for callers that track a response outside the message list.
func (s *Store) SetStreaming(streaming bool) error {
	return s.mutate(false, func(st *State) error {
		st.Streaming = streaming
		return nil
	})
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers fn to be called after every change and returns a
// function that removes it. Listeners run on the mutating goroutine after the
// store lock is released, so they may call back into the store.
func (s *Store) Subscribe(fn Listener) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// =============================================================================
// INTERNALS
// =============================================================================

// mutate applies fn under the lock. When fn succeeds the change is
// persisted (if it touched the conversation list) and broadcast. When fn
// returns an error the state is left exactly as it was.
func (s *Store) mutate(persist bool, fn func(*State) error) error {
	s.mu.Lock()
	if !s.hydrated {
		s.mu.Unlock()
		return ErrNotHydrated
	}

	if err := fn(&s.state); err != nil {
		s.mu.Unlock()
		return err
	}
	if persist {
		s.persistLocked()
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// persistLocked writes the full conversation list. Failures are logged and
// never surface to callers.
func (s *Store) persistLocked() {
	if err := s.persister.Save(context.Background(), s.state.Conversations); err != nil {
		s.logger.Error("failed to persist conversations", zap.Error(err))
	}
}

// commitLocked bumps the version and returns a snapshot for listeners, or a
// zero State when nobody is listening.
func (s *Store) commitLocked() State {
	s.state.Version++
	s.subMu.Lock()
	n := len(s.subs)
	s.subMu.Unlock()
	if n == 0 {
		return State{}
	}
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	snap := s.state
	snap.Conversations = make([]*model.Conversation, len(s.state.Conversations))
	for i, c := range s.state.Conversations {
		snap.Conversations[i] = c.Clone()
	}
	return snap
}

func (s *Store) notify(snap State) {
	s.subMu.Lock()
	listeners := make([]Listener, 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subMu.Unlock()

	if snap.Version == 0 {
		return
	}
	for _, fn := range listeners {
		fn(snap)
	}
}

func findConversation(convs []*model.Conversation, id string) *model.Conversation {
	if id == "" {
		return nil
	}
	for _, c := range convs {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func anyStreaming(convs []*model.Conversation) bool {
	for _, c := range convs {
		if c.StreamingMessage() != nil {
			return true
		}
	}
	return false
}

// findMessage looks in the active conversation first, then everywhere else.
func findMessage(st *State, messageID string) (*model.Conversation, *model.Message) {
	if active := findConversation(st.Conversations, st.ActiveID); active != nil {
		if msg := active.FindMessage(messageID); msg != nil {
			return active, msg
		}
	}
	for _, c := range st.Conversations {
		if c.ID == st.ActiveID {
			continue
		}
		if msg := c.FindMessage(messageID); msg != nil {
			return c, msg
		}
	}
	return nil, nil
}

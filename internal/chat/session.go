// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/rigrun-chat/internal/gateway"
	"github.com/jeranaias/rigrun-chat/internal/media"
	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/store"
)

// Fallback texts written into the assistant message when a turn does not
// complete normally.
const (
	GenericErrorText = "I'm sorry, but I encountered an error while generating a response. Please try again."
	ImagePolicyText  = "I'm unable to process this image because it may violate content policies. Please try a different image."
	StoppedText      = model.StoppedResponseText
)

// DefaultHistoryLimit is the number of earlier messages sent as context.
const DefaultHistoryLimit = 20

var (
	// ErrBusy is returned by Submit while a turn is in flight.
	ErrBusy = errors.New("a response is already being generated")

	// ErrEmptyPrompt is returned for a prompt with no text and no images.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrNothingToRegenerate is returned when the active conversation has
	// no user message.
	ErrNothingToRegenerate = errors.New("no message to regenerate")

	// ErrUploadsDisabled is returned by AttachFile without an uploader.
	ErrUploadsDisabled = errors.New("image uploads are not configured")
)

// Prompt is what the user submits.
type Prompt struct {
	Text   string
	Images []string
}

// Options configure a Session.
type Options struct {
	// Model and MaxTokens override the gateway defaults when set.
	Model     string
	MaxTokens int

	// IncludeHistory sends earlier messages of the conversation as context.
	IncludeHistory bool
	HistoryLimit   int

	// Uploader stores attachments for AttachFile.
	Uploader media.Uploader

	// UserID returns the signed-in user for upload paths.
	UserID func() string

	Logger *zap.Logger
}

// Session coordinates the store and the gateway.
type Session struct {
	store   *store.Store
	gateway gateway.Completer
	opts    Options
	logger  *zap.Logger

	mu   sync.Mutex
	turn *Turn
}

// NewSession creates a session.
func NewSession(st *store.Store, completer gateway.Completer, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.UserID == nil {
		opts.UserID = func() string { return "" }
	}
	return &Session{
		store:   st,
		gateway: completer,
		opts:    opts,
		logger:  opts.Logger.Named("chat"),
	}
}

// Busy reports whether a turn is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn != nil
}

// Current returns the in-flight turn, or nil.
func (s *Session) Current() *Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// Submit starts a turn: it makes sure a conversation is active, appends the
// user message and a streaming assistant placeholder, and streams the
// response in the background. The returned Turn reports the outcome.
func (s *Session) Submit(ctx context.Context, p Prompt) (*Turn, error) {
	p.Text = strings.TrimSpace(p.Text)
	if p.Text == "" && len(p.Images) == 0 {
		return nil, ErrEmptyPrompt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turn != nil {
		return nil, ErrBusy
	}

	active := s.store.Active()
	if active == nil {
		if _, err := s.store.Create(); err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		active = s.store.Active()
	}

	req := gateway.Request{
		Prompt:    p.Text,
		Images:    append([]string(nil), p.Images...),
		Model:     s.opts.Model,
		MaxTokens: s.opts.MaxTokens,
	}
	if s.opts.IncludeHistory && active != nil {
		req.History = history(active, s.opts.HistoryLimit)
	}

	userID, err := s.store.AppendMessage(store.MessageInput{
		Role:    model.RoleUser,
		Content: p.Text,
		Images:  p.Images,
	})
	if err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}
	assistantID, err := s.store.AppendMessage(store.MessageInput{
		Role:      model.RoleAssistant,
		Streaming: true,
	})
	if err != nil {
		return nil, fmt.Errorf("append assistant message: %w", err)
	}

	turn := &Turn{
		ConversationID:     active.ID,
		UserMessageID:      userID,
		AssistantMessageID: assistantID,
		hasImages:          req.HasImages(),
		done:               make(chan struct{}),
	}
	s.turn = turn

	s.logger.Debug("turn started",
		zap.String("conversation", turn.ConversationID),
		zap.String("message", assistantID),
		zap.Int("history", len(req.History)),
		zap.Int("images", len(req.Images)))

	var content strings.Builder
	turn.stream = gateway.Start(ctx, s.gateway, req, func(chunk string) {
		content.WriteString(chunk)
		if err := s.store.UpdateStreamingContent(assistantID, content.String()); err != nil {
			s.logger.Debug("dropping chunk", zap.Error(err))
		}
	})
	go s.finish(turn)

	return turn, nil
}

// finish waits for the stream and writes the terminal content exactly once.
func (s *Session) finish(turn *Turn) {
	res := turn.stream.Wait()

	final := res.Content
	switch res.Outcome {
	case gateway.OutcomeStopped:
		final = StoppedText
	case gateway.OutcomeFailed:
		final = GenericErrorText
		if turn.hasImages && gateway.IsContentPolicy(res.Err) {
			final = ImagePolicyText
		}
		s.logger.Error("response failed",
			zap.String("conversation", turn.ConversationID),
			zap.Error(res.Err))
	}

	// Patching clears the marker and the streaming flag together. The
	// message is gone only if its conversation was deleted mid-stream.
	if err := s.store.PatchMessageContent(turn.AssistantMessageID, final); err != nil {
		s.logger.Warn("failed to finalise response", zap.Error(err))
	}

	s.mu.Lock()
	if s.turn == turn {
		s.turn = nil
	}
	s.mu.Unlock()

	turn.result = Result{Outcome: res.Outcome, Content: final, Err: res.Err}
	close(turn.done)
	s.logger.Debug("turn finished",
		zap.String("outcome", res.Outcome.String()),
		zap.Int("chars", len(final)))
}

// Stop cancels the in-flight turn, if any.
func (s *Session) Stop() {
	s.mu.Lock()
	turn := s.turn
	s.mu.Unlock()
	if turn != nil {
		turn.stream.Stop()
	}
}

// Close stops the in-flight turn and waits until its terminal content has
// been written, so the store can be shut down afterwards.
func (s *Session) Close() {
	turn := s.Current()
	if turn == nil {
		return
	}
	turn.stream.Stop()
	turn.Wait()
}

// Regenerate resubmits the most recent user message of the active
// conversation, text and images alike.
func (s *Session) Regenerate(ctx context.Context) (*Turn, error) {
	active := s.store.Active()
	if active == nil {
		return nil, ErrNothingToRegenerate
	}
	last := active.LastUserMessage()
	if last == nil {
		return nil, ErrNothingToRegenerate
	}
	return s.Submit(ctx, Prompt{Text: last.Content, Images: last.Images})
}

// AttachFile uploads a local image and returns its URL for a Prompt.
func (s *Session) AttachFile(ctx context.Context, path string) (string, error) {
	if s.opts.Uploader == nil {
		return "", ErrUploadsDisabled
	}
	url, err := media.UploadFile(ctx, s.opts.Uploader, s.opts.UserID(), path)
	if err != nil {
		return "", err
	}
	s.logger.Debug("attachment uploaded", zap.String("url", url))
	return url, nil
}

// history converts finished messages into gateway turns, newest last,
// keeping at most limit of them.
func history(conv *model.Conversation, limit int) []gateway.Turn {
	var turns []gateway.Turn
	for _, m := range conv.Messages {
		if m.IsStreaming {
			continue
		}
		turns = append(turns, gateway.Turn{Role: m.Role, Content: m.Content, Images: m.Images})
	}
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns
}

// =============================================================================
// TURN
// =============================================================================

// Result is the terminal report of a turn.
type Result struct {
	Outcome gateway.Outcome

	// Content is what was written into the assistant message.
	Content string

	// Err is the gateway error for failed turns.
	Err error
}

// Turn is one submitted prompt and its response.
type Turn struct {
	ConversationID     string
	UserMessageID      string
	AssistantMessageID string

	hasImages bool
	stream    *gateway.Stream
	done      chan struct{}
	result    Result
}

// Done is closed once the assistant message has been finalised.
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the turn is finalised.
func (t *Turn) Wait() Result {
	<-t.done
	return t.result
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jeranaias/rigrun-chat/internal/model"
)

// DefaultMaxTokens caps response length when neither the request nor the
// config sets one.
const DefaultMaxTokens = 2048

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Turn is one earlier exchange sent as context.
type Turn struct {
	Role    model.Role
	Content string
	Images  []string
}

// Request is a single completion request. With no Images the prompt is sent
// as plain text, otherwise as a multi-part message of text plus image URLs.
type Request struct {
	Prompt    string
	Images    []string
	History   []Turn
	Model     string
	MaxTokens int
}

// HasImages reports whether the request is multi-part.
func (r Request) HasImages() bool {
	return len(r.Images) > 0
}

// EmitFunc receives one text chunk.
type EmitFunc func(chunk string)

// Completer streams a completion. Implementations call emit once per text
// chunk in order and must return promptly when ctx is cancelled.
type Completer interface {
	Complete(ctx context.Context, req Request, emit EmitFunc) error
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req Request, emit EmitFunc) error

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request, emit EmitFunc) error {
	return f(ctx, req, emit)
}

// =============================================================================
// STREAM
// =============================================================================

// Outcome is the terminal state of a Stream.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeStopped
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeStopped:
		return "stopped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the single terminal report of a Stream.
type Result struct {
	Outcome Outcome

	// Content is every chunk delivered before the stream ended.
	Content string

	// Err is set when Outcome is OutcomeFailed.
	Err error
}

// Stream is an in-flight completion.
type Stream struct {
	ctx     context.Context
	cancel  context.CancelFunc
	onChunk EmitFunc
	stopped atomic.Bool
	done    chan struct{}

	mu     sync.Mutex
	result Result
}

// Start runs c in a new goroutine. onChunk (which may be nil) is called
// sequentially on that goroutine for every non-empty chunk until the stream
// ends or Stop is called; it is never called after Done is closed.
func Start(ctx context.Context, c Completer, req Request, onChunk EmitFunc) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		ctx:     ctx,
		cancel:  cancel,
		onChunk: onChunk,
		done:    make(chan struct{}),
	}
	go s.run(c, req)
	return s
}

func (s *Stream) run(c Completer, req Request) {
	defer close(s.done)
	defer s.cancel()

	var content strings.Builder
	err := c.Complete(s.ctx, req, func(chunk string) {
		if chunk == "" || s.stopped.Load() || s.ctx.Err() != nil {
			return
		}
		content.WriteString(chunk)
		if s.onChunk != nil {
			s.onChunk(chunk)
		}
	})

	res := Result{Content: content.String()}
	switch {
	case s.stopped.Load():
		res.Outcome = OutcomeStopped
	case err != nil && errors.Is(err, context.Canceled) && s.ctx.Err() != nil:
		res.Outcome = OutcomeStopped
	case err != nil:
		res.Outcome = OutcomeFailed
		res.Err = err
	default:
		res.Outcome = OutcomeCompleted
	}

	s.mu.Lock()
	s.result = res
	s.mu.Unlock()
}

// Stop cancels the stream. Chunks that arrive afterwards are dropped and the
// outcome is OutcomeStopped. Stop is safe to call more than once and after
// the stream has finished, in which case it has no effect.
func (s *Stream) Stop() {
	select {
	case <-s.done:
		return
	default:
	}
	s.stopped.Store(true)
	s.cancel()
}

// Done is closed once the stream has ended.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the stream ends and returns its result.
func (s *Stream) Wait() Result {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jeranaias/rigrun-chat/internal/chat"
	"github.com/jeranaias/rigrun-chat/internal/gateway"
	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/store"
)

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter writes the growing assistant message to w as store updates
// arrive. Store listeners run on the goroutine that made the change, so
// chunks can arrive before Submit returns the turn; they are held until the
// target message is known.
type streamPrinter struct {
	w io.Writer

	mu       sync.Mutex
	target   string
	latestID string
	latest   string
	printed  string
}

func newStreamPrinter(w io.Writer) *streamPrinter {
	return &streamPrinter{w: w}
}

// observe is a store.Listener.
func (p *streamPrinter) observe(s store.State) {
	conv := s.Active()
	if conv == nil || len(conv.Messages) == 0 {
		return
	}
	last := conv.Messages[len(conv.Messages)-1]
	if last.Role != model.RoleAssistant {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.target != "" && last.ID != p.target {
		return
	}
	p.latestID, p.latest = last.ID, last.Content
	p.flushLocked()
}

// setTarget names the assistant message to print.
func (p *streamPrinter) setTarget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = id
	if p.latestID != id {
		p.latest = ""
	}
	p.flushLocked()
}

// finish writes the final content and a trailing newline.
func (p *streamPrinter) finish(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest = content
	p.flushLocked()
	fmt.Fprintln(p.w)
}

func (p *streamPrinter) flushLocked() {
	if p.target == "" || p.latest == p.printed {
		return
	}
	if strings.HasPrefix(p.latest, p.printed) {
		io.WriteString(p.w, p.latest[len(p.printed):])
	} else {
		// Final text replaced the partial stream (stop or failure).
		if p.printed != "" {
			fmt.Fprintln(p.w)
		}
		io.WriteString(p.w, p.latest)
	}
	p.printed = p.latest
}

// =============================================================================
// TURN RUNNER
// =============================================================================

// runTurn submits prompt, prints the response as it streams and waits for
// it to finish. Cancelling ctx stops the response. The error is only for a
// refused submission; a failed response is reported in the Result.
func runTurn(ctx context.Context, a *app, w io.Writer, prompt chat.Prompt) (chat.Result, error) {
	printer := newStreamPrinter(w)
	cancel := a.store.Subscribe(printer.observe)
	defer cancel()

	turn, err := a.session.Submit(ctx, prompt)
	if err != nil {
		return chat.Result{}, err
	}
	printer.setTarget(turn.AssistantMessageID)

	select {
	case <-turn.Done():
	case <-ctx.Done():
		a.session.Stop()
	}
	res := turn.Wait()
	printer.finish(res.Content)
	return res, nil
}

// turnError reports a failed response as an error.
func turnError(res chat.Result) error {
	if res.Outcome == gateway.OutcomeFailed {
		return fmt.Errorf("response failed: %w", res.Err)
	}
	return nil
}

// attachAll uploads each image and returns their URLs.
func attachAll(ctx context.Context, a *app, paths []string) ([]string, error) {
	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		url, err := a.session.AttachFile(ctx, p)
		if err != nil {
			if errors.Is(err, chat.ErrUploadsDisabled) {
				return nil, fmt.Errorf("cannot attach %s: image uploads are not configured (see media settings)", p)
			}
			return nil, fmt.Errorf("cannot attach %s: %w", p, err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jeranaias/rigrun-chat/internal/auth"
	"github.com/jeranaias/rigrun-chat/internal/store"
)

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// =============================================================================
// STATE BRIDGE
// =============================================================================

// Bridge forwards store and auth changes to the program. Store listeners
// never block: they record the newest snapshot and wake the pump, which
// delivers at most fps snapshots per second while a response streams and
// immediately otherwise. The newest snapshot is always delivered, so the
// terminal state of a stream is never lost to throttling.
type Bridge struct {
	sender  Sender
	limiter *rate.Limiter

	mu       sync.Mutex
	latest   *store.State
	authNext *auth.State

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	unsubs []func()
}

// NewBridge starts forwarding. Close stops it.
func NewBridge(sender Sender, st *store.Store, am *auth.Manager, fps int) *Bridge {
	if fps <= 0 {
		fps = 30
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(fps), 1),
		wake:    make(chan struct{}, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go b.pump(ctx)

	if st != nil {
		b.unsubs = append(b.unsubs, st.Subscribe(b.onStore))
	}
	if am != nil {
		b.unsubs = append(b.unsubs, am.Subscribe(b.onAuth))
	}
	return b
}

func (b *Bridge) onStore(s store.State) {
	b.mu.Lock()
	if b.latest == nil || s.Version > b.latest.Version {
		b.latest = &s
	}
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) onAuth(s auth.State) {
	b.mu.Lock()
	b.authNext = &s
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) pump(ctx context.Context) {
	defer close(b.done)
	var sent uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		}

		b.mu.Lock()
		snap := b.latest
		authState := b.authNext
		b.authNext = nil
		b.mu.Unlock()

		if authState != nil {
			b.sender.Send(AuthChangedMsg{State: *authState})
		}
		if snap == nil || snap.Version <= sent {
			continue
		}

		if snap.Streaming {
			if err := b.limiter.Wait(ctx); err != nil {
				return
			}
			// Pick up anything that arrived while waiting.
			b.mu.Lock()
			snap = b.latest
			b.mu.Unlock()
		}

		sent = snap.Version
		b.sender.Send(StoreChangedMsg{State: *snap})
	}
}

// Close unsubscribes and stops the pump.
func (b *Bridge) Close() {
	for _, u := range b.unsubs {
		u()
	}
	b.cancel()
	<-b.done
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/rigrun-chat/internal/storage"
)

// SessionKey is the storage key for the persisted session.
const SessionKey = "rigchat.session"

// DefaultSessionTTL applies when Options.SessionTTL is zero.
const DefaultSessionTTL = 7 * 24 * time.Hour

// State is the auth state seen by subscribers.
type State struct {
	User    *User
	Loading bool
}

// SignedIn reports whether a user is present.
func (s State) SignedIn() bool {
	return s.User != nil
}

// Options tune a Manager.
type Options struct {
	// SessionTTL bounds how long a persisted session is honoured.
	SessionTTL time.Duration

	// LoginRate and LoginBurst throttle failed and successful attempts alike.
	LoginRate  rate.Limit
	LoginBurst int

	Logger *zap.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Manager owns the auth state.
type Manager struct {
	auth    Authenticator
	kv      storage.KV
	ttl     time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	state State

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// NewManager creates a manager in the loading state. kv may be nil, in which
// case sessions are not persisted.
func NewManager(a Authenticator, kv storage.KV, opts Options) *Manager {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.LoginRate == 0 {
		opts.LoginRate = rate.Every(2 * time.Second)
	}
	if opts.LoginBurst <= 0 {
		opts.LoginBurst = 5
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		auth:    a,
		kv:      kv,
		ttl:     opts.SessionTTL,
		limiter: rate.NewLimiter(opts.LoginRate, opts.LoginBurst),
		logger:  opts.Logger.Named("auth"),
		now:     opts.Now,
		state:   State{Loading: true},
		subs:    make(map[int]func(State)),
	}
}

// Mode returns the authenticator's mode.
func (m *Manager) Mode() string {
	return m.auth.Mode()
}

// Prompts returns the inputs the sign-in screen must collect.
func (m *Manager) Prompts() []Prompt {
	return m.auth.Prompts()
}

// State returns the current auth state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyLocked()
}

// Subscribe calls fn immediately with the current state and again after
// every change. The returned function unsubscribes.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()

	fn(m.State())

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

// Restore loads a persisted, unexpired session and leaves the loading
// state. When no session exists and the authenticator needs no input, it
// signs in directly.
func (m *Manager) Restore(ctx context.Context) {
	u := m.loadSession(ctx)
	if u == nil && len(m.auth.Prompts()) == 0 {
		var err error
		u, err = m.auth.Authenticate(ctx, Credentials{})
		if err != nil {
			m.logger.Warn("automatic sign-in failed", zap.Error(err))
			u = nil
		}
	}

	m.mu.Lock()
	m.state = State{User: u}
	snap := m.copyLocked()
	m.mu.Unlock()

	if u != nil {
		m.logger.Info("session restored", zap.String("user", u.ID), zap.String("method", u.Method))
	}
	m.notify(snap)
}

// Login authenticates creds, persists the session and publishes the user.
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	if !m.limiter.Allow() {
		return ErrTooManyAttempts
	}

	u, err := m.auth.Authenticate(ctx, creds)
	if err != nil {
		m.logger.Warn("login failed", zap.String("mode", m.auth.Mode()), zap.Error(err))
		return err
	}

	sessionExpiry := m.now().Add(m.ttl)
	if u.ExpiresAt.IsZero() || sessionExpiry.Before(u.ExpiresAt) {
		u.ExpiresAt = sessionExpiry
	}
	m.saveSession(ctx, u)

	m.mu.Lock()
	m.state = State{User: u}
	snap := m.copyLocked()
	m.mu.Unlock()

	m.logger.Info("signed in", zap.String("user", u.ID), zap.String("method", u.Method))
	m.notify(snap)
	return nil
}

// Logout clears the session.
func (m *Manager) Logout(ctx context.Context) {
	if m.kv != nil {
		if err := m.kv.Delete(ctx, SessionKey); err != nil {
			m.logger.Warn("failed to clear session", zap.Error(err))
		}
	}

	m.mu.Lock()
	m.state = State{}
	snap := m.copyLocked()
	m.mu.Unlock()

	m.notify(snap)
}

func (m *Manager) loadSession(ctx context.Context) *User {
	if m.kv == nil {
		return nil
	}
	data, err := m.kv.Get(ctx, SessionKey)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			m.logger.Warn("failed to read session", zap.Error(err))
		}
		return nil
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil || u.ID == "" {
		m.logger.Warn("discarding unreadable session")
		return nil
	}
	if u.Method != m.auth.Mode() {
		m.logger.Info("discarding session from another auth mode", zap.String("method", u.Method))
		return nil
	}
	if u.Expired(m.now()) {
		m.logger.Info("session expired", zap.String("user", u.ID))
		return nil
	}
	return &u
}

func (m *Manager) saveSession(ctx context.Context, u *User) {
	if m.kv == nil {
		return
	}
	data, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := m.kv.Put(ctx, SessionKey, data); err != nil {
		m.logger.Warn("failed to persist session", zap.Error(err))
	}
}

func (m *Manager) copyLocked() State {
	s := m.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func (m *Manager) notify(s State) {
	m.subMu.Lock()
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// wiring.go - Builds the store, auth, gateway and session from config.

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/rigrun-chat/internal/auth"
	"github.com/jeranaias/rigrun-chat/internal/chat"
	"github.com/jeranaias/rigrun-chat/internal/config"
	"github.com/jeranaias/rigrun-chat/internal/gateway"
	"github.com/jeranaias/rigrun-chat/internal/media"
	"github.com/jeranaias/rigrun-chat/internal/storage"
	"github.com/jeranaias/rigrun-chat/internal/store"
)

// newCompleter builds the gateway backend. Tests replace it.
var newCompleter = gateway.New

// app holds the wired components for one command invocation.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	kv      storage.KV
	store   *store.Store
	auth    *auth.Manager
	session *chat.Session

	closers []func()
}

// wireOptions selects the optional parts of the graph.
type wireOptions struct {
	// session builds the gateway, uploader and chat session.
	session bool
}

// wire opens storage and builds the components cfg describes. The store is
// not hydrated; callers do that when they need conversations.
func wire(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts wireOptions) (*app, error) {
	if err := config.EnsureConfigDir(); err != nil {
		return nil, err
	}

	kv, err := storage.Open(cfg.Storage.Backend, cfg.StoragePath())
	if err != nil {
		return nil, fmt.Errorf("could not open %s storage: %w", cfg.Storage.Backend, err)
	}
	a := &app{cfg: cfg, logger: logger, kv: kv}
	a.closers = append(a.closers, func() {
		if err := kv.Close(); err != nil {
			logger.Warn("failed to close storage", zap.Error(err))
		}
	})

	a.store = store.New(storage.NewConversationPersister(kv, logger), logger)

	authn, err := newAuthenticator(ctx, cfg.Auth, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if t, ok := authn.(*auth.Token); ok {
		a.closers = append(a.closers, t.Close)
	}
	a.auth = auth.NewManager(authn, kv, auth.Options{
		SessionTTL: time.Duration(cfg.Auth.SessionTTLHours) * time.Hour,
		LoginRate:  rate.Every(time.Minute / time.Duration(max(cfg.Auth.LoginAttemptsPerMin, 1))),
		LoginBurst: max(cfg.Auth.LoginAttemptsPerMin, 1),
		Logger:     logger,
	})

	if !opts.session {
		return a, nil
	}

	completer, err := newCompleter(gateway.Config{
		Provider:     cfg.Gateway.Provider,
		BaseURL:      cfg.Gateway.BaseURL,
		APIKey:       cfg.Gateway.APIKey,
		Model:        cfg.Gateway.Model,
		MaxTokens:    cfg.Gateway.MaxTokens,
		SystemPrompt: cfg.Gateway.SystemPrompt,
		Logger:       logger,
	})
	if err != nil {
		a.Close()
		if errors.Is(err, gateway.ErrNotConfigured) {
			return nil, fmt.Errorf("%w (set gateway.api_key in the config file or RIGCHAT_API_KEY)", err)
		}
		return nil, err
	}

	uploader, err := media.New(ctx, media.Config{
		Backend:  cfg.Media.Backend,
		LocalDir: cfg.MediaDir(),
		MinIO: media.MinIOConfig{
			Endpoint:      cfg.Media.MinIO.Endpoint,
			AccessKey:     cfg.Media.MinIO.AccessKey,
			SecretKey:     cfg.Media.MinIO.SecretKey,
			Bucket:        cfg.Media.MinIO.Bucket,
			Region:        cfg.Media.MinIO.Region,
			UseSSL:        cfg.Media.MinIO.UseSSL,
			PublicBaseURL: cfg.Media.MinIO.PublicBaseURL,
		},
	}, logger)
	if err != nil {
		// Chat still works without attachments.
		logger.Warn("image uploads disabled", zap.Error(err))
		uploader = nil
	}

	a.session = chat.NewSession(a.store, completer, chat.Options{
		Model:          cfg.Gateway.Model,
		MaxTokens:      cfg.Gateway.MaxTokens,
		IncludeHistory: cfg.Chat.IncludeHistory,
		HistoryLimit:   cfg.Chat.HistoryLimit,
		Uploader:       uploader,
		UserID:         a.userID,
		Logger:         logger,
	})
	return a, nil
}

// newAuthenticator builds the authenticator for cfg.Mode.
func newAuthenticator(ctx context.Context, cfg config.AuthConfig, logger *zap.Logger) (auth.Authenticator, error) {
	switch strings.ToLower(cfg.Mode) {
	case auth.ModeNone, "":
		return auth.Anonymous{}, nil
	case auth.ModeLocal:
		return auth.NewLocal(cfg.Username, cfg.PasswordHash, cfg.TOTPSecret)
	case auth.ModeToken:
		return auth.NewToken(ctx, auth.TokenConfig{
			Secret:   cfg.TokenSecret,
			JWKSURL:  cfg.JWKSURL,
			Issuer:   cfg.Issuer,
			Audience: cfg.Audience,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown auth mode %q", auth.ErrNotConfigured, cfg.Mode)
	}
}

// hydrate loads conversations and restores the signed-in session.
func (a *app) hydrate(ctx context.Context) {
	a.store.Hydrate(ctx)
	a.auth.Restore(ctx)
}

// requireUser fails when the configured auth mode needs a sign-in that has
// not happened yet.
func (a *app) requireUser() error {
	if a.auth.State().SignedIn() {
		return nil
	}
	return fmt.Errorf("%w: not signed in (run `rigchat login`)", auth.ErrInvalidCredentials)
}

func (a *app) userID() string {
	if u := a.auth.State().User; u != nil {
		return u.ID
	}
	return ""
}

// Close releases everything wire opened, in reverse order.
func (a *app) Close() {
	if a.session != nil {
		a.session.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

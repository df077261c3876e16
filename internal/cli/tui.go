// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/rigrun-chat/internal/config"
	"github.com/jeranaias/rigrun-chat/internal/logger"
	"github.com/jeranaias/rigrun-chat/internal/model"
	uiapp "github.com/jeranaias/rigrun-chat/internal/ui/app"
)

// runTUI opens the full-screen chat. Logs go to a file since the program
// owns the terminal.
func runTUI(ctx context.Context, opts *globalOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}

	log, closeLog, err := logger.NewFile(cfg.LogFile(), cfg.Log.Debug)
	if err != nil {
		return err
	}
	defer closeLog()
	log.Info("starting", zap.String("version", Version),
		zap.String("provider", cfg.Gateway.Provider),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("auth", cfg.Auth.Mode))

	a, err := wire(ctx, cfg, log, wireOptions{session: true})
	if err != nil {
		return err
	}
	defer a.Close()

	program, bridge := uiapp.NewProgram(uiapp.Options{
		Context:      ctx,
		Store:        a.store,
		Auth:         a.auth,
		Session:      a.session,
		Theme:        cfg.UI.Theme,
		Markdown:     cfg.UI.Markdown,
		SidebarWidth: cfg.UI.SidebarWidth,
		Label:        gatewayLabel(cfg),
		Logger:       log,
	}, cfg.UI.RenderFPS)
	defer bridge.Close()

	if w := watchTheme(opts, program, log); w != nil {
		defer w.Close()
	}

	_, err = program.Run()
	// Quitting mid-stream stops the turn and waits for the stopped text to
	// be saved before storage closes.
	a.session.Close()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// watchTheme follows theme edits in the config file while the TUI runs.
func watchTheme(opts *globalOptions, program *tea.Program, log *zap.Logger) *config.Watcher {
	path := opts.configPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return nil
		}
		path = p
	}
	w, err := config.NewWatcher(path, config.DefaultDebounce, func(cfg *config.Config, err error) {
		if err != nil {
			log.Warn("config reload failed", zap.Error(err))
			program.Send(uiapp.StatusMsg{Text: "Config reload failed: " + err.Error(), Error: true})
			return
		}
		log.Info("config reloaded", zap.String("theme", cfg.UI.Theme))
		program.Send(uiapp.ThemeChangedMsg{Theme: cfg.UI.Theme})
	})
	if err != nil {
		log.Warn("config watch disabled", zap.Error(err))
		return nil
	}
	return w
}

// gatewayLabel is the "provider / model" text shown in headers.
func gatewayLabel(cfg *config.Config) string {
	m := cfg.Gateway.Model
	if m == "" {
		m = model.DefaultModel(cfg.Gateway.Provider)
	}
	if m == "" {
		return cfg.Gateway.Provider
	}
	return fmt.Sprintf("%s / %s", cfg.Gateway.Provider, m)
}

// stderrLogger is the logger for line-mode commands.
func stderrLogger(cfg *config.Config) *zap.Logger {
	return logger.NewStderr(cfg.Log.Debug)
}


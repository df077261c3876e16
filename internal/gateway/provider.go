// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/rigrun-chat/internal/model"
)

// Provider names.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderAnthropic  = "anthropic"
)

// Default endpoints for the OpenAI-compatible providers.
const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	OllamaBaseURL     = "http://localhost:11434/v1"
)

// Providers lists every provider New understands.
var Providers = []string{ProviderOpenAI, ProviderOpenRouter, ProviderOllama, ProviderAnthropic}

// Config selects and configures a backend.
type Config struct {
	Provider     string
	BaseURL      string
	APIKey       string
	Model        string
	MaxTokens    int
	SystemPrompt string

	// HTTPClient is used for API calls and image fetches. Defaults to a
	// client without an overall timeout, since streams may run long.
	HTTPClient *http.Client

	Logger *zap.Logger
}

// withDefaults fills in model, max tokens, base URL and HTTP client.
func (c Config) withDefaults() Config {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Model == "" {
		c.Model = model.DefaultModel(c.Provider)
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.BaseURL == "" {
		switch c.Provider {
		case ProviderOpenRouter:
			c.BaseURL = OpenRouterBaseURL
		case ProviderOllama:
			c.BaseURL = OllamaBaseURL
		}
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: 60 * time.Second,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// New builds the Completer for cfg.Provider.
func New(cfg Config) (Completer, error) {
	cfg = cfg.withDefaults()
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: no model for provider %q", ErrNotConfigured, cfg.Provider)
	}

	switch cfg.Provider {
	case ProviderOpenAI, ProviderOpenRouter:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: %s API key not set", ErrNotConfigured, cfg.Provider)
		}
		return NewOpenAI(cfg), nil
	case ProviderOllama:
		if cfg.APIKey == "" {
			// Ollama ignores the key but the client requires one.
			cfg.APIKey = "ollama"
		}
		return NewOpenAI(cfg), nil
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: anthropic API key not set", ErrNotConfigured)
		}
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

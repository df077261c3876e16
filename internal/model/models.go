// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo describes a completion model the gateway can address.
type ModelInfo struct {
	// ID is the model identifier used in API calls
	ID string `json:"id" yaml:"id"`

	// Name is the human-readable display name
	Name string `json:"name" yaml:"name"`

	// Provider is the gateway backend that serves the model (openai, anthropic, openrouter, ollama)
	Provider string `json:"provider" yaml:"provider"`

	// SupportsVision is true when the model accepts image parts
	SupportsVision bool `json:"supports_vision" yaml:"supports_vision"`

	// MaxOutputTokens is the provider's ceiling for max_tokens
	MaxOutputTokens int `json:"max_output_tokens" yaml:"max_output_tokens"`
}

// =============================================================================
// MODEL REGISTRY
// =============================================================================

// Models is the registry of known models keyed by API identifier.
var Models = map[string]ModelInfo{
	"gpt-4o": {
		ID: "gpt-4o", Name: "GPT-4o", Provider: "openai",
		SupportsVision: true, MaxOutputTokens: 16384,
	},
	"gpt-4o-mini": {
		ID: "gpt-4o-mini", Name: "GPT-4o mini", Provider: "openai",
		SupportsVision: true, MaxOutputTokens: 16384,
	},
	"gpt-4.1-mini": {
		ID: "gpt-4.1-mini", Name: "GPT-4.1 mini", Provider: "openai",
		SupportsVision: true, MaxOutputTokens: 32768,
	},
	"claude-sonnet-4-20250514": {
		ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", Provider: "anthropic",
		SupportsVision: true, MaxOutputTokens: 64000,
	},
	"claude-3-5-haiku-latest": {
		ID: "claude-3-5-haiku-latest", Name: "Claude 3.5 Haiku", Provider: "anthropic",
		SupportsVision: true, MaxOutputTokens: 8192,
	},
	"openai/gpt-4o-mini": {
		ID: "openai/gpt-4o-mini", Name: "GPT-4o mini (OpenRouter)", Provider: "openrouter",
		SupportsVision: true, MaxOutputTokens: 16384,
	},
	"anthropic/claude-sonnet-4": {
		ID: "anthropic/claude-sonnet-4", Name: "Claude Sonnet 4 (OpenRouter)", Provider: "openrouter",
		SupportsVision: true, MaxOutputTokens: 64000,
	},
	"llama3.2": {
		ID: "llama3.2", Name: "Llama 3.2", Provider: "ollama",
		MaxOutputTokens: 4096,
	},
	"llava": {
		ID: "llava", Name: "LLaVA", Provider: "ollama",
		SupportsVision: true, MaxOutputTokens: 4096,
	},
}

// defaultModels maps each provider to the model used when none is configured.
var defaultModels = map[string]string{
	"openai":     "gpt-4o-mini",
	"anthropic":  "claude-sonnet-4-20250514",
	"openrouter": "openai/gpt-4o-mini",
	"ollama":     "llama3.2",
}

// =============================================================================
// MODEL INFO METHODS
// =============================================================================

// String returns "Name (id)".
func (m ModelInfo) String() string {
	return fmt.Sprintf("%s (%s)", m.Name, m.ID)
}

// CapabilitiesString returns a comma-separated list of model capabilities.
func (m ModelInfo) CapabilitiesString() string {
	caps := []string{"Text"}
	if m.SupportsVision {
		caps = append(caps, "Images")
	}
	if m.Provider == "ollama" {
		caps = append(caps, "Offline capable")
	}
	return strings.Join(caps, ", ")
}

// =============================================================================
// MODEL LOOKUP FUNCTIONS
// =============================================================================

// GetModelInfo looks up a model by ID, falling back to a case-insensitive
// match on the display name.
func GetModelInfo(id string) (ModelInfo, bool) {
	if info, ok := Models[id]; ok {
		return info, true
	}
	lower := strings.ToLower(id)
	for _, info := range Models {
		if strings.ToLower(info.Name) == lower {
			return info, true
		}
	}
	return ModelInfo{}, false
}

// GetModelsByProvider returns all models from a provider, sorted by ID.
func GetModelsByProvider(provider string) []ModelInfo {
	result := []ModelInfo{}
	lowerProvider := strings.ToLower(provider)
	for _, info := range Models {
		if info.Provider == lowerProvider {
			result = append(result, info)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// DefaultModel returns the default model ID for a provider, or "" if the
// provider is unknown.
func DefaultModel(provider string) string {
	return defaultModels[strings.ToLower(provider)]
}

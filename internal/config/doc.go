// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for rigchat.
//
// Configuration is TOML, with sensible defaults, .env loading, environment
// variable overrides, validation and hot reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - GatewayConfig: AI provider, model and key
//   - StorageConfig, MediaConfig: where conversations and uploads live
//   - AuthConfig: sign-in mode and credentials
//   - Watcher: reloads the file when it changes
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RIGCHAT_*, provider API key variables)
//   - .env in the working directory, then in the config directory
//   - ~/.rigchat/config.toml (RIGCHAT_HOME moves the directory)
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	provider := cfg.Gateway.Provider
//	backend := cfg.Storage.Backend
package config

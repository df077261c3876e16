// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points the config directory at a temp dir and clears the
// variables ApplyEnvOverrides reads.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)
	for _, env := range []string{
		"RIGCHAT_PROVIDER", "RIGCHAT_MODEL", "RIGCHAT_API_KEY", "RIGCHAT_BASE_URL",
		"RIGCHAT_STORAGE_BACKEND", "RIGCHAT_STORAGE_PATH", "RIGCHAT_MEDIA_BACKEND",
		"RIGCHAT_AUTH_MODE", "RIGCHAT_THEME", "RIGCHAT_DEBUG",
		"OPENAI_API_KEY", "OPENROUTER_API_KEY", "ANTHROPIC_API_KEY",
	} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
	return dir
}

// TestConfig_Default tests that Default() returns a valid config with defaults.
func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg.Version == "" {
		t.Error("Default config should have a version")
	}
	if cfg.Gateway.Provider != "openai" {
		t.Errorf("Expected default provider 'openai', got '%s'", cfg.Gateway.Provider)
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("Expected default storage 'file', got '%s'", cfg.Storage.Backend)
	}
	if !cfg.Chat.IncludeHistory {
		t.Error("History should be sent by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantField string
	}{
		{name: "valid default config", mutate: func(c *Config) {}},
		{name: "unknown provider", mutate: func(c *Config) { c.Gateway.Provider = "bard" }, wantField: "gateway.provider"},
		{name: "bad base url", mutate: func(c *Config) { c.Gateway.BaseURL = "not a url" }, wantField: "gateway.base_url"},
		{name: "zero max tokens", mutate: func(c *Config) { c.Gateway.MaxTokens = 0 }, wantField: "gateway.max_tokens"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Backend = "redis" }, wantField: "storage.backend"},
		{name: "minio without endpoint", mutate: func(c *Config) { c.Media.Backend = "minio" }, wantField: "media.minio.endpoint"},
		{name: "local auth without hash", mutate: func(c *Config) {
			c.Auth.Mode = "local"
			c.Auth.Username = "alice"
		}, wantField: "auth.password_hash"},
		{name: "token auth without key", mutate: func(c *Config) { c.Auth.Mode = "token" }, wantField: "auth.token_secret"},
		{name: "token auth with jwks", mutate: func(c *Config) {
			c.Auth.Mode = "token"
			c.Auth.JWKSURL = "https://id.example.com/jwks.json"
		}},
		{name: "invalid theme", mutate: func(c *Config) { c.UI.Theme = "neon" }, wantField: "ui.theme"},
		{name: "render fps too high", mutate: func(c *Config) { c.UI.RenderFPS = 500 }, wantField: "ui.render_fps"},
		{name: "case-insensitive provider", mutate: func(c *Config) { c.Gateway.Provider = "Anthropic" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error = %v", err)
				}
				return
			}
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() error = %v, want ValidateErrors", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate() = %v, want an error for %s", err, tt.wantField)
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gateway.Provider != "openai" {
		t.Errorf("Provider = %s, want openai", cfg.Gateway.Provider)
	}
}

func TestLoad_FileEnvAndDotEnv(t *testing.T) {
	dir := isolate(t)

	toml := `
[gateway]
provider = "anthropic"
model = "claude-3-5-haiku-latest"

[storage]
backend = "sqlite"

[ui]
theme = "light"
`
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ANTHROPIC_API_KEY=sk-from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RIGCHAT_THEME", "auto")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gateway.Provider != "anthropic" || cfg.Gateway.Model != "claude-3-5-haiku-latest" {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
	if cfg.Gateway.APIKey != "sk-from-dotenv" {
		t.Errorf("APIKey = %q, want value from .env", cfg.Gateway.APIKey)
	}
	if cfg.UI.Theme != "auto" {
		t.Errorf("Theme = %s, environment should win over the file", cfg.UI.Theme)
	}
	if !cfg.Chat.IncludeHistory || cfg.Gateway.MaxTokens == 0 {
		t.Error("keys missing from the file should keep their defaults")
	}
	if got := cfg.StoragePath(); got != filepath.Join(dir, "rigchat.sqlite") {
		t.Errorf("StoragePath() = %s", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config permissions = %o, want 0600", info.Mode().Perm())
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[ui]\ntheme = \"neon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected validation error")
	}

	if err := os.WriteFile(path, []byte("this is = = not toml"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	cfg.Gateway.Model = "gpt-4o"
	cfg.Auth.Mode = "local"
	cfg.Auth.Username = "alice"
	cfg.Auth.PasswordHash = "$2a$10$abc"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	path := filepath.Join(dir, "config.toml")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions = %o, want 0600", info.Mode().Perm())
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Gateway.Model != "gpt-4o" || loaded.Auth.Username != "alice" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestApplyEnvOverrides_ProviderKeys(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("OPENROUTER_API_KEY", "sk-or")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if cfg.Gateway.APIKey != "sk-openai" {
		t.Errorf("openai key = %q", cfg.Gateway.APIKey)
	}

	cfg = Default()
	cfg.Gateway.Provider = "openrouter"
	cfg.ApplyEnvOverrides()
	if cfg.Gateway.APIKey != "sk-or" {
		t.Errorf("openrouter key = %q", cfg.Gateway.APIKey)
	}

	t.Setenv("RIGCHAT_API_KEY", "explicit")
	cfg = Default()
	cfg.ApplyEnvOverrides()
	if cfg.Gateway.APIKey != "explicit" {
		t.Errorf("RIGCHAT_API_KEY should win, got %q", cfg.Gateway.APIKey)
	}

	t.Setenv("RIGCHAT_DEBUG", "true")
	cfg.ApplyEnvOverrides()
	if !cfg.Log.Debug {
		t.Error("RIGCHAT_DEBUG=true should enable debug logging")
	}
}

// TestConfig_GetSet tests Get and Set methods with dot notation.
func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("gateway.provider")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if val != "openai" {
		t.Errorf("Get('gateway.provider') = %v, want 'openai'", val)
	}

	if err := cfg.Set("gateway.max_tokens", "512"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if cfg.Gateway.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want 512", cfg.Gateway.MaxTokens)
	}

	if err := cfg.Set("media.minio.use_ssl", "false"); err != nil {
		t.Fatalf("Set() nested error = %v", err)
	}
	if cfg.Media.MinIO.UseSSL {
		t.Error("use_ssl should be false")
	}

	if _, err := cfg.Get("invalid.key"); err == nil {
		t.Error("Get() with invalid key should return error")
	}
	if _, err := cfg.Get("gateway"); err == nil {
		t.Error("Get() of a section should return error")
	}
}

func TestGetAllKeys(t *testing.T) {
	keys := GetAllKeys()
	cfg := Default()
	for _, want := range []string{"gateway.provider", "media.minio.endpoint", "auth.jwks_url", "ui.theme"} {
		found := false
		for _, k := range keys {
			if k == want {
				found = true
			}
		}
		if !found {
			t.Errorf("GetAllKeys() missing %s", want)
		}
	}
	for _, k := range keys {
		if _, err := cfg.Get(k); err != nil {
			t.Errorf("Get(%q) error = %v", k, err)
		}
	}
}

// TestConfig_Clone tests that Clone creates an independent copy.
func TestConfig_Clone(t *testing.T) {
	original := Default()
	original.Version = "original"

	clone := original.Clone()
	clone.Version = "cloned"

	if original.Version != "original" {
		t.Error("Clone should create an independent copy")
	}
}

func TestConfig_StringRedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Gateway.APIKey = "sk-secret"
	cfg.Auth.TokenSecret = "hmac-secret"

	out := cfg.String()
	if strings.Contains(out, "sk-secret") || strings.Contains(out, "hmac-secret") {
		t.Errorf("String() leaked a secret:\n%s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("String() should mark redacted fields")
	}
	if cfg.Gateway.APIKey != "sk-secret" {
		t.Error("String() must not modify the receiver")
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[ui]\ntheme = \"dark\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	changes := make(chan *Config, 4)
	w, err := NewWatcher(path, 20*time.Millisecond, func(cfg *Config, err error) {
		if err == nil {
			changes <- cfg
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("[ui]\ntheme = \"light\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changes:
		if cfg.UI.Theme != "light" {
			t.Errorf("reloaded theme = %s, want light", cfg.UI.Theme)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the change")
	}
}

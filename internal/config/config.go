// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/rigrun-chat/internal/auth"
	"github.com/jeranaias/rigrun-chat/internal/gateway"
	"github.com/jeranaias/rigrun-chat/internal/media"
	"github.com/jeranaias/rigrun-chat/internal/storage"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

// HomeEnv overrides the configuration directory.
const HomeEnv = "RIGCHAT_HOME"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigchat configuration.
type Config struct {
	Version string `toml:"version"`

	Gateway GatewayConfig `toml:"gateway"`
	Chat    ChatConfig    `toml:"chat"`
	Storage StorageConfig `toml:"storage"`
	Media   MediaConfig   `toml:"media"`
	Auth    AuthConfig    `toml:"auth"`
	UI      UIConfig      `toml:"ui"`
	Log     LogConfig     `toml:"log"`
}

// GatewayConfig selects the AI provider.
type GatewayConfig struct {
	// Provider is one of openai, openrouter, ollama, anthropic.
	Provider string `toml:"provider"`
	// BaseURL overrides the provider endpoint (empty = provider default)
	BaseURL string `toml:"base_url"`
	// APIKey falls back to OPENAI_API_KEY, OPENROUTER_API_KEY or
	// ANTHROPIC_API_KEY depending on Provider.
	APIKey       string `toml:"api_key"`
	Model        string `toml:"model"`
	MaxTokens    int    `toml:"max_tokens"`
	SystemPrompt string `toml:"system_prompt"`
}

// ChatConfig controls what is sent with each prompt.
type ChatConfig struct {
	IncludeHistory bool `toml:"include_history"`
	HistoryLimit   int  `toml:"history_limit"`
}

// StorageConfig selects where conversations are persisted.
type StorageConfig struct {
	// Backend is one of file, bolt, sqlite, memory.
	Backend string `toml:"backend"`
	// Path is a directory for file, a database file otherwise.
	// Empty = inside the config directory.
	Path string `toml:"path"`
}

// MediaConfig selects where attached images are uploaded.
type MediaConfig struct {
	// Backend is local or minio.
	Backend  string      `toml:"backend"`
	LocalDir string      `toml:"local_dir"`
	MinIO    MinIOConfig `toml:"minio"`
}

// MinIOConfig mirrors media.MinIOConfig.
type MinIOConfig struct {
	Endpoint      string `toml:"endpoint"`
	AccessKey     string `toml:"access_key"`
	SecretKey     string `toml:"secret_key"`
	Bucket        string `toml:"bucket"`
	Region        string `toml:"region"`
	UseSSL        bool   `toml:"use_ssl"`
	PublicBaseURL string `toml:"public_base_url"`
}

// AuthConfig selects the sign-in method.
type AuthConfig struct {
	// Mode is none, local or token.
	Mode string `toml:"mode"`

	// local mode
	Username     string `toml:"username"`
	PasswordHash string `toml:"password_hash"`
	TOTPSecret   string `toml:"totp_secret"`

	// token mode
	TokenSecret string `toml:"token_secret"`
	JWKSURL     string `toml:"jwks_url"`
	Issuer      string `toml:"issuer"`
	Audience    string `toml:"audience"`

	SessionTTLHours     int `toml:"session_ttl_hours"`
	LoginAttemptsPerMin int `toml:"login_attempts_per_min"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// Markdown renders finished assistant messages with glamour
	Markdown bool `toml:"markdown"`
	// RenderFPS caps how often streamed content is redrawn
	RenderFPS    int `toml:"render_fps"`
	SidebarWidth int `toml:"sidebar_width"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Debug bool `toml:"debug"`
	// File is where the TUI logs (empty = rigchat.log in the config directory)
	File string `toml:"file"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Gateway: GatewayConfig{
			Provider:  gateway.ProviderOpenAI,
			MaxTokens: gateway.DefaultMaxTokens,
		},

		Chat: ChatConfig{
			IncludeHistory: true,
			HistoryLimit:   20,
		},

		Storage: StorageConfig{
			Backend: storage.BackendFile,
		},

		Media: MediaConfig{
			Backend: media.BackendLocal,
			MinIO: MinIOConfig{
				Bucket: "rigchat",
				UseSSL: true,
			},
		},

		Auth: AuthConfig{
			Mode:                auth.ModeNone,
			SessionTTLHours:     24 * 7,
			LoginAttemptsPerMin: 5,
		},

		UI: UIConfig{
			Theme:        "dark",
			Markdown:     true,
			RenderFPS:    30,
			SidebarWidth: 28,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the rigchat configuration directory path, honouring
// RIGCHAT_HOME.
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, util.DefaultDirPerm)
}

// StoragePath returns the configured storage path or the default for the
// backend inside the config directory.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	dir, err := ConfigDir()
	if err != nil {
		dir = "."
	}
	switch c.Storage.Backend {
	case storage.BackendBolt:
		return filepath.Join(dir, "rigchat.db")
	case storage.BackendSQLite:
		return filepath.Join(dir, "rigchat.sqlite")
	default:
		return filepath.Join(dir, "data")
	}
}

// MediaDir returns the local upload directory.
func (c *Config) MediaDir() string {
	if c.Media.LocalDir != "" {
		return c.Media.LocalDir
	}
	dir, err := ConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "uploads")
}

// LogFile returns the TUI log file path.
func (c *Config) LogFile() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	dir, err := ConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "rigchat.log")
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads ~/.rigchat/config.toml, or the defaults when it does not exist.
// .env files are read first so they can feed the environment overrides.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		LoadDotEnv()
		cfg := Default()
		cfg.ApplyEnvOverrides()
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	LoadDotEnv()

	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadDotEnv reads ./.env and <config dir>/.env into the process
// environment. Variables that are already set win.
func LoadDotEnv() {
	paths := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ".env"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not read %s: %v\n", p, err)
		}
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# rigchat configuration file\n")
	buf.WriteString("# Generated by rigchat - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func oneOf(errs *ValidateErrors, field, value string, valid []string) {
	if !slices.Contains(valid, strings.ToLower(value)) {
		*errs = append(*errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid value '%s', must be one of: %s", value, strings.Join(valid, ", ")),
		})
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Gateway
	oneOf(&errs, "gateway.provider", c.Gateway.Provider, gateway.Providers)
	if c.Gateway.BaseURL != "" {
		if u, err := url.Parse(c.Gateway.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "gateway.base_url",
				Message: fmt.Sprintf("invalid URL '%s'", c.Gateway.BaseURL),
			})
		}
	}
	if c.Gateway.MaxTokens < 1 || c.Gateway.MaxTokens > 200000 {
		errs = append(errs, ValidationError{
			Field:   "gateway.max_tokens",
			Message: fmt.Sprintf("must be 1-200000, got %d", c.Gateway.MaxTokens),
		})
	}

	// Chat
	if c.Chat.HistoryLimit < 0 {
		errs = append(errs, ValidationError{Field: "chat.history_limit", Message: "must be non-negative"})
	}

	// Storage
	oneOf(&errs, "storage.backend", c.Storage.Backend, storage.Backends)

	// Media
	oneOf(&errs, "media.backend", c.Media.Backend, []string{media.BackendLocal, media.BackendMinIO})
	if strings.EqualFold(c.Media.Backend, media.BackendMinIO) {
		if c.Media.MinIO.Endpoint == "" {
			errs = append(errs, ValidationError{Field: "media.minio.endpoint", Message: "required for the minio backend"})
		}
		if c.Media.MinIO.Bucket == "" {
			errs = append(errs, ValidationError{Field: "media.minio.bucket", Message: "required for the minio backend"})
		}
	}

	// Auth
	oneOf(&errs, "auth.mode", c.Auth.Mode, auth.Modes)
	switch strings.ToLower(c.Auth.Mode) {
	case auth.ModeLocal:
		if c.Auth.Username == "" {
			errs = append(errs, ValidationError{Field: "auth.username", Message: "required for local auth"})
		}
		if c.Auth.PasswordHash == "" {
			errs = append(errs, ValidationError{Field: "auth.password_hash", Message: "required for local auth (see 'rigchat auth hash-password')"})
		}
	case auth.ModeToken:
		if c.Auth.TokenSecret == "" && c.Auth.JWKSURL == "" {
			errs = append(errs, ValidationError{Field: "auth.token_secret", Message: "token auth needs token_secret or jwks_url"})
		}
	}
	if c.Auth.SessionTTLHours < 1 {
		errs = append(errs, ValidationError{
			Field:   "auth.session_ttl_hours",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Auth.SessionTTLHours),
		})
	}
	if c.Auth.LoginAttemptsPerMin < 1 {
		errs = append(errs, ValidationError{
			Field:   "auth.login_attempts_per_min",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Auth.LoginAttemptsPerMin),
		})
	}

	// UI
	oneOf(&errs, "ui.theme", c.UI.Theme, []string{"dark", "light", "auto"})
	if c.UI.RenderFPS < 1 || c.UI.RenderFPS > 120 {
		errs = append(errs, ValidationError{
			Field:   "ui.render_fps",
			Message: fmt.Sprintf("must be 1-120, got %d", c.UI.RenderFPS),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values that a partial file leaves behind.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Gateway.Provider == "" {
		c.Gateway.Provider = defaults.Gateway.Provider
	}
	c.Gateway.Provider = strings.ToLower(c.Gateway.Provider)
	if c.Gateway.MaxTokens == 0 {
		c.Gateway.MaxTokens = defaults.Gateway.MaxTokens
	}
	if c.Chat.HistoryLimit == 0 {
		c.Chat.HistoryLimit = defaults.Chat.HistoryLimit
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if c.Media.Backend == "" {
		c.Media.Backend = defaults.Media.Backend
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = defaults.Auth.Mode
	}
	if c.Auth.SessionTTLHours == 0 {
		c.Auth.SessionTTLHours = defaults.Auth.SessionTTLHours
	}
	if c.Auth.LoginAttemptsPerMin == 0 {
		c.Auth.LoginAttemptsPerMin = defaults.Auth.LoginAttemptsPerMin
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.UI.RenderFPS == 0 {
		c.UI.RenderFPS = defaults.UI.RenderFPS
	}
	if c.UI.SidebarWidth == 0 {
		c.UI.SidebarWidth = defaults.UI.SidebarWidth
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//   - RIGCHAT_PROVIDER, RIGCHAT_MODEL, RIGCHAT_API_KEY, RIGCHAT_BASE_URL
//   - RIGCHAT_STORAGE_BACKEND, RIGCHAT_STORAGE_PATH
//   - RIGCHAT_MEDIA_BACKEND, RIGCHAT_MINIO_ENDPOINT, RIGCHAT_MINIO_ACCESS_KEY,
//     RIGCHAT_MINIO_SECRET_KEY, RIGCHAT_MINIO_BUCKET
//   - RIGCHAT_AUTH_MODE, RIGCHAT_TOKEN_SECRET
//   - RIGCHAT_THEME, RIGCHAT_DEBUG
//   - OPENAI_API_KEY, OPENROUTER_API_KEY, ANTHROPIC_API_KEY when no key is set
func (c *Config) ApplyEnvOverrides() {
	str := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	str("RIGCHAT_PROVIDER", &c.Gateway.Provider)
	str("RIGCHAT_MODEL", &c.Gateway.Model)
	str("RIGCHAT_API_KEY", &c.Gateway.APIKey)
	str("RIGCHAT_BASE_URL", &c.Gateway.BaseURL)
	str("RIGCHAT_STORAGE_BACKEND", &c.Storage.Backend)
	str("RIGCHAT_STORAGE_PATH", &c.Storage.Path)
	str("RIGCHAT_MEDIA_BACKEND", &c.Media.Backend)
	str("RIGCHAT_MINIO_ENDPOINT", &c.Media.MinIO.Endpoint)
	str("RIGCHAT_MINIO_ACCESS_KEY", &c.Media.MinIO.AccessKey)
	str("RIGCHAT_MINIO_SECRET_KEY", &c.Media.MinIO.SecretKey)
	str("RIGCHAT_MINIO_BUCKET", &c.Media.MinIO.Bucket)
	str("RIGCHAT_AUTH_MODE", &c.Auth.Mode)
	str("RIGCHAT_TOKEN_SECRET", &c.Auth.TokenSecret)
	str("RIGCHAT_THEME", &c.UI.Theme)

	if debug := os.Getenv("RIGCHAT_DEBUG"); debug != "" {
		c.Log.Debug = debug == "1" || strings.ToLower(debug) == "true"
	}

	if c.Gateway.APIKey == "" {
		switch strings.ToLower(c.Gateway.Provider) {
		case gateway.ProviderOpenAI:
			c.Gateway.APIKey = os.Getenv("OPENAI_API_KEY")
		case gateway.ProviderOpenRouter:
			c.Gateway.APIKey = os.Getenv("OPENROUTER_API_KEY")
		case gateway.ProviderAnthropic:
			c.Gateway.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "gateway.model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "ui.theme").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := strings.Split(f.Tag.Get("toml"), ",")[0]
			if name == "" || name == "-" {
				continue
			}
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, prefix+name+".")
				continue
			}
			keys = append(keys, prefix+name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// =============================================================================
// COPY / DISPLAY
// =============================================================================

// Clone creates a copy of the configuration. Config holds no reference
// types, so a value copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Redacted returns a copy with secrets masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	for _, s := range []*string{
		&safe.Gateway.APIKey,
		&safe.Media.MinIO.SecretKey,
		&safe.Auth.PasswordHash,
		&safe.Auth.TOTPSecret,
		&safe.Auth.TokenSecret,
	} {
		if *s != "" {
			*s = "[REDACTED]"
		}
	}
	return safe
}

// String renders the config as TOML with secrets redacted.
func (c *Config) String() string {
	var buf bytes.Buffer
	_ = toml.NewEncoder(&buf).Encode(c.Redacted())
	return buf.String()
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"os/user"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// ANONYMOUS
// =============================================================================

// Anonymous signs in as the current OS user without prompting.
type Anonymous struct{}

// Mode implements Authenticator.
func (Anonymous) Mode() string { return ModeNone }

// Prompts implements Authenticator.
func (Anonymous) Prompts() []Prompt { return nil }

// Authenticate implements Authenticator.
func (Anonymous) Authenticate(context.Context, Credentials) (*User, error) {
	u := &User{ID: "local", Name: "local user", Method: ModeNone}
	if osUser, err := user.Current(); err == nil {
		u.ID = osUser.Username
		u.Name = osUser.Username
		if osUser.Name != "" {
			u.Name = osUser.Name
		}
	}
	return u, nil
}

// =============================================================================
// LOCAL PASSWORD
// =============================================================================

// Local checks a single configured account.
type Local struct {
	Username     string
	PasswordHash string

	// TOTPSecret enables a second factor when set.
	TOTPSecret string
}

// NewLocal validates the configured account.
func NewLocal(username, passwordHash, totpSecret string) (*Local, error) {
	if username == "" || passwordHash == "" {
		return nil, fmt.Errorf("%w: local mode needs username and password_hash", ErrNotConfigured)
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("%w: password_hash is not a bcrypt hash", ErrNotConfigured)
	}
	return &Local{Username: username, PasswordHash: passwordHash, TOTPSecret: totpSecret}, nil
}

// Mode implements Authenticator.
func (l *Local) Mode() string { return ModeLocal }

// Prompts implements Authenticator.
func (l *Local) Prompts() []Prompt {
	prompts := []Prompt{
		{Field: FieldUsername, Label: "Username"},
		{Field: FieldPassword, Label: "Password", Secret: true},
	}
	if l.TOTPSecret != "" {
		prompts = append(prompts, Prompt{Field: FieldOTP, Label: "One-time code"})
	}
	return prompts
}

// Authenticate implements Authenticator.
func (l *Local) Authenticate(_ context.Context, creds Credentials) (*User, error) {
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(creds.Username)), []byte(l.Username)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passErr := bcrypt.CompareHashAndPassword([]byte(l.PasswordHash), []byte(creds.Password))
	if !userOK || passErr != nil {
		return nil, ErrInvalidCredentials
	}

	if l.TOTPSecret != "" {
		code := strings.TrimSpace(creds.OTP)
		if code == "" {
			return nil, ErrOTPRequired
		}
		if !totp.Validate(code, l.TOTPSecret) {
			return nil, ErrInvalidOTP
		}
	}
	return &User{ID: l.Username, Name: l.Username, Method: ModeLocal}, nil
}

// HashPassword returns a bcrypt hash suitable for the password_hash setting.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// GenerateTOTP creates a new TOTP secret for account.
func GenerateTOTP(issuer, account string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
	})
}

// =============================================================================
// JWT TOKEN
// =============================================================================

// TokenConfig configures the Token authenticator. Exactly one of Secret and
// JWKSURL must be set.
type TokenConfig struct {
	Secret   string
	JWKSURL  string
	Issuer   string
	Audience string
}

// Token accepts a JWT pasted at the sign-in screen.
type Token struct {
	cfg     TokenConfig
	keyFunc jwt.Keyfunc
	methods []string
	jwks    *keyfunc.JWKS
}

// NewToken builds a Token authenticator. With a JWKS URL the key set is
// fetched once now and refreshed hourly in the background until ctx ends.
func NewToken(ctx context.Context, cfg TokenConfig, logger *zap.Logger) (*Token, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case cfg.Secret != "" && cfg.JWKSURL != "":
		return nil, fmt.Errorf("%w: set either jwt_secret or jwks_url, not both", ErrNotConfigured)
	case cfg.Secret != "":
		secret := []byte(cfg.Secret)
		return &Token{
			cfg:     cfg,
			keyFunc: func(*jwt.Token) (interface{}, error) { return secret, nil },
			methods: []string{"HS256", "HS384", "HS512"},
		}, nil
	case cfg.JWKSURL != "":
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			Ctx:               ctx,
			RefreshInterval:   time.Hour,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				logger.Error("jwks refresh error", zap.Error(err))
			},
		})
		if err != nil {
			return nil, fmt.Errorf("fetch jwks: %w", err)
		}
		return &Token{
			cfg:     cfg,
			keyFunc: jwks.Keyfunc,
			methods: []string{"RS256", "RS384", "RS512", "ES256", "ES384"},
			jwks:    jwks,
		}, nil
	default:
		return nil, fmt.Errorf("%w: token mode needs jwt_secret or jwks_url", ErrNotConfigured)
	}
}

// Mode implements Authenticator.
func (t *Token) Mode() string { return ModeToken }

// Prompts implements Authenticator.
func (t *Token) Prompts() []Prompt {
	return []Prompt{{Field: FieldToken, Label: "Access token", Secret: true}}
}

// Authenticate implements Authenticator.
func (t *Token) Authenticate(_ context.Context, creds Credentials) (*User, error) {
	raw := strings.TrimSpace(creds.Token)
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if raw == "" {
		return nil, ErrInvalidCredentials
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods(t.methods), jwt.WithExpirationRequired()}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}
	if t.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(t.cfg.Audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, t.keyFunc, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidCredentials)
	}
	u := &User{ID: sub, Name: stringClaim(claims, "name", "preferred_username"), Email: stringClaim(claims, "email"), Method: ModeToken}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		u.ExpiresAt = exp.Time
	}
	return u, nil
}

// Close stops the background JWKS refresh.
func (t *Token) Close() {
	if t.jwks != nil {
		t.jwks.EndBackground()
	}
}

func stringClaim(claims jwt.MapClaims, names ...string) string {
	for _, n := range names {
		if v, ok := claims[n].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

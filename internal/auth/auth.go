// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"time"
)

// Modes accepted in configuration.
const (
	ModeNone  = "none"
	ModeLocal = "local"
	ModeToken = "token"
)

// Modes lists every supported mode.
var Modes = []string{ModeNone, ModeLocal, ModeToken}

var (
	// ErrInvalidCredentials is returned for a wrong username, password or token.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrOTPRequired is returned when a second factor is configured but missing.
	ErrOTPRequired = errors.New("one-time code required")

	// ErrInvalidOTP is returned for a wrong one-time code.
	ErrInvalidOTP = errors.New("invalid one-time code")

	// ErrTooManyAttempts is returned when logins are being throttled.
	ErrTooManyAttempts = errors.New("too many login attempts, try again shortly")

	// ErrNotConfigured is returned when an authenticator lacks required settings.
	ErrNotConfigured = errors.New("authentication not configured")
)

// User is the signed-in identity.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Method string `json:"method"`

	// ExpiresAt is when the session must be re-established. Zero means the
	// session does not expire on its own.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// DisplayName returns the name, falling back to the id.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

// Expired reports whether the session has lapsed at now.
func (u *User) Expired(now time.Time) bool {
	return !u.ExpiresAt.IsZero() && !now.Before(u.ExpiresAt)
}

// Credentials carries whatever the active mode asks for.
type Credentials struct {
	Username string
	Password string
	OTP      string
	Token    string
}

// Field identifies one credential input.
type Field string

const (
	FieldUsername Field = "username"
	FieldPassword Field = "password"
	FieldOTP      Field = "otp"
	FieldToken    Field = "token"
)

// Prompt describes one input the sign-in screen should show.
type Prompt struct {
	Field  Field
	Label  string
	Secret bool
}

// Set stores value in the credential slot for field.
func (c *Credentials) Set(field Field, value string) {
	switch field {
	case FieldUsername:
		c.Username = value
	case FieldPassword:
		c.Password = value
	case FieldOTP:
		c.OTP = value
	case FieldToken:
		c.Token = value
	}
}

// Authenticator verifies credentials.
type Authenticator interface {
	// Mode returns the configuration name of the authenticator.
	Mode() string

	// Prompts lists the inputs needed by Authenticate, in display order.
	// An empty list means no interaction is needed.
	Prompts() []Prompt

	// Authenticate returns the user for valid credentials.
	Authenticate(ctx context.Context, creds Credentials) (*User, error)
}

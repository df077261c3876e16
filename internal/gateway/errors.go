// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates the provider is missing an API key or model.
	ErrNotConfigured = errors.New("gateway not configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrInsufficientCredits indicates the account cannot pay for the request.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrContentPolicy indicates the provider refused the request on
	// content-safety grounds.
	ErrContentPolicy = errors.New("content policy refusal")

	// ErrUnknownProvider is returned by New for an unrecognised provider.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ProviderError is an unclassified error response from a provider.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s error (HTTP %d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

// contentPolicyKeywords are matched case-insensitively against provider
// error text.
var contentPolicyKeywords = []string{
	"content policy",
	"content_policy",
	"content filter",
	"content_filter",
	"safety",
	"inappropriate",
	"violat",
	"moderation",
}

// classifyStatus maps an HTTP status and message to a sentinel-wrapped error.
func classifyStatus(provider string, status int, message string) error {
	if status == http.StatusBadRequest && matchesContentPolicy(message) {
		return fmt.Errorf("%w: %s", ErrContentPolicy, message)
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthFailed, message)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", ErrInsufficientCredits, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrModelNotFound, message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, message)
	default:
		return &ProviderError{Provider: provider, Status: status, Message: message}
	}
}

// IsContentPolicy reports whether err is a content-safety refusal, either
// classified as ErrContentPolicy or carrying one of the known keywords.
func IsContentPolicy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContentPolicy) {
		return true
	}
	return matchesContentPolicy(err.Error())
}

func matchesContentPolicy(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range contentPolicyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is who wrote a message. Only the two chat roles are stored; system
// prompts live in the gateway config.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) String() string { return string(r) }

// DisplayName is the label shown above a message in the transcript.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// StoppedResponseText is the final content of an assistant response that was
// cancelled, or that a previous run left unfinished.
const StoppedResponseText = "Response generation was stopped."

// Message is one entry of a conversation transcript, stored as-is in the
// persisted document. Content only changes while IsStreaming is set or when
// the response is finalised.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Images holds retrievable URLs of attached images.
	Images []string `json:"images,omitempty"`

	// IsStreaming is true while the assistant response is still arriving.
	IsStreaming bool `json:"is_streaming,omitempty"`
}

// NewMessage stamps a message with a new id and the current time.
func NewMessage(role Role, content string, images []string) *Message {
	return &Message{
		ID:        NewMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Images:    cloneStrings(images),
	}
}

func NewMessageID() string {
	return "msg_" + uuid.NewString()
}

func (m *Message) HasImages() bool {
	return len(m.Images) > 0
}

// Preview collapses whitespace and cuts the content to maxLen runes for list
// views.
func (m *Message) Preview(maxLen int) string {
	content := strings.Join(strings.Fields(m.Content), " ")
	runes := []rune(content)
	if maxLen <= 0 || len(runes) <= maxLen {
		return content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// Clone copies the message and its image list.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.Images = cloneStrings(m.Images)
	return &c
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

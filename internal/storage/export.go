// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

// Export formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// ExportFormats lists every format Export understands.
var ExportFormats = []string{FormatMarkdown, FormatJSON, FormatYAML}

// exportedConversation is the JSON/YAML export shape.
type exportedConversation struct {
	ID        string            `json:"id" yaml:"id"`
	Title     string            `json:"title" yaml:"title"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" yaml:"updated_at"`
	Messages  []exportedMessage `json:"messages" yaml:"messages"`
}

type exportedMessage struct {
	Role      string    `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Images    []string  `json:"images,omitempty" yaml:"images,omitempty"`
}

// =============================================================================
// CONVERSATION EXPORT
// =============================================================================

// Export renders a conversation in the given format ("markdown", "md",
// "json" or "yaml"/"yml").
func Export(conv *model.Conversation, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatMarkdown, "md", "":
		return []byte(ExportMarkdown(conv)), nil
	case FormatJSON:
		return json.MarshalIndent(toExported(conv), "", "  ")
	case FormatYAML, "yml":
		return yaml.Marshal(toExported(conv))
	default:
		return nil, fmt.Errorf("unsupported export format %q (want one of %s)",
			format, strings.Join(ExportFormats, ", "))
	}
}

// ExportMarkdown renders a conversation as Markdown with role headings and
// image links.
func ExportMarkdown(conv *model.Conversation) string {
	var sb strings.Builder
	sb.WriteString("# " + conv.GetTitle() + "\n\n")
	sb.WriteString("Created: " + conv.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range conv.Messages {
		sb.WriteString("**" + msg.Role.DisplayName() + "** (" + msg.Timestamp.Format("15:04") + "):\n\n")
		for i, img := range msg.Images {
			sb.WriteString("![image " + strconv.Itoa(i+1) + "](" + img + ")\n\n")
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

func toExported(conv *model.Conversation) exportedConversation {
	out := exportedConversation{
		ID:        conv.ID,
		Title:     conv.GetTitle(),
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
		Messages:  make([]exportedMessage, 0, len(conv.Messages)),
	}
	for _, m := range conv.Messages {
		out.Messages = append(out.Messages, exportedMessage{
			Role:      m.Role.String(),
			Content:   m.Content,
			Timestamp: m.Timestamp,
			Images:    m.Images,
		})
	}
	return out
}

// =============================================================================
// CONVERSATION LIST FORMATTING
// =============================================================================

// FormatConversationList renders conversation metadata as a fixed-width table.
func FormatConversationList(metas []model.ConversationMeta) string {
	if len(metas) == 0 {
		return "No conversations found."
	}

	rule := strings.Repeat("-", 78) + "\n"
	var sb strings.Builder
	sb.WriteString(rule)
	sb.WriteString(util.PadRight("#", 4) + util.PadRight("Title", 36) + util.PadRight("Messages", 10) + "Updated\n")
	sb.WriteString(rule)
	for i, m := range metas {
		sb.WriteString(util.PadRight(strconv.Itoa(i+1), 4) +
			util.PadRight(util.SingleLine(m.Title), 35) + " " +
			util.PadRight(strconv.Itoa(m.MessageCount), 10) +
			m.UpdatedAt.Format("2006-01-02 15:04") + "\n")
	}
	return sb.String()
}

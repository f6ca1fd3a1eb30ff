// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports conversations to JSON. The output always holds the
// full transcript; IncludeTimestamps only controls per-message times.
type JSONExporter struct {
	options *Options
}

type jsonConversation struct {
	SessionID  string        `json:"session_id,omitempty"`
	Name       string        `json:"name,omitempty"`
	Backend    string        `json:"backend,omitempty"`
	ExportedAt time.Time     `json:"exported_at"`
	Messages   []jsonMessage `json:"messages"`
}

type jsonMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Error     bool       `json:"error,omitempty"`
}

// Export converts a conversation to indented JSON.
func (e *JSONExporter) Export(conv *Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}

	out := jsonConversation{
		ExportedAt: conv.ExportedAt,
		Messages:   make([]jsonMessage, 0, len(conv.Messages)),
	}
	if e.options.IncludeMetadata {
		out.SessionID = conv.Session.SessionID
		out.Name = conv.Session.Name
		out.Backend = conv.Backend
	}
	for _, msg := range conv.Messages {
		m := jsonMessage{
			Role:    msg.Role.String(),
			Content: msg.Content,
			Error:   msg.Synthetic,
		}
		if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
			ts := msg.CreatedAt
			m.CreatedAt = &ts
		}
		out.Messages = append(out.Messages, m)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}

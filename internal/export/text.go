// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
)

// TextExporter exports conversations as plain text.
type TextExporter struct {
	options *Options
}

// Export converts a conversation to plain text.
func (e *TextExporter) Export(conv *Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}

	var sb strings.Builder
	if e.options.IncludeMetadata {
		fmt.Fprintf(&sb, "%s (%d messages)\n\n", conv.Title(), len(conv.Messages))
	}
	for _, msg := range conv.Messages {
		if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "[%s] ", formatTimestamp(msg.CreatedAt))
		}
		fmt.Fprintf(&sb, "%s:\n%s\n\n", roleLabel(msg), strings.TrimSpace(msg.Content))
	}
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for text.
func (e *TextExporter) FileExtension() string {
	return ".txt"
}

// MimeType returns the MIME type for text.
func (e *TextExporter) MimeType() string {
	return "text/plain"
}

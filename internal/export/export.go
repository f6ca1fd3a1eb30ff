// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/lgchat/internal/model"
	"github.com/jeranaias/lgchat/internal/util"
)

// Format names accepted by ForFormat.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatText     = "text"
)

// ErrUnknownFormat is returned for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown export format")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Conversation is one session's transcript as exported.
type Conversation struct {
	Session    model.SessionHandle
	Backend    string
	Messages   []model.Message
	ExportedAt time.Time
}

// Title returns the session's display name.
func (c *Conversation) Title() string {
	if c.Session.IsZero() {
		return "conversation"
	}
	return c.Session.DisplayName()
}

// Exporter converts a conversation to one format.
type Exporter interface {
	Export(conv *Conversation) ([]byte, error)

	// FileExtension returns the file extension, including the dot.
	FileExtension() string

	// MimeType returns the MIME type of the output.
	MimeType() string
}

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds session details (front matter in markdown).
	IncludeMetadata bool

	// IncludeTimestamps adds per-message timestamps.
	IncludeTimestamps bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// ForFormat returns the exporter for a format name or alias ("md", "txt").
func ForFormat(format string, opts *Options) (Exporter, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatMarkdown, "md":
		return &MarkdownExporter{options: opts}, nil
	case FormatJSON:
		return &JSONExporter{options: opts}, nil
	case FormatText, "txt":
		return &TextExporter{options: opts}, nil
	default:
		return nil, fmt.Errorf("%w %q (use markdown, json or text)", ErrUnknownFormat, format)
	}
}

// FormatForPath guesses the format from a file extension. It returns ""
// when the extension is not recognised.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".json":
		return FormatJSON
	case ".txt":
		return FormatText
	}
	return ""
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile writes conv to path. When path is a directory, a file name is
// generated from the session name and the export time.
//
// SECURITY: transcripts may hold private conversations, so files are
// written owner-only.
func ExportToFile(conv *Conversation, exporter Exporter, path string) (string, error) {
	if conv == nil {
		return "", errors.New("conversation is nil")
	}
	if conv.ExportedAt.IsZero() {
		conv.ExportedAt = time.Now()
	}

	content, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if path == "" || strings.HasSuffix(path, string(filepath.Separator)) || isDir(path) {
		path = filepath.Join(path, Filename(conv, exporter))
	}
	if err := util.AtomicWriteFile(path, content, 0600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// Filename returns "conversation_<name>_<time><ext>".
func Filename(conv *Conversation, exporter Exporter) string {
	ts := conv.ExportedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(conv.Title()),
		ts.Format("20060102_150405"),
		exporter.FileExtension(),
	)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	s = util.TruncateRunes(s, 50)

	replacer := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'"':  '-',
		'<':  '-',
		'>':  '-',
		'|':  '-',
		' ':  '_',
		'\t': '_',
		'\n': '_',
		'\r': '_',
	}

	result := make([]rune, 0, len(s))
	for _, r := range s {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "conversation"
	}
	return string(result)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// roleLabel returns the heading for a message.
func roleLabel(msg model.Message) string {
	label := msg.Role.DisplayName()
	if msg.Synthetic {
		label += " (error)"
	}
	return label
}

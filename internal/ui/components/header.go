// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/lgchat/internal/ui/styles"
	"github.com/jeranaias/lgchat/internal/util"
)

// =============================================================================
// HEADER COMPONENT
// =============================================================================

// Header is the title bar shown above every view.
type Header struct {
	Title   string // Main title (default: "lgchat")
	Backend string // Backend address
	Email   string // Signed-in user, empty when signed out
	Session string // Current session name, empty outside the chat view
	Width   int
	theme   *styles.Theme
}

// NewHeader creates a Header with default values.
func NewHeader(theme *styles.Theme) *Header {
	return &Header{
		Title: "lgchat",
		Width: 80,
		theme: theme,
	}
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// View renders the header on one line. Details are dropped from the right
// when they do not fit.
func (h *Header) View() string {
	if h.Width <= 0 {
		return ""
	}

	title := h.theme.HeaderTitle.Render(h.Title)
	var details []string
	if h.Session != "" {
		details = append(details, h.Session)
	}
	if h.Email != "" {
		details = append(details, h.Email)
	}
	if h.Backend != "" {
		details = append(details, h.Backend)
	}

	// Header padding takes two columns.
	avail := h.Width - 2 - lipgloss.Width(title)
	sep := h.theme.Muted.Render(" | ")
	line := title
	for _, d := range details {
		d = util.TruncateWidth(d, 40)
		cost := lipgloss.Width(sep) + util.StringWidth(d)
		if cost > avail {
			break
		}
		line += sep + h.theme.HeaderDetail.Render(d)
		avail -= cost
	}

	if pad := h.Width - 2 - lipgloss.Width(line); pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	return h.theme.Header.Render(line)
}

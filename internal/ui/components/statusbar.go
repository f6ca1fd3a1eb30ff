// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/lgchat/internal/ui/styles"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the run state shown in the status bar.
type Status int

const (
	StatusReady Status = iota
	StatusWaiting
	StatusStreaming
	StatusError
	StatusOffline // signed out or no session
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusWaiting:
		return "Waiting..."
	case StatusStreaming:
		return "Streaming..."
	case StatusError:
		return "Error"
	case StatusOffline:
		return "Signed out"
	default:
		return "Unknown"
	}
}

// Icon returns a shape for the status.
// ACCESSIBILITY: Uses distinct shapes alongside colors for colorblind users
func (s Status) Icon() string {
	switch s {
	case StatusReady:
		return styles.StatusIndicators.Success
	case StatusWaiting, StatusStreaming:
		return styles.StatusIndicators.Active
	case StatusError:
		return styles.StatusIndicators.Error
	default:
		return "-"
	}
}

// Shortcut is one key hint.
type Shortcut struct {
	Key  string
	Desc string
}

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// StatusBar is the bottom bar: status on the left, an optional message, and
// shortcuts on the right.
type StatusBar struct {
	Status    Status
	Message   string
	Shortcuts []Shortcut
	Width     int
	theme     *styles.Theme
}

// NewStatusBar creates a StatusBar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Status: StatusReady,
		Width:  80,
		theme:  theme,
	}
}

// SetWidth updates the status bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

func (s *StatusBar) statusStyle() lipgloss.Style {
	switch s.Status {
	case StatusReady:
		return s.theme.StateIdle
	case StatusError:
		return s.theme.StateFailed
	case StatusOffline:
		return s.theme.Muted
	default:
		return s.theme.StateBusy
	}
}

// View renders the status bar. Shortcuts are dropped from the right when the
// bar is too narrow.
func (s *StatusBar) View() string {
	if s.Width <= 0 {
		return ""
	}

	left := s.statusStyle().Render(s.Status.Icon() + " " + s.Status.String())
	if s.Message != "" {
		left += "  " + s.theme.Muted.Render(s.Message)
	}

	// Status bar padding takes two columns.
	avail := s.Width - 2 - lipgloss.Width(left) - 2
	var hints []string
	for _, sc := range s.Shortcuts {
		hint := s.theme.ShortcutKey.Render(sc.Key) + " " + s.theme.ShortcutDesc.Render(sc.Desc)
		cost := lipgloss.Width(hint)
		if len(hints) > 0 {
			cost += 2
		}
		if cost > avail {
			break
		}
		hints = append(hints, hint)
		avail -= cost
	}
	right := strings.Join(hints, "  ")

	gap := s.Width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return s.theme.StatusBar.Render(left + strings.Repeat(" ", gap) + right)
}

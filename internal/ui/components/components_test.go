// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lgchat/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewTheme(styles.ThemeDark)
}

// =============================================================================
// HEADER TESTS
// =============================================================================

func TestHeaderView(t *testing.T) {
	h := NewHeader(testTheme())
	h.SetWidth(100)
	h.Backend = "http://localhost:8000"
	h.Email = "ada@example.com"
	h.Session = "Research"

	view := h.View()
	for _, want := range []string{"lgchat", "Research", "ada@example.com", "localhost:8000"} {
		if !strings.Contains(view, want) {
			t.Errorf("header %q missing %q", view, want)
		}
	}
	if w := lipgloss.Width(view); w != 100 {
		t.Errorf("header width = %d, want 100", w)
	}
}

func TestHeaderDropsDetailsWhenNarrow(t *testing.T) {
	h := NewHeader(testTheme())
	h.SetWidth(30)
	h.Email = "ada@example.com"
	h.Backend = "http://a-very-long-backend-name.example.com:8000"

	view := h.View()
	if !strings.Contains(view, "lgchat") {
		t.Errorf("header %q lost its title", view)
	}
	if strings.Contains(view, "a-very-long-backend") {
		t.Errorf("header %q should drop the backend", view)
	}
	if w := lipgloss.Width(view); w > 30 {
		t.Errorf("header width = %d, want <= 30", w)
	}
}

func TestHeaderZeroWidth(t *testing.T) {
	h := NewHeader(testTheme())
	h.SetWidth(0)
	if got := h.View(); got != "" {
		t.Errorf("View() = %q, want empty", got)
	}
}

// =============================================================================
// STATUS BAR TESTS
// =============================================================================

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusReady, "Ready"},
		{StatusWaiting, "Waiting..."},
		{StatusStreaming, "Streaming..."},
		{StatusError, "Error"},
		{StatusOffline, "Signed out"},
		{Status(99), "Unknown"},
	}
	for _, tc := range tests {
		if got := tc.status.String(); got != tc.want {
			t.Errorf("Status(%d).String() = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestStatusBarView(t *testing.T) {
	s := NewStatusBar(testTheme())
	s.SetWidth(80)
	s.Status = StatusStreaming
	s.Message = "Copied"
	s.Shortcuts = []Shortcut{{"Esc", "cancel"}, {"C-y", "copy"}}

	view := s.View()
	for _, want := range []string{"Streaming...", "Copied", "Esc", "cancel", "copy"} {
		if !strings.Contains(view, want) {
			t.Errorf("status bar %q missing %q", view, want)
		}
	}
	if w := lipgloss.Width(view); w != 80 {
		t.Errorf("status bar width = %d, want 80", w)
	}
}

func TestStatusBarDropsShortcutsWhenNarrow(t *testing.T) {
	s := NewStatusBar(testTheme())
	s.SetWidth(24)
	s.Shortcuts = []Shortcut{{"Enter", "send"}, {"Esc", "cancel"}, {"C-c", "quit"}}

	view := s.View()
	if !strings.Contains(view, "Ready") {
		t.Errorf("status bar %q lost its status", view)
	}
	if strings.Contains(view, "quit") {
		t.Errorf("status bar %q should drop trailing shortcuts", view)
	}
}

// =============================================================================
// SPINNER TESTS
// =============================================================================

func TestSpinnerLifecycle(t *testing.T) {
	s := NewSpinner(testTheme(), "Waiting for reply")
	if s.IsActive() || s.View() != "" {
		t.Fatal("new spinner should be stopped and render nothing")
	}

	if cmd := s.Start(); cmd == nil {
		t.Fatal("Start() should return a tick command")
	}
	if cmd := s.Start(); cmd != nil {
		t.Error("second Start() should not start another tick loop")
	}
	if !strings.Contains(s.View(), "Waiting for reply") {
		t.Errorf("View() = %q, want the message", s.View())
	}

	s.Stop()
	if s.IsActive() || s.Elapsed() != 0 {
		t.Error("stopped spinner should be inactive with no elapsed time")
	}
	if _, cmd := s.Update(tea.KeyMsg{}); cmd != nil {
		t.Error("stopped spinner should not schedule ticks")
	}
}

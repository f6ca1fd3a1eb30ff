// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// THEME CREATION TESTS
// =============================================================================

func TestNewTheme_ExplicitVariant(t *testing.T) {
	dark := NewTheme(ThemeDark)
	if !dark.IsDark {
		t.Error("dark theme should be dark")
	}
	if !lipgloss.HasDarkBackground() {
		t.Error("dark theme should switch lipgloss to dark colors")
	}

	light := NewTheme("LIGHT")
	if light.IsDark {
		t.Error("light theme should not be dark")
	}
	if lipgloss.HasDarkBackground() {
		t.Error("light theme should switch lipgloss to light colors")
	}
}

func TestThemeInitStyles(t *testing.T) {
	theme := NewTheme(ThemeDark)

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Header", theme.Header},
		{"UserText", theme.UserText},
		{"AssistantText", theme.AssistantText},
		{"ErrorText", theme.ErrorText},
		{"InputContainer", theme.InputContainer},
		{"StatusBar", theme.StatusBar},
		{"FormBox", theme.FormBox},
		{"SessionItemSelected", theme.SessionItemSelected},
		{"ErrorBanner", theme.ErrorBanner},
	}

	for _, s := range styles {
		if !strings.Contains(s.style.Render("test"), "test") {
			t.Errorf("%s style should render its content", s.name)
		}
	}
}

func TestThemeSetSize(t *testing.T) {
	theme := NewTheme(ThemeLight)
	theme.SetSize(120, 40)
	if theme.Width != 120 || theme.Height != 40 {
		t.Errorf("SetSize() = %dx%d, want 120x40", theme.Width, theme.Height)
	}
}

func TestGlamourStyle(t *testing.T) {
	tests := []struct {
		profile termenv.Profile
		dark    bool
		want    string
	}{
		{termenv.Ascii, true, "notty"},
		{termenv.TrueColor, true, "dark"},
		{termenv.ANSI256, false, "light"},
	}
	for _, tt := range tests {
		theme := &Theme{IsDark: tt.dark, ColorProfile: tt.profile}
		if got := theme.GlamourStyle(); got != tt.want {
			t.Errorf("GlamourStyle(%v, dark=%v) = %q, want %q", tt.profile, tt.dark, got, tt.want)
		}
	}
}

// =============================================================================
// STATUS HELPERS
// =============================================================================

func TestRenderHelpers_IncludeIndicators(t *testing.T) {
	tests := []struct {
		got       string
		indicator string
	}{
		{RenderSuccess("saved"), StatusIndicators.Success},
		{RenderError("failed"), StatusIndicators.Error},
		{RenderWarning("careful"), StatusIndicators.Warning},
		{RenderInfo("note"), StatusIndicators.Info},
	}
	for _, tt := range tests {
		if !strings.Contains(tt.got, tt.indicator) {
			t.Errorf("%q should contain indicator %q", tt.got, tt.indicator)
		}
	}
}

// =============================================================================
// MARKDOWN
// =============================================================================

func TestMarkdownRenderer(t *testing.T) {
	r := NewMarkdownRenderer("notty")

	out := r.Render("# Title\n\nSome **bold** text.", 60)
	if !strings.Contains(out, "Title") || !strings.Contains(out, "bold") {
		t.Errorf("Render() lost content: %q", out)
	}
	if strings.HasPrefix(out, "\n") || strings.HasSuffix(out, "\n") {
		t.Errorf("Render() should trim surrounding newlines: %q", out)
	}

	if got := r.Render("   ", 60); got != "   " {
		t.Errorf("blank content should pass through, got %q", got)
	}

	var nilRenderer *MarkdownRenderer
	if got := nilRenderer.Render("plain", 60); got != "plain" {
		t.Errorf("nil renderer should pass through, got %q", got)
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for lgchat.

All colors use Lip Gloss AdaptiveColor. NewTheme picks the light or dark
variant from the configured theme, detecting the terminal background through
termenv when the theme is "auto".

# Color System (colors.go)

  - Purple - assistant messages and selections
  - Cyan - brand color, info, user highlights
  - Emerald - success, idle state
  - Amber - warnings, streaming state
  - Rose - errors and failed turns

Status helpers (RenderSuccess, RenderError, RenderWarning, RenderInfo) pair
every color with an ASCII indicator such as "[OK]" or "[X]".

# Theme (theme.go)

Theme groups the lipgloss styles used by the auth form, the session list and
the chat view.

# Markdown (markdown.go)

MarkdownRenderer wraps glamour and caches one renderer per wrap width.
*/
package styles

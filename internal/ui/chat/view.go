// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/lgchat/internal/api"
	chatsession "github.com/jeranaias/lgchat/internal/chat"
	"github.com/jeranaias/lgchat/internal/model"
	"github.com/jeranaias/lgchat/internal/ui/components"
	"github.com/jeranaias/lgchat/internal/util"
)

// View renders the chat view.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.header.View(),
		m.viewport.View(),
		m.indicatorView(),
		m.theme.InputContainer.Width(m.width).Render(m.input.View()),
		m.statusView(),
	)
}

// indicatorView is the single line between transcript and input: the
// failure banner, the spinner or the latest notice.
func (m Model) indicatorView() string {
	var line string
	switch {
	case m.state == chatsession.Failed:
		text := "[X] " + api.Detail(m.err) + " (press any key)"
		line = m.theme.ErrorBanner.Render(util.TruncateWidth(text, m.width-2))
	case m.state == chatsession.AwaitingResponse:
		line = m.spinner.View()
	case m.notice != "":
		line = m.theme.InfoBanner.Render(util.TruncateWidth(m.notice, m.width-2))
	case m.state == chatsession.Streaming:
		line = m.theme.Muted.Render("streaming...")
	}
	return lipgloss.NewStyle().Width(m.width).MaxHeight(indicatorHeight).Render(line)
}

func (m Model) statusView() string {
	var bindings []key.Binding
	switch {
	case m.state.Running():
		m.statusBar.Status = components.StatusStreaming
		if m.state == chatsession.AwaitingResponse {
			m.statusBar.Status = components.StatusWaiting
		}
		bindings = m.keys.StreamingHelp()
	case m.state == chatsession.Failed:
		m.statusBar.Status = components.StatusError
		bindings = m.keys.ShortHelp()
	case m.focus == focusTranscript:
		m.statusBar.Status = components.StatusReady
		bindings = m.keys.TranscriptHelp()
	default:
		m.statusBar.Status = components.StatusReady
		bindings = m.keys.ShortHelp()
	}

	m.statusBar.Message = fmt.Sprintf("%d messages", len(m.transcript))
	m.statusBar.Shortcuts = m.statusBar.Shortcuts[:0]
	for _, b := range bindings {
		h := b.Help()
		m.statusBar.Shortcuts = append(m.statusBar.Shortcuts, components.Shortcut{Key: h.Key, Desc: h.Desc})
	}
	return m.statusBar.View()
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

func (m *Model) contentWidth() int {
	w := m.viewport.Width - 2
	if w < 10 {
		w = 10
	}
	return w
}

func (m *Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return m.theme.Muted.Render("No messages yet. Type below and press Enter.")
	}

	width := m.contentWidth()
	if width != m.cacheWidth {
		m.cache = make(map[int]renderedMessage)
		m.cacheWidth = width
	}

	var b strings.Builder
	last := len(m.transcript) - 1
	for i, msg := range m.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		live := i == last && m.state.Running()
		b.WriteString(m.renderMessage(i, msg, live, width))
	}
	return b.String()
}

// renderMessage renders one message. The message being streamed is drawn
// as plain text and only rendered as markdown once it is sealed.
func (m *Model) renderMessage(i int, msg model.Message, live bool, width int) string {
	if !live {
		if c, ok := m.cache[i]; ok && c.content == msg.Content && c.synthetic == msg.Synthetic {
			return c.out
		}
	}

	var label, body string
	switch {
	case msg.Synthetic:
		label = m.theme.StateFailed.Render(msg.Role.DisplayName())
		body = m.theme.ErrorText.Width(width - 1).Render(msg.Content)

	case msg.Role == model.RoleUser:
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
		body = m.theme.UserText.Width(width - 1).Render(msg.Content)

	case msg.Role == model.RoleAssistant:
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
		switch {
		case live && msg.Content == "":
			body = m.theme.AssistantText.Render(m.theme.Muted.Render("..."))
		case !live && m.markdown != nil:
			body = m.theme.AssistantText.Render(m.markdown.Render(msg.Content, width-2))
		default:
			body = m.theme.AssistantText.Width(width - 1).Render(msg.Content)
		}

	default:
		label = m.theme.SystemText.Render(msg.Role.DisplayName())
		body = m.theme.SystemText.Width(width).Render(msg.Content)
	}

	out := label + "\n" + body
	if !live {
		m.cache[i] = renderedMessage{content: msg.Content, synthetic: msg.Synthetic, out: out}
	}
	return out
}

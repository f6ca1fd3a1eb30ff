// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lgchat/internal/account"
	"github.com/jeranaias/lgchat/internal/api"
	"github.com/jeranaias/lgchat/internal/model"
	"github.com/jeranaias/lgchat/internal/ui/components"
	"github.com/jeranaias/lgchat/internal/ui/styles"
	"github.com/jeranaias/lgchat/internal/util"
)

// =============================================================================
// MESSAGES
// =============================================================================

type sessionsLoadedMsg struct {
	items []model.SessionHandle
	err   error
}

type sessionCreatedMsg struct {
	handle model.SessionHandle
	err    error
}

type sessionRenamedMsg struct {
	handle model.SessionHandle
	err    error
}

type sessionDeletedMsg struct {
	id  string
	err error
}

// openSessionMsg asks the app to open a chat on handle.
type openSessionMsg struct {
	handle model.SessionHandle
}

// logoutMsg asks the app to sign out.
type logoutMsg struct{}

// signedOutMsg reports that the backend rejected the user token.
type signedOutMsg struct {
	reason string
}

const expiredNotice = "Your sign-in has expired. Please sign in again."

// =============================================================================
// SESSIONS VIEW
// =============================================================================

// sessionsView lists the user's sessions.
type sessionsView struct {
	ctx     context.Context
	theme   *styles.Theme
	account *account.Account

	header    *components.Header
	statusBar *components.StatusBar

	items         []model.SessionHandle
	cursor        int
	loading       bool
	renaming      bool
	rename        textinput.Model
	confirmDelete bool
	err           string
	notice        string

	width  int
	height int
}

func newSessionsView(ctx context.Context, theme *styles.Theme, acct *account.Account) sessionsView {
	rename := textinput.New()
	rename.Placeholder = "session name"
	rename.CharLimit = 100
	rename.Width = 40

	header := components.NewHeader(theme)
	header.Backend = acct.Client().BaseURL()

	return sessionsView{
		ctx:       ctx,
		theme:     theme,
		account:   acct,
		header:    header,
		statusBar: components.NewStatusBar(theme),
		rename:    rename,
	}
}

func (v *sessionsView) setSize(width, height int) {
	v.width, v.height = width, height
	v.header.SetWidth(width)
	v.statusBar.SetWidth(width)
}

func (v *sessionsView) selected() (model.SessionHandle, bool) {
	if v.cursor < 0 || v.cursor >= len(v.items) {
		return model.SessionHandle{}, false
	}
	return v.items[v.cursor], true
}

// load fetches the session list.
func (v *sessionsView) load() tea.Cmd {
	v.loading = true
	v.err = ""
	ctx, acct := v.ctx, v.account
	return func() tea.Msg {
		items, err := acct.Sessions(ctx)
		return sessionsLoadedMsg{items: items, err: err}
	}
}

// fail records err, or reports a sign-out when the token was rejected.
func (v *sessionsView) fail(prefix string, err error) tea.Cmd {
	if errors.Is(err, api.ErrUnauthorized) {
		return func() tea.Msg { return signedOutMsg{reason: expiredNotice} }
	}
	v.err = prefix + ": " + api.Detail(err)
	v.notice = ""
	return nil
}

func (v sessionsView) update(msg tea.Msg) (sessionsView, tea.Cmd) {
	switch msg := msg.(type) {
	case sessionsLoadedMsg:
		v.loading = false
		if msg.err != nil {
			return v, v.fail("Could not load sessions", msg.err)
		}
		v.items = msg.items
		v.cursor = 0
		if last, ok := v.account.LastSession(); ok {
			for i, h := range v.items {
				if h.SessionID == last.SessionID {
					v.cursor = i
					break
				}
			}
		}
		return v, nil

	case sessionCreatedMsg:
		if msg.err != nil {
			return v, v.fail("Could not create session", msg.err)
		}
		v.items = append(v.items, msg.handle)
		v.cursor = len(v.items) - 1
		return v, openSession(msg.handle)

	case sessionRenamedMsg:
		if msg.err != nil {
			return v, v.fail("Could not rename session", msg.err)
		}
		for i, h := range v.items {
			if h.SessionID == msg.handle.SessionID {
				v.items[i] = msg.handle
			}
		}
		v.notice = "Renamed to " + msg.handle.DisplayName()
		return v, nil

	case sessionDeletedMsg:
		if msg.err != nil {
			return v, v.fail("Could not delete session", msg.err)
		}
		kept := v.items[:0]
		for _, h := range v.items {
			if h.SessionID != msg.id {
				kept = append(kept, h)
			}
		}
		v.items = kept
		if v.cursor >= len(v.items) {
			v.cursor = len(v.items) - 1
		}
		if v.cursor < 0 {
			v.cursor = 0
		}
		v.notice = "Session deleted"
		return v, nil

	case tea.KeyMsg:
		return v.handleKey(msg)
	}

	if v.renaming {
		var cmd tea.Cmd
		v.rename, cmd = v.rename.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v sessionsView) handleKey(msg tea.KeyMsg) (sessionsView, tea.Cmd) {
	if v.renaming {
		switch msg.String() {
		case "enter":
			v.renaming = false
			v.rename.Blur()
			h, ok := v.selected()
			if !ok {
				return v, nil
			}
			ctx, acct, name := v.ctx, v.account, v.rename.Value()
			return v, func() tea.Msg {
				renamed, err := acct.RenameSession(ctx, h, name)
				return sessionRenamedMsg{handle: renamed, err: err}
			}
		case "esc":
			v.renaming = false
			v.rename.Blur()
			return v, nil
		}
		var cmd tea.Cmd
		v.rename, cmd = v.rename.Update(msg)
		return v, cmd
	}

	if v.confirmDelete {
		v.confirmDelete = false
		h, ok := v.selected()
		if msg.String() != "y" || !ok {
			v.notice = "Delete cancelled"
			return v, nil
		}
		ctx, acct := v.ctx, v.account
		return v, func() tea.Msg {
			return sessionDeletedMsg{id: h.SessionID, err: acct.DeleteSession(ctx, h)}
		}
	}

	v.err = ""
	v.notice = ""
	switch msg.String() {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(v.items)-1 {
			v.cursor++
		}
	case "enter":
		if h, ok := v.selected(); ok {
			return v, openSession(h)
		}
	case "n":
		ctx, acct := v.ctx, v.account
		v.notice = "Creating session..."
		return v, func() tea.Msg {
			h, err := acct.NewSession(ctx, "")
			return sessionCreatedMsg{handle: h, err: err}
		}
	case "r":
		if h, ok := v.selected(); ok {
			v.renaming = true
			v.rename.SetValue(h.Name)
			v.rename.CursorEnd()
			return v, v.rename.Focus()
		}
	case "d":
		if _, ok := v.selected(); ok {
			v.confirmDelete = true
		}
	case "R", "ctrl+r":
		return v, v.load()
	case "L":
		return v, func() tea.Msg { return logoutMsg{} }
	case "q":
		return v, tea.Quit
	}
	return v, nil
}

func openSession(h model.SessionHandle) tea.Cmd {
	return func() tea.Msg { return openSessionMsg{handle: h} }
}

// =============================================================================
// RENDERING
// =============================================================================

func (v sessionsView) view() string {
	t := v.theme
	v.header.Email = v.account.Email()

	var b strings.Builder
	b.WriteString(t.FormTitle.Render("Sessions"))
	b.WriteString("\n")

	switch {
	case v.loading && len(v.items) == 0:
		b.WriteString(t.Muted.Render("Loading sessions..."))
	case len(v.items) == 0:
		b.WriteString(t.Muted.Render("No sessions yet. Press n to start one."))
	default:
		last, _ := v.account.LastSession()
		for i, h := range v.items {
			name := util.TruncateWidth(h.DisplayName(), 40)
			line := fmt.Sprintf("%-40s %s", name, t.SessionID.Render(h.ShortID()))
			if h.SessionID == last.SessionID {
				line += t.Muted.Render("  (last)")
			}
			if i == v.cursor {
				b.WriteString(t.SessionItemSelected.Render(line))
			} else {
				b.WriteString(t.SessionItem.Render(line))
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")

	switch {
	case v.renaming:
		b.WriteString(t.FormLabel.Render("New name: ") + v.rename.View())
	case v.confirmDelete:
		h, _ := v.selected()
		b.WriteString(t.ErrorBanner.Render(fmt.Sprintf("Delete %q? (y/N)", h.DisplayName())))
	case v.err != "":
		b.WriteString(t.ErrorBanner.Render(styles.StatusIndicators.Error + " " + v.err))
	case v.notice != "":
		b.WriteString(t.InfoBanner.Render(v.notice))
	}

	v.statusBar.Status = components.StatusReady
	if v.loading {
		v.statusBar.Status = components.StatusWaiting
	}
	v.statusBar.Message = fmt.Sprintf("%d sessions", len(v.items))
	v.statusBar.Shortcuts = []components.Shortcut{
		{Key: "enter", Desc: "open"},
		{Key: "n", Desc: "new"},
		{Key: "r", Desc: "rename"},
		{Key: "d", Desc: "delete"},
		{Key: "R", Desc: "reload"},
		{Key: "L", Desc: "sign out"},
		{Key: "q", Desc: "quit"},
	}

	body := b.String()
	if v.height > 0 {
		// Pad so the status bar sits on the last line.
		if pad := v.height - 2 - strings.Count(body, "\n") - 1; pad > 0 {
			body += strings.Repeat("\n", pad)
		}
	}
	return v.header.View() + "\n" + body + "\n" + v.statusBar.View()
}

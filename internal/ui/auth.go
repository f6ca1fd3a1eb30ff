// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/lgchat/internal/account"
	"github.com/jeranaias/lgchat/internal/api"
	"github.com/jeranaias/lgchat/internal/ui/styles"
)

// authMode selects what the form does on submit.
type authMode int

const (
	modeLogin authMode = iota
	modeRegister
)

func (m authMode) String() string {
	if m == modeRegister {
		return "Create account"
	}
	return "Sign in"
}

const (
	fieldEmail = iota
	fieldPassword
)

// authResultMsg reports the outcome of a login or registration.
type authResultMsg struct {
	err error
}

// =============================================================================
// AUTH VIEW
// =============================================================================

// authView is the sign-in form shown while no user token is held.
type authView struct {
	ctx     context.Context
	theme   *styles.Theme
	account *account.Account

	inputs [2]textinput.Model
	focus  int
	mode   authMode
	busy   bool
	err    string
	notice string

	width  int
	height int
}

func newAuthView(ctx context.Context, theme *styles.Theme, acct *account.Account) authView {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 254
	email.Width = 32
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'
	password.CharLimit = 128
	password.Width = 32

	return authView{
		ctx:     ctx,
		theme:   theme,
		account: acct,
		inputs:  [2]textinput.Model{email, password},
	}
}

// reset prepares the form for a new sign-in, keeping the email.
func (v *authView) reset(notice string) {
	v.busy = false
	v.err = ""
	v.notice = notice
	v.inputs[fieldPassword].Reset()
	if v.inputs[fieldEmail].Value() == "" {
		v.setFocus(fieldEmail)
	} else {
		v.setFocus(fieldPassword)
	}
}

func (v *authView) setFocus(field int) {
	v.focus = field
	for i := range v.inputs {
		if i == field {
			v.inputs[i].Focus()
		} else {
			v.inputs[i].Blur()
		}
	}
}

func (v *authView) setSize(width, height int) {
	v.width, v.height = width, height
}

func (v authView) update(msg tea.Msg) (authView, tea.Cmd) {
	switch msg := msg.(type) {
	case authResultMsg:
		v.busy = false
		if msg.err != nil {
			v.err = api.Detail(msg.err)
			v.notice = ""
			v.inputs[fieldPassword].Reset()
			v.setFocus(fieldPassword)
		}
		return v, nil

	case tea.KeyMsg:
		if v.busy {
			return v, nil
		}
		switch msg.String() {
		case "tab", "shift+tab", "up", "down":
			v.setFocus(1 - v.focus)
			return v, nil
		case "ctrl+r":
			if v.mode == modeLogin {
				v.mode = modeRegister
			} else {
				v.mode = modeLogin
			}
			v.err = ""
			return v, nil
		case "enter":
			if v.focus == fieldEmail {
				v.setFocus(fieldPassword)
				return v, nil
			}
			return v, v.submit()
		}
	}

	var cmd tea.Cmd
	v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
	return v, cmd
}

// submit signs in or registers on a command goroutine.
func (v *authView) submit() tea.Cmd {
	email := strings.TrimSpace(v.inputs[fieldEmail].Value())
	password := v.inputs[fieldPassword].Value()
	if email == "" || password == "" {
		v.err = "Email and password are required"
		return nil
	}

	v.busy = true
	v.err = ""
	v.notice = ""
	ctx, acct, mode := v.ctx, v.account, v.mode
	return func() tea.Msg {
		var err error
		if mode == modeRegister {
			err = acct.Register(ctx, email, password)
		} else {
			err = acct.Login(ctx, email, password)
		}
		return authResultMsg{err: err}
	}
}

func (v authView) view() string {
	t := v.theme
	var b strings.Builder

	b.WriteString(t.FormTitle.Render("lgchat - " + v.mode.String()))
	b.WriteString("\n")

	labels := [2]string{"Email", "Password"}
	for i, input := range v.inputs {
		label := t.FormLabel.Render(labels[i])
		if i == v.focus {
			label = t.FormFocused.Render(labels[i])
		}
		b.WriteString(label + "\n" + input.View() + "\n\n")
	}

	switch {
	case v.busy:
		b.WriteString(t.Muted.Render("Contacting " + v.account.Client().BaseURL() + "..."))
	case v.err != "":
		b.WriteString(t.ErrorBanner.Render(styles.StatusIndicators.Error + " " + v.err))
	case v.notice != "":
		b.WriteString(t.InfoBanner.Render(v.notice))
	}
	b.WriteString("\n\n")

	other := modeRegister
	if v.mode == modeRegister {
		other = modeLogin
	}
	help := []string{
		t.ShortcutKey.Render("enter") + " " + t.ShortcutDesc.Render("submit"),
		t.ShortcutKey.Render("tab") + " " + t.ShortcutDesc.Render("next field"),
		t.ShortcutKey.Render("C-r") + " " + t.ShortcutDesc.Render(strings.ToLower(other.String())),
		t.ShortcutKey.Render("C-c") + " " + t.ShortcutDesc.Render("quit"),
	}
	b.WriteString(strings.Join(help, "  "))

	box := t.FormBox.Render(b.String())
	if v.width == 0 || v.height == 0 {
		return box
	}
	return lipgloss.Place(v.width, v.height, lipgloss.Center, lipgloss.Center, box)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/lgchat/internal/api"
	chatsession "github.com/jeranaias/lgchat/internal/chat"
	"github.com/jeranaias/lgchat/internal/model"
	"github.com/jeranaias/lgchat/internal/ui/components"
	"github.com/jeranaias/lgchat/internal/ui/styles"
)

// Layout constants.
const (
	headerHeight    = 1
	statusHeight    = 1
	indicatorHeight = 1
	inputHeight     = 3

	// SECURITY: bound what a paste can push into a single request.
	maxInputChars = 32000
)

// Options configures the chat view.
type Options struct {
	// Context bounds every turn. Cancelling it cancels the running turn.
	Context context.Context

	// Markdown renders finished assistant replies with glamour.
	Markdown bool

	// Email and Backend are shown in the header.
	Email   string
	Backend string

	// Clear deletes the session history on the backend. Ctrl+L is disabled
	// when nil.
	Clear func(ctx context.Context, h model.SessionHandle) error

	// Copy writes text to the clipboard. Defaults to the system clipboard.
	Copy func(text string) error
}

// BackMsg asks the parent to return to the session list. A running turn
// has already been cancelled.
type BackMsg struct{}

type clearedMsg struct {
	err error
}

type copiedMsg struct {
	chars int
	err   error
}

type focusArea int

const (
	focusInput focusArea = iota
	focusTranscript
)

// renderedMessage caches the rendering of a sealed message.
type renderedMessage struct {
	content   string
	synthetic bool
	out       string
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat view.
type Model struct {
	ctx     context.Context
	session *chatsession.Session
	feed    *Feed
	theme   *styles.Theme
	keys    KeyMap
	opts    Options

	markdown   *styles.MarkdownRenderer
	cache      map[int]renderedMessage
	cacheWidth int

	viewport  viewport.Model
	input     textarea.Model
	spinner   components.Spinner
	header    *components.Header
	statusBar *components.StatusBar

	// Last snapshot applied from the feed.
	state      chatsession.RunState
	transcript []model.Message
	err        error

	notice  string
	focus   focusArea
	ticking bool

	width  int
	height int
	ready  bool
}

// New creates the chat view for s. The session must have been created with
// feed.Observe as an observer.
func New(theme *styles.Theme, s *chatsession.Session, feed *Feed, opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}
	keys := DefaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = maxInputChars
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.Focus()

	m := Model{
		ctx:       opts.Context,
		session:   s,
		feed:      feed,
		theme:     theme,
		keys:      keys,
		opts:      opts,
		cache:     make(map[int]renderedMessage),
		viewport:  viewport.New(0, 0),
		input:     ta,
		spinner:   components.NewSpinner(theme, "Waiting for reply"),
		header:    components.NewHeader(theme),
		statusBar: components.NewStatusBar(theme),
	}
	if opts.Markdown {
		m.markdown = styles.NewMarkdownRenderer(theme.GlamourStyle())
	}
	m.header.Email = opts.Email
	m.header.Backend = opts.Backend
	m.header.Session = s.Handle().DisplayName()

	m.apply(chatsession.Update{
		State:      s.State(),
		Transcript: s.Transcript(),
		Err:        s.Err(),
	})
	return m
}

// Session returns the chat session shown by the view.
func (m Model) Session() *chatsession.Session {
	return m.session
}

// Close cancels a running turn and stops the feed.
func (m Model) Close() {
	if m.session.State().Running() {
		_ = m.session.Cancel()
	}
	m.feed.Close()
}

// Init starts listening to the feed.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.feed.Wait())
}

// SetSize lays the view out for a width x height terminal.
func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
	m.ready = true
	m.header.SetWidth(width)
	m.statusBar.SetWidth(width)
	m.input.SetWidth(width)

	vpHeight := height - headerHeight - statusHeight - indicatorHeight - (inputHeight + 1)
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight
	m.refresh()
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case updateMsg:
		if msg.feed != m.feed {
			return m, nil
		}
		return m, m.sync()

	case feedClosedMsg:
		return m, nil

	case StreamTickMsg:
		return m, m.tick()

	case clearedMsg:
		m.handleCleared(msg.err)
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.notice = "Copy failed: " + msg.err.Error()
		} else {
			m.notice = fmt.Sprintf("Copied reply (%d chars)", msg.chars)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// sync applies the latest session state and re-arms the feed.
func (m *Model) sync() tea.Cmd {
	cmds := []tea.Cmd{m.feed.Wait()}
	u, ok := m.feed.Latest()
	if !ok {
		return cmds[0]
	}
	m.apply(u)

	if u.State == chatsession.AwaitingResponse {
		cmds = append(cmds, m.spinner.Start())
	} else {
		m.spinner.Stop()
	}
	if u.State.Running() && !m.ticking {
		m.ticking = true
		cmds = append(cmds, streamTickCmd(m.feed.Buffer().Interval()))
	}
	return tea.Batch(cmds...)
}

// tick redraws buffered deltas. Ticking stops with the turn.
//
// PERFORMANCE: the transcript is re-rendered once per frame, not per delta.
func (m *Model) tick() tea.Cmd {
	if _, ok := m.feed.Buffer().Flush(); ok {
		if u, ok := m.feed.Latest(); ok {
			m.apply(u)
		}
	}
	if !m.state.Running() {
		m.ticking = false
		return nil
	}
	return streamTickCmd(m.feed.Buffer().Interval())
}

func (m *Model) apply(u chatsession.Update) {
	m.state = u.State
	m.err = u.Err
	m.transcript = u.Transcript
	m.refresh()
}

// refresh re-renders the transcript, following the tail when the view was
// already at the bottom.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Any key dismisses a failed turn.
	if m.state == chatsession.Failed {
		if err := m.session.Acknowledge(); err == nil {
			m.notice = ""
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		if m.state.Running() {
			if err := m.session.Cancel(); err == nil {
				m.notice = "Reply stopped"
			}
			return m, nil
		}
		m.setFocus(focusInput)
		return m, nil

	case key.Matches(msg, m.keys.Sessions):
		if m.state.Running() {
			_ = m.session.Cancel()
		}
		return m, func() tea.Msg { return BackMsg{} }

	case key.Matches(msg, m.keys.Copy):
		return m, m.copyLastReply()

	case key.Matches(msg, m.keys.Clear):
		return m, m.clearHistory()

	case key.Matches(msg, m.keys.Focus):
		if m.focus == focusInput {
			m.setFocus(focusTranscript)
		} else {
			m.setFocus(focusInput)
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil
	}

	if m.focus == focusTranscript {
		switch {
		case key.Matches(msg, m.keys.Top):
			m.viewport.GotoTop()
			return m, nil
		case key.Matches(msg, m.keys.Bottom):
			m.viewport.GotoBottom()
			return m, nil
		case msg.String() == "y":
			return m, m.copyLastReply()
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if key.Matches(msg, m.keys.Submit) {
		m.submit()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) setFocus(f focusArea) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

// submit starts a turn with the composed text. The session reports the new
// state through the feed.
func (m *Model) submit() {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	err := m.session.Submit(m.ctx, text)
	switch {
	case errors.Is(err, chatsession.ErrBusy):
		m.notice = "A reply is still streaming, press esc to stop it"
		return
	case err != nil:
		m.notice = err.Error()
		return
	}
	m.notice = ""
	m.input.Reset()
	m.viewport.GotoBottom()
}

func (m *Model) copyLastReply() tea.Cmd {
	reply, ok := m.session.LastAssistant()
	if !ok {
		m.notice = "No reply to copy"
		return nil
	}
	write := m.opts.Copy
	return func() tea.Msg {
		return copiedMsg{
			chars: utf8.RuneCountInString(reply.Content),
			err:   write(reply.Content),
		}
	}
}

func (m *Model) clearHistory() tea.Cmd {
	if m.opts.Clear == nil {
		return nil
	}
	if m.state.Running() {
		m.notice = "Stop the reply before clearing the history"
		return nil
	}
	ctx, h, clearFn := m.ctx, m.session.Handle(), m.opts.Clear
	m.notice = "Clearing history..."
	return func() tea.Msg {
		return clearedMsg{err: clearFn(ctx, h)}
	}
}

func (m *Model) handleCleared(err error) {
	if err != nil {
		m.notice = "Clear failed: " + api.Detail(err)
		return
	}
	if err := m.session.Reset(nil); err != nil {
		m.notice = "Clear failed: " + err.Error()
		return
	}
	m.notice = "History cleared"
}

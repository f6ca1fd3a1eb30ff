// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/lgchat/internal/account"
	"github.com/jeranaias/lgchat/internal/api"
	chatsession "github.com/jeranaias/lgchat/internal/chat"
	"github.com/jeranaias/lgchat/internal/config"
	"github.com/jeranaias/lgchat/internal/model"
	"github.com/jeranaias/lgchat/internal/ui/chat"
	"github.com/jeranaias/lgchat/internal/ui/styles"
)

// Options configures the terminal UI.
type Options struct {
	Account *account.Account
	UI      config.UIConfig
	Logger  zerolog.Logger

	// StoreChanges signals that the token store was changed, possibly by
	// another lgchat process. Nil disables watching.
	StoreChanges <-chan struct{}
}

// Run runs the terminal UI until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := New(ctx, opts)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),       // Use alternate screen buffer
		tea.WithMouseCellMotion(), // Enable mouse support
		tea.WithContext(ctx),
	)

	m.log.Info().Str("state", m.state.String()).Msg("tui started")
	_, err := p.Run()
	m.closeChat()
	m.log.Info().Msg("tui stopped")

	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// =============================================================================
// APPLICATION MODEL
// =============================================================================

// State represents the current screen.
type State int

const (
	StateAuth     State = iota // Sign-in form
	StateSessions              // Session list
	StateChat                  // Chat view
)

func (s State) String() string {
	switch s {
	case StateAuth:
		return "auth"
	case StateSessions:
		return "sessions"
	case StateChat:
		return "chat"
	default:
		return "unknown"
	}
}

type storeChangedMsg struct{}

type chatOpenedMsg struct {
	handle  model.SessionHandle
	session *chatsession.Session
	feed    *chat.Feed
	err     error
}

// Model is the main Bubble Tea model for the application.
type Model struct {
	ctx     context.Context
	opts    Options
	account *account.Account
	theme   *styles.Theme
	log     zerolog.Logger

	// State
	state  State
	width  int
	height int

	auth     authView
	sessions sessionsView

	// Chat view, valid while hasChat is set
	chat    chat.Model
	hasChat bool
	opening bool
}

// New creates the application model. The first screen is the session list
// when the account is signed in, else the sign-in form.
func New(ctx context.Context, opts Options) *Model {
	theme := styles.NewTheme(opts.UI.Theme)
	m := &Model{
		ctx:      ctx,
		opts:     opts,
		account:  opts.Account,
		theme:    theme,
		log:      opts.Logger.With().Str("component", "tui").Logger(),
		auth:     newAuthView(ctx, theme, opts.Account),
		sessions: newSessionsView(ctx, theme, opts.Account),
	}
	if opts.Account.SignedIn() {
		m.state = StateSessions
	}
	return m
}

// Init loads the first screen and starts watching the token store.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.watchStore()}
	if m.state == StateSessions {
		cmds = append(cmds, m.sessions.load())
	} else {
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.auth.setSize(msg.Width, msg.Height)
		m.sessions.setSize(msg.Width, msg.Height)
		if m.hasChat {
			m.chat.SetSize(msg.Width, msg.Height)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.closeChat()
			return m, tea.Quit
		}

	case storeChangedMsg:
		return m, m.handleStoreChange()

	case authResultMsg:
		m.auth, cmd = m.auth.update(msg)
		if msg.err != nil {
			m.log.Debug().Err(msg.err).Msg("sign-in failed")
			return m, cmd
		}
		return m, m.showSessions("Signed in as " + m.account.Email())

	case openSessionMsg:
		return m, m.openSession(msg.handle)

	case chatOpenedMsg:
		return m, m.handleChatOpened(msg)

	case chat.BackMsg:
		return m, m.showSessions("")

	case logoutMsg:
		if err := m.account.Logout(); err != nil {
			m.log.Warn().Err(err).Msg("logout")
		}
		return m, m.showAuth("Signed out")

	case signedOutMsg:
		return m, m.showAuth(msg.reason)
	}

	switch m.state {
	case StateAuth:
		m.auth, cmd = m.auth.update(msg)
	case StateSessions:
		m.sessions, cmd = m.sessions.update(msg)
	case StateChat:
		if m.hasChat {
			var next tea.Model
			next, cmd = m.chat.Update(msg)
			m.chat = next.(chat.Model)
		}
	}
	return m, cmd
}

// View renders the current screen.
func (m *Model) View() string {
	switch m.state {
	case StateChat:
		if m.hasChat {
			return m.chat.View()
		}
		return m.sessions.view()
	case StateSessions:
		return m.sessions.view()
	default:
		return m.auth.view()
	}
}

// =============================================================================
// SCREEN CHANGES
// =============================================================================

func (m *Model) showSessions(notice string) tea.Cmd {
	m.closeChat()
	m.state = StateSessions
	cmd := m.sessions.load()
	m.sessions.notice = notice
	return cmd
}

func (m *Model) showAuth(notice string) tea.Cmd {
	m.closeChat()
	m.state = StateAuth
	m.auth.reset(notice)
	return textinput.Blink
}

// closeChat cancels a running turn and drops the chat view.
func (m *Model) closeChat() {
	if !m.hasChat {
		return
	}
	m.chat.Close()
	m.hasChat = false
	m.chat = chat.Model{}
}

// openSession fetches the history of h and builds a chat session on it.
func (m *Model) openSession(h model.SessionHandle) tea.Cmd {
	if m.opening {
		return nil
	}
	m.opening = true
	m.sessions.notice = "Opening " + h.DisplayName() + "..."

	feed := chat.NewFeed(m.opts.UI.MaxFPS)
	ctx, acct, log := m.ctx, m.account, m.log
	return func() tea.Msg {
		s, err := acct.Open(ctx, h, chatsession.WithObserver(feed.Observe))
		if err == nil {
			if rerr := acct.RememberSession(h); rerr != nil {
				log.Warn().Err(rerr).Msg("could not remember session")
			}
		}
		return chatOpenedMsg{handle: h, session: s, feed: feed, err: err}
	}
}

func (m *Model) handleChatOpened(msg chatOpenedMsg) tea.Cmd {
	m.opening = false
	if msg.err != nil {
		msg.feed.Close()
		m.log.Warn().Err(msg.err).Str("session_id", msg.handle.ShortID()).Msg("could not open session")
		if errors.Is(msg.err, api.ErrUnauthorized) && !m.account.SignedIn() {
			return m.showAuth(expiredNotice)
		}
		m.sessions.err = "Could not open session: " + api.Detail(msg.err)
		m.sessions.notice = ""
		return nil
	}
	if m.state != StateSessions {
		// The user moved on while the history was loading.
		msg.feed.Close()
		return nil
	}

	m.closeChat()
	m.chat = chat.New(m.theme, msg.session, msg.feed, chat.Options{
		Context:  m.ctx,
		Markdown: m.opts.UI.Markdown,
		Email:    m.account.Email(),
		Backend:  m.account.Client().BaseURL(),
		Clear:    m.account.ClearHistory,
	})
	m.chat.SetSize(m.width, m.height)
	m.hasChat = true
	m.state = StateChat
	m.sessions.notice = ""
	m.log.Debug().Str("session_id", msg.handle.ShortID()).Msg("chat opened")
	return m.chat.Init()
}

// =============================================================================
// TOKEN STORE WATCH
// =============================================================================

// watchStore waits for the next store change.
func (m *Model) watchStore() tea.Cmd {
	changes := m.opts.StoreChanges
	if changes == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			return storeChangedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

// handleStoreChange follows sign-ins and sign-outs made by other processes.
func (m *Model) handleStoreChange() tea.Cmd {
	next := m.watchStore()
	email := m.account.Email()
	if _, err := m.account.Restore(); err != nil {
		m.log.Warn().Err(err).Msg("reload token store")
		return next
	}

	switch signedIn := m.account.SignedIn(); {
	case !signedIn && m.state != StateAuth:
		m.log.Info().Msg("signed out by another process")
		return tea.Batch(next, m.showAuth("Signed out in another lgchat process"))
	case signedIn && (m.state == StateAuth || m.account.Email() != email):
		m.log.Info().Str("email", m.account.Email()).Msg("signed in by another process")
		return tea.Batch(next, m.showSessions("Signed in as "+m.account.Email()))
	}
	return next
}

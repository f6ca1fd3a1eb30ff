// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command for lgchat.
//
// Command: chat
// Short:   Start an interactive chat in the terminal
//
// Examples:
//   lgchat chat                  Resume the last used session
//   lgchat chat --session 3f2a   Resume a specific session
//   lgchat chat --new            Start a new session
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /clear              Delete this session's history
//   /history            Show the conversation so far
//   /session            Show the current session
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel the reply being streamed (exit at the prompt)
//   Ctrl+D              Exit chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/lgchat/internal/api"
	"github.com/jeranaias/lgchat/internal/chat"
	"github.com/jeranaias/lgchat/internal/config"
	"github.com/jeranaias/lgchat/internal/model"
	"github.com/jeranaias/lgchat/internal/ui/styles"
)

const chatPrompt = "you> "

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader reads REPL input. *historyLiner is the terminal implementation.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// historyLiner provides line editing and persistent input history.
type historyLiner struct {
	*liner.State
	historyFile string
}

func newHistoryLiner() (lineReader, error) {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	path, err := config.HistoryPath()
	if err != nil {
		path = ""
	}
	h := &historyLiner{State: line, historyFile: path}
	if path != "" {
		if f, err := os.Open(path); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	return h, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (h *historyLiner) Close() error {
	if h.historyFile != "" {
		if f, err := os.OpenFile(h.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = h.WriteHistory(f)
			f.Close()
		}
	}
	return h.State.Close()
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

func newChatCommand(a *app) *cobra.Command {
	var (
		sessionID string
		fresh     bool
		name      string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat in the terminal",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			ctx := cmd.Context()

			var (
				h   model.SessionHandle
				err error
			)
			if fresh {
				if h, err = a.account.NewSession(ctx, name); err == nil {
					err = a.account.RememberSession(h)
				}
			} else {
				h, err = a.account.Resume(ctx, sessionID)
			}
			if err != nil {
				return err
			}

			p := a.newTurnPrinter()
			s, err := a.account.Open(ctx, h, chat.WithObserver(p.observe))
			if err != nil {
				return err
			}
			return a.repl(ctx, s, p)
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id or prefix (default: last used)")
	cmd.Flags().BoolVar(&fresh, "new", false, "start a new session")
	cmd.Flags().StringVarP(&name, "name", "n", "", "name for the new session (with --new)")
	return cmd
}

// repl reads messages until the user quits or input ends.
func (a *app) repl(ctx context.Context, s *chat.Session, p *turnPrinter) error {
	rl, err := a.newLineReader()
	if err != nil {
		return err
	}
	defer rl.Close()

	a.printWelcome(s)

	for {
		input, err := rl.Prompt(chatPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(a.out)
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		rl.AppendHistory(input)

		if strings.HasPrefix(input, "/") || strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			quit, err := a.slashCommand(ctx, s, input)
			if err != nil {
				fmt.Fprintln(a.errOut, styles.RenderError(errorMessage(err)))
			}
			if quit {
				return nil
			}
			continue
		}

		if err := a.runTurn(ctx, s, p, input); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(a.errOut, styles.RenderError(api.Detail(err)))
		}
	}
}

// slashCommand runs a REPL command. It reports whether the REPL should exit.
func (a *app) slashCommand(ctx context.Context, s *chat.Session, input string) (bool, error) {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/q", "/exit", "exit", "quit":
		return true, nil

	case "/help", "/h", "/?":
		a.printChatHelp()

	case "/clear":
		if err := a.account.ClearHistory(ctx, s.Handle()); err != nil {
			return false, err
		}
		if err := s.Reset(nil); err != nil {
			return false, err
		}
		fmt.Fprintln(a.out, SuccessStyle.Render("History cleared."))

	case "/history":
		a.printTranscript(s.Transcript())

	case "/session":
		h := s.Handle()
		fmt.Fprintln(a.out, field("Session", h.DisplayName()))
		fmt.Fprintln(a.out, field("ID", h.SessionID))
		fmt.Fprintln(a.out, field("Messages", fmt.Sprint(len(s.Transcript()))))

	default:
		return false, &usageError{fmt.Errorf("unknown command %s (try /help)", fields[0])}
	}
	return false, nil
}

func (a *app) printWelcome(s *chat.Session) {
	h := s.Handle()
	fmt.Fprintln(a.out, TitleStyle.Render("lgchat")+" "+DimStyle.Render(a.account.Client().BaseURL()))
	fmt.Fprintf(a.out, "%s %s, %d messages. Type /help for commands.\n",
		DimStyle.Render("Session"), h.DisplayName(), len(s.Transcript()))
}

func (a *app) printChatHelp() {
	commands := [][2]string{
		{"/help", "Show this help"},
		{"/clear", "Delete this session's history"},
		{"/history", "Show the conversation so far"},
		{"/session", "Show the current session"},
		{"/quit", "Exit chat"},
		{"Ctrl+C", "Cancel the reply being streamed"},
	}
	for _, c := range commands {
		fmt.Fprintln(a.out, field(c[0], c[1]))
	}
}

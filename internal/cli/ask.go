// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot chat commands for lgchat.
//
// Commands:
//   ask MESSAGE...   Send one message and stream the reply
//   history          Print or export the current session's messages
//   clear            Delete the current session's messages
//
// All three use the last used session unless --session is given; ask
// creates a session when there is none. "ask -" reads the message from stdin.
//
// Ctrl+C while a reply is streaming cancels it; the partial reply is kept.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lgchat/internal/chat"
	"github.com/jeranaias/lgchat/internal/export"
	"github.com/jeranaias/lgchat/internal/model"
	"github.com/jeranaias/lgchat/internal/ui/styles"
)

func newAskCommand(a *app) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "ask MESSAGE...",
		Short: "Send one message and stream the reply",
		Example: `  lgchat ask "Summarize our last conversation"
  git diff | lgchat ask -`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			text := strings.Join(args, " ")
			if text == "-" {
				data, err := io.ReadAll(a.in)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}

			ctx := cmd.Context()
			h, err := a.account.Resume(ctx, sessionID)
			if err != nil {
				return err
			}
			p := a.newTurnPrinter()
			s, err := a.account.Open(ctx, h, chat.WithObserver(p.observe))
			if err != nil {
				return err
			}
			return a.runTurn(ctx, s, p, text)
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id or prefix (default: last used)")
	return cmd
}

func newHistoryCommand(a *app) *cobra.Command {
	var (
		sessionID string
		format    string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print or export the current session's messages",
		Example: `  lgchat history
  lgchat history --format json | jq '.messages[].content'
  lgchat history -s 3f2a -o bread.md`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			if format == "" && output != "" {
				format = export.FormatForPath(output)
				if format == "" {
					format = export.FormatMarkdown
				}
			}
			var exporter export.Exporter
			if format != "" {
				e, err := export.ForFormat(format, export.DefaultOptions())
				if err != nil {
					return &usageError{err}
				}
				exporter = e
			}

			ctx := cmd.Context()
			h, err := a.account.Resume(ctx, sessionID)
			if err != nil {
				return err
			}
			messages, err := a.account.History(ctx, h)
			if err != nil {
				return err
			}
			if exporter == nil {
				a.printTranscript(messages)
				return nil
			}

			conv := &export.Conversation{
				Session:    h,
				Backend:    a.account.Client().BaseURL(),
				Messages:   messages,
				ExportedAt: time.Now(),
			}
			if output == "" {
				data, err := exporter.Export(conv)
				if err != nil {
					return err
				}
				_, err = a.out.Write(data)
				return err
			}
			path, err := export.ExportToFile(conv, exporter, output)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render(fmt.Sprintf("Exported %d messages to %s", len(messages), path)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id or prefix (default: last used)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "export format: markdown, json or text")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to FILE (or a generated name in DIR)")
	return cmd
}

func newClearCommand(a *app) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the current session's messages",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			ctx := cmd.Context()
			h, err := a.account.Resume(ctx, sessionID)
			if err != nil {
				return err
			}
			if err := a.account.ClearHistory(ctx, h); err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("Cleared history of "+h.DisplayName()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id or prefix (default: last used)")
	return cmd
}

// =============================================================================
// TURN OUTPUT
// =============================================================================

// turnPrinter writes the reply of the current turn. Deltas are written as
// they arrive unless the reply is rendered as markdown at the end.
type turnPrinter struct {
	out      io.Writer
	live     bool
	markdown *styles.MarkdownRenderer
	width    int

	mu    sync.Mutex
	reply strings.Builder
}

func (a *app) newTurnPrinter() *turnPrinter {
	p := &turnPrinter{out: a.out, live: true}
	if a.isTerminal() && a.cfg.UI.Markdown {
		p.live = false
		p.markdown = styles.NewMarkdownRenderer(styles.NewTheme(a.cfg.UI.Theme).GlamourStyle())
		p.width = GetTerminalWidth()
	}
	return p
}

// observe is registered as a chat.Observer. It only writes.
func (p *turnPrinter) observe(u chat.Update) {
	if u.Delta == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reply.WriteString(u.Delta)
	if p.live {
		fmt.Fprint(p.out, u.Delta)
	}
}

func (p *turnPrinter) begin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reply.Reset()
}

// finish terminates the reply line, rendering it first in markdown mode.
func (p *turnPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reply.Len() == 0 {
		return
	}
	if !p.live {
		fmt.Fprint(p.out, p.markdown.Render(p.reply.String(), p.width))
	}
	fmt.Fprintln(p.out)
}

// runTurn submits text and waits for the reply. Ctrl+C cancels the turn;
// a cancelled turn is not an error. A failed turn is acknowledged and its
// error returned.
func (a *app) runTurn(ctx context.Context, s *chat.Session, p *turnPrinter, text string) error {
	p.begin()
	if err := s.Submit(ctx, text); err != nil {
		return err
	}

	sigs, stop := a.interrupts()
	defer stop()

	finished := make(chan struct{})
	go func() {
		_ = s.Wait(context.WithoutCancel(ctx))
		close(finished)
	}()

	cancelled := false
wait:
	for {
		select {
		case <-finished:
			break wait
		case <-sigs:
			if s.Cancel() == nil {
				cancelled = true
			}
		}
	}

	p.finish()
	switch {
	case ctx.Err() != nil:
		fmt.Fprintln(a.errOut, WarningStyle.Render("[Cancelled]"))
		return ctx.Err()
	case cancelled:
		fmt.Fprintln(a.errOut, WarningStyle.Render("[Cancelled]"))
		return nil
	case s.State() == chat.Failed:
		err := s.Err()
		_ = s.Acknowledge()
		return err
	}
	return nil
}

// printTranscript writes messages with role labels.
func (a *app) printTranscript(messages []model.Message) {
	if len(messages) == 0 {
		fmt.Fprintln(a.out, DimStyle.Render("No messages."))
		return
	}
	for i, m := range messages {
		if i > 0 {
			fmt.Fprintln(a.out)
		}
		label := m.Role.DisplayName()
		switch m.Role {
		case model.RoleUser:
			label = userLabelStyle.Render(label)
		case model.RoleAssistant:
			label = assistantLabelStyle.Render(label)
		default:
			label = DimStyle.Render(label)
		}
		fmt.Fprintln(a.out, label)
		fmt.Fprintln(a.out, strings.ReplaceAll(m.Content, "\r\n", "\n"))
	}
}

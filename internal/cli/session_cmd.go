// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// session_cmd.go - Chat session management for lgchat.
//
// Commands:
//   sessions list            List sessions (* marks the last used one)
//   sessions new [--name N]  Create a session and make it current
//   sessions rename ID NAME  Rename a session
//   sessions rm ID           Delete a session and its history
//   sessions use ID          Make a session current
//
// ID may be any unique prefix of a session id.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lgchat/internal/model"
	"github.com/jeranaias/lgchat/internal/util"
)

func newSessionsCommand(a *app) *cobra.Command {
	list := newSessionsListCommand(a)
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage chat sessions",
		Args:    usageArgs(cobra.NoArgs),
		RunE:    list.RunE,
	}
	cmd.AddCommand(
		list,
		newSessionsNewCommand(a),
		newSessionsRenameCommand(a),
		newSessionsRemoveCommand(a),
		newSessionsUseCommand(a),
	)
	return cmd
}

func newSessionsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			sessions, err := a.account.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(a.out, DimStyle.Render("No sessions. Create one with 'lgchat sessions new'."))
				return nil
			}

			last, _ := a.account.LastSession()
			for _, h := range sessions {
				fmt.Fprintln(a.out, sessionLine(h, h.SessionID == last.SessionID))
			}
			return nil
		},
	}
}

func sessionLine(h model.SessionHandle, current bool) string {
	marker := "  "
	if current {
		marker = SuccessStyle.Render("* ")
	}
	name := h.Name
	if name == "" {
		name = DimStyle.Render("(unnamed)")
	}
	return marker + DimStyle.Render(h.SessionID) + "  " + util.TruncateWidth(name, 48)
}

func newSessionsNewCommand(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a session and make it current",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			h, err := a.account.NewSession(cmd.Context(), name)
			if err != nil {
				return err
			}
			if err := a.account.RememberSession(h); err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("Created session "+h.DisplayName()))
			fmt.Fprintln(a.out, field("ID", h.SessionID))
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "session name")
	return cmd
}

func newSessionsRenameCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID NAME...",
		Short: "Rename a session",
		Args:  usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			ctx := cmd.Context()
			h, err := a.account.FindSession(ctx, args[0])
			if err != nil {
				return err
			}
			renamed, err := a.account.RenameSession(ctx, h, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("Renamed "+h.ShortID()+" to "+renamed.Name))
			return nil
		},
	}
}

func newSessionsRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a session and its history",
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			ctx := cmd.Context()
			h, err := a.account.FindSession(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.account.DeleteSession(ctx, h); err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("Deleted session "+h.DisplayName()))
			return nil
		},
	}
}

func newSessionsUseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "use ID",
		Short: "Make a session current",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			h, err := a.account.FindSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.account.RememberSession(h); err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("Using session "+h.DisplayName()))
			return nil
		},
	}
}

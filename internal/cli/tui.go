// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - Terminal UI and version commands for lgchat.
//
// Command: tui (also the default when no command is given)
// Short:   Open the full-screen terminal UI
//
// Command: version
// Short:   Show version information
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lgchat/internal/tokenstore"
	"github.com/jeranaias/lgchat/internal/ui"
)

func newTUICommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "tui",
		Short:       "Open the full-screen terminal UI",
		Args:        usageArgs(cobra.NoArgs),
		Annotations: map[string]string{setupAnnotation: setupTerminal},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context(), a)
		},
	}
}

// runTUI starts the bubbletea program. Sign-ins and sign-outs made by other
// lgchat processes are picked up by watching the token store.
func runTUI(ctx context.Context, a *app) error {
	if err := RequiresTTY("open the terminal UI"); err != nil {
		return &usageError{fmt.Errorf("%w (use 'lgchat chat' or 'lgchat ask')", err)}
	}

	opts := ui.Options{
		Account: a.account,
		UI:      a.cfg.UI,
		Logger:  a.logger.Logger,
	}

	if !a.ephemeral && a.cfg.Storage.Watch && tokenstore.Watchable(a.cfg.Storage.Backend) {
		if w, err := a.watchStore(); err != nil {
			a.logger.Warn().Err(err).Msg("token store changes will not be noticed")
		} else {
			defer w.Close()
			opts.StoreChanges = w.Changes()
		}
	}
	return ui.Run(ctx, opts)
}

func (a *app) watchStore() (*tokenstore.Watcher, error) {
	path, err := a.cfg.TokenPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	return tokenstore.NewWatcher(path, tokenstore.DefaultDebounce, a.logger.Logger)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Args:        usageArgs(cobra.NoArgs),
		Annotations: map[string]string{setupAnnotation: setupNone},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render("lgchat")+" "+Version)
			fmt.Fprintln(out, field("Commit", GitCommit))
			fmt.Fprintln(out, field("Built", BuildDate))
			fmt.Fprintln(out, field("Go", runtime.Version()))
			fmt.Fprintln(out, field("Platform", runtime.GOOS+"/"+runtime.GOARCH))
		},
	}
}

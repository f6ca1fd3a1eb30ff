// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for lgchat.
//
// Command: config [subcommand]
// Short:   View and modify configuration
//
// Subcommands:
//   show (default)      Display the effective configuration
//   path                Show the configuration file path
//   init [--force]      Write a default configuration file
//   get <key>           Print one value
//   set <key> <value>   Set a value in the configuration file
//   keys                List the keys get and set accept
//
// Examples:
//   lgchat config
//   lgchat config set api.base_url https://chat.example.com
//   lgchat config set storage.backend sqlite
//   lgchat config get log.level
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lgchat/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "View and modify configuration",
		Args:        usageArgs(cobra.NoArgs),
		Annotations: map[string]string{setupAnnotation: setupConfig},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.configShow()
		},
	}
	configured := func(c *cobra.Command) *cobra.Command {
		c.Annotations = map[string]string{setupAnnotation: setupConfig}
		return c
	}

	var force bool
	initCmd := configured(&cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.configFile()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return &usageError{fmt.Errorf("%s already exists (use --force to overwrite)", path)}
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("Wrote "+path))
			return nil
		},
	})
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	cmd.AddCommand(
		configured(&cobra.Command{
			Use:   "show",
			Short: "Display the effective configuration",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.configShow()
			},
		}),
		configured(&cobra.Command{
			Use:   "path",
			Short: "Show the configuration file path",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := a.configFile()
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, path)
				return nil
			},
		}),
		initCmd,
		configured(&cobra.Command{
			Use:   "get KEY",
			Short: "Print one configuration value",
			Args:  usageArgs(cobra.ExactArgs(1)),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := a.cfg.Get(args[0])
				if err != nil {
					return &usageError{err}
				}
				fmt.Fprintln(a.out, v)
				return nil
			},
		}),
		configured(&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Set a value in the configuration file",
			Args:  usageArgs(cobra.ExactArgs(2)),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := a.configFile()
				if err != nil {
					return err
				}
				key, value := args[0], args[1]
				err = config.Edit(path, func(cfg *config.Config) error {
					return cfg.Set(key, value)
				})
				var invalid config.ValidateErrors
				if err != nil && !errors.As(err, &invalid) {
					return &usageError{err}
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s %s = %s\n", SuccessStyle.Render("Set"), key, value)
				return nil
			},
		}),
		configured(&cobra.Command{
			Use:   "keys",
			Short: "List configuration keys",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, key := range config.Keys() {
					fmt.Fprintln(a.out, key)
				}
				return nil
			},
		}),
	)
	return cmd
}

// configShow prints the effective configuration, including environment and
// flag overrides.
func (a *app) configShow() error {
	path, err := a.configFile()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, TitleStyle.Render("lgchat Configuration"))
	fmt.Fprintln(a.out, DimStyle.Render(strings.Repeat("=", 41)))
	fmt.Fprint(a.out, a.cfg.String())
	fmt.Fprintln(a.out, DimStyle.Render(strings.Repeat("-", 41)))
	fmt.Fprintf(a.out, "Config file: %s\n", DimStyle.Render(path))
	return nil
}

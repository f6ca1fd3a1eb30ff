// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - Sign-in commands for lgchat.
//
// Commands:
//   register   Create an account and sign in
//   login      Sign in and store the token
//   logout     Forget the stored token
//   whoami     Show the signed-in user
//
// Examples:
//   lgchat register --email ada@example.com
//   lgchat login -e ada@example.com -p secret
//   echo secret | lgchat login -e ada@example.com
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lgchat/internal/account"
	"github.com/jeranaias/lgchat/internal/api"
)

type credentials struct {
	email    string
	password string
}

func (c *credentials) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&c.email, "email", "e", "", "account email (prompted when omitted)")
	cmd.Flags().StringVarP(&c.password, "password", "p", "", "account password (prompted without echo when omitted)")
}

// completeCredentials prompts for whatever was not given on the command line.
func (a *app) completeCredentials(c *credentials) error {
	var err error
	if strings.TrimSpace(c.email) == "" {
		if c.email, err = a.readLine("Email: "); err != nil {
			return fmt.Errorf("read email: %w", err)
		}
	}
	if c.password == "" {
		if c.password, err = a.readPassword("Password: "); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.email) == "" || c.password == "" {
		return &usageError{account.ErrMissingCredentials}
	}
	return nil
}

func newRegisterCommand(a *app) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.completeCredentials(&creds); err != nil {
				return err
			}
			if err := a.account.Register(cmd.Context(), creds.email, creds.password); err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("Registered and signed in as "+a.account.Email()))
			return nil
		},
	}
	creds.addFlags(cmd)
	return cmd
}

func newLoginCommand(a *app) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the token",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.completeCredentials(&creds); err != nil {
				return err
			}
			if err := a.account.Login(cmd.Context(), creds.email, creds.password); err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("Signed in as "+a.account.Email()))
			return nil
		},
	}
	creds.addFlags(cmd)
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.account.SignedIn() {
				fmt.Fprintln(a.out, DimStyle.Render("Not signed in."))
				return nil
			}
			email := a.account.Email()
			if err := a.account.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("Signed out "+email))
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			// Listing sessions is the cheapest call that validates the token.
			sessions, err := a.account.Sessions(cmd.Context())
			if err != nil {
				if errors.Is(err, api.ErrUnauthorized) {
					return &api.AuthError{Op: "whoami", Err: err}
				}
				return err
			}

			email := a.account.Email()
			if email == "" {
				email = "(unknown email)"
			}
			fmt.Fprintln(a.out, field("User", email))
			fmt.Fprintln(a.out, field("Backend", a.account.Client().BaseURL()))
			fmt.Fprintln(a.out, field("Sessions", fmt.Sprint(len(sessions))))
			if last, ok := a.account.LastSession(); ok {
				fmt.Fprintln(a.out, field("Last session", last.DisplayName()+" ("+last.ShortID()+")"))
			}
			return nil
		},
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error display and exit codes for lgchat commands.
//
// Commands always return errors; Execute displays them once and maps them
// to an exit code.
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/lgchat/internal/api"
	"github.com/jeranaias/lgchat/internal/config"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a rejected sign-in or an expired token
	ExitAuthError = 4
	// ExitNetworkError indicates the backend could not be reached or failed
	ExitNetworkError = 5
	// ExitSessionError indicates a failed session or history operation
	ExitSessionError = 6
)

// usageError marks invalid flags or arguments.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// ExitCode determines the exit code for an error.
func ExitCode(err error) int {
	var (
		usageErr   *usageError
		authErr    *api.AuthError
		sessionErr *api.SessionError
		transport  *api.TransportError
		invalid    config.ValidateErrors
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &usageErr):
		return ExitUsageError
	case errors.As(err, &invalid):
		return ExitConfigError
	case errors.As(err, &authErr),
		errors.Is(err, api.ErrNotSignedIn),
		errors.Is(err, api.ErrUnauthorized):
		return ExitAuthError
	case errors.As(err, &sessionErr):
		return ExitSessionError
	case errors.As(err, &transport):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}

// DisplayError writes err and a hint for fixing it to w.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), errorMessage(err))
	if hint := errorHint(err); hint != "" {
		fmt.Fprintf(w, "%s\n", DimStyle.Render(hint))
	}
}

// errorMessage prefers the backend's detail for bare transport errors.
func errorMessage(err error) string {
	var (
		authErr    *api.AuthError
		sessionErr *api.SessionError
	)
	if errors.As(err, &authErr) || errors.As(err, &sessionErr) {
		return err.Error()
	}
	var transport *api.TransportError
	if errors.As(err, &transport) {
		return api.Detail(err)
	}
	return err.Error()
}

func errorHint(err error) string {
	var (
		usageErr  *usageError
		transport *api.TransportError
	)
	switch {
	case errors.As(err, &usageErr):
		return "Run with --help for usage."
	case errors.Is(err, api.ErrNotSignedIn), errors.Is(err, api.ErrUnauthorized):
		return "Sign in again with 'lgchat login'."
	case errors.As(err, &transport) && transport.Status == 0:
		return "Is the backend running? Check with 'lgchat doctor'."
	case errors.As(err, &transport) && transport.Temporary():
		return "The backend failed; try again later."
	}
	return ""
}

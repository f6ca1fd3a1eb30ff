// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jeranaias/lgchat/internal/sse"
	"github.com/jeranaias/lgchat/internal/util"
)

// maxDetailLen bounds raw body text used as an error detail.
const maxDetailLen = 512

// Sentinel errors.
var (
	// ErrUnauthorized matches any failure caused by an HTTP 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotSignedIn indicates no user token is available.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrNoSession indicates no chat session is selected.
	ErrNoSession = errors.New("no session selected")
)

// DecodeError reports a malformed stream payload. It is defined by package
// sse and re-exported so callers can match every client error from here.
type DecodeError = sse.DecodeError

// =============================================================================
// TRANSPORT ERRORS
// =============================================================================

// TransportError reports a request that could not be sent or that the
// backend answered with a non-2xx status.
type TransportError struct {
	// Status is the HTTP status code, or 0 if no response was received.
	Status int

	// Detail is the human-readable reason extracted from the response body.
	Detail string

	// Err is the underlying network error when Status is 0.
	Err error
}

// Error returns the detail text when the backend provided one.
func (e *TransportError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("HTTP %d %s", e.Status, http.StatusText(e.Status))
	}
	return "request failed"
}

// Unwrap returns the underlying network error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches ErrUnauthorized.
func (e *TransportError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// Temporary reports whether the failure is a server-side or network error.
// Nothing is retried automatically; callers may use this to offer a retry.
func (e *TransportError) Temporary() bool {
	return e.Status == 0 || e.Status >= 500
}

// =============================================================================
// DOMAIN ERRORS
// =============================================================================

// AuthError reports a rejected login or registration, or an expired token on
// an auth call.
type AuthError struct {
	Op  string // "login", "register", "create session"
	Err error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, Detail(e.Err))
}

// Unwrap returns the cause.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// SessionError reports a failed session or history operation.
type SessionError struct {
	Op        string
	SessionID string
	Err       error
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s (session %s) failed: %s", e.Op, shortID(e.SessionID), Detail(e.Err))
	}
	return fmt.Sprintf("%s failed: %s", e.Op, Detail(e.Err))
}

// Unwrap returns the cause.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// Detail returns the most user-facing text available for err: the backend's
// detail when err wraps a TransportError, else err's own message.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Error()
	}
	return err.Error()
}

// =============================================================================
// DETAIL EXTRACTION
// =============================================================================

// errorBody is the FastAPI error envelope. detail is either a string or a
// list of validation errors.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationItem struct {
	Msg string `json:"msg"`
}

// statusError builds a TransportError from a non-2xx response body.
func statusError(status int, body []byte) *TransportError {
	return &TransportError{Status: status, Detail: extractDetail(status, body)}
}

func extractDetail(status int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Detail) > 0 {
		var s string
		if err := json.Unmarshal(eb.Detail, &s); err == nil && s != "" {
			return s
		}
		var items []validationItem
		if err := json.Unmarshal(eb.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return util.TruncateRunes(text, maxDetailLen)
	}

	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

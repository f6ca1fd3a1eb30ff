// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/jeranaias/lgchat/internal/model"
)

// sessionResponse is the backend's session representation.
type sessionResponse struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Token     Token  `json:"token"`
}

func (r sessionResponse) handle() model.SessionHandle {
	return model.SessionHandle{
		SessionID: r.SessionID,
		Token:     r.Token.AccessToken,
		Name:      r.Name,
	}
}

// CreateSession starts a new chat session for the signed-in user.
func (c *Client) CreateSession(ctx context.Context, userToken string) (model.SessionHandle, error) {
	if userToken == "" {
		return model.SessionHandle{}, &AuthError{Op: "create session", Err: ErrNotSignedIn}
	}

	var resp sessionResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/session",
		token:  userToken,
	}, &resp)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return model.SessionHandle{}, &AuthError{Op: "create session", Err: err}
		}
		return model.SessionHandle{}, &SessionError{Op: "create session", Err: err}
	}
	if resp.SessionID == "" || resp.Token.AccessToken == "" {
		return model.SessionHandle{}, &SessionError{Op: "create session", Err: errors.New("incomplete session response")}
	}
	return resp.handle(), nil
}

// ListSessions returns every session owned by the signed-in user.
func (c *Client) ListSessions(ctx context.Context, userToken string) ([]model.SessionHandle, error) {
	if userToken == "" {
		return nil, &SessionError{Op: "list sessions", Err: ErrNotSignedIn}
	}

	var resp []sessionResponse
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth/sessions",
		token:  userToken,
	}, &resp)
	if err != nil {
		return nil, &SessionError{Op: "list sessions", Err: err}
	}

	handles := make([]model.SessionHandle, 0, len(resp))
	for _, r := range resp {
		if r.SessionID == "" {
			continue
		}
		handles = append(handles, r.handle())
	}
	return handles, nil
}

// RenameSession sets the display name of a session. The returned handle
// carries the new name and the token the backend issued with it.
func (c *Client) RenameSession(ctx context.Context, h model.SessionHandle, name string) (model.SessionHandle, error) {
	if h.IsZero() {
		return model.SessionHandle{}, &SessionError{Op: "rename session", Err: ErrNoSession}
	}

	form := url.Values{}
	form.Set("name", name)

	var resp sessionResponse
	err := c.do(ctx, request{
		method:   http.MethodPatch,
		path:     "/auth/session/" + url.PathEscape(h.SessionID) + "/name",
		token:    h.Token,
		formBody: form,
	}, &resp)
	if err != nil {
		return model.SessionHandle{}, &SessionError{Op: "rename session", SessionID: h.SessionID, Err: err}
	}

	renamed := h
	renamed.Name = name
	if resp.Name != "" {
		renamed.Name = resp.Name
	}
	if resp.Token.AccessToken != "" {
		renamed.Token = resp.Token.AccessToken
	}
	return renamed, nil
}

// DeleteSession removes a session and its history.
func (c *Client) DeleteSession(ctx context.Context, h model.SessionHandle) error {
	if h.IsZero() {
		return &SessionError{Op: "delete session", Err: ErrNoSession}
	}

	err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/auth/session/" + url.PathEscape(h.SessionID),
		token:  h.Token,
	}, nil)
	if err != nil {
		return &SessionError{Op: "delete session", SessionID: h.SessionID, Err: err}
	}
	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"io"
	"net/http"

	"github.com/jeranaias/lgchat/internal/model"
)

type chatRequest struct {
	Messages []model.Message `json:"messages"`
}

type chatResponse struct {
	Messages []model.Message `json:"messages"`
}

// SendMessages starts a streaming chat turn and returns the SSE body once the
// backend has answered with a 2xx status. The caller must close the body.
// Cancelling ctx aborts the request and unblocks any read on the body.
//
// Non-2xx responses are returned as *TransportError whose Error is the
// backend's detail text.
func (c *Client) SendMessages(ctx context.Context, sessionToken string, messages []model.Message) (io.ReadCloser, error) {
	if sessionToken == "" {
		return nil, &TransportError{Err: ErrNoSession}
	}

	resp, err := c.send(ctx, request{
		method:   http.MethodPost,
		path:     "/chatbot/chat/stream",
		token:    sessionToken,
		jsonBody: chatRequest{Messages: wireMessages(messages)},
		stream:   true,
	})
	if err != nil {
		return nil, err
	}

	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		body, rerr := readResponse(resp)
		if rerr != nil {
			return nil, &TransportError{Status: resp.StatusCode, Err: rerr}
		}
		return nil, statusError(resp.StatusCode, body)
	}
	return resp.Body, nil
}

// Chat performs a non-streaming turn and returns the full updated history.
func (c *Client) Chat(ctx context.Context, h model.SessionHandle, messages []model.Message) ([]model.Message, error) {
	if h.IsZero() {
		return nil, &TransportError{Err: ErrNoSession}
	}

	var resp chatResponse
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/chatbot/chat",
		token:    h.Token,
		jsonBody: chatRequest{Messages: wireMessages(messages)},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return knownRoles(resp.Messages), nil
}

// FetchHistory returns the stored messages of a session. Messages with roles
// the client does not display (tool calls and similar) are dropped.
func (c *Client) FetchHistory(ctx context.Context, h model.SessionHandle) ([]model.Message, error) {
	if h.IsZero() {
		return nil, &SessionError{Op: "fetch history", Err: ErrNoSession}
	}

	var resp chatResponse
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/chatbot/messages",
		token:  h.Token,
	}, &resp)
	if err != nil {
		return nil, &SessionError{Op: "fetch history", SessionID: h.SessionID, Err: err}
	}
	return knownRoles(resp.Messages), nil
}

// ClearHistory deletes every stored message of a session.
func (c *Client) ClearHistory(ctx context.Context, h model.SessionHandle) error {
	if h.IsZero() {
		return &SessionError{Op: "clear history", Err: ErrNoSession}
	}

	err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/chatbot/messages",
		token:  h.Token,
	}, nil)
	if err != nil {
		return &SessionError{Op: "clear history", SessionID: h.SessionID, Err: err}
	}
	return nil
}

// wireMessages drops messages the backend must never see.
func wireMessages(messages []model.Message) []model.Message {
	out := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if m.Synthetic || !m.Role.Valid() {
			continue
		}
		out = append(out, m)
	}
	return out
}

func knownRoles(messages []model.Message) []model.Message {
	out := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role.Valid() {
			out = append(out, m)
		}
	}
	return out
}

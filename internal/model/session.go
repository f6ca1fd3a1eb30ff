// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// SessionHandle identifies one backend chat session.
//
// Token is scoped to this session and is the bearer credential for every
// chatbot call made on its behalf. The handle is owned by the session service;
// the chat core only borrows SessionID and Token for the duration of a request.
type SessionHandle struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	Name      string `json:"name"`
}

// IsZero reports whether the handle is unset.
func (h SessionHandle) IsZero() bool {
	return h.SessionID == "" && h.Token == ""
}

// ShortID returns the first eight characters of the session ID for display.
func (h SessionHandle) ShortID() string {
	if len(h.SessionID) <= 8 {
		return h.SessionID
	}
	return h.SessionID[:8]
}

// DisplayName returns the session name, or its short ID when unnamed.
func (h SessionHandle) DisplayName() string {
	if h.Name != "" {
		return h.Name
	}
	return h.ShortID()
}

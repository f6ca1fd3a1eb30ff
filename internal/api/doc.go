// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the LangGraph agent backend.
//
// The backend owns authentication, session persistence and generation. This
// package only moves requests and responses and maps failures onto typed
// errors the rest of the client can match with errors.As.
//
// # Key Types
//
//   - Client: HTTP client with rate limiting and structured logging
//   - Token: bearer token returned by login, register and session creation
//   - AuthError, SessionError, TransportError: typed failures
//
// # Usage
//
//	client := api.New("http://localhost:8000")
//	tok, err := client.Login(ctx, email, password)
//	handle, err := client.CreateSession(ctx, tok.AccessToken)
//	body, err := client.SendMessages(ctx, handle.Token, messages)
//	defer body.Close()
//
// SendMessages returns the raw SSE body once the response status is known to
// be successful. Decoding is left to package sse.
//
// # Security
//
// Tokens are sent as bearer credentials and are never logged.
package api

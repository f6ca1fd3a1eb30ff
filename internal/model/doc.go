// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
//
// # Key Types
//
//   - Role: Message role enumeration (user, assistant, system)
//   - Message: Single message with role, content and identity
//   - Transcript: Ordered, append-only list of messages for one session
//   - Placeholder: Handle to the assistant message currently being streamed
//   - SessionHandle: Backend session identity plus its scoped bearer token
//
// # Usage
//
// Start a turn and grow the assistant placeholder in place:
//
//	t := model.NewTranscript(history)
//	t.Append(model.NewUserMessage("hi"))
//	ph := t.AppendPlaceholder()
//	t.AppendDelta(ph, "Hel")
//	t.AppendDelta(ph, "lo")
package model

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// doneSentinel is the OpenAI-style end marker some proxies emit instead of a
// done chunk.
const doneSentinel = "[DONE]"

// StreamChunk is one decoded unit of the chat stream.
// Done marks end-of-stream and carries no content.
type StreamChunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// DecodeError reports a single payload that could not be decoded.
// It is logged and the stream continues.
type DecodeError struct {
	Payload string
	Err     error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed stream chunk %q: %v", truncate(e.Payload, 64), e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ParseChunk decodes one event payload.
func ParseChunk(payload string) (StreamChunk, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == doneSentinel {
		return StreamChunk{Done: true}, nil
	}

	var chunk StreamChunk
	if err := json.Unmarshal([]byte(trimmed), &chunk); err != nil {
		return StreamChunk{}, &DecodeError{Payload: payload, Err: err}
	}
	if chunk.Done {
		chunk.Content = ""
	}
	return chunk, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSEWriter writes server-sent events the way the backend does.
type SSEWriter struct {
	w http.ResponseWriter
}

// NewSSEWriter sets the event-stream headers on w.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return &SSEWriter{w: w}
}

// Chunk writes one content chunk.
func (s *SSEWriter) Chunk(content string) error {
	return s.write(content, false)
}

// Done writes the terminating chunk.
func (s *SSEWriter) Done() error {
	return s.write("", true)
}

// Fail answers with an error status and a FastAPI detail body instead of a
// stream. It must be called before anything else is written.
func (s *SSEWriter) Fail(status int, detail string) {
	writeDetail(s.w, status, detail)
}

// Raw writes text verbatim and flushes.
func (s *SSEWriter) Raw(text string) error {
	if _, err := fmt.Fprint(s.w, text); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *SSEWriter) write(content string, done bool) error {
	b, err := json.Marshal(struct {
		Content string `json:"content"`
		Done    bool   `json:"done"`
	}{content, done})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *SSEWriter) flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}

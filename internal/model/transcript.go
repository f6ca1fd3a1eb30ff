// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"strings"
)

// ErrStalePlaceholder is returned when a placeholder handle no longer refers
// to the message it was created for.
var ErrStalePlaceholder = errors.New("stale placeholder")

// Placeholder addresses the assistant message that is being filled by a
// stream. It is captured when the placeholder is appended so that deltas land
// on that message even if other messages are added around it later.
type Placeholder struct {
	index int
	id    string
}

// Valid reports whether the handle was issued by AppendPlaceholder.
func (p Placeholder) Valid() bool {
	return p.id != ""
}

// Transcript is the ordered message list for one session.
//
// It is append-only except for in-place growth of the in-flight placeholder.
// Transcript is not safe for concurrent use; chat.Session serialises access.
type Transcript struct {
	messages []Message

	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	inflight    Placeholder
	inflightBuf strings.Builder
}

// NewTranscript creates a transcript seeded with history.
func NewTranscript(history []Message) *Transcript {
	t := &Transcript{messages: make([]Message, 0, len(history)+2)}
	t.messages = append(t.messages, history...)
	return t
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Append adds a finished message to the end of the transcript.
func (t *Transcript) Append(msg Message) {
	if msg.ID == "" {
		msg.ID = generateID()
	}
	t.messages = append(t.messages, msg)
}

// AppendPlaceholder appends an empty assistant message and returns its handle.
// Any previous in-flight placeholder is sealed first.
func (t *Transcript) AppendPlaceholder() Placeholder {
	t.Seal()
	msg := NewAssistantMessage("")
	t.messages = append(t.messages, msg)
	t.inflight = Placeholder{index: len(t.messages) - 1, id: msg.ID}
	t.inflightBuf.Reset()
	return t.inflight
}

// AppendDelta appends streamed text to the placeholder in place.
func (t *Transcript) AppendDelta(p Placeholder, delta string) error {
	if !t.owns(p) || p != t.inflight {
		return ErrStalePlaceholder
	}
	t.inflightBuf.WriteString(delta)
	t.messages[p.index].Content = t.inflightBuf.String()
	return nil
}

// SetContent replaces the placeholder content and marks it synthetic.
// Used to turn an empty placeholder into an error notice.
func (t *Transcript) SetContent(p Placeholder, content string, synthetic bool) error {
	if !t.owns(p) {
		return ErrStalePlaceholder
	}
	t.messages[p.index].Content = content
	t.messages[p.index].Synthetic = synthetic
	if p == t.inflight {
		t.inflightBuf.Reset()
		t.inflightBuf.WriteString(content)
	}
	return nil
}

// Content returns the current content of the placeholder.
func (t *Transcript) Content(p Placeholder) (string, error) {
	if !t.owns(p) {
		return "", ErrStalePlaceholder
	}
	return t.messages[p.index].Content, nil
}

// Seal ends in-place growth of the current placeholder, if any.
func (t *Transcript) Seal() {
	t.inflight = Placeholder{}
	t.inflightBuf.Reset()
}

// Streaming reports whether a placeholder is in flight.
func (t *Transcript) Streaming() bool {
	return t.inflight.Valid()
}

// Messages returns a copy of all messages.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Outbound returns the messages to send to the backend: everything except
// synthetic notices and empty assistant placeholders.
func (t *Transcript) Outbound() []Message {
	out := make([]Message, 0, len(t.messages))
	for _, m := range t.messages {
		if m.Synthetic {
			continue
		}
		if m.Role == RoleAssistant && m.Content == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Last returns the last message, if any.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// LastAssistant returns the most recent non-synthetic assistant message.
func (t *Transcript) LastAssistant() (Message, bool) {
	for i := len(t.messages) - 1; i >= 0; i-- {
		m := t.messages[i]
		if m.Role == RoleAssistant && !m.Synthetic && m.Content != "" {
			return m, true
		}
	}
	return Message{}, false
}

func (t *Transcript) owns(p Placeholder) bool {
	if !p.Valid() || p.index < 0 || p.index >= len(t.messages) {
		return false
	}
	return t.messages[p.index].ID == p.id
}

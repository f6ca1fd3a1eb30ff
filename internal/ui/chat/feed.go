// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	chatsession "github.com/jeranaias/lgchat/internal/chat"
)

// =============================================================================
// FEED
// =============================================================================

// Feed relays updates of one chat session into the Bubble Tea loop.
// Observe is the session observer; it never blocks.
type Feed struct {
	buffer *StreamingBuffer

	mu     sync.Mutex
	latest chatsession.Update
	seen   bool

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewFeed creates a feed whose deltas are drawn at most maxFPS times per
// second.
func NewFeed(maxFPS int) *Feed {
	return &Feed{
		buffer: NewStreamingBuffer(maxFPS),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Observe records u. Deltas are buffered for the next frame; every other
// update wakes the loop.
func (f *Feed) Observe(u chatsession.Update) {
	f.mu.Lock()
	f.latest = u
	f.seen = true
	f.mu.Unlock()

	if u.Delta != "" {
		f.buffer.Write(u.Delta)
		return
	}
	// A state change supersedes whatever is buffered.
	f.buffer.Reset()
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// Latest returns the most recent update.
func (f *Feed) Latest() (chatsession.Update, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.seen
}

// Buffer returns the delta buffer.
func (f *Feed) Buffer() *StreamingBuffer {
	return f.buffer
}

// Close stops pending waits. It is safe to call more than once.
func (f *Feed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// updateMsg tells the model that f has a new state.
type updateMsg struct {
	feed *Feed
}

// feedClosedMsg ends the wait loop of a closed feed.
type feedClosedMsg struct {
	feed *Feed
}

// Wait returns a command that blocks until the next state change.
func (f *Feed) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-f.notify:
			return updateMsg{feed: f}
		case <-f.done:
			return feedClosedMsg{feed: f}
		}
	}
}

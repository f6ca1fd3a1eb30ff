// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat view of the lgchat terminal UI.

The view wraps one streaming chat session (internal/chat). The session runs
each turn on its own goroutine and reports progress through an observer; the
view never calls back into the session from that goroutine.

# Feed

A Feed is the bridge between the session and the Bubble Tea loop:
  - Reply deltas go into a StreamingBuffer and are drawn on the next frame
    tick, so a fast stream is redrawn at most MaxFPS times per second
  - State changes (turn started, streaming, finished, failed, cancelled)
    wake the loop at once
  - Only the latest snapshot is kept; a slow loop skips intermediate frames

# Model

Model renders the transcript in a viewport, a textarea for composing and a
status bar. Assistant replies are rendered as markdown with glamour.

	feed := chat.NewFeed(cfg.UI.MaxFPS)
	s, err := acct.Open(ctx, handle, chatsession.WithObserver(feed.Observe))
	m := chat.New(theme, s, feed, chat.Options{Context: ctx})

Keys: Enter sends, Esc stops a streaming reply, Ctrl+Y copies the last reply
and Ctrl+O returns to the session list. Any key dismisses a failed turn.
*/
package chat

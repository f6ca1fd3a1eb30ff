// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Streaming defaults.
const (
	DefaultBatchSize = 15
	DefaultMaxFPS    = 30
	MaxFPSLimit      = 60
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// StreamingBuffer coalesces reply deltas so the transcript is redrawn at a
// capped frame rate instead of once per chunk. Deltas are written by the
// chat session's goroutine and flushed from the Bubble Tea loop.
//
// A flush is due once batchSize deltas have accumulated or the frame
// interval has passed since the last flush.
type StreamingBuffer struct {
	mu         sync.Mutex
	buffer     strings.Builder
	deltaCount int
	lastFlush  time.Time

	batchSize int
	maxFPS    int
	interval  time.Duration
}

// NewStreamingBuffer creates a buffer flushing at most maxFPS times per
// second. Out of range values select DefaultMaxFPS.
func NewStreamingBuffer(maxFPS int) *StreamingBuffer {
	sb := &StreamingBuffer{
		batchSize: DefaultBatchSize,
		lastFlush: time.Now(),
	}
	sb.setMaxFPSLocked(maxFPS)
	return sb
}

// Write adds a delta.
func (sb *StreamingBuffer) Write(delta string) {
	if delta == "" {
		return
	}
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.buffer.WriteString(delta)
	sb.deltaCount++
}

// Flush returns the buffered text if a flush is due.
func (sb *StreamingBuffer) Flush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if !sb.shouldFlushLocked() {
		return "", false
	}
	return sb.takeLocked(), true
}

// ForceFlush returns the buffered text regardless of thresholds.
func (sb *StreamingBuffer) ForceFlush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.buffer.Len() == 0 {
		return "", false
	}
	return sb.takeLocked(), true
}

func (sb *StreamingBuffer) takeLocked() string {
	content := sb.buffer.String()
	sb.buffer.Reset()
	sb.deltaCount = 0
	sb.lastFlush = time.Now()
	return content
}

func (sb *StreamingBuffer) shouldFlushLocked() bool {
	if sb.buffer.Len() == 0 {
		return false
	}
	if sb.deltaCount >= sb.batchSize {
		return true
	}
	return time.Since(sb.lastFlush) >= sb.interval
}

// Reset drops buffered text, for example when a turn is cancelled.
func (sb *StreamingBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.buffer.Reset()
	sb.deltaCount = 0
	sb.lastFlush = time.Now()
}

// Pending returns the number of deltas waiting to be flushed.
func (sb *StreamingBuffer) Pending() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.deltaCount
}

// Interval returns the minimum time between flushes.
func (sb *StreamingBuffer) Interval() time.Duration {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.interval
}

// SetMaxFPS changes the frame rate cap.
func (sb *StreamingBuffer) SetMaxFPS(fps int) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.setMaxFPSLocked(fps)
}

func (sb *StreamingBuffer) setMaxFPSLocked(fps int) {
	if fps <= 0 || fps > MaxFPSLimit {
		fps = DefaultMaxFPS
	}
	sb.maxFPS = fps
	sb.interval = time.Second / time.Duration(fps)
}

// SetBatchSize changes the delta count that forces a flush.
func (sb *StreamingBuffer) SetBatchSize(size int) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if size > 0 {
		sb.batchSize = size
	}
}

// =============================================================================
// STREAMING TICK COMMAND
// =============================================================================

// StreamTickMsg drives buffer flushes while a reply is streaming.
type StreamTickMsg struct {
	Time time.Time
}

// streamTickCmd schedules the next flush check.
func streamTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}

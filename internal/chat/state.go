// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "fmt"

// RunState is the lifecycle state of a Session.
type RunState int

const (
	// Idle accepts a new submission.
	Idle RunState = iota

	// AwaitingResponse means the request is sent and no headers have arrived.
	AwaitingResponse

	// Streaming means a 2xx response is being decoded into the placeholder.
	Streaming

	// Failed means the last turn ended in an error that is not yet acknowledged.
	Failed
)

// String returns the state name.
func (s RunState) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting_response"
	case Streaming:
		return "streaming"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

// Running reports whether a turn is in flight.
func (s RunState) Running() bool {
	return s == AwaitingResponse || s == Streaming
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the streaming chat session.
//
// A Session owns the transcript of one backend session and drives one turn
// at a time through the run states:
//
//	Idle --Submit--> AwaitingResponse --2xx headers--> Streaming
//	Streaming --chunk--> Streaming (placeholder grows)
//	Streaming --done or end of input--> Idle
//	AwaitingResponse | Streaming --error--> Failed --Acknowledge--> Idle
//	AwaitingResponse | Streaming --Cancel--> Idle
//
// Each turn runs on its own goroutine. Observers registered with
// WithObserver receive an Update for every transition and every applied
// delta.
//
// # Usage
//
//	s := chat.NewSession(client, handle, chat.WithHistory(history),
//	    chat.WithObserver(func(u chat.Update) { render(u) }))
//	if err := s.Submit(ctx, "Hello"); err != nil {
//	    return err
//	}
//	s.Wait(ctx)
package chat

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse decodes server-sent event streams into chat stream chunks.
//
// The Decoder is a push-style, allocation-light splitter: raw bytes are fed
// in whatever fragments the transport delivers and complete event payloads
// come out. Partial lines and partial events are carried over between calls,
// so the logical result never depends on read boundaries.
//
// Stream wraps a response body and a Decoder into a pull-based iterator:
//
//	s := sse.NewStream(ctx, resp.Body)
//	defer s.Close()
//	for {
//	    chunk, err := s.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(chunk.Content)
//	}
//
// Wire format consumed:
//
//	data: {"content": "Hel", "done": false}
//
//	data: {"content": "", "done": true}
//
// A payload that fails to decode is reported as a DecodeError to the stream's
// logger and skipped; it never terminates the stream.
package sse

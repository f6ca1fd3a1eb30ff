// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// readSize is the size of each read from the underlying body.
const readSize = 4096

// StreamState indicates the current state of a Stream.
type StreamState int

const (
	StateNew       StreamState = iota // Before Next is ever called.
	StateStreaming                    // Mid-stream, chunks being delivered.
	StateComplete                     // Done chunk or end of input seen.
	StateError                        // Transport or context error.
	StateClosed                       // Close called before a terminal state.
)

// String returns the state name.
func (s StreamState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStreaming:
		return "streaming"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("StreamState(%d)", int(s))
	}
}

// Option configures a Stream.
type Option func(*Stream)

// WithLogger sets the logger used to report skipped payloads.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Stream) {
		s.log = l
	}
}

// Stream is a pull-based iterator of StreamChunks over an SSE body.
//
// Cancellation flows through the context given to NewStream: once it is
// done the body is closed, any blocked read returns, and Next reports the
// context error. A done chunk ends consumption immediately; bytes after it
// are never decoded.
type Stream struct {
	ctx  context.Context
	body io.ReadCloser
	stop func() bool

	dec     Decoder
	pending []string
	buf     []byte
	eof     bool

	state   StreamState
	err     error
	skipped int

	closeOnce sync.Once
	log       zerolog.Logger
}

// NewStream creates a stream reading from body.
func NewStream(ctx context.Context, body io.ReadCloser, opts ...Option) *Stream {
	s := &Stream{
		ctx:  ctx,
		body: body,
		buf:  make([]byte, readSize),
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stop = context.AfterFunc(ctx, func() {
		s.closeBody()
	})
	return s
}

// Next returns the next chunk with content. It returns io.EOF when the
// stream is complete, either because a done chunk arrived or the body ended.
// Chunks with empty content and done=false are skipped.
func (s *Stream) Next() (StreamChunk, error) {
	switch s.state {
	case StateComplete:
		return StreamChunk{}, io.EOF
	case StateError:
		return StreamChunk{}, s.err
	case StateClosed:
		return StreamChunk{}, errors.New("sse: stream closed")
	case StateNew:
		s.state = StateStreaming
	}

	for {
		// Cancellation is checked before every payload and every read.
		if err := s.ctx.Err(); err != nil {
			return StreamChunk{}, s.fail(err)
		}

		if len(s.pending) > 0 {
			payload := s.pending[0]
			s.pending = s.pending[1:]

			chunk, err := ParseChunk(payload)
			if err != nil {
				s.skipped++
				s.log.Warn().Err(err).Msg("skipping malformed stream chunk")
				continue
			}
			if chunk.Done {
				s.finish()
				return StreamChunk{}, io.EOF
			}
			if chunk.Content == "" {
				continue
			}
			return chunk, nil
		}

		if s.eof {
			s.finish()
			return StreamChunk{}, io.EOF
		}

		if err := s.fill(); err != nil {
			return StreamChunk{}, s.fail(err)
		}
	}
}

// fill performs one read and queues any payloads it completes.
func (s *Stream) fill() error {
	n, err := s.body.Read(s.buf)
	if n > 0 {
		payloads, ferr := s.dec.Feed(s.buf[:n])
		s.pending = append(s.pending, payloads...)
		if ferr != nil {
			return ferr
		}
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		if payload, ok := s.dec.Flush(); ok {
			s.pending = append(s.pending, payload)
		}
		s.eof = true
		return nil
	}
	// A read interrupted by cancellation reports the context error.
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("read stream: %w", err)
}

func (s *Stream) finish() {
	s.state = StateComplete
	s.pending = nil
	s.closeBody()
}

func (s *Stream) fail(err error) error {
	s.state = StateError
	s.err = err
	s.pending = nil
	s.closeBody()
	return err
}

// State returns the current stream state.
func (s *Stream) State() StreamState {
	return s.state
}

// Skipped returns how many malformed payloads were dropped.
func (s *Stream) Skipped() int {
	return s.skipped
}

// Close releases the body. Safe to call multiple times.
func (s *Stream) Close() error {
	if s.state == StateNew || s.state == StateStreaming {
		s.state = StateClosed
	}
	s.stop()
	return s.closeBody()
}

func (s *Stream) closeBody() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}

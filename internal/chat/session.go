// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/lgchat/internal/api"
	"github.com/jeranaias/lgchat/internal/model"
	"github.com/jeranaias/lgchat/internal/sse"
	"github.com/jeranaias/lgchat/internal/util"
)

// Errors returned by Session operations.
var (
	ErrBusy         = errors.New("a response is already in progress")
	ErrEmptyMessage = errors.New("message is empty")
	ErrNotRunning   = errors.New("no response in progress")
	ErrNotFailed    = errors.New("nothing to acknowledge")
)

// errStaleTurn stops a turn that was cancelled or replaced.
var errStaleTurn = errors.New("turn is no longer current")

// Sender issues a streaming chat request. The returned body is the SSE
// stream of a 2xx response; a non-2xx response must be returned as an error.
// *api.Client implements Sender.
type Sender interface {
	SendMessages(ctx context.Context, token string, messages []model.Message) (io.ReadCloser, error)
}

// Update is published to observers after every state transition and every
// applied delta.
type Update struct {
	State      RunState
	Transcript []model.Message

	// Delta is the text appended by this update, if any.
	Delta string

	// Err is the failure of the last turn while State is Failed.
	Err error
}

// Observer receives session updates. Observers are called in update order
// from whichever goroutine caused the update and must not block or call
// any Session method.
type Observer func(Update)

// Option configures a Session.
type Option func(*Session)

// WithHistory seeds the transcript.
func WithHistory(history []model.Message) Option {
	return func(s *Session) {
		s.transcript = model.NewTranscript(history)
	}
}

// WithObserver registers an observer.
func WithObserver(fn Observer) Option {
	return func(s *Session) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// Session is the streaming chat state machine for one backend session.
// All methods are safe for concurrent use.
type Session struct {
	sender Sender
	handle model.SessionHandle
	log    zerolog.Logger

	mu         sync.Mutex
	transcript *model.Transcript
	state      RunState
	err        error
	done       chan struct{}

	// gen identifies the current turn. It is bumped when a turn starts and
	// when it is cancelled; a turn whose generation is no longer current
	// cannot touch the transcript or the state.
	gen     uint64
	cancels *cancelManager

	// pubMu keeps observer calls in the order the updates were made.
	pubMu     sync.Mutex
	observers []Observer
}

// NewSession creates an idle session.
func NewSession(sender Sender, handle model.SessionHandle, opts ...Option) *Session {
	s := &Session{
		sender:  sender,
		handle:  handle,
		log:     zerolog.Nop(),
		cancels: newCancelManager(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.transcript == nil {
		s.transcript = model.NewTranscript(nil)
	}
	s.log = s.log.With().Str("component", "chat").Str("session_id", handle.ShortID()).Logger()
	return s
}

// Handle returns the backend session this chat belongs to.
func (s *Session) Handle() model.SessionHandle {
	return s.handle
}

// State returns the current run state.
func (s *Session) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure of the last turn while the state is Failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Transcript returns a snapshot of the messages.
func (s *Session) Transcript() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Messages()
}

// LastAssistant returns the most recent assistant reply.
func (s *Session) LastAssistant() (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.LastAssistant()
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Submit appends text as a user message followed by an empty assistant
// placeholder and starts streaming the reply. It returns once the request
// has been started. The turn's context derives from ctx.
//
// Submitting while a turn is in flight or unacknowledged returns ErrBusy and
// changes nothing.
func (s *Session) Submit(ctx context.Context, text string) error {
	text = util.NormalizeInput(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrBusy
	}

	s.transcript.Append(model.NewUserMessage(text))
	outbound := s.transcript.Outbound()
	p := s.transcript.AppendPlaceholder()

	s.gen++
	gen := s.gen
	s.state = AwaitingResponse
	s.err = nil

	turnCtx, cancel := context.WithCancel(ctx)
	s.cancels.set(gen, cancel)
	done := make(chan struct{})
	s.done = done

	s.log.Debug().Int("messages", len(outbound)).Msg("submitting turn")
	s.publishLocked("")

	go s.run(turnCtx, gen, p, outbound, done)
	return nil
}

// Cancel aborts the in-flight turn. Content already streamed stays in the
// transcript and no later chunk is applied.
func (s *Session) Cancel() error {
	s.mu.Lock()
	if !s.state.Running() {
		s.mu.Unlock()
		return ErrNotRunning
	}

	gen := s.gen
	s.gen++
	s.transcript.Seal()
	s.state = Idle
	s.err = nil
	s.cancels.cancel(gen)

	s.log.Debug().Msg("turn cancelled")
	s.publishLocked("")
	return nil
}

// Acknowledge clears a failure and returns the session to Idle.
func (s *Session) Acknowledge() error {
	s.mu.Lock()
	if s.state != Failed {
		s.mu.Unlock()
		return ErrNotFailed
	}
	s.state = Idle
	s.err = nil
	s.publishLocked("")
	return nil
}

// Reset replaces the transcript, for example after the history was cleared
// on the backend. It is only allowed while no turn is in flight.
func (s *Session) Reset(history []model.Message) error {
	s.mu.Lock()
	if s.state.Running() {
		s.mu.Unlock()
		return ErrBusy
	}
	s.transcript = model.NewTranscript(history)
	s.state = Idle
	s.err = nil
	s.publishLocked("")
	return nil
}

// Wait blocks until the most recently started turn has finished, or ctx is
// done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// TURN EXECUTION
// =============================================================================

// run executes one turn. Every mutation goes through a generation check so
// a cancelled turn is inert.
func (s *Session) run(ctx context.Context, gen uint64, p model.Placeholder, outbound []model.Message, done chan struct{}) {
	defer close(done)
	defer s.cancels.cancel(gen)

	body, err := s.sender.SendMessages(ctx, s.handle.Token, outbound)
	if err != nil {
		s.fail(ctx, gen, p, err)
		return
	}

	stream := sse.NewStream(ctx, body, sse.WithLogger(s.log))
	defer stream.Close()

	if !s.transition(gen, Streaming) {
		return
	}

	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			s.complete(gen)
			return
		}
		if err != nil {
			s.fail(ctx, gen, p, err)
			return
		}
		if err := s.apply(gen, p, chunk.Content); err != nil {
			if !errors.Is(err, errStaleTurn) {
				s.fail(ctx, gen, p, err)
			}
			return
		}
	}
}

// transition moves a current turn to state.
func (s *Session) transition(gen uint64, state RunState) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	s.state = state
	s.publishLocked("")
	return true
}

// apply appends delta to the placeholder of a current turn. It returns
// errStaleTurn once the turn has been cancelled or replaced.
func (s *Session) apply(gen uint64, p model.Placeholder, delta string) error {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return errStaleTurn
	}
	if err := s.transcript.AppendDelta(p, delta); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("apply delta: %w", err)
	}
	s.publishLocked(delta)
	return nil
}

// complete ends a current turn normally.
func (s *Session) complete(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.transcript.Seal()
	s.state = Idle
	s.log.Debug().Msg("turn complete")
	s.publishLocked("")
}

// fail ends a current turn with err. A cancellation of the caller's context
// is treated like Cancel rather than a failure.
func (s *Session) fail(ctx context.Context, gen uint64, p model.Placeholder, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		s.gen++
		s.transcript.Seal()
		s.state = Idle
		s.log.Debug().Msg("turn cancelled by caller")
		s.publishLocked("")
		return
	}

	text := errorText(err)
	if content, cerr := s.transcript.Content(p); cerr == nil && content == "" {
		_ = s.transcript.SetContent(p, text, true)
	} else {
		s.transcript.Append(model.NewErrorMessage(text))
	}
	s.transcript.Seal()
	s.state = Failed
	s.err = err

	s.log.Warn().Err(err).Msg("turn failed")
	s.publishLocked("")
}

// publishLocked snapshots the session, releases s.mu and delivers the update.
// It must be called with s.mu held.
func (s *Session) publishLocked(delta string) {
	u := Update{
		State:      s.state,
		Transcript: s.transcript.Messages(),
		Delta:      delta,
		Err:        s.err,
	}
	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()

	for _, fn := range s.observers {
		fn(u)
	}
}

// genericErrorText is shown when the backend gave no detail.
const genericErrorText = "Error: the request failed."

// errorText is the assistant-visible notice written for a failed turn. Only
// a detail the backend sent is shown; other errors go to the log.
func errorText(err error) string {
	var te *api.TransportError
	if errors.As(err, &te) && te.Detail != "" {
		return "Error: " + te.Detail
	}
	return genericErrorText
}

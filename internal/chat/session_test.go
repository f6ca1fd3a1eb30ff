// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lgchat/internal/api"
	"github.com/jeranaias/lgchat/internal/api/apitest"
	"github.com/jeranaias/lgchat/internal/model"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// pipeSender hands out one pipe per call; the test writes SSE bytes to it.
type pipeSender struct {
	mu     sync.Mutex
	calls  [][]model.Message
	tokens []string
	pipes  chan *io.PipeWriter

	// err, when set, is returned instead of a body.
	err error

	// block makes SendMessages wait for ctx before returning.
	block bool
}

func newPipeSender() *pipeSender {
	return &pipeSender{pipes: make(chan *io.PipeWriter, 4)}
}

func (p *pipeSender) SendMessages(ctx context.Context, token string, messages []model.Message) (io.ReadCloser, error) {
	p.mu.Lock()
	p.calls = append(p.calls, messages)
	p.tokens = append(p.tokens, token)
	err, block := p.err, p.block
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, &api.TransportError{Err: ctx.Err()}
	}
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	p.pipes <- pw
	return pr, nil
}

func (p *pipeSender) lastCall() []model.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	return p.calls[len(p.calls)-1]
}

func (p *pipeSender) next(t *testing.T) *io.PipeWriter {
	t.Helper()
	select {
	case pw := <-p.pipes:
		return pw
	case <-time.After(2 * time.Second):
		t.Fatal("no request was sent")
		return nil
	}
}

func chunk(content string) string {
	return fmt.Sprintf("data: {\"content\":%q,\"done\":false}\n\n", content)
}

const doneEvent = "data: {\"content\":\"\",\"done\":true}\n\n"

// recorder collects observer updates.
type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) observe(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) states() []RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RunState
	for _, u := range r.updates {
		if len(out) == 0 || out[len(out)-1] != u.State {
			out = append(out, u.State)
		}
	}
	return out
}

func (r *recorder) deltas() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, u := range r.updates {
		if u.Delta != "" {
			out = append(out, u.Delta)
		}
	}
	return out
}

var testHandle = model.SessionHandle{SessionID: "3f1c9a2e-session", Token: "session-token"}

func waitState(t *testing.T, s *Session, want RunState) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want },
		2*time.Second, time.Millisecond, "state never became %s (now %s)", want, s.State())
}

func waitContent(t *testing.T, s *Session, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		msgs := s.Transcript()
		return len(msgs) > 0 && msgs[len(msgs)-1].Content == want
	}, 2*time.Second, time.Millisecond, "placeholder never reached %q", want)
}

func waitTurn(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestSubmit_HelloExample(t *testing.T) {
	sender := newPipeSender()
	rec := &recorder{}
	s := NewSession(sender, testHandle, WithObserver(rec.observe))

	require.NoError(t, s.Submit(context.Background(), "Hi"))
	pw := sender.next(t)

	_, _ = io.WriteString(pw, chunk("Hel"))
	_, _ = io.WriteString(pw, chunk("lo"))
	_, _ = io.WriteString(pw, doneEvent)
	waitTurn(t, s)

	msgs := s.Transcript()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "Hi", msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hello", msgs[1].Content)
	assert.Equal(t, Idle, s.State())
	assert.NoError(t, s.Err())

	assert.Equal(t, []RunState{AwaitingResponse, Streaming, Idle}, rec.states())
	assert.Equal(t, []string{"Hel", "lo"}, rec.deltas())

	// The request carried only the new user message, with the session token.
	call := sender.lastCall()
	require.Len(t, call, 1)
	assert.Equal(t, "Hi", call[0].Content)
	assert.Equal(t, []string{"session-token"}, sender.tokens)
}

func TestSubmit_SendsHistory(t *testing.T) {
	sender := newPipeSender()
	history := []model.Message{
		model.NewUserMessage("earlier"),
		model.NewAssistantMessage("reply"),
	}
	s := NewSession(sender, testHandle, WithHistory(history))

	require.NoError(t, s.Submit(context.Background(), "  again \r\n"))
	pw := sender.next(t)
	_, _ = io.WriteString(pw, doneEvent)
	waitTurn(t, s)

	call := sender.lastCall()
	require.Len(t, call, 3)
	assert.Equal(t, "again", call[2].Content)
}

func TestSubmit_Busy(t *testing.T) {
	sender := newPipeSender()
	s := NewSession(sender, testHandle)

	require.NoError(t, s.Submit(context.Background(), "first"))
	before := s.Transcript()

	assert.ErrorIs(t, s.Submit(context.Background(), "second"), ErrBusy)
	assert.Equal(t, before, s.Transcript())
	assert.Equal(t, AwaitingResponse, s.State())

	pw := sender.next(t)
	_, _ = io.WriteString(pw, chunk("x"))
	waitState(t, s, Streaming)
	assert.ErrorIs(t, s.Submit(context.Background(), "third"), ErrBusy)
	assert.Len(t, s.Transcript(), 2)

	_, _ = io.WriteString(pw, doneEvent)
	waitTurn(t, s)
}

func TestSubmit_Empty(t *testing.T) {
	s := NewSession(newPipeSender(), testHandle)
	assert.ErrorIs(t, s.Submit(context.Background(), "   \n\t"), ErrEmptyMessage)
	assert.Empty(t, s.Transcript())
	assert.Equal(t, Idle, s.State())
}

func TestDone_IgnoresTrailingBytes(t *testing.T) {
	sender := newPipeSender()
	s := NewSession(sender, testHandle)

	require.NoError(t, s.Submit(context.Background(), "q"))
	pw := sender.next(t)
	go func() {
		_, _ = io.WriteString(pw, chunk("a")+doneEvent+chunk("never"))
	}()
	waitTurn(t, s)

	msgs := s.Transcript()
	assert.Equal(t, "a", msgs[len(msgs)-1].Content)
	assert.Equal(t, Idle, s.State())
}

func TestEndOfInput_CompletesTurn(t *testing.T) {
	sender := newPipeSender()
	s := NewSession(sender, testHandle)

	require.NoError(t, s.Submit(context.Background(), "q"))
	pw := sender.next(t)
	_, _ = io.WriteString(pw, chunk("partial"))
	_ = pw.Close()
	waitTurn(t, s)

	assert.Equal(t, Idle, s.State())
	msgs := s.Transcript()
	assert.Equal(t, "partial", msgs[len(msgs)-1].Content)
}

func TestMalformedChunk_Skipped(t *testing.T) {
	sender := newPipeSender()
	s := NewSession(sender, testHandle)

	require.NoError(t, s.Submit(context.Background(), "q"))
	pw := sender.next(t)
	_, _ = io.WriteString(pw, chunk("a")+"data: {oops\n\n"+chunk("b")+doneEvent)
	waitTurn(t, s)

	msgs := s.Transcript()
	assert.Equal(t, "ab", msgs[len(msgs)-1].Content)
	assert.Equal(t, Idle, s.State())
}

// =============================================================================
// CANCELLATION TESTS
// =============================================================================

func TestCancel_FromStreamingSuppressesLaterChunks(t *testing.T) {
	sender := newPipeSender()
	rec := &recorder{}
	s := NewSession(sender, testHandle, WithObserver(rec.observe))

	require.NoError(t, s.Submit(context.Background(), "q"))
	pw := sender.next(t)
	_, _ = io.WriteString(pw, chunk("Hel"))
	waitContent(t, s, "Hel")

	require.NoError(t, s.Cancel())
	assert.Equal(t, Idle, s.State())

	// Later bytes may still reach the reader but must not be applied.
	go func() {
		_, _ = io.WriteString(pw, chunk("lo"))
	}()
	waitTurn(t, s)
	time.Sleep(20 * time.Millisecond)

	msgs := s.Transcript()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hel", msgs[1].Content)
	assert.Equal(t, Idle, s.State())
	assert.NoError(t, s.Err())
	assert.Equal(t, []string{"Hel"}, rec.deltas())
}

func TestCancel_WhileAwaitingResponse(t *testing.T) {
	sender := newPipeSender()
	sender.block = true
	s := NewSession(sender, testHandle)

	require.NoError(t, s.Submit(context.Background(), "q"))
	require.Eventually(t, func() bool { return sender.lastCall() != nil }, time.Second, time.Millisecond)

	require.NoError(t, s.Cancel())
	waitTurn(t, s)

	assert.Equal(t, Idle, s.State())
	assert.NoError(t, s.Err())
	msgs := s.Transcript()
	require.Len(t, msgs, 2)
	assert.Empty(t, msgs[1].Content)
	assert.False(t, msgs[1].Synthetic)
}

func TestCancel_NotRunning(t *testing.T) {
	s := NewSession(newPipeSender(), testHandle)
	assert.ErrorIs(t, s.Cancel(), ErrNotRunning)
}

func TestCancel_ThenSubmitAgain(t *testing.T) {
	sender := newPipeSender()
	s := NewSession(sender, testHandle)

	require.NoError(t, s.Submit(context.Background(), "one"))
	first := sender.next(t)
	_, _ = io.WriteString(first, chunk("par"))
	waitContent(t, s, "par")
	require.NoError(t, s.Cancel())

	require.NoError(t, s.Submit(context.Background(), "two"))
	second := sender.next(t)
	_, _ = io.WriteString(second, chunk("fresh")+doneEvent)
	waitTurn(t, s)

	msgs := s.Transcript()
	require.Len(t, msgs, 4)
	assert.Equal(t, "par", msgs[1].Content)
	assert.Equal(t, "fresh", msgs[3].Content)

	// The partial reply is part of the context sent with the next turn.
	call := sender.lastCall()
	require.Len(t, call, 3)
	assert.Equal(t, "par", call[1].Content)
}

func TestParentContextCancel_ReturnsToIdle(t *testing.T) {
	sender := newPipeSender()
	s := NewSession(sender, testHandle)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Submit(ctx, "q"))
	pw := sender.next(t)
	_, _ = io.WriteString(pw, chunk("a"))
	waitContent(t, s, "a")

	cancel()
	waitTurn(t, s)
	assert.Equal(t, Idle, s.State())
	assert.NoError(t, s.Err())
}

// =============================================================================
// FAILURE TESTS
// =============================================================================

func TestFailure_TokenExpired(t *testing.T) {
	sender := newPipeSender()
	sender.err = &api.TransportError{Status: http.StatusUnauthorized, Detail: "token expired"}
	rec := &recorder{}
	s := NewSession(sender, testHandle, WithObserver(rec.observe))

	require.NoError(t, s.Submit(context.Background(), "hi"))
	waitTurn(t, s)

	assert.Equal(t, Failed, s.State())
	var te *api.TransportError
	require.ErrorAs(t, s.Err(), &te)
	assert.Equal(t, "token expired", te.Error())
	assert.ErrorIs(t, s.Err(), api.ErrUnauthorized)

	// The empty placeholder becomes the error notice.
	msgs := s.Transcript()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Error: token expired", msgs[1].Content)
	assert.True(t, msgs[1].Synthetic)

	// Failed is sticky until acknowledged.
	assert.ErrorIs(t, s.Submit(context.Background(), "again"), ErrBusy)

	require.NoError(t, s.Acknowledge())
	assert.Equal(t, Idle, s.State())
	assert.NoError(t, s.Err())
	assert.ErrorIs(t, s.Acknowledge(), ErrNotFailed)

	assert.Equal(t, []RunState{AwaitingResponse, Failed, Idle}, rec.states())
}

func TestFailure_MidStreamKeepsPartial(t *testing.T) {
	sender := newPipeSender()
	s := NewSession(sender, testHandle)

	require.NoError(t, s.Submit(context.Background(), "q"))
	pw := sender.next(t)
	_, _ = io.WriteString(pw, chunk("Hel"))
	waitContent(t, s, "Hel")
	_ = pw.CloseWithError(errors.New("connection reset by peer"))
	waitTurn(t, s)

	assert.Equal(t, Failed, s.State())
	msgs := s.Transcript()
	require.Len(t, msgs, 3)
	assert.Equal(t, "Hel", msgs[1].Content)
	assert.False(t, msgs[1].Synthetic)
	assert.True(t, msgs[2].Synthetic)
	assert.Equal(t, genericErrorText, msgs[2].Content)
	assert.EqualError(t, s.Err(), "connection reset by peer")
}

func TestFailure_ReadErrorShowsGenericText(t *testing.T) {
	sender := newPipeSender()
	s := NewSession(sender, testHandle)

	require.NoError(t, s.Submit(context.Background(), "q"))
	pw := sender.next(t)
	_, _ = io.WriteString(pw, "data: {\"content\":\"par")
	_ = pw.CloseWithError(io.ErrUnexpectedEOF)
	waitTurn(t, s)

	require.Equal(t, Failed, s.State())
	msgs := s.Transcript()
	require.Len(t, msgs, 2)
	assert.Equal(t, genericErrorText, msgs[1].Content)
	assert.True(t, msgs[1].Synthetic)
	assert.ErrorIs(t, s.Err(), io.ErrUnexpectedEOF)
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"backend detail", &api.TransportError{Status: 401, Detail: "token expired"}, "Error: token expired"},
		{"wrapped detail", fmt.Errorf("send: %w", &api.TransportError{Status: 500, Detail: "boom"}), "Error: boom"},
		{"network error", &api.TransportError{Err: errors.New("dial tcp: connection refused")}, genericErrorText},
		{"status without detail", &api.TransportError{Status: 502}, genericErrorText},
		{"plain error", errors.New("sse event exceeds maximum size"), genericErrorText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorText(tt.err))
		})
	}
}

func TestFailure_LongBodyDetailStaysValidUTF8(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "a"+strings.Repeat("é", 600))
	}))
	defer server.Close()

	s := NewSession(api.New(server.URL, api.WithHTTPClient(server.Client())), testHandle)
	require.NoError(t, s.Submit(context.Background(), "q"))
	waitTurn(t, s)

	require.Equal(t, Failed, s.State())
	msgs := s.Transcript()
	last := msgs[len(msgs)-1].Content
	assert.True(t, utf8.ValidString(last), "error text is not valid UTF-8: %q", last)
	assert.True(t, strings.HasPrefix(last, "Error: aé"))
}

func TestApplyFailure_EndsTurn(t *testing.T) {
	sender := newPipeSender()
	s := NewSession(sender, testHandle)

	require.NoError(t, s.Submit(context.Background(), "q"))
	pw := sender.next(t)
	_, _ = io.WriteString(pw, chunk("Hel"))
	waitContent(t, s, "Hel")

	// Swap the transcript so the turn's placeholder handle no longer applies.
	s.mu.Lock()
	s.transcript = model.NewTranscript(s.transcript.Messages())
	s.mu.Unlock()

	_, _ = io.WriteString(pw, chunk("lo"))
	waitTurn(t, s)
	_ = pw.Close()

	require.Equal(t, Failed, s.State())
	assert.ErrorIs(t, s.Err(), model.ErrStalePlaceholder)
	require.NoError(t, s.Acknowledge())

	require.NoError(t, s.Submit(context.Background(), "again"))
	pw = sender.next(t)
	_, _ = io.WriteString(pw, chunk("ok")+doneEvent)
	waitTurn(t, s)
	assert.Equal(t, Idle, s.State())
}

func TestFailure_SyntheticMessagesNotResent(t *testing.T) {
	sender := newPipeSender()
	sender.err = &api.TransportError{Status: http.StatusInternalServerError, Detail: "boom"}
	s := NewSession(sender, testHandle)

	require.NoError(t, s.Submit(context.Background(), "one"))
	waitTurn(t, s)
	require.NoError(t, s.Acknowledge())

	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()

	require.NoError(t, s.Submit(context.Background(), "two"))
	pw := sender.next(t)
	_, _ = io.WriteString(pw, doneEvent)
	waitTurn(t, s)

	call := sender.lastCall()
	require.Len(t, call, 2)
	assert.Equal(t, "one", call[0].Content)
	assert.Equal(t, "two", call[1].Content)
}

func TestReset(t *testing.T) {
	sender := newPipeSender()
	s := NewSession(sender, testHandle, WithHistory([]model.Message{model.NewUserMessage("old")}))

	require.NoError(t, s.Reset(nil))
	assert.Empty(t, s.Transcript())

	require.NoError(t, s.Submit(context.Background(), "q"))
	assert.ErrorIs(t, s.Reset(nil), ErrBusy)
	require.NoError(t, s.Cancel())
}

func TestWait_NoTurn(t *testing.T) {
	s := NewSession(newPipeSender(), testHandle)
	assert.NoError(t, s.Wait(context.Background()))
}

func TestRunState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "awaiting_response", AwaitingResponse.String())
	assert.Equal(t, "streaming", Streaming.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "RunState(9)", RunState(9).String())
	assert.True(t, Streaming.Running())
	assert.False(t, Failed.Running())
}

// =============================================================================
// BACKEND INTEGRATION
// =============================================================================

func TestSession_AgainstBackend(t *testing.T) {
	backend := apitest.New(t)
	client := api.New(backend.URL, api.WithHTTPClient(backend.Client()))
	userTok := backend.AddUser("a@example.com", "pw")
	id, tok := backend.AddSession(userTok, "")

	s := NewSession(client, model.SessionHandle{SessionID: id, Token: tok})
	require.NoError(t, s.Submit(context.Background(), "ping"))
	waitTurn(t, s)

	msgs := s.Transcript()
	require.Len(t, msgs, 2)
	assert.Equal(t, "echo: ping", msgs[1].Content)
	assert.Equal(t, Idle, s.State())
}

func TestSession_AgainstBackend_TokenExpired(t *testing.T) {
	backend := apitest.New(t)
	client := api.New(backend.URL, api.WithHTTPClient(backend.Client()))
	userTok := backend.AddUser("a@example.com", "pw")
	id, tok := backend.AddSession(userTok, "")
	backend.Expire(tok)

	s := NewSession(client, model.SessionHandle{SessionID: id, Token: tok})
	require.NoError(t, s.Submit(context.Background(), "ping"))
	waitTurn(t, s)

	require.Equal(t, Failed, s.State())
	assert.Equal(t, "token expired", s.Err().Error())
	require.NoError(t, s.Acknowledge())
	assert.Equal(t, Idle, s.State())
}

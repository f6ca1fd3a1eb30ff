// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lgchat/internal/api/apitest"
	"github.com/jeranaias/lgchat/internal/model"
)

func newTestClient(t *testing.T) (*Client, *apitest.Backend) {
	t.Helper()
	backend := apitest.New(t)
	return New(backend.URL, WithHTTPClient(backend.Client())), backend
}

// =============================================================================
// AUTH TESTS
// =============================================================================

func TestRegisterAndLogin(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	user, err := client.Register(ctx, "a@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", user.Email)
	assert.NotEmpty(t, user.Token.AccessToken)

	tok, err := client.Login(ctx, " a@example.com ", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, "bearer", tok.TokenType)
}

func TestLogin_BadCredentials(t *testing.T) {
	client, backend := newTestClient(t)
	backend.AddUser("a@example.com", "right")

	_, err := client.Login(context.Background(), "a@example.com", "wrong")
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "login", authErr.Op)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Incorrect email or password", Detail(err))
}

func TestRegister_ValidationDetail(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Register(context.Background(), "not-an-email", "pw")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "value is not a valid email address", Detail(err))
	assert.Contains(t, err.Error(), "register failed")
}

func TestRegister_Duplicate(t *testing.T) {
	client, backend := newTestClient(t)
	backend.AddUser("a@example.com", "pw")

	_, err := client.Register(context.Background(), "a@example.com", "pw")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadRequest, te.Status)
	assert.Equal(t, "Email already registered", te.Error())
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestSessionLifecycle(t *testing.T) {
	client, backend := newTestClient(t)
	ctx := context.Background()
	userTok := backend.AddUser("a@example.com", "pw")

	h, err := client.CreateSession(ctx, userTok)
	require.NoError(t, err)
	assert.NotEmpty(t, h.SessionID)
	assert.NotEmpty(t, h.Token)

	sessions, err := client.ListSessions(ctx, userTok)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, h.SessionID, sessions[0].SessionID)

	renamed, err := client.RenameSession(ctx, h, "Groceries")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", renamed.Name)
	assert.Equal(t, "Groceries", backend.SessionName(h.SessionID))

	require.NoError(t, client.DeleteSession(ctx, renamed))
	assert.False(t, backend.HasSession(h.SessionID))

	sessions, err = client.ListSessions(ctx, userTok)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestCreateSession_ExpiredUserToken(t *testing.T) {
	client, backend := newTestClient(t)
	userTok := backend.AddUser("a@example.com", "pw")
	backend.Expire(userTok)

	_, err := client.CreateSession(context.Background(), userTok)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessionCalls_RequireHandle(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.CreateSession(ctx, "")
	assert.ErrorIs(t, err, ErrNotSignedIn)

	_, err = client.ListSessions(ctx, "")
	assert.ErrorIs(t, err, ErrNotSignedIn)

	_, err = client.RenameSession(ctx, model.SessionHandle{}, "x")
	assert.ErrorIs(t, err, ErrNoSession)

	err = client.DeleteSession(ctx, model.SessionHandle{})
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = client.FetchHistory(ctx, model.SessionHandle{})
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = client.SendMessages(ctx, "", nil)
	assert.ErrorIs(t, err, ErrNoSession)
}

// =============================================================================
// CHATBOT TESTS
// =============================================================================

func TestFetchHistory_DropsUnknownRoles(t *testing.T) {
	client, backend := newTestClient(t)
	userTok := backend.AddUser("a@example.com", "pw")
	id, tok := backend.AddSession(userTok, "",
		apitest.Message{Role: "user", Content: "hi"},
		apitest.Message{Role: "tool", Content: "{}"},
		apitest.Message{Role: "assistant", Content: "hello"},
	)

	msgs, err := client.FetchHistory(context.Background(), model.SessionHandle{SessionID: id, Token: tok})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[1].Content)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
}

func TestClearHistory(t *testing.T) {
	client, backend := newTestClient(t)
	userTok := backend.AddUser("a@example.com", "pw")
	id, tok := backend.AddSession(userTok, "", apitest.Message{Role: "user", Content: "hi"})

	require.NoError(t, client.ClearHistory(context.Background(), model.SessionHandle{SessionID: id, Token: tok}))
	assert.Empty(t, backend.History(id))
}

func TestFetchHistory_ExpiredSession(t *testing.T) {
	client, backend := newTestClient(t)
	userTok := backend.AddUser("a@example.com", "pw")
	id, tok := backend.AddSession(userTok, "")
	backend.Expire(tok)

	_, err := client.FetchHistory(context.Background(), model.SessionHandle{SessionID: id, Token: tok})
	var sessErr *SessionError
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, id, sessErr.SessionID)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "token expired", Detail(err))
}

func TestChat_NonStreaming(t *testing.T) {
	client, backend := newTestClient(t)
	userTok := backend.AddUser("a@example.com", "pw")
	id, tok := backend.AddSession(userTok, "")

	msgs, err := client.Chat(context.Background(), model.SessionHandle{SessionID: id, Token: tok},
		[]model.Message{model.NewUserMessage("ping")})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "echo: ping", msgs[1].Content)
}

func TestSendMessages_StreamsBody(t *testing.T) {
	client, backend := newTestClient(t)
	userTok := backend.AddUser("a@example.com", "pw")
	id, tok := backend.AddSession(userTok, "")

	body, err := client.SendMessages(context.Background(), tok, []model.Message{
		model.NewUserMessage("hello"),
		model.NewErrorMessage("previous failure"),
	})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"done":true`)

	// Synthetic messages never reach the backend.
	history := backend.History(id)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, "echo: hello", history[1].Content)
}

func TestSendMessages_TokenExpired(t *testing.T) {
	client, backend := newTestClient(t)
	userTok := backend.AddUser("a@example.com", "pw")
	_, tok := backend.AddSession(userTok, "")
	backend.Expire(tok)

	_, err := client.SendMessages(context.Background(), tok, []model.Message{model.NewUserMessage("hi")})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusUnauthorized, te.Status)
	assert.Equal(t, "token expired", te.Error())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSendMessages_ServerError(t *testing.T) {
	client, backend := newTestClient(t)
	userTok := backend.AddUser("a@example.com", "pw")
	_, tok := backend.AddSession(userTok, "")
	backend.SetStream(func(w *apitest.SSEWriter, _ *http.Request, _ []apitest.Message) {
		w.Fail(http.StatusInternalServerError, "model unavailable")
	})

	_, err := client.SendMessages(context.Background(), tok, []model.Message{model.NewUserMessage("hi")})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "model unavailable", te.Error())
	assert.True(t, te.Temporary())
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestSendMessages_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := New(url)
	_, err := client.SendMessages(context.Background(), "tok", []model.Message{model.NewUserMessage("hi")})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.Status)
	assert.NotNil(t, te.Unwrap())
	assert.True(t, te.Temporary())
}

// =============================================================================
// PLUMBING TESTS
// =============================================================================

func TestHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[]}`))
	}))
	defer server.Close()

	client := New(server.URL+"/", WithUserAgent("lgchat-test"))
	assert.Equal(t, server.URL, client.BaseURL())

	_, err := client.FetchHistory(context.Background(), model.SessionHandle{SessionID: "s", Token: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", got.Get("Authorization"))
	assert.Equal(t, "lgchat-test", got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Accept"))
}

func TestNew_DefaultBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, New("  ").BaseURL())
}

func TestRateLimit_RespectsContext(t *testing.T) {
	client, _ := newTestClient(t)
	WithRateLimit(0.001, 1)(client)

	// First request consumes the burst.
	_, _ = client.Health(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Health(ctx)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.Status)
}

func TestHealth(t *testing.T) {
	client, _ := newTestClient(t)
	status, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy())
	assert.Equal(t, "healthy", status.Components["database"])
}

func TestExtractDetail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"string detail", 401, `{"detail":"token expired"}`, "token expired"},
		{"validation list", 422, `{"detail":[{"msg":"a"},{"msg":"b"}]}`, "a; b"},
		{"empty list falls back to body", 422, `{"detail":[]}`, `{"detail":[]}`},
		{"plain text", 502, "Bad Gateway from proxy", "Bad Gateway from proxy"},
		{"empty body", 503, "", "Service Unavailable"},
		{"unknown status", 599, "", "HTTP 599"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractDetail(tt.status, []byte(tt.body)))
		})
	}

	long := strings.Repeat("x", maxDetailLen*2)
	assert.Len(t, extractDetail(500, []byte(long)), maxDetailLen)

	// Multi-byte bodies are cut on a rune boundary.
	accented := "a" + strings.Repeat("é", maxDetailLen)
	got := extractDetail(500, []byte(accented))
	assert.True(t, utf8.ValidString(got), "detail is not valid UTF-8: %q", got)
	assert.Equal(t, maxDetailLen, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "é..."))
}

func TestDetail(t *testing.T) {
	assert.Equal(t, "", Detail(nil))
	assert.Equal(t, "boom", Detail(errors.New("boom")))
	wrapped := &SessionError{Op: "list sessions", Err: &TransportError{Status: 500, Detail: "db down"}}
	assert.Equal(t, "db down", Detail(wrapped))
	assert.Equal(t, "list sessions failed: db down", wrapped.Error())
}

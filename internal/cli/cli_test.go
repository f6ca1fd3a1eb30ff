// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lgchat/internal/api"
	"github.com/jeranaias/lgchat/internal/api/apitest"
	"github.com/jeranaias/lgchat/internal/config"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type testEnv struct {
	t       *testing.T
	backend *apitest.Backend
	home    string
	sigs    chan os.Signal
	lines   []string
	tuiRuns int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.HomeEnv, home)
	for _, key := range []string{"LGCHAT_API_URL", "LGCHAT_LOG_LEVEL", "LGCHAT_STORAGE_BACKEND", "LGCHAT_TOKEN_PATH", "LGCHAT_THEME"} {
		t.Setenv(key, "")
	}
	return &testEnv{
		t:       t,
		backend: apitest.New(t),
		home:    home,
		sigs:    make(chan os.Signal, 1),
	}
}

type result struct {
	code   int
	out    string
	errOut string
}

// run executes lgchat against the fake backend.
func (e *testEnv) run(stdin string, args ...string) result {
	e.t.Helper()
	var out, errOut bytes.Buffer
	a := newApp()
	a.in = strings.NewReader(stdin)
	a.out = &out
	a.errOut = &errOut
	a.newLineReader = func() (lineReader, error) {
		return &scriptReader{lines: e.lines}, nil
	}
	a.interrupts = func() (<-chan os.Signal, func()) {
		return e.sigs, func() {}
	}
	a.isTerminal = func() bool { return false }
	a.runTUI = func(ctx context.Context, a *app) error {
		e.tuiRuns++
		return nil
	}

	code := a.execute(context.Background(), append([]string{"--api-url", e.backend.URL}, args...))
	return result{code: code, out: out.String(), errOut: errOut.String()}
}

// signIn creates a user on the backend and logs in as that user. It returns
// a user token the test can use to set up backend state.
func (e *testEnv) signIn() string {
	e.t.Helper()
	token := e.backend.AddUser("ada@example.com", "secret")
	r := e.run("", "login", "-e", "ada@example.com", "-p", "secret")
	require.Equal(e.t, ExitSuccess, r.code, r.errOut)
	return token
}

// scriptReader replays REPL input.
type scriptReader struct {
	lines   []string
	history []string
}

func (r *scriptReader) Prompt(string) (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptReader) AppendHistory(item string) { r.history = append(r.history, item) }
func (r *scriptReader) Close() error              { return nil }

// =============================================================================
// EXIT CODES
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"generic", errors.New("boom"), ExitGeneralError},
		{"usage", &usageError{errors.New("bad flag")}, ExitUsageError},
		{"config", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "log.level", Message: "bad"}}), ExitConfigError},
		{"auth", &api.AuthError{Op: "login", Err: errors.New("no")}, ExitAuthError},
		{"not signed in", errNotSignedIn, ExitAuthError},
		{"session", &api.SessionError{Op: "rename", Err: errors.New("gone")}, ExitSessionError},
		{"transport", &api.TransportError{Status: http.StatusBadGateway}, ExitNetworkError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

// =============================================================================
// ACCOUNT COMMANDS
// =============================================================================

func TestRegisterWhoamiLogout(t *testing.T) {
	e := newTestEnv(t)

	r := e.run("", "register", "-e", "ada@example.com", "-p", "secret")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Contains(t, r.out, "Registered and signed in as ada@example.com")

	r = e.run("", "whoami")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Contains(t, r.out, "ada@example.com")
	assert.Contains(t, r.out, e.backend.URL)

	r = e.run("", "logout")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Contains(t, r.out, "Signed out ada@example.com")

	r = e.run("", "whoami")
	assert.Equal(t, ExitAuthError, r.code)
	assert.Contains(t, r.errOut, "lgchat login")
}

func TestLoginPromptsForCredentials(t *testing.T) {
	e := newTestEnv(t)
	e.backend.AddUser("ada@example.com", "secret")

	r := e.run("ada@example.com\nsecret\n", "login")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Contains(t, r.out, "Signed in as ada@example.com")
	assert.Contains(t, r.errOut, "Email: ")

	_, err := os.Stat(filepath.Join(e.home, "tokens.json"))
	assert.NoError(t, err)
}

func TestLoginRejected(t *testing.T) {
	e := newTestEnv(t)
	e.backend.AddUser("ada@example.com", "secret")

	r := e.run("", "login", "-e", "ada@example.com", "-p", "wrong")
	assert.Equal(t, ExitAuthError, r.code)
	assert.Contains(t, r.errOut, "Incorrect email or password")
}

func TestEphemeralKeepsNothing(t *testing.T) {
	e := newTestEnv(t)
	e.backend.AddUser("ada@example.com", "secret")

	r := e.run("", "--ephemeral", "login", "-e", "ada@example.com", "-p", "secret")
	require.Equal(t, ExitSuccess, r.code, r.errOut)

	r = e.run("", "whoami")
	assert.Equal(t, ExitAuthError, r.code)
	_, err := os.Stat(filepath.Join(e.home, "tokens.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestCommandsRequireSignIn(t *testing.T) {
	e := newTestEnv(t)
	for _, args := range [][]string{{"ask", "hi"}, {"sessions"}, {"history"}, {"chat"}} {
		r := e.run("", args...)
		assert.Equal(t, ExitAuthError, r.code, args)
	}
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestSessionsLifecycle(t *testing.T) {
	e := newTestEnv(t)
	token := e.signIn()

	r := e.run("", "sessions")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Contains(t, r.out, "No sessions")

	r = e.run("", "sessions", "new", "--name", "Research")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Contains(t, r.out, "Created session Research")

	id, _ := e.backend.AddSession(token, "Drafts")

	r = e.run("", "sessions", "ls")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Contains(t, r.out, "* ")
	assert.Contains(t, r.out, "Research")
	assert.Contains(t, r.out, "Drafts")

	r = e.run("", "sessions", "rename", id[:8], "Final", "drafts")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Equal(t, "Final drafts", e.backend.SessionName(id))

	r = e.run("", "sessions", "use", id)
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Contains(t, r.out, "Using session Final drafts")

	r = e.run("", "sessions", "rm", id)
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.False(t, e.backend.HasSession(id))

	r = e.run("", "sessions", "use", "no-such-session")
	assert.NotEqual(t, ExitSuccess, r.code)
}

// =============================================================================
// CHAT COMMANDS
// =============================================================================

func TestAskStreamsReply(t *testing.T) {
	e := newTestEnv(t)
	e.signIn()

	r := e.run("", "ask", "hello", "there")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Contains(t, r.out, "echo: hello there")

	r = e.run("", "sessions")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	var id string
	for _, line := range strings.Split(r.out, "\n") {
		if strings.HasPrefix(line, "* ") {
			id = strings.Fields(line)[1]
		}
	}
	require.NotEmpty(t, id, r.out)
	// The backend stores the turn after the stream ends.
	require.Eventually(t, func() bool {
		return len(e.backend.History(id)) == 2
	}, time.Second, 10*time.Millisecond)

	r = e.run("", "history")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Contains(t, r.out, "hello there")
	assert.Contains(t, r.out, "echo: hello there")

	r = e.run("", "history", "--format", "json")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Contains(t, r.out, `"content": "echo: hello there"`)

	out := filepath.Join(t.TempDir(), "chat.md")
	r = e.run("", "history", "-o", out)
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Contains(t, r.out, "Exported 2 messages to "+out)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Assistant")

	r = e.run("", "history", "--format", "html")
	assert.Equal(t, ExitUsageError, r.code)

	r = e.run("", "clear")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Empty(t, e.backend.History(id))
}

func TestAskReadsStdin(t *testing.T) {
	e := newTestEnv(t)
	e.signIn()

	r := e.run("from a pipe\n", "ask", "-")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Contains(t, r.out, "echo: from a pipe")
}

func TestAskBackendFailure(t *testing.T) {
	e := newTestEnv(t)
	e.signIn()
	e.backend.SetStream(func(w *apitest.SSEWriter, _ *http.Request, _ []apitest.Message) {
		w.Fail(http.StatusServiceUnavailable, "model overloaded")
	})

	r := e.run("", "ask", "hi")
	assert.Equal(t, ExitNetworkError, r.code)
	assert.Contains(t, r.errOut, "model overloaded")
}

func TestAskInterruptCancels(t *testing.T) {
	e := newTestEnv(t)
	e.signIn()
	e.backend.SetStream(func(w *apitest.SSEWriter, r *http.Request, _ []apitest.Message) {
		_ = w.Chunk("partial")
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	e.sigs <- os.Interrupt

	r := e.run("", "ask", "hi")
	assert.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Contains(t, r.errOut, "[Cancelled]")
}

func TestChatREPL(t *testing.T) {
	e := newTestEnv(t)
	e.signIn()
	e.lines = []string{"hello", "", "/session", "/bogus", "/history", "/clear", "/quit", "never sent"}

	r := e.run("", "chat", "--new", "--name", "Scratch")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Contains(t, r.out, "echo: hello")
	assert.Contains(t, r.out, "Scratch")
	assert.Contains(t, r.out, "History cleared.")
	assert.Contains(t, r.errOut, "unknown command /bogus")
	assert.NotContains(t, r.out, "never sent")
	assert.Contains(t, e.backend.Requests(), "DELETE /api/v1/chatbot/messages")
}

func TestChatEndsOnEOF(t *testing.T) {
	e := newTestEnv(t)
	e.signIn()

	r := e.run("", "chat")
	assert.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Contains(t, r.out, "Type /help for commands.")
}

// =============================================================================
// CONFIG AND MAINTENANCE
// =============================================================================

func TestConfigCommands(t *testing.T) {
	e := newTestEnv(t)

	r := e.run("", "config", "init")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	r = e.run("", "config", "init")
	assert.Equal(t, ExitUsageError, r.code)
	r = e.run("", "config", "init", "--force")
	assert.Equal(t, ExitSuccess, r.code, r.errOut)

	r = e.run("", "config", "set", "api.timeout_secs", "60")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	r = e.run("", "config", "get", "api.timeout_secs")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Equal(t, "60", strings.TrimSpace(r.out))

	r = e.run("", "config", "set", "log.level", "loud")
	assert.Equal(t, ExitConfigError, r.code)
	r = e.run("", "config", "set", "no.such", "1")
	assert.Equal(t, ExitUsageError, r.code)

	r = e.run("", "config", "keys")
	require.Equal(t, ExitSuccess, r.code)
	assert.Contains(t, r.out, "storage.backend")

	r = e.run("", "config")
	require.Equal(t, ExitSuccess, r.code)
	assert.Contains(t, r.out, "timeout_secs = 60")

	r = e.run("", "config", "path")
	require.Equal(t, ExitSuccess, r.code)
	assert.Equal(t, filepath.Join(e.home, "config.toml"), strings.TrimSpace(r.out))
}

func TestDoctor(t *testing.T) {
	e := newTestEnv(t)

	r := e.run("", "doctor")
	require.Equal(t, ExitSuccess, r.code, r.out)
	assert.Contains(t, r.out, "Backend healthy")
	assert.Contains(t, r.out, "Not signed in")

	e.signIn()
	r = e.run("", "doctor", "--json")
	require.Equal(t, ExitSuccess, r.code, r.out)

	var report struct {
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
		Healthy bool `json:"healthy"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.out), &report))
	assert.True(t, report.Healthy)
	require.Len(t, report.Checks, 4)
	for _, c := range report.Checks {
		assert.Equal(t, "pass", c.Status, c.Name)
	}
}

func TestDoctorBackendDown(t *testing.T) {
	e := newTestEnv(t)
	url := e.backend.URL
	e.backend.Close()

	var out bytes.Buffer
	a := newApp()
	a.out = &out
	a.errOut = io.Discard
	code := a.execute(context.Background(), []string{"--api-url", url, "doctor"})
	assert.Equal(t, ExitGeneralError, code)
	assert.Contains(t, out.String(), "Backend unreachable")
}

func TestVersionAndUsage(t *testing.T) {
	e := newTestEnv(t)

	r := e.run("", "version")
	require.Equal(t, ExitSuccess, r.code)
	assert.Contains(t, r.out, Version)

	r = e.run("", "--no-such-flag")
	assert.Equal(t, ExitUsageError, r.code)

	r = e.run("", "sessions", "rm")
	assert.Equal(t, ExitUsageError, r.code)
}

func TestRootOpensTUI(t *testing.T) {
	e := newTestEnv(t)
	r := e.run("")
	require.Equal(t, ExitSuccess, r.code, r.errOut)
	assert.Equal(t, 1, e.tuiRuns)

	_, err := os.Stat(filepath.Join(e.home, "lgchat.log"))
	assert.NoError(t, err)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package apitest provides an in-process fake of the chat backend for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// Message is the wire form of a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamFunc writes the streamed reply for one chat turn.
type StreamFunc func(w *SSEWriter, r *http.Request, messages []Message)

type session struct {
	id       string
	owner    string
	name     string
	token    string
	messages []Message
}

// Backend is a fake of the chat backend served over httptest.
type Backend struct {
	*httptest.Server

	mu         sync.Mutex
	users      map[string]string // email -> password
	userTokens map[string]string // token -> email
	sessions   map[string]*session
	order      []string
	bySession  map[string]string // session token -> session id
	stream     StreamFunc
	requests   []string
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		users:      make(map[string]string),
		userTokens: make(map[string]string),
		sessions:   make(map[string]*session),
		bySession:  make(map[string]string),
	}
	b.stream = b.echo

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/register", b.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", b.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/session", b.handleCreateSession)
	mux.HandleFunc("GET /api/v1/auth/sessions", b.handleListSessions)
	mux.HandleFunc("PATCH /api/v1/auth/session/{id}/name", b.handleRename)
	mux.HandleFunc("DELETE /api/v1/auth/session/{id}", b.handleDeleteSession)
	mux.HandleFunc("GET /api/v1/chatbot/messages", b.handleGetMessages)
	mux.HandleFunc("DELETE /api/v1/chatbot/messages", b.handleClearMessages)
	mux.HandleFunc("POST /api/v1/chatbot/chat", b.handleChat)
	mux.HandleFunc("POST /api/v1/chatbot/chat/stream", b.handleChatStream)
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "healthy",
			"version":     "1.0.0",
			"environment": "test",
			"components":  map[string]string{"api": "healthy", "database": "healthy"},
		})
	})

	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, r.Method+" "+r.URL.Path)
		b.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.Close)
	return b
}

// AddUser registers a user directly and returns a valid user token.
func (b *Backend) AddUser(email, password string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[email] = password
	return b.issueUserToken(email)
}

// AddSession creates a session for the user owning userToken.
func (b *Backend) AddSession(userToken, name string, history ...Message) (id, token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.newSession(b.userTokens[userToken])
	s.name = name
	s.messages = append(s.messages, history...)
	return s.id, s.token
}

// Expire invalidates a user or session token.
func (b *Backend) Expire(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.userTokens, token)
	delete(b.bySession, token)
}

// SetStream replaces the streamed reply. The default echoes the last user
// message back in two chunks.
func (b *Backend) SetStream(fn StreamFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stream = fn
}

// History returns the stored messages of a session.
func (b *Backend) History(id string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[id]; ok {
		return append([]Message(nil), s.messages...)
	}
	return nil
}

// SessionName returns the stored name of a session.
func (b *Backend) SessionName(id string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[id]; ok {
		return s.name
	}
	return ""
}

// HasSession reports whether a session exists.
func (b *Backend) HasSession(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sessions[id]
	return ok
}

// Requests returns "METHOD /path" for every request received.
func (b *Backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

// =============================================================================
// HANDLERS
// =============================================================================

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "value is not a valid email address"}},
		})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.users[req.Email]; exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	b.users[req.Email] = req.Password
	writeJSON(w, http.StatusOK, map[string]any{
		"id":    len(b.users),
		"email": req.Email,
		"token": tokenJSON(b.issueUserToken(req.Email)),
	})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid form")
		return
	}
	if r.PostForm.Get("grant_type") != "password" {
		writeDetail(w, http.StatusBadRequest, "Unsupported grant type")
		return
	}
	email := r.PostForm.Get("username")

	b.mu.Lock()
	defer b.mu.Unlock()
	if pw, ok := b.users[email]; !ok || pw != r.PostForm.Get("password") {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	writeJSON(w, http.StatusOK, tokenJSON(b.issueUserToken(email)))
}

func (b *Backend) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	email, ok := b.userTokens[bearer(r)]
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid authentication credentials")
		return
	}
	writeJSON(w, http.StatusOK, sessionJSON(b.newSession(email)))
}

func (b *Backend) handleListSessions(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	email, ok := b.userTokens[bearer(r)]
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid authentication credentials")
		return
	}
	out := []map[string]any{}
	for _, id := range b.order {
		if s, ok := b.sessions[id]; ok && s.owner == email {
			out = append(out, sessionJSON(s))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleRename(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid form")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessionFor(w, r)
	if !ok {
		return
	}
	if s.id != r.PathValue("id") {
		writeDetail(w, http.StatusForbidden, "Cannot modify other sessions")
		return
	}
	s.name = r.PostForm.Get("name")
	writeJSON(w, http.StatusOK, sessionJSON(s))
}

func (b *Backend) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessionFor(w, r)
	if !ok {
		return
	}
	if s.id != r.PathValue("id") {
		writeDetail(w, http.StatusForbidden, "Cannot delete other sessions")
		return
	}
	delete(b.sessions, s.id)
	delete(b.bySession, s.token)
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessionFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": append([]Message{}, s.messages...)})
}

func (b *Backend) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessionFor(w, r)
	if !ok {
		return
	}
	s.messages = nil
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat history cleared successfully"})
}

func (b *Backend) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []Message `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessionFor(w, r)
	if !ok {
		return
	}
	reply := Message{Role: "assistant", Content: "echo: " + lastUser(req.Messages)}
	s.messages = append(append([]Message(nil), req.Messages...), reply)
	writeJSON(w, http.StatusOK, map[string]any{"messages": s.messages})
}

func (b *Backend) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []Message `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	b.mu.Lock()
	s, ok := b.sessionFor(w, r)
	stream := b.stream
	b.mu.Unlock()
	if !ok {
		return
	}

	rec := &recorder{ResponseWriter: w}
	stream(NewSSEWriter(rec), r, req.Messages)

	b.mu.Lock()
	s.messages = append(append([]Message(nil), req.Messages...), Message{Role: "assistant", Content: rec.content()})
	b.mu.Unlock()
}

// echo is the default stream: the last user message split in two chunks.
func (b *Backend) echo(w *SSEWriter, _ *http.Request, messages []Message) {
	text := "echo: " + lastUser(messages)
	half := len(text) / 2
	_ = w.Chunk(text[:half])
	_ = w.Chunk(text[half:])
	_ = w.Done()
}

// =============================================================================
// HELPERS
// =============================================================================

func (b *Backend) issueUserToken(email string) string {
	tok := "user-" + uuid.NewString()
	b.userTokens[tok] = email
	return tok
}

func (b *Backend) newSession(owner string) *session {
	s := &session{
		id:    uuid.NewString(),
		owner: owner,
		token: "session-" + uuid.NewString(),
	}
	b.sessions[s.id] = s
	b.bySession[s.token] = s.id
	b.order = append(b.order, s.id)
	return s
}

// sessionFor resolves the session bearer token, writing a 401 on failure.
// Callers hold b.mu.
func (b *Backend) sessionFor(w http.ResponseWriter, r *http.Request) (*session, bool) {
	id, ok := b.bySession[bearer(r)]
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "token expired")
		return nil, false
	}
	s, ok := b.sessions[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return s, true
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func lastUser(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

func tokenJSON(tok string) map[string]string {
	return map[string]string{
		"access_token": tok,
		"token_type":   "bearer",
		"expires_at":   "2099-01-01T00:00:00",
	}
}

func sessionJSON(s *session) map[string]any {
	return map[string]any{
		"session_id": s.id,
		"name":       s.name,
		"token":      tokenJSON(s.token),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// recorder captures streamed chunk content so the fake can store the reply.
type recorder struct {
	http.ResponseWriter
	buf strings.Builder
}

func (r *recorder) Write(p []byte) (int, error) {
	r.buf.Write(p)
	return r.ResponseWriter.Write(p)
}

func (r *recorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *recorder) content() string {
	var sb strings.Builder
	for _, line := range strings.Split(r.buf.String(), "\n") {
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var c struct {
			Content string `json:"content"`
			Done    bool   `json:"done"`
		}
		if json.Unmarshal([]byte(payload), &c) == nil && !c.Done {
			sb.WriteString(c.Content)
		}
	}
	return sb.String()
}

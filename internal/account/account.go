// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package account holds the signed-in user's context: the API client, the
// user token and the store it is persisted in. Every front end (CLI, REPL,
// TUI) goes through an Account instead of reading a global token.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/lgchat/internal/api"
	"github.com/jeranaias/lgchat/internal/chat"
	"github.com/jeranaias/lgchat/internal/model"
	"github.com/jeranaias/lgchat/internal/tokenstore"
)

// Errors returned by Account.
var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrSessionNotFound    = errors.New("session not found")
	ErrAmbiguousSession   = errors.New("session id prefix matches more than one session")
)

// Account is the signed-in user's context. It is safe for concurrent use.
type Account struct {
	client *api.Client
	store  tokenstore.Store
	base   zerolog.Logger
	log    zerolog.Logger

	mu    sync.RWMutex
	token string
	email string
}

// New returns an Account backed by store. Call Restore to pick up a token
// saved by an earlier run.
func New(client *api.Client, store tokenstore.Store, log zerolog.Logger) *Account {
	return &Account{
		client: client,
		store:  store,
		base:   log,
		log:    log.With().Str("component", "account").Logger(),
	}
}

// Client returns the API client.
func (a *Account) Client() *api.Client {
	return a.client
}

// =============================================================================
// SIGN IN / OUT
// =============================================================================

// Restore loads the persisted token. It reports whether one was found.
// The token is not validated; an expired token surfaces on first use.
func (a *Account) Restore() (bool, error) {
	token, err := a.store.Get(tokenstore.KeyAccessToken)
	if errors.Is(err, tokenstore.ErrNotFound) {
		a.setToken("", "")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read token: %w", err)
	}
	email, err := a.store.Get(tokenstore.KeyEmail)
	if err != nil && !errors.Is(err, tokenstore.ErrNotFound) {
		return false, fmt.Errorf("read email: %w", err)
	}
	a.setToken(token, email)
	return token != "", nil
}

// SignedIn reports whether a user token is held.
func (a *Account) SignedIn() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token != ""
}

// Email returns the signed-in user's email, if known.
func (a *Account) Email() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.email
}

// Login exchanges credentials for a user token and persists it.
func (a *Account) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return &api.AuthError{Op: "login", Err: ErrMissingCredentials}
	}
	tok, err := a.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return a.signIn(tok.AccessToken, email)
}

// Register creates an account and signs in with the token it returns.
func (a *Account) Register(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return &api.AuthError{Op: "register", Err: ErrMissingCredentials}
	}
	user, err := a.client.Register(ctx, email, password)
	if err != nil {
		return err
	}
	if user.Email != "" {
		email = user.Email
	}
	if user.Token.AccessToken == "" {
		// Some deployments do not issue a token on registration.
		return a.Login(ctx, email, password)
	}
	return a.signIn(user.Token.AccessToken, email)
}

// Logout forgets the user token and the last session.
func (a *Account) Logout() error {
	a.setToken("", "")
	var errs []error
	for _, key := range []string{tokenstore.KeyAccessToken, tokenstore.KeyEmail, tokenstore.KeySession} {
		if err := a.store.Delete(key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	a.log.Info().Msg("signed out")
	return errors.Join(errs...)
}

func (a *Account) signIn(token, email string) error {
	if err := a.store.Set(tokenstore.KeyAccessToken, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if err := a.store.Set(tokenstore.KeyEmail, email); err != nil {
		return fmt.Errorf("save email: %w", err)
	}
	a.setToken(token, email)
	a.log.Info().Str("email", email).Msg("signed in")
	return nil
}

func (a *Account) setToken(token, email string) {
	a.mu.Lock()
	a.token = token
	a.email = email
	a.mu.Unlock()
}

func (a *Account) userToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// checkToken drops the user token once the backend has rejected it.
func (a *Account) checkToken(token string, err error) error {
	if err == nil || !errors.Is(err, api.ErrUnauthorized) {
		return err
	}
	a.mu.Lock()
	stale := a.token == token && token != ""
	if stale {
		a.token = ""
	}
	a.mu.Unlock()
	if stale {
		a.log.Warn().Msg("user token rejected, signing out")
		if derr := a.store.Delete(tokenstore.KeyAccessToken); derr != nil {
			a.log.Warn().Err(derr).Msg("could not delete rejected token")
		}
	}
	return err
}

// =============================================================================
// SESSIONS
// =============================================================================

// Sessions lists the user's sessions.
func (a *Account) Sessions(ctx context.Context) ([]model.SessionHandle, error) {
	token := a.userToken()
	handles, err := a.client.ListSessions(ctx, token)
	return handles, a.checkToken(token, err)
}

// NewSession creates a session and names it when name is not empty.
func (a *Account) NewSession(ctx context.Context, name string) (model.SessionHandle, error) {
	token := a.userToken()
	h, err := a.client.CreateSession(ctx, token)
	if err != nil {
		return model.SessionHandle{}, a.checkToken(token, err)
	}
	a.log.Debug().Str("session_id", h.ShortID()).Msg("session created")

	if name = strings.TrimSpace(name); name != "" {
		renamed, err := a.client.RenameSession(ctx, h, name)
		if err != nil {
			return h, err
		}
		h = renamed
	}
	return h, nil
}

// RenameSession renames h. The remembered session is updated when it is h.
func (a *Account) RenameSession(ctx context.Context, h model.SessionHandle, name string) (model.SessionHandle, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return h, &api.SessionError{Op: "rename session", SessionID: h.SessionID, Err: errors.New("name is empty")}
	}
	renamed, err := a.client.RenameSession(ctx, h, name)
	if err != nil {
		return h, err
	}
	if last, ok := a.LastSession(); ok && last.SessionID == h.SessionID {
		if err := a.RememberSession(renamed); err != nil {
			a.log.Warn().Err(err).Msg("could not update remembered session")
		}
	}
	return renamed, nil
}

// DeleteSession deletes h and forgets it if it was the remembered session.
func (a *Account) DeleteSession(ctx context.Context, h model.SessionHandle) error {
	if err := a.client.DeleteSession(ctx, h); err != nil {
		return err
	}
	if last, ok := a.LastSession(); ok && last.SessionID == h.SessionID {
		if err := a.store.Delete(tokenstore.KeySession); err != nil {
			a.log.Warn().Err(err).Msg("could not forget deleted session")
		}
	}
	return nil
}

// FindSession resolves a session by full ID or unique ID prefix.
func (a *Account) FindSession(ctx context.Context, id string) (model.SessionHandle, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.SessionHandle{}, &api.SessionError{Op: "find session", Err: api.ErrNoSession}
	}
	handles, err := a.Sessions(ctx)
	if err != nil {
		return model.SessionHandle{}, err
	}

	var match []model.SessionHandle
	for _, h := range handles {
		if h.SessionID == id {
			return h, nil
		}
		if strings.HasPrefix(h.SessionID, id) {
			match = append(match, h)
		}
	}
	switch len(match) {
	case 0:
		return model.SessionHandle{}, &api.SessionError{Op: "find session", SessionID: id, Err: ErrSessionNotFound}
	case 1:
		return match[0], nil
	default:
		return model.SessionHandle{}, &api.SessionError{Op: "find session", SessionID: id, Err: ErrAmbiguousSession}
	}
}

// LastSession returns the remembered session handle.
func (a *Account) LastSession() (model.SessionHandle, bool) {
	raw, err := a.store.Get(tokenstore.KeySession)
	if err != nil {
		return model.SessionHandle{}, false
	}
	var h model.SessionHandle
	if err := json.Unmarshal([]byte(raw), &h); err != nil || h.IsZero() {
		return model.SessionHandle{}, false
	}
	return h, true
}

// RememberSession persists h as the session to resume next time.
func (a *Account) RememberSession(h model.SessionHandle) error {
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	if err := a.store.Set(tokenstore.KeySession, string(data)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Resume returns the session named by id, else the remembered session,
// else a new one. The result is remembered.
func (a *Account) Resume(ctx context.Context, id string) (model.SessionHandle, error) {
	var (
		h   model.SessionHandle
		err error
	)
	switch last, ok := a.LastSession(); {
	case id != "":
		if ok && (last.SessionID == id || strings.HasPrefix(last.SessionID, id)) {
			h = last
		} else {
			h, err = a.FindSession(ctx, id)
		}
	case ok:
		h = last
	default:
		h, err = a.NewSession(ctx, "")
	}
	if err != nil {
		return model.SessionHandle{}, err
	}
	if err := a.RememberSession(h); err != nil {
		a.log.Warn().Err(err).Msg("could not remember session")
	}
	return h, nil
}

// =============================================================================
// CHAT
// =============================================================================

// Open fetches the history of h and returns an idle chat session seeded
// with it.
func (a *Account) Open(ctx context.Context, h model.SessionHandle, opts ...chat.Option) (*chat.Session, error) {
	history, err := a.client.FetchHistory(ctx, h)
	if err != nil {
		return nil, err
	}
	opts = append([]chat.Option{chat.WithHistory(history), chat.WithLogger(a.base)}, opts...)
	return chat.NewSession(a.client, h, opts...), nil
}

// History returns the stored messages of h.
func (a *Account) History(ctx context.Context, h model.SessionHandle) ([]model.Message, error) {
	return a.client.FetchHistory(ctx, h)
}

// ClearHistory deletes the stored messages of h.
func (a *Account) ClearHistory(ctx context.Context, h model.SessionHandle) error {
	return a.client.ClearHistory(ctx, h)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tokenstore persists the client's credentials between runs.
//
// A Store is a small string key/value store. The signed-in user's bearer
// token lives under KeyAccessToken; no expiry is tracked locally, an
// expired token is discovered when the backend rejects it.
package tokenstore

import (
	"errors"
	"fmt"
	"strings"
)

// Well-known keys.
const (
	// KeyAccessToken holds the signed-in user's bearer token.
	KeyAccessToken = "access_token"

	// KeyEmail holds the email the token was issued for.
	KeyEmail = "email"

	// KeySession holds the JSON-encoded handle of the last used session.
	KeySession = "session"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("key not found")

// Store is the persistence port for credentials.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Close releases resources held by the store.
	Close() error
}

// Open creates the store for backend at path.
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		return NewFileStore(path), nil
	case BackendSQLite:
		return OpenSQLite(path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown token store backend %q", backend)
	}
}

// Watchable reports whether changes to backend can be observed on disk.
func Watchable(backend string) bool {
	b := strings.ToLower(strings.TrimSpace(backend))
	return b == "" || b == BackendFile || b == BackendSQLite
}

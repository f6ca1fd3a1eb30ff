// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the lgchat command line.
//
// Commands are built with cobra. The root command's PersistentPreRunE loads
// configuration, logging, the token store and the signed-in account before
// any command runs; a command's "lgchat/setup" annotation limits how much of
// that it needs.
//
// # Commands
//
//   - register, login, logout, whoami: account management
//   - sessions: list, create, rename, delete and select chat sessions
//   - chat: interactive line-based chat with streamed replies
//   - ask: send one message and stream the reply
//   - history, clear: show or delete a session's messages
//   - tui: full-screen terminal UI (the default)
//   - config, doctor, version: maintenance
//
// Errors are returned from commands, displayed once by Execute and mapped to
// the Exit* codes.
package cli

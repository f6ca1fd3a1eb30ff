// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the full-screen terminal UI of lgchat.
//
// It moves between three screens: the sign-in form, the session list and
// the chat view (package ui/chat). Network calls run as Bubble Tea
// commands so the screen never blocks on the backend.
//
// When the token store can be watched, a sign-out or sign-in made by
// another lgchat process is followed: the UI returns to the sign-in form or
// reloads the session list.
package ui

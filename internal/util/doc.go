// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the client packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - NormalizeInput: trims and NFC-normalises user-typed text
//   - TruncateWidth, StringWidth: display-width aware truncation
//
// # Usage
//
//	// Write the token file atomically and privately
//	err := util.AtomicWriteFile(path, data, 0600)
//
//	// Clean up a message before it is submitted
//	text := util.NormalizeInput(raw)
package util

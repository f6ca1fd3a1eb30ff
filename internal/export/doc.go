// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a session transcript to a file or stream.
//
// Supported formats:
//   - markdown: YAML front matter and one section per message
//   - json: the session and its messages, for scripting
//   - text: plain "You:" / "Assistant:" blocks
//
// Error notices written for failed turns are kept in markdown and text
// (marked as such) and flagged in JSON.
package export

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeAll feeds each part in order and flushes at the end.
func decodeAll(t *testing.T, parts ...string) []string {
	t.Helper()
	var d Decoder
	var out []string
	for _, p := range parts {
		payloads, err := d.Feed([]byte(p))
		require.NoError(t, err)
		out = append(out, payloads...)
	}
	if payload, ok := d.Flush(); ok {
		out = append(out, payload)
	}
	return out
}

// =============================================================================
// FRAMING TESTS
// =============================================================================

func TestDecoder_Framing(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single event", "data: a\n\n", []string{"a"}},
		{"two events", "data: a\n\ndata: b\n\n", []string{"a", "b"}},
		{"crlf", "data: a\r\n\r\ndata: b\r\n\r\n", []string{"a", "b"}},
		{"mixed endings", "data: a\r\n\ndata: b\n\r\n", []string{"a", "b"}},
		{"multi-line data", "data: a\ndata: b\n\n", []string{"a\nb"}},
		{"no space after colon", "data:a\n\n", []string{"a"}},
		{"only one space stripped", "data:  a\n\n", []string{" a"}},
		{"comment ignored", ": keepalive\n\ndata: a\n\n", []string{"a"}},
		{"other fields ignored", "event: msg\nid: 7\nretry: 10\ndata: a\n\n", []string{"a"}},
		{"event without data", "event: ping\n\n", nil},
		{"empty data line", "data:\n\n", []string{""}},
		{"trailing event flushed", "data: a\n\ndata: b", []string{"a", "b"}},
		{"trailing event with newline", "data: a\n", []string{"a"}},
		{"extra blank lines", "\n\n\ndata: a\n\n\n\n", []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeAll(t, tt.input))
		})
	}
}

// TestDecoder_EverySplitPoint checks that decoding is independent of how the
// input is fragmented.
func TestDecoder_EverySplitPoint(t *testing.T) {
	inputs := []string{
		"data: {\"content\":\"Hel\",\"done\":false}\n\ndata: {\"content\":\"lo\",\"done\":false}\n\ndata: {\"content\":\"\",\"done\":true}\n\n",
		"data: one\r\n\r\n: comment\r\ndata: two\r\ndata: three\r\n\r\n",
		"data: héllo wörld\n\ndata: 日本語\n\n",
	}

	for _, input := range inputs {
		want := decodeAll(t, input)
		require.NotEmpty(t, want)

		for i := 0; i <= len(input); i++ {
			got := decodeAll(t, input[:i], input[i:])
			assert.Equal(t, want, got, "split at %d", i)
		}
		for i := 0; i <= len(input); i++ {
			for j := i; j <= len(input); j++ {
				got := decodeAll(t, input[:i], input[i:j], input[j:])
				if !assert.Equal(t, want, got, "split at %d,%d", i, j) {
					return
				}
			}
		}
	}
}

func TestDecoder_ByteAtATime(t *testing.T) {
	input := "data: a\r\n\r\ndata: b\ndata: c\n\n"
	parts := strings.Split(input, "")
	assert.Equal(t, []string{"a", "b\nc"}, decodeAll(t, parts...))
}

func TestDecoder_RetainsPartialLine(t *testing.T) {
	var d Decoder
	out, err := d.Feed([]byte("data: par"))
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, len("data: par"), d.Buffered())

	out, err = d.Feed([]byte("tial\n\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"partial"}, out)
	assert.Zero(t, d.Buffered())
}

func TestDecoder_Reset(t *testing.T) {
	var d Decoder
	_, err := d.Feed([]byte("data: stale\ndata: mo"))
	require.NoError(t, err)

	d.Reset()
	out, err := d.Feed([]byte("data: fresh\n\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, out)
}

func TestDecoder_EventTooLarge(t *testing.T) {
	var d Decoder
	_, err := d.Feed([]byte("data: " + strings.Repeat("x", MaxEventSize+1)))
	assert.ErrorIs(t, err, ErrEventTooLarge)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"bytes"
	"errors"
)

// MaxEventSize is the maximum number of bytes buffered for a single event.
// SECURITY: bounds memory when a peer never sends an event delimiter.
const MaxEventSize = 1 << 20

// ErrEventTooLarge is returned when an event exceeds MaxEventSize.
var ErrEventTooLarge = errors.New("sse event exceeds maximum size")

var dataField = []byte("data")

// Decoder splits a byte stream into SSE event payloads.
//
// Events are delimited by a blank line; LF and CRLF line endings are both
// accepted. Only data fields are kept and multiple data lines of one event are
// joined with "\n". The zero value is ready to use. Decoder is not safe for
// concurrent use.
type Decoder struct {
	// buf holds bytes of a line that has not seen its terminating LF yet.
	buf []byte

	// data holds the data lines of the event being assembled.
	data    [][]byte
	hasData bool
	size    int
}

// Feed consumes p and returns the payloads of every event completed by it.
// Bytes belonging to an unfinished line or event are retained for the next
// call.
func (d *Decoder) Feed(p []byte) ([]string, error) {
	d.buf = append(d.buf, p...)

	var out []string
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(d.buf[:i], []byte{'\r'})
		if payload, ok := d.processLine(line); ok {
			out = append(out, payload)
		}
		d.buf = d.buf[i+1:]
	}

	// Compact so the retained tail does not pin an ever-growing array.
	if len(d.buf) == 0 {
		d.buf = d.buf[:0:0]
	} else {
		d.buf = append([]byte(nil), d.buf...)
	}

	if len(d.buf)+d.size > MaxEventSize {
		return out, ErrEventTooLarge
	}
	return out, nil
}

// Flush is called at end of input. It completes a trailing event that was
// never followed by a blank line and returns its payload, if any.
func (d *Decoder) Flush() (string, bool) {
	if len(d.buf) > 0 {
		line := bytes.TrimSuffix(d.buf, []byte{'\r'})
		d.processLine(line)
		d.buf = nil
	}
	return d.dispatch()
}

// Reset discards all buffered state.
func (d *Decoder) Reset() {
	d.buf = nil
	d.data = nil
	d.hasData = false
	d.size = 0
}

// Buffered returns the number of bytes held for incomplete lines.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// processLine handles one complete line. A blank line dispatches the event.
func (d *Decoder) processLine(line []byte) (string, bool) {
	if len(line) == 0 {
		return d.dispatch()
	}

	// Comment line
	if line[0] == ':' {
		return "", false
	}

	field, value := line, []byte(nil)
	if i := bytes.IndexByte(line, ':'); i >= 0 {
		field = line[:i]
		value = line[i+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
	}

	// Ignore other fields (event:, id:, retry:)
	if !bytes.Equal(field, dataField) {
		return "", false
	}

	d.data = append(d.data, append([]byte(nil), value...))
	d.hasData = true
	d.size += len(value) + 1
	return "", false
}

func (d *Decoder) dispatch() (string, bool) {
	if !d.hasData {
		return "", false
	}
	payload := string(bytes.Join(d.data, []byte{'\n'}))
	d.data = d.data[:0]
	d.hasData = false
	d.size = 0
	return payload, true
}

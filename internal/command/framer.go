// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package command

import (
	"errors"

	"github.com/goccy/go-json"
)

var (
	// ErrSyntax means the buffered bytes are not a JSON object. The buffer
	// is discarded.
	ErrSyntax = errors.New("malformed request")

	// ErrMessageTooLarge means a request grew past the size limit before it
	// was complete. The buffer is discarded.
	ErrMessageTooLarge = errors.New("request too large")
)

// Framer splits a client byte stream into complete top-level JSON objects.
// Scanning state is kept between calls so a request trickling in byte by
// byte is only scanned once.
type Framer struct {
	max int
	buf []byte

	scan     int
	depth    int
	started  bool
	inString bool
	escaped  bool
}

// NewFramer returns a framer that gives up on requests longer than limit bytes.
func NewFramer(limit int) *Framer {
	return &Framer{max: limit}
}

// Buffered returns the number of bytes waiting for the rest of a request.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Feed appends data and returns every request it completes. On error the
// whole buffer is dropped; requests completed before the bad bytes are
// still returned.
func (f *Framer) Feed(data []byte) ([][]byte, error) {
	f.buf = append(f.buf, data...)

	var msgs [][]byte
	for f.scan < len(f.buf) {
		c := f.buf[f.scan]
		f.scan++

		if !f.started {
			switch c {
			case ' ', '\t', '\r', '\n':
				f.buf = f.buf[f.scan:]
				f.scan = 0
				continue
			case '{':
				f.started = true
				f.depth = 1
				continue
			default:
				f.reset()
				return msgs, ErrSyntax
			}
		}

		if f.max > 0 && f.scan > f.max {
			f.reset()
			return msgs, ErrMessageTooLarge
		}

		if f.inString {
			switch {
			case f.escaped:
				f.escaped = false
			case c == '\\':
				f.escaped = true
			case c == '"':
				f.inString = false
			}
			continue
		}

		switch c {
		case '"':
			f.inString = true
		case '{', '[':
			f.depth++
		case '}', ']':
			f.depth--
			if f.depth > 0 {
				continue
			}
			msg := f.buf[:f.scan]
			if !json.Valid(msg) {
				f.reset()
				return msgs, ErrSyntax
			}
			msgs = append(msgs, append([]byte(nil), msg...))
			f.buf = f.buf[f.scan:]
			f.scan = 0
			f.started = false
		}
	}

	if len(f.buf) == 0 {
		f.buf = nil
	}
	return msgs, nil
}

func (f *Framer) reset() {
	f.buf = nil
	f.scan = 0
	f.depth = 0
	f.started = false
	f.inString = false
	f.escaped = false
}

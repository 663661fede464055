// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package source

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressTooLong is returned when a Unix socket path does not fit the
	// platform address structure.
	ErrAddressTooLong = errors.New("unix socket path too long")

	// ErrInvalidSource is returned when an operation needs an address but the
	// source has no usable transport.
	ErrInvalidSource = errors.New("source has no usable transport")

	// ErrInvalidHost is returned when an IPv4 source host is not a
	// dotted-decimal IPv4 address.
	ErrInvalidHost = errors.New("invalid IPv4 host")
)

// FieldError reports a malformed field in a source configuration block.
type FieldError struct {
	Tag    string
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("source: field %q %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("source %q: field %q %s", e.Tag, e.Field, e.Reason)
}

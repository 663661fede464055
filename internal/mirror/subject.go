// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package mirror

import (
	"errors"
	"strings"
)

// ErrUnavailable is returned by Serve in builds without the nats tag.
var ErrUnavailable = errors.New("mirror: binary built without nats support")

// Subject returns the NATS subject an input is mirrored to. Separators,
// wildcards and whitespace in the tag are replaced so that one tag always
// maps to exactly one subject token.
func Subject(prefix, tag string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, tag)
	if token == "" {
		token = "_"
	}
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return token
	}
	return prefix + "." + token
}

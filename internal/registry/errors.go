// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package registry

import "fmt"

// DuplicateTagError reports a tag declared twice within one section.
type DuplicateTagError struct {
	Section string
	Tag     string
}

func (e *DuplicateTagError) Error() string {
	return fmt.Sprintf("%s: duplicate tag %q", e.Section, e.Tag)
}

// ExpectedSingletonError reports a server section that does not hold
// exactly one entry.
type ExpectedSingletonError struct {
	Section string
	Count   int
}

func (e *ExpectedSingletonError) Error() string {
	return fmt.Sprintf("%s: expected exactly one entry, found %d", e.Section, e.Count)
}

// SectionError reports a malformed section or entry. Index is -1 when the
// problem is the section itself.
type SectionError struct {
	Section string
	Index   int
	Reason  string
	Err     error
}

func (e *SectionError) Error() string {
	where := e.Section
	if e.Index >= 0 {
		where = fmt.Sprintf("%s[%d]", e.Section, e.Index)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", where, e.Err)
	}
	return fmt.Sprintf("%s: %s", where, e.Reason)
}

func (e *SectionError) Unwrap() error {
	return e.Err
}

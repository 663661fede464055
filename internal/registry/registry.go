// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package registry

import (
	"fmt"

	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tagrouter/internal/logging"
	"github.com/tomtom215/tagrouter/internal/source"
)

// Document sections.
const (
	SectionInput         = "input"
	SectionOutput        = "output"
	SectionCommandServer = "cmd_server"
	SectionListenServer  = "conn_server"

	// KeyOutputTo lists the output tags of an input entry.
	KeyOutputTo = "output_to"
)

// Registry turns the source sections of a configuration document into Sources.
type Registry struct {
	doc    *koanf.Koanf
	logger zerolog.Logger
}

// New creates a Registry over a loaded configuration document.
func New(doc *koanf.Koanf) *Registry {
	return &Registry{
		doc:    doc,
		logger: logging.WithComponent("registry"),
	}
}

// Inputs returns the input sources in document order. Entries with an
// unknown comm_type are returned as Undefined sources.
func (r *Registry) Inputs() ([]source.Source, error) {
	blocks, err := r.blocks(SectionInput)
	if err != nil {
		return nil, err
	}

	result := make([]source.Source, 0, len(blocks))
	seen := make(map[string]struct{}, len(blocks))
	for i, block := range blocks {
		src, err := source.Parse(block)
		if err != nil {
			return nil, &SectionError{Section: SectionInput, Index: i, Err: err}
		}
		src.IsInput = true

		if err := checkDuplicate(seen, SectionInput, src.Tag); err != nil {
			return nil, err
		}

		if !src.Valid() {
			r.logger.Warn().
				Str("section", SectionInput).
				Int("index", i).
				Str("tag", src.Tag).
				Str("source", src.Describe()).
				Msg("Unknown comm_type, input will not be served")
			result = append(result, src)
			continue
		}

		outputTags, err := r.outputTags(i, src.Tag, block)
		if err != nil {
			return nil, err
		}
		src.OutputTags = outputTags
		result = append(result, src)
	}
	return result, nil
}

// Outputs returns the output sources in document order.
func (r *Registry) Outputs() ([]source.Source, error) {
	blocks, err := r.blocks(SectionOutput)
	if err != nil {
		return nil, err
	}

	result := make([]source.Source, 0, len(blocks))
	seen := make(map[string]struct{}, len(blocks))
	for i, block := range blocks {
		src, err := source.Parse(block)
		if err != nil {
			return nil, &SectionError{Section: SectionOutput, Index: i, Err: err}
		}
		src.IsOutput = true

		if err := checkDuplicate(seen, SectionOutput, src.Tag); err != nil {
			return nil, err
		}
		if !src.Valid() {
			r.logger.Warn().
				Str("section", SectionOutput).
				Int("index", i).
				Str("tag", src.Tag).
				Str("source", src.Describe()).
				Msg("Unknown comm_type, output cannot be connected")
		}
		result = append(result, src)
	}
	return result, nil
}

// CommandServer returns the single cmd_server endpoint.
func (r *Registry) CommandServer() (source.Source, error) {
	return r.singleton(SectionCommandServer)
}

// ListenServer returns the single conn_server endpoint that command clients
// connect to.
func (r *Registry) ListenServer() (source.Source, error) {
	return r.singleton(SectionListenServer)
}

func (r *Registry) singleton(section string) (source.Source, error) {
	raw := r.doc.Get(section)
	if raw == nil {
		return source.Source{}, &ExpectedSingletonError{Section: section, Count: 0}
	}
	items, ok := raw.([]interface{})
	if !ok {
		return source.Source{}, &SectionError{Section: section, Index: -1, Reason: "must be an array"}
	}
	if len(items) != 1 {
		return source.Source{}, &ExpectedSingletonError{Section: section, Count: len(items)}
	}
	block, ok := items[0].(map[string]interface{})
	if !ok {
		return source.Source{}, &SectionError{Section: section, Index: 0, Reason: "must be an object"}
	}

	// Server entries may omit the tag; they are addressed by section.
	if _, hasTag := block[source.KeyTag]; !hasTag {
		withTag := make(map[string]any, len(block)+1)
		for k, v := range block {
			withTag[k] = v
		}
		withTag[source.KeyTag] = section
		block = withTag
	}

	src, err := source.Parse(block)
	if err != nil {
		return source.Source{}, &SectionError{Section: section, Index: 0, Err: err}
	}
	if !src.Valid() {
		return source.Source{}, &SectionError{
			Section: section,
			Index:   0,
			Err:     fmt.Errorf("%w: %s", source.ErrInvalidSource, src.Describe()),
		}
	}
	return src, nil
}

// blocks returns the objects of a source array.
func (r *Registry) blocks(section string) ([]map[string]any, error) {
	raw := r.doc.Get(section)
	if raw == nil {
		return nil, &SectionError{Section: section, Index: -1, Reason: "is missing"}
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, &SectionError{Section: section, Index: -1, Reason: "must be an array"}
	}

	blocks := make([]map[string]any, len(items))
	for i, item := range items {
		block, ok := item.(map[string]interface{})
		if !ok {
			return nil, &SectionError{Section: section, Index: i, Reason: "must be an object"}
		}
		blocks[i] = block
	}
	return blocks, nil
}

// outputTags reads the output_to list of an input. Non-string entries are
// skipped with a warning.
func (r *Registry) outputTags(index int, tag string, block map[string]any) ([]string, error) {
	raw, ok := block[KeyOutputTo].([]interface{})
	if !ok {
		return nil, &SectionError{
			Section: SectionInput,
			Index:   index,
			Reason:  fmt.Sprintf("input %q: %s must be an array of output tags", tag, KeyOutputTo),
		}
	}

	tags := make([]string, 0, len(raw))
	for j, v := range raw {
		s, ok := v.(string)
		if !ok {
			r.logger.Warn().
				Str("tag", tag).
				Int("position", j).
				Interface("value", v).
				Msg("Skipping non-string output_to entry")
			continue
		}
		tags = append(tags, s)
	}
	return tags, nil
}

// checkDuplicate records tag in seen. Entries without a tag (an unknown
// comm_type may omit it) are not tracked.
func checkDuplicate(seen map[string]struct{}, section, tag string) error {
	if tag == "" {
		return nil
	}
	if _, dup := seen[tag]; dup {
		return &DuplicateTagError{Section: section, Tag: tag}
	}
	seen[tag] = struct{}{}
	return nil
}

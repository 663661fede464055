// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package registry

import (
	"testing"

	"github.com/tomtom215/tagrouter/internal/source"
)

func TestResolveRouting(t *testing.T) {
	t.Parallel()

	outputs := []source.Source{
		{Tag: "A", Transport: source.UnixSocket{Path: "/tmp/a.sock"}, IsOutput: true},
		{Tag: "B", Transport: source.IPv4Socket{Host: "127.0.0.1", Port: 9000}, IsOutput: true},
		{Tag: "BROKEN", Transport: source.Undefined{CommType: "BOGUS"}, IsOutput: true},
	}
	inputs := []source.Source{
		{Tag: "IN1", Transport: source.UnixSocket{Path: "/tmp/in1.sock"}, IsInput: true,
			OutputTags: []string{"B", "A", "B", "NOPE", "BROKEN"}},
		{Tag: "IN2", Transport: source.UnixSocket{Path: "/tmp/in2.sock"}, IsInput: true},
		{Tag: "SKIP", Transport: source.Undefined{CommType: "SERIAL"}, IsInput: true,
			OutputTags: []string{"A"}},
	}

	table := ResolveRouting(inputs, outputs)

	tags := table.Inputs()
	if len(tags) != 2 || tags[0] != "IN1" || tags[1] != "IN2" {
		t.Fatalf("Inputs() = %v, want [IN1 IN2]", tags)
	}

	got := table.Outputs("IN1")
	if len(got) != 2 || got[0].Tag != "B" || got[1].Tag != "A" {
		t.Errorf("Outputs(IN1) = %+v, want B then A", got)
	}
	if len(table.Outputs("IN2")) != 0 {
		t.Errorf("Outputs(IN2) = %+v, want none", table.Outputs("IN2"))
	}
	if !table.Has("IN2") {
		t.Error("IN2 should be routable with no outputs")
	}
	if table.Has("SKIP") {
		t.Error("undefined input should not be routed")
	}

	// Accessors hand out copies.
	got[0].Tag = "MUTATED"
	if table.Outputs("IN1")[0].Tag != "B" {
		t.Error("Outputs() exposed internal state")
	}
	tags[0] = "MUTATED"
	if table.Inputs()[0] != "IN1" {
		t.Error("Inputs() exposed internal state")
	}
}

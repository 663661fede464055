// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package registry

import (
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/tagrouter/internal/logging"
	"github.com/tomtom215/tagrouter/internal/source"
)

// RoutingTable maps each servable input tag to its resolved outputs. It is
// built once at startup and never modified; accessors return copies.
type RoutingTable struct {
	inputs []string
	routes map[string][]source.Source
}

// ResolveRouting matches every input's output tags against the output
// sources. Unknown tags, outputs with an unknown comm_type and repeated tags
// are dropped with a warning. Inputs with an unknown comm_type get no route.
func ResolveRouting(inputs, outputs []source.Source) RoutingTable {
	logger := logging.WithComponent("registry")

	byTag := make(map[string]source.Source, len(outputs))
	for _, out := range outputs {
		if out.Tag != "" {
			byTag[out.Tag] = out
		}
	}

	table := RoutingTable{
		inputs: make([]string, 0, len(inputs)),
		routes: make(map[string][]source.Source, len(inputs)),
	}

	for _, in := range inputs {
		if !in.Valid() {
			continue
		}

		resolved := make([]source.Source, 0, len(in.OutputTags))
		used := make(map[string]struct{}, len(in.OutputTags))
		for _, tag := range in.OutputTags {
			if _, dup := used[tag]; dup {
				logger.Warn().Str("input", in.Tag).Str("output", tag).Msg("Output listed twice, ignoring repeat")
				continue
			}
			out, ok := byTag[tag]
			if !ok {
				logger.Warn().Str("input", in.Tag).Str("output", tag).Msg("No output with this tag, dropping route")
				continue
			}
			if !out.Valid() {
				logger.Warn().Str("input", in.Tag).Str("output", tag).Msg("Output has no usable transport, dropping route")
				continue
			}
			used[tag] = struct{}{}
			resolved = append(resolved, out)
		}

		table.inputs = append(table.inputs, in.Tag)
		table.routes[in.Tag] = resolved
	}
	return table
}

// Inputs returns the routed input tags in configuration order.
func (t RoutingTable) Inputs() []string {
	return append([]string(nil), t.inputs...)
}

// Outputs returns the resolved outputs of an input in configuration order.
func (t RoutingTable) Outputs(inputTag string) []source.Source {
	return append([]source.Source(nil), t.routes[inputTag]...)
}

// Has reports whether inputTag has an entry in the table.
func (t RoutingTable) Has(inputTag string) bool {
	_, ok := t.routes[inputTag]
	return ok
}

// Topology is everything the router needs from the configuration document.
type Topology struct {
	Inputs        []source.Source
	Outputs       []source.Source
	Routes        RoutingTable
	CommandServer source.Source
	ListenServer  source.Source
}

// Input returns the input source with the given tag.
func (t *Topology) Input(tag string) (source.Source, bool) {
	for _, in := range t.Inputs {
		if in.Tag == tag {
			return in, true
		}
	}
	return source.Source{}, false
}

// Load reads and validates the complete topology of doc.
func Load(doc *koanf.Koanf) (*Topology, error) {
	r := New(doc)

	inputs, err := r.Inputs()
	if err != nil {
		return nil, err
	}
	outputs, err := r.Outputs()
	if err != nil {
		return nil, err
	}
	cmdServer, err := r.CommandServer()
	if err != nil {
		return nil, err
	}
	listenServer, err := r.ListenServer()
	if err != nil {
		return nil, err
	}

	return &Topology{
		Inputs:        inputs,
		Outputs:       outputs,
		Routes:        ResolveRouting(inputs, outputs),
		CommandServer: cmdServer,
		ListenServer:  listenServer,
	}, nil
}

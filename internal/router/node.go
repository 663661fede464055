// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package router

import (
	"sync"

	"github.com/tomtom215/tagrouter/internal/metrics"
)

// Node is the broadcast point of one input. Output sinks are attached by the
// input's own service; subscribers (command clients, stream taps, mirrors)
// come and go from other goroutines. The node only references sinks by ID
// and never owns their connections.
type Node struct {
	tag string

	mu          sync.RWMutex
	outputs     map[uint64]Sink
	subscribers map[uint64]Sink
}

// NewNode creates an empty node for an input tag.
func NewNode(tag string) *Node {
	return &Node{
		tag:         tag,
		outputs:     make(map[uint64]Sink),
		subscribers: make(map[uint64]Sink),
	}
}

// Tag returns the input tag.
func (n *Node) Tag() string {
	return n.tag
}

// AttachOutput adds an output sink.
func (n *Node) AttachOutput(s Sink) {
	n.add(n.outputs, s)
}

// DetachOutput removes an output sink. It reports whether the sink was attached.
func (n *Node) DetachOutput(id uint64) bool {
	return n.remove(n.outputs, id)
}

// Subscribe adds a subscriber sink.
func (n *Node) Subscribe(s Sink) {
	n.add(n.subscribers, s)
}

// Unsubscribe removes a subscriber sink. It reports whether the sink was subscribed.
func (n *Node) Unsubscribe(id uint64) bool {
	return n.remove(n.subscribers, id)
}

// Counts returns the number of attached outputs and subscribers.
func (n *Node) Counts() (outputs, subscribers int) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.outputs), len(n.subscribers)
}

// Forward queues chunk on every attached sink and returns how many accepted
// it. Sinks found closed are removed.
func (n *Node) Forward(chunk []byte) int {
	var delivered int
	var stale []uint64

	n.mu.RLock()
	for id, s := range n.outputs {
		if s.Enqueue(chunk) {
			delivered++
		} else {
			stale = append(stale, id)
		}
	}
	for id, s := range n.subscribers {
		if s.Enqueue(chunk) {
			delivered++
		} else {
			stale = append(stale, id)
		}
	}
	n.mu.RUnlock()

	for _, id := range stale {
		if !n.remove(n.outputs, id) {
			n.remove(n.subscribers, id)
		}
	}
	return delivered
}

// Close closes and removes every sink.
func (n *Node) Close() {
	n.mu.Lock()
	sinks := make([]Sink, 0, len(n.outputs)+len(n.subscribers))
	for id, s := range n.outputs {
		sinks = append(sinks, s)
		delete(n.outputs, id)
		metrics.TrackSink(n.tag, s.Kind(), false)
	}
	for id, s := range n.subscribers {
		sinks = append(sinks, s)
		delete(n.subscribers, id)
		metrics.TrackSink(n.tag, s.Kind(), false)
	}
	n.mu.Unlock()

	for _, s := range sinks {
		s.Close(ErrSinkClosed)
	}
}

func (n *Node) add(set map[uint64]Sink, s Sink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := set[s.ID()]; ok {
		return
	}
	set[s.ID()] = s
	metrics.TrackSink(n.tag, s.Kind(), true)
}

func (n *Node) remove(set map[uint64]Sink, id uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := set[id]
	if !ok {
		return false
	}
	delete(set, id)
	metrics.TrackSink(n.tag, s.Kind(), false)
	return true
}

// Directory indexes the nodes of all servable inputs in configuration order.
// It is built once and read concurrently.
type Directory struct {
	tags  []string
	nodes map[string]*Node
}

// NewDirectory creates one node per tag.
func NewDirectory(tags []string) *Directory {
	d := &Directory{
		tags:  append([]string(nil), tags...),
		nodes: make(map[string]*Node, len(tags)),
	}
	for _, tag := range tags {
		d.nodes[tag] = NewNode(tag)
	}
	return d
}

// Lookup returns the node of an input tag.
func (d *Directory) Lookup(tag string) (*Node, bool) {
	n, ok := d.nodes[tag]
	return n, ok
}

// Tags returns the input tags in configuration order.
func (d *Directory) Tags() []string {
	return append([]string(nil), d.tags...)
}

// Nodes returns the nodes in configuration order.
func (d *Directory) Nodes() []*Node {
	nodes := make([]*Node, len(d.tags))
	for i, tag := range d.tags {
		nodes[i] = d.nodes[tag]
	}
	return nodes
}

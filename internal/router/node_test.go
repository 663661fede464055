// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package router

import (
	"sync"
	"testing"
)

// recordingSink collects every chunk it receives.
type recordingSink struct {
	id   uint64
	kind string

	mu     sync.Mutex
	data   []byte
	closed bool
	done   chan struct{}
}

func newRecordingSink(kind string) *recordingSink {
	return &recordingSink{id: sinkIDCounter.Add(1), kind: kind, done: make(chan struct{})}
}

func (r *recordingSink) ID() uint64            { return r.id }
func (r *recordingSink) Kind() string          { return r.kind }
func (r *recordingSink) Done() <-chan struct{} { return r.done }

func (r *recordingSink) Enqueue(chunk []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.data = append(r.data, chunk...)
	return true
}

func (r *recordingSink) Close(error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.done)
	}
}

func (r *recordingSink) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.data)
}

func TestNodeForward(t *testing.T) {
	t.Parallel()

	n := NewNode("IN")
	out1 := newRecordingSink("output")
	out2 := newRecordingSink("output")
	client := newRecordingSink("client")

	n.AttachOutput(out1)
	n.AttachOutput(out2)
	n.AttachOutput(out2) // attaching twice is a no-op
	n.Subscribe(client)

	if outputs, subs := n.Counts(); outputs != 2 || subs != 1 {
		t.Fatalf("Counts() = %d, %d, want 2, 1", outputs, subs)
	}

	for _, chunk := range []string{"A", "BC", "D"} {
		if got := n.Forward([]byte(chunk)); got != 3 {
			t.Errorf("Forward(%q) delivered to %d sinks, want 3", chunk, got)
		}
	}

	for name, s := range map[string]*recordingSink{"out1": out1, "out2": out2, "client": client} {
		if got := s.String(); got != "ABCD" {
			t.Errorf("%s received %q, want %q", name, got, "ABCD")
		}
	}
}

func TestNodePrunesClosedSinks(t *testing.T) {
	t.Parallel()

	n := NewNode("IN")
	healthy := newRecordingSink("output")
	broken := newRecordingSink("output")
	gone := newRecordingSink("client")

	n.AttachOutput(healthy)
	n.AttachOutput(broken)
	n.Subscribe(gone)

	broken.Close(nil)
	gone.Close(nil)

	if got := n.Forward([]byte("x")); got != 1 {
		t.Errorf("Forward delivered to %d sinks, want 1", got)
	}
	if outputs, subs := n.Counts(); outputs != 1 || subs != 0 {
		t.Errorf("Counts() = %d, %d after prune, want 1, 0", outputs, subs)
	}
	if healthy.String() != "x" {
		t.Errorf("healthy sink received %q", healthy.String())
	}
}

func TestNodeSubscribeUnsubscribe(t *testing.T) {
	t.Parallel()

	n := NewNode("IN")
	client := newRecordingSink("client")

	n.Subscribe(client)
	n.Forward([]byte("one"))
	if !n.Unsubscribe(client.ID()) {
		t.Fatal("Unsubscribe() = false for a subscribed sink")
	}
	if n.Unsubscribe(client.ID()) {
		t.Error("second Unsubscribe() = true")
	}
	if n.DetachOutput(client.ID()) {
		t.Error("DetachOutput() removed a subscriber")
	}
	n.Forward([]byte("two"))

	if got := client.String(); got != "one" {
		t.Errorf("client received %q, want %q", got, "one")
	}
}

func TestNodeClose(t *testing.T) {
	t.Parallel()

	n := NewNode("IN")
	out := newRecordingSink("output")
	client := newRecordingSink("client")
	n.AttachOutput(out)
	n.Subscribe(client)

	n.Close()

	for _, s := range []*recordingSink{out, client} {
		select {
		case <-s.Done():
		default:
			t.Errorf("sink %d not closed", s.ID())
		}
	}
	if outputs, subs := n.Counts(); outputs != 0 || subs != 0 {
		t.Errorf("Counts() = %d, %d after Close, want 0, 0", outputs, subs)
	}
}

func TestNodeConcurrentSubscribers(t *testing.T) {
	t.Parallel()

	n := NewNode("IN")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := newRecordingSink("client")
			for j := 0; j < 100; j++ {
				n.Subscribe(s)
				n.Unsubscribe(s.ID())
			}
		}()
	}
	for i := 0; i < 100; i++ {
		n.Forward([]byte("x"))
	}
	wg.Wait()

	if _, subs := n.Counts(); subs != 0 {
		t.Errorf("subscribers = %d, want 0", subs)
	}
}

func TestDirectory(t *testing.T) {
	t.Parallel()

	d := NewDirectory([]string{"syslog", "metrics", "audit"})

	tags := d.Tags()
	if len(tags) != 3 || tags[0] != "syslog" || tags[2] != "audit" {
		t.Errorf("Tags() = %v", tags)
	}
	tags[0] = "mutated"
	if d.Tags()[0] != "syslog" {
		t.Error("Tags() exposed internal state")
	}

	n, ok := d.Lookup("metrics")
	if !ok || n.Tag() != "metrics" {
		t.Errorf("Lookup(metrics) = %v, %v", n, ok)
	}
	if _, ok := d.Lookup("missing"); ok {
		t.Error("Lookup(missing) found a node")
	}

	nodes := d.Nodes()
	if len(nodes) != 3 || nodes[1] != n {
		t.Errorf("Nodes() = %v", nodes)
	}
}

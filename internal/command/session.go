// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package command

import (
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tagrouter/internal/router"
)

// State is the protocol state of a session.
type State int

const (
	// AwaitingSelection is the discovery phase: list requests are answered
	// and nothing is streamed.
	AwaitingSelection State = iota

	// Bound sessions receive the raw stream of their input.
	Bound
)

// String returns the state name.
func (s State) String() string {
	if s == Bound {
		return "bound"
	}
	return "awaiting_selection"
}

// Session is the protocol state of one command client. It is owned by the
// server loop and never touched from other goroutines.
type Session struct {
	id            uint64
	correlationID string

	sink    router.Sink
	framer  *Framer
	limiter *rate.Limiter
	logger  zerolog.Logger

	state State
	bound *router.Node
}

// NewSession creates a session writing replies and stream bytes to sink.
// A nil limiter disables rate limiting.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSession(id uint64, correlationID string, sink router.Sink, maxMessage int, limiter *rate.Limiter, logger zerolog.Logger) *Session {
	return &Session{
		id:            id,
		correlationID: correlationID,
		sink:          sink,
		framer:        NewFramer(maxMessage),
		limiter:       limiter,
		logger:        logger,
	}
}

// ID returns the session ID.
func (s *Session) ID() uint64 {
	return s.id
}

// CorrelationID returns the ID used in the session's log lines.
func (s *Session) CorrelationID() string {
	return s.correlationID
}

// State returns the protocol state.
func (s *Session) State() State {
	return s.state
}

// BoundInput returns the selected input tag.
func (s *Session) BoundInput() (string, bool) {
	if s.bound == nil {
		return "", false
	}
	return s.bound.Tag(), true
}

// allow reports whether one more request fits the rate limit.
func (s *Session) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

// bind subscribes the session's sink to node, leaving any previous node.
// Bytes already queued from the previous node are still delivered first.
func (s *Session) bind(node *router.Node) {
	if s.bound != nil {
		s.bound.Unsubscribe(s.sink.ID())
	}
	if qs, ok := s.sink.(*router.QueueSink); ok {
		qs.SetInput(node.Tag())
	}
	node.Subscribe(s.sink)
	s.bound = node
	s.state = Bound
}

// close unsubscribes the session and closes its sink.
func (s *Session) close(err error) {
	if s.bound != nil {
		s.bound.Unsubscribe(s.sink.ID())
	}
	s.sink.Close(err)
}

// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package command

import (
	"github.com/tomtom215/tagrouter/internal/metrics"
	"github.com/tomtom215/tagrouter/internal/router"
)

// Outcomes recorded in metrics.CommandRequests.
const (
	OutcomeOK        = "ok"
	OutcomeIgnored   = "ignored"
	OutcomeUnknown   = "unknown_input"
	OutcomeRebound   = "rebound"
	OutcomeRejected  = "rejected"
	OutcomeMalformed = "malformed"
)

// Options selects the policy for the protocol's undefined cases.
type Options struct {
	// AllowRebind lets a bound session select a different input.
	AllowRebind bool

	// RejectUnknown answers a selection of an unknown input with an error
	// line instead of ignoring it.
	RejectUnknown bool
}

// Handler runs the request state machine against the input directory.
type Handler struct {
	dir  *router.Directory
	opts Options
}

// NewHandler creates a handler for the inputs in dir.
func NewHandler(dir *router.Directory, opts Options) *Handler {
	return &Handler{dir: dir, opts: opts}
}

// Handle applies one complete request to sess and returns the outcome.
func (h *Handler) Handle(sess *Session, msg []byte) string {
	req := DecodeRequest(msg)

	var outcome string
	switch req.Kind {
	case RequestList:
		outcome = h.list(sess)
	case RequestSelect:
		outcome = h.selectInput(sess, req.Tag)
	default:
		outcome = OutcomeMalformed
		sess.logger.Debug().Int("bytes", len(msg)).Msg("Ignoring unrecognized request")
	}

	metrics.RecordCommand(req.Kind.String(), outcome)
	return outcome
}

func (h *Handler) list(sess *Session) string {
	if sess.state == Bound {
		sess.logger.Debug().Msg("Ignoring list request on bound session")
		return OutcomeIgnored
	}
	if reply := EncodeList(h.dir.Tags()); reply != nil {
		sess.sink.Enqueue(reply)
	}
	return OutcomeOK
}

func (h *Handler) selectInput(sess *Session, tag string) string {
	node, ok := h.dir.Lookup(tag)
	if !ok {
		sess.logger.Info().Str("selected_input", tag).Msg("Client selected unknown input")
		if h.opts.RejectUnknown {
			sess.sink.Enqueue(EncodeUnknownInput(tag))
		}
		return OutcomeUnknown
	}

	if current, bound := sess.BoundInput(); bound {
		if current == tag {
			return OutcomeIgnored
		}
		if !h.opts.AllowRebind {
			sess.logger.Info().
				Str("bound_input", current).
				Str("selected_input", tag).
				Msg("Client already bound, ignoring selection")
			return OutcomeRejected
		}
		sess.bind(node)
		sess.logger.Info().Str("from", current).Str("input", tag).Msg("Client rebound")
		return OutcomeRebound
	}

	sess.bind(node)
	sess.logger.Info().Str("input", tag).Msg("Client bound")
	return OutcomeOK
}

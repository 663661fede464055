// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package router

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/tagrouter/internal/logging"
	"github.com/tomtom215/tagrouter/internal/metrics"
	"github.com/tomtom215/tagrouter/internal/source"
)

// Dial results recorded in metrics.OutputDials.
const (
	dialSuccess  = "success"
	dialFailure  = "failure"
	dialRejected = "rejected"
)

// outputDialer connects one input to one output. Connects go through a
// circuit breaker so an unreachable output is not hammered by redials.
type outputDialer struct {
	output  source.Source
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[net.Conn]
}

// newOutputDialer builds the dialer for output as seen from input. The
// breaker opens after failures consecutive failed connects and stays open
// for openFor.
func newOutputDialer(input string, output source.Source, timeout time.Duration, failures uint32, openFor time.Duration) *outputDialer {
	name := input + "->" + output.Tag

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[net.Conn](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openFor,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= failures
			if trip {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return trip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &outputDialer{output: output, timeout: timeout, cb: cb}
}

// Connect implements ConnectFunc.
func (d *outputDialer) Connect(ctx context.Context) (io.WriteCloser, error) {
	conn, err := d.cb.Execute(func() (net.Conn, error) {
		dialCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		return d.output.Dial(dialCtx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordDial(d.output.Tag, dialRejected)
		} else {
			metrics.RecordDial(d.output.Tag, dialFailure)
		}
		return nil, err
	}
	metrics.RecordDial(d.output.Tag, dialSuccess)
	return conn, nil
}

// State returns the breaker state name.
func (d *outputDialer) State() string {
	return stateToString(d.cb.State())
}

// stateToString converts circuit breaker state to string
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// stateToFloat converts circuit breaker state to float for Prometheus
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

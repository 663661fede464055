// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tagrouter/internal/metrics"
)

var (
	// ErrQueueOverflow closes a sink whose outbound queue grew past its limit.
	ErrQueueOverflow = errors.New("outbound queue limit exceeded")

	// ErrSinkClosed is the close reason of a sink shut down by its owner.
	ErrSinkClosed = errors.New("sink closed")
)

// Sink receives every chunk forwarded by the Node it is attached to.
type Sink interface {
	// ID is unique for the life of the process.
	ID() uint64

	// Kind is the metrics label of the sink (output, client, websocket, mirror).
	Kind() string

	// Enqueue queues chunk for delivery without blocking. It returns false
	// once the sink is closed. The chunk must not be modified afterwards.
	Enqueue(chunk []byte) bool

	// Done is closed when the sink is closed.
	Done() <-chan struct{}

	// Close shuts the sink down with reason err. Only the first call has an effect.
	Close(err error)
}

// sinkIDCounter hands out sink IDs.
var sinkIDCounter atomic.Uint64

// ConnectFunc opens the connection of a sink that starts unconnected.
type ConnectFunc func(ctx context.Context) (io.WriteCloser, error)

// SinkConfig configures a QueueSink.
type SinkConfig struct {
	// Input is the tag used for metrics. It may be empty for sinks that move
	// between inputs; SetInput updates it.
	Input string
	Kind  string

	// QueueLimit caps the queued bytes. Zero or less means unlimited.
	QueueLimit int

	// Writer is an established connection. When nil, Connect is called from
	// the writer goroutine and chunks queue up until it returns.
	Writer  io.WriteCloser
	Connect ConnectFunc

	// WatchPeer reads and discards from the connection so a peer hang-up is
	// noticed before the next write.
	WatchPeer bool

	Logger zerolog.Logger
}

// QueueSink is an ordered outbound byte queue drained by one writer goroutine.
// Enqueue never blocks; a sink that falls more than QueueLimit bytes behind
// is closed with ErrQueueOverflow.
type QueueSink struct {
	id     uint64
	kind   string
	limit  int
	logger zerolog.Logger

	notify chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	input   string
	queue   [][]byte
	pending int
	writer  io.WriteCloser
	closed  bool
	err     error

	closeOnce sync.Once
}

// NewQueueSink creates the sink and starts its writer goroutine. The sink is
// closed when ctx is canceled.
func NewQueueSink(ctx context.Context, cfg SinkConfig) *QueueSink {
	s := &QueueSink{
		id:     sinkIDCounter.Add(1),
		kind:   cfg.Kind,
		limit:  cfg.QueueLimit,
		logger: cfg.Logger,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		input:  cfg.Input,
	}
	go s.run(ctx, cfg)
	return s
}

// ID implements Sink.
func (s *QueueSink) ID() uint64 {
	return s.id
}

// Kind implements Sink.
func (s *QueueSink) Kind() string {
	return s.kind
}

// Done implements Sink.
func (s *QueueSink) Done() <-chan struct{} {
	return s.done
}

// Err returns the close reason, or nil while the sink is open.
func (s *QueueSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// SetInput changes the input tag used for metrics.
func (s *QueueSink) SetInput(input string) {
	s.mu.Lock()
	s.input = input
	s.mu.Unlock()
}

// Pending returns the number of queued bytes not yet written.
func (s *QueueSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Enqueue implements Sink. A chunk always fits into an empty queue so that a
// single large read cannot overflow an idle sink.
func (s *QueueSink) Enqueue(chunk []byte) bool {
	if len(chunk) == 0 {
		return !s.isClosed()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if s.limit > 0 && s.pending > 0 && s.pending+len(chunk) > s.limit {
		pending, input := s.pending, s.input
		s.mu.Unlock()

		metrics.SinkQueueOverflows.WithLabelValues(input, s.kind).Inc()
		s.Close(fmt.Errorf("%w: %d bytes pending, limit %d", ErrQueueOverflow, pending, s.limit))
		return false
	}
	s.queue = append(s.queue, chunk)
	s.pending += len(chunk)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

// Close implements Sink.
func (s *QueueSink) Close(err error) {
	s.closeOnce.Do(func() {
		if err == nil {
			err = ErrSinkClosed
		}

		s.mu.Lock()
		s.closed = true
		s.err = err
		s.queue = nil
		s.pending = 0
		w := s.writer
		s.mu.Unlock()

		close(s.done)
		if w != nil {
			_ = w.Close()
		}

		switch {
		case errors.Is(err, ErrSinkClosed), errors.Is(err, context.Canceled):
			s.logger.Debug().Msg("Sink closed")
		default:
			s.logger.Warn().Err(err).Msg("Sink closed")
		}
	})
}

func (s *QueueSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// setWriter installs the connection opened by the writer goroutine. It
// reports false when the sink was closed while connecting.
func (s *QueueSink) setWriter(w io.WriteCloser) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.writer = w
	return true
}

// take removes every queued chunk.
func (s *QueueSink) take() (net.Buffers, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.queue) == 0 {
		return nil, s.input
	}
	batch := net.Buffers(s.queue)
	s.queue = nil
	return batch, s.input
}

// sent releases n written bytes from the pending count.
func (s *QueueSink) sent(n int) {
	s.mu.Lock()
	if !s.closed {
		s.pending -= n
	}
	s.mu.Unlock()
}

func (s *QueueSink) run(ctx context.Context, cfg SinkConfig) {
	w := cfg.Writer
	if w == nil {
		if cfg.Connect == nil {
			s.Close(fmt.Errorf("%w: no connection", ErrSinkClosed))
			return
		}
		conn, err := cfg.Connect(ctx)
		if err != nil {
			s.Close(err)
			return
		}
		w = conn
	}
	if !s.setWriter(w) {
		_ = w.Close()
		return
	}

	if r, ok := w.(io.Reader); ok && cfg.WatchPeer {
		go s.watch(r)
	}

	for {
		select {
		case <-ctx.Done():
			s.Close(ctx.Err())
			return
		case <-s.done:
			return
		case <-s.notify:
		}

		for {
			batch, input := s.take()
			if len(batch) == 0 {
				break
			}
			n, err := batch.WriteTo(w)
			s.sent(int(n))
			if n > 0 {
				metrics.RecordForward(input, s.kind, int(n))
			}
			if err != nil {
				if !s.isClosed() {
					metrics.SinkWriteErrors.WithLabelValues(input, s.kind).Inc()
				}
				s.Close(fmt.Errorf("write: %w", err))
				return
			}
		}
	}
}

// watch drains the read side until the peer goes away.
func (s *QueueSink) watch(r io.Reader) {
	buf := make([]byte, 512)
	for {
		if _, err := r.Read(buf); err != nil {
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("peer closed connection: %w", err)
			}
			s.Close(err)
			return
		}
	}
}

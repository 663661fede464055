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
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/tagrouter/internal/config"
	"github.com/tomtom215/tagrouter/internal/logging"
	"github.com/tomtom215/tagrouter/internal/metrics"
	"github.com/tomtom215/tagrouter/internal/source"
)

const defaultReadBufferSize = 32 * 1024

// readEvent is one producer read reported to the service loop.
type readEvent struct {
	id    uint64
	chunk []byte
	err   error
}

// producer is an accepted connection on the input listener.
type producer struct {
	conn   net.Conn
	logger zerolog.Logger
}

// outputSink is the live sink of one resolved output.
type outputSink struct {
	output source.Source
	sink   *QueueSink
}

// InputService serves one input: it listens on the input's address, accepts
// producers and forwards every chunk they send to the input's Node. It also
// owns the output sinks attached to that node.
//
// InputService implements suture.Service. A bind failure stops the service
// for good without affecting other inputs.
type InputService struct {
	src     source.Source
	outputs []source.Source
	node    *Node
	cfg     config.RoutingConfig
	logger  zerolog.Logger
	dialers map[string]*outputDialer

	ready     chan struct{}
	readyOnce sync.Once

	mu   sync.RWMutex
	addr net.Addr
}

// NewInputService creates the service for input src fanning out to outputs.
func NewInputService(src source.Source, outputs []source.Source, node *Node, cfg config.RoutingConfig) *InputService {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = defaultReadBufferSize
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	s := &InputService{
		src:     src,
		outputs: append([]source.Source(nil), outputs...),
		node:    node,
		cfg:     cfg,
		logger:  logging.WithComponent("router").With().Str("input", src.Tag).Logger(),
		dialers: make(map[string]*outputDialer, len(outputs)),
		ready:   make(chan struct{}),
	}
	for _, out := range s.outputs {
		s.dialers[out.Tag] = newOutputDialer(src.Tag, out, cfg.DialTimeout, cfg.BreakerFailures, cfg.BreakerTimeout)
	}
	return s
}

// String implements fmt.Stringer for suture logging.
func (s *InputService) String() string {
	return "input-" + s.src.Tag
}

// Ready is closed once the listener has been bound for the first time.
func (s *InputService) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listener address, or nil before Ready.
func (s *InputService) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Serve implements suture.Service.
func (s *InputService) Serve(ctx context.Context) error {
	tag := s.src.Tag

	ln, err := s.src.Listen(ctx)
	if err != nil {
		metrics.InputListening.WithLabelValues(tag).Set(0)
		s.logger.Error().Err(err).Str("address", s.src.Describe()).Msg("Cannot listen on input, input disabled")
		return fmt.Errorf("input %s: %w: %w", tag, err, suture.ErrDoNotRestart)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	metrics.InputListening.WithLabelValues(tag).Set(1)
	s.readyOnce.Do(func() { close(s.ready) })

	s.logger.Info().
		Str("address", s.src.Describe()).
		Int("outputs", len(s.outputs)).
		Msg("Input listening")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		accepted     = make(chan net.Conn)
		acceptErr    = make(chan error, 1)
		events       = make(chan readEvent, 64)
		outputClosed = make(chan *QueueSink, len(s.outputs)+1)
		redial       = make(chan source.Source)

		producers = make(map[uint64]*producer)
		sinks     = make(map[string]outputSink, len(s.outputs))
		nextID    uint64
	)

	for _, out := range s.outputs {
		sinks[out.Tag] = s.attachOutput(ctx, out, outputClosed)
	}

	go acceptLoop(ctx, ln, accepted, acceptErr)

	for {
		select {
		case <-ctx.Done():
			s.shutdown(ln, producers, sinks)
			return ctx.Err()

		case conn := <-accepted:
			nextID++
			p := &producer{
				conn:   conn,
				logger: logging.WithConn(s.logger, "producer", logging.GenerateCorrelationID()),
			}
			producers[nextID] = p
			metrics.TrackProducer(tag, true)
			p.logger.Debug().Msg("Producer connected")
			go readLoop(ctx, nextID, conn, s.cfg.ReadBufferSize, events)

		case ev := <-events:
			p, ok := producers[ev.id]
			if !ok {
				continue
			}
			if ev.err != nil {
				if errors.Is(ev.err, io.EOF) {
					p.logger.Debug().Msg("Producer disconnected")
				} else {
					p.logger.Warn().Err(ev.err).Msg("Producer read failed")
				}
				delete(producers, ev.id)
				_ = p.conn.Close()
				metrics.TrackProducer(tag, false)
				continue
			}
			metrics.RecordRead(tag, len(ev.chunk))
			s.node.Forward(ev.chunk)

		case err := <-acceptErr:
			s.shutdown(ln, producers, sinks)
			return fmt.Errorf("input %s: accept: %w", tag, err)

		case sink := <-outputClosed:
			for outTag, live := range sinks {
				if live.sink != sink {
					continue
				}
				delete(sinks, outTag)
				s.node.DetachOutput(sink.ID())
				s.logger.Warn().Err(sink.Err()).Str("output", outTag).Msg("Output disconnected")
				if s.cfg.RedialInterval > 0 {
					scheduleRedial(ctx, live.output, s.cfg.RedialInterval, redial)
				}
				break
			}

		case out := <-redial:
			if _, ok := sinks[out.Tag]; ok {
				continue
			}
			s.logger.Debug().Str("output", out.Tag).Str("breaker", s.dialers[out.Tag].State()).Msg("Reconnecting output")
			sinks[out.Tag] = s.attachOutput(ctx, out, outputClosed)
		}
	}
}

// attachOutput creates a sink that connects to out in the background and
// attaches it to the node right away, so chunks queue while connecting.
func (s *InputService) attachOutput(ctx context.Context, out source.Source, closed chan<- *QueueSink) outputSink {
	sink := NewQueueSink(ctx, SinkConfig{
		Input:      s.src.Tag,
		Kind:       metrics.SinkOutput,
		QueueLimit: s.cfg.QueueLimit,
		Connect:    s.dialers[out.Tag].Connect,
		WatchPeer:  true,
		Logger:     s.logger.With().Str("output", out.Tag).Str("address", out.Describe()).Logger(),
	})
	s.node.AttachOutput(sink)

	go func() {
		select {
		case <-sink.Done():
		case <-ctx.Done():
			return
		}
		select {
		case closed <- sink:
		case <-ctx.Done():
		}
	}()

	return outputSink{output: out, sink: sink}
}

func (s *InputService) shutdown(ln net.Listener, producers map[uint64]*producer, sinks map[string]outputSink) {
	for id, p := range producers {
		_ = p.conn.Close()
		delete(producers, id)
		metrics.TrackProducer(s.src.Tag, false)
	}
	for tag, live := range sinks {
		s.node.DetachOutput(live.sink.ID())
		live.sink.Close(ErrSinkClosed)
		delete(sinks, tag)
	}

	_ = ln.Close()
	if err := s.src.Cleanup(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to remove input socket")
	}
	metrics.InputListening.WithLabelValues(s.src.Tag).Set(0)
	s.logger.Info().Msg("Input stopped")
}

func acceptLoop(ctx context.Context, ln net.Listener, accepted chan<- net.Conn, errc chan<- error) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case errc <- err:
			default:
			}
			return
		}
		select {
		case accepted <- conn:
		case <-ctx.Done():
			_ = conn.Close()
			return
		}
	}
}

// readLoop reads from conn until it fails. Every chunk is a fresh slice that
// is never written again, so sinks can share it.
func readLoop(ctx context.Context, id uint64, conn net.Conn, size int, events chan<- readEvent) {
	buf := make([]byte, size)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case events <- readEvent{id: id, chunk: chunk}:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			select {
			case events <- readEvent{id: id, err: err}:
			case <-ctx.Done():
			}
			return
		}
	}
}

func scheduleRedial(ctx context.Context, out source.Source, after time.Duration, redial chan<- source.Source) {
	time.AfterFunc(after, func() {
		select {
		case redial <- out:
		case <-ctx.Done():
		}
	})
}

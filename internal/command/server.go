// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tagrouter/internal/config"
	"github.com/tomtom215/tagrouter/internal/logging"
	"github.com/tomtom215/tagrouter/internal/metrics"
	"github.com/tomtom215/tagrouter/internal/router"
	"github.com/tomtom215/tagrouter/internal/source"
)

const readBufferSize = 4096

// clientEvent is one read, or the end of reading, on a client connection.
type clientEvent struct {
	id    uint64
	chunk []byte
	err   error
}

// Server accepts command clients on the listen endpoint. One loop owns the
// session table; reads happen in per-connection goroutines and writes go
// through each session's outbound queue, so no client can stall the loop.
//
// Server implements suture.Service.
type Server struct {
	src        source.Source
	handler    *Handler
	cfg        config.CommandConfig
	queueLimit int
	logger     zerolog.Logger

	ready     chan struct{}
	readyOnce sync.Once

	mu sync.Mutex
	ln net.Listener
}

// NewServer creates the command server for src. queueLimit caps the bytes
// queued for one client.
func NewServer(src source.Source, dir *router.Directory, cfg config.CommandConfig, queueLimit int) *Server {
	return &Server{
		src: src,
		handler: NewHandler(dir, Options{
			AllowRebind:   cfg.AllowRebind,
			RejectUnknown: cfg.RejectUnknown,
		}),
		cfg:        cfg,
		queueLimit: queueLimit,
		logger:     logging.WithComponent("command"),
		ready:      make(chan struct{}),
	}
}

// String implements fmt.Stringer for suture logging.
func (s *Server) String() string {
	return "command-server"
}

// Listen binds the endpoint ahead of Serve so a bind failure surfaces at
// startup. Calling it is optional.
func (s *Server) Listen(ctx context.Context) error {
	ln, err := s.src.Listen(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
	return nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listener address, or nil when not bound.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// takeListener hands the bound listener to Serve, binding one if needed.
func (s *Server) takeListener(ctx context.Context) (net.Listener, error) {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln != nil {
		return ln, nil
	}
	if err := s.Listen(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ln, nil
}

func (s *Server) releaseListener(ln net.Listener) {
	_ = ln.Close()
	s.mu.Lock()
	if s.ln == ln {
		s.ln = nil
	}
	s.mu.Unlock()
	if err := s.src.Cleanup(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to remove command socket")
	}
}

// Serve implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := s.takeListener(ctx)
	if err != nil {
		return fmt.Errorf("command server: %w", err)
	}
	s.logger.Info().Str("address", s.src.Describe()).Msg("Command server listening")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		accepted   = make(chan net.Conn)
		acceptErr  = make(chan error, 1)
		events     = make(chan clientEvent, 64)
		sinkClosed = make(chan uint64, 16)

		sessions = make(map[uint64]*Session)
		nextID   uint64
	)

	go acceptLoop(ctx, ln, accepted, acceptErr)

	closeSession := func(id uint64, err error) {
		sess, ok := sessions[id]
		if !ok {
			return
		}
		delete(sessions, id)
		sess.close(err)
		metrics.CommandSessions.Dec()
	}

	for {
		select {
		case <-ctx.Done():
			for id := range sessions {
				closeSession(id, router.ErrSinkClosed)
			}
			s.releaseListener(ln)
			s.logger.Info().Msg("Command server stopped")
			return ctx.Err()

		case err := <-acceptErr:
			for id := range sessions {
				closeSession(id, router.ErrSinkClosed)
			}
			s.releaseListener(ln)
			return fmt.Errorf("command server: accept: %w", err)

		case conn := <-accepted:
			nextID++
			sess := s.newSession(ctx, nextID, conn)
			sessions[nextID] = sess
			metrics.CommandSessions.Inc()
			sess.logger.Info().Str("remote", remoteAddr(conn)).Msg("Client connected")

			go readLoop(ctx, nextID, conn, events)
			go notifyClosed(ctx, nextID, sess.sink, sinkClosed)

		case ev := <-events:
			sess, ok := sessions[ev.id]
			if !ok {
				continue
			}
			if ev.err != nil {
				if errors.Is(ev.err, io.EOF) {
					sess.logger.Info().Msg("Client disconnected")
				} else {
					sess.logger.Warn().Err(ev.err).Msg("Client read failed")
				}
				closeSession(ev.id, router.ErrSinkClosed)
				continue
			}
			s.process(sess, ev.chunk)

		case id := <-sinkClosed:
			closeSession(id, nil)
		}
	}
}

func (s *Server) newSession(ctx context.Context, id uint64, conn net.Conn) *Session {
	correlationID := logging.GenerateCorrelationID()
	logger := logging.WithConn(s.logger, "client", correlationID)

	sink := router.NewQueueSink(ctx, router.SinkConfig{
		Kind:       metrics.SinkClient,
		QueueLimit: s.queueLimit,
		Writer:     conn,
		Logger:     logger,
	})

	var limiter *rate.Limiter
	if s.cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), max(s.cfg.RequestBurst, 1))
	}

	return NewSession(id, correlationID, sink, s.cfg.MaxMessageSize, limiter, logger)
}

// process frames chunk and runs every complete request.
func (s *Server) process(sess *Session, chunk []byte) {
	msgs, err := sess.framer.Feed(chunk)
	for _, msg := range msgs {
		if !sess.allow() {
			metrics.CommandRateLimited.Inc()
			sess.logger.Debug().Msg("Request dropped by rate limit")
			continue
		}
		s.handler.Handle(sess, msg)
	}

	switch {
	case errors.Is(err, ErrSyntax):
		metrics.CommandParseErrors.WithLabelValues("syntax").Inc()
		sess.logger.Warn().Msg("Parse failed, discarding buffered request")
	case errors.Is(err, ErrMessageTooLarge):
		metrics.CommandParseErrors.WithLabelValues("oversize").Inc()
		sess.logger.Warn().Int("limit", s.cfg.MaxMessageSize).Msg("Request too large, discarding buffered request")
	}
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

func readLoop(ctx context.Context, id uint64, conn net.Conn, events chan<- clientEvent) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case events <- clientEvent{id: id, chunk: chunk}:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			select {
			case events <- clientEvent{id: id, err: err}:
			case <-ctx.Done():
			}
			return
		}
	}
}

// notifyClosed reports a sink that closed on its own, e.g. after a queue
// overflow or a failed write.
func notifyClosed(ctx context.Context, id uint64, sink router.Sink, closed chan<- uint64) {
	select {
	case <-sink.Done():
	case <-ctx.Done():
		return
	}
	select {
	case closed <- id:
	case <-ctx.Done():
	}
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil && addr.String() != "" {
		return addr.String()
	}
	return "local"
}

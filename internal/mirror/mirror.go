// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

//go:build nats

package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tagrouter/internal/config"
	"github.com/tomtom215/tagrouter/internal/logging"
	"github.com/tomtom215/tagrouter/internal/metrics"
	"github.com/tomtom215/tagrouter/internal/router"
)

// Available reports whether this build can mirror to NATS.
const Available = true

// Service mirrors every node of a directory to NATS. It implements
// suture.Service.
type Service struct {
	cfg        config.MirrorConfig
	dir        *router.Directory
	queueLimit int
	logger     zerolog.Logger
}

// NewService creates the mirror. queueLimit caps the bytes queued per input
// while NATS is slow or reconnecting.
func NewService(cfg config.MirrorConfig, dir *router.Directory, queueLimit int) *Service {
	return &Service{
		cfg:        cfg,
		dir:        dir,
		queueLimit: queueLimit,
		logger:     logging.WithComponent("mirror"),
	}
}

// Serve connects to NATS, subscribes to every input and publishes until ctx
// is canceled. A mirror sink that closes ends Serve with an error so the
// supervisor reconnects with fresh sinks.
func (s *Service) Serve(ctx context.Context) error {
	nc, err := s.connect()
	if err != nil {
		return err
	}
	defer nc.Close()

	type subscription struct {
		node *router.Node
		sink *router.QueueSink
	}

	subs := make([]subscription, 0, len(s.dir.Tags()))
	failed := make(chan string, len(s.dir.Tags()))

	for _, node := range s.dir.Nodes() {
		tag := node.Tag()
		sink := router.NewQueueSink(ctx, router.SinkConfig{
			Input:      tag,
			Kind:       metrics.SinkMirror,
			QueueLimit: s.queueLimit,
			Writer:     &publisher{nc: nc, subject: Subject(s.cfg.SubjectPrefix, tag), input: tag},
			Logger:     s.logger.With().Str("input", tag).Logger(),
		})
		node.Subscribe(sink)
		subs = append(subs, subscription{node: node, sink: sink})

		go func() {
			<-sink.Done()
			failed <- tag
		}()
	}

	defer func() {
		for _, sub := range subs {
			sub.node.Unsubscribe(sub.sink.ID())
			sub.sink.Close(nil)
		}
	}()

	s.logger.Info().
		Str("url", nc.ConnectedUrlRedacted()).
		Str("prefix", s.cfg.SubjectPrefix).
		Int("inputs", len(subs)).
		Msg("Mirroring inputs to NATS")

	var flush <-chan time.Time
	if s.cfg.FlushInterval > 0 {
		ticker := time.NewTicker(s.cfg.FlushInterval)
		defer ticker.Stop()
		flush = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			if err := nc.FlushTimeout(time.Second); err != nil {
				s.logger.Debug().Err(err).Msg("Final NATS flush failed")
			}
			return ctx.Err()

		case tag := <-failed:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("mirror of input %s stopped", tag)

		case <-flush:
			if nc.IsConnected() {
				if err := nc.Flush(); err != nil {
					s.logger.Warn().Err(err).Msg("NATS flush failed")
				}
			}
		}
	}
}

func (s *Service) String() string {
	return "nats-mirror"
}

func (s *Service) connect() (*nats.Conn, error) {
	nc, err := nats.Connect(s.cfg.URL,
		nats.Name("tagrouter-mirror"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			s.logger.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.logger.Info().Str("url", nc.ConnectedUrlRedacted()).Msg("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// publisher turns each write into one NATS message.
type publisher struct {
	nc      *nats.Conn
	subject string
	input   string
}

func (p *publisher) Write(b []byte) (int, error) {
	if err := p.nc.Publish(p.subject, b); err != nil {
		metrics.MirrorPublishErrors.WithLabelValues(p.input).Inc()
		return 0, err
	}
	return len(b), nil
}

// Close leaves the shared connection to Serve.
func (p *publisher) Close() error {
	return nil
}

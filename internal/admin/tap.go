// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package admin

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/tagrouter/internal/logging"
	"github.com/tomtom215/tagrouter/internal/metrics"
	"github.com/tomtom215/tagrouter/internal/router"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// wsWriter sends every write as one binary WebSocket message.
type wsWriter struct {
	conn *websocket.Conn
}

func (w *wsWriter) Write(p []byte) (int, error) {
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return 0, err
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsWriter) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.conn.Close()
}

// streamInput upgrades the request and subscribes the connection to the
// input's stream. Each forwarded chunk becomes one binary message.
func (s *Server) streamInput(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	node, ok := s.dir.Lookup(tag)
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown input")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	logger := logging.WithConn(s.logger, "tap", logging.GenerateCorrelationID()).
		With().Str("input", tag).Logger()

	sink := router.NewQueueSink(s.tapContext(), router.SinkConfig{
		Input:      tag,
		Kind:       metrics.SinkWebSocket,
		QueueLimit: s.queueLimit,
		Writer:     &wsWriter{conn: conn},
		Logger:     logger,
	})
	node.Subscribe(sink)
	logger.Info().Str("remote", r.RemoteAddr).Msg("Stream tap connected")

	go pingLoop(conn, sink)
	go func() {
		readUntilClosed(conn)
		node.Unsubscribe(sink.ID())
		sink.Close(nil)
		logger.Info().Msg("Stream tap disconnected")
	}()
}

// readUntilClosed discards client messages until the connection fails.
// Reading is required for gorilla to process control frames.
func readUntilClosed(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func pingLoop(conn *websocket.Conn, sink router.Sink) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-sink.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				sink.Close(err)
				return
			}
		}
	}
}

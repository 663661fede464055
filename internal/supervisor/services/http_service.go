// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tomtom215/tagrouter/internal/logging"
)

// HTTPServer matches the *http.Server methods the service drives.
type HTTPServer interface {
	Serve(ln net.Listener) error
	Shutdown(ctx context.Context) error
}

// Endpoint is where the server listens. Satisfied by source.Source.
type Endpoint interface {
	Listen(ctx context.Context) (net.Listener, error)
	Cleanup() error
	Describe() string
}

// HTTPServerService runs an HTTP server on a configured endpoint as a
// supervised service.
//
// An *http.Server cannot serve again after Shutdown, so the service builds a
// fresh server from newServer on every start:
//
//	svc := services.NewHTTPServerService("admin-http", adminSrv.HTTPServer, topo.CommandServer, 10*time.Second)
//	if err := svc.Listen(ctx); err != nil { ... }
//	tree.AddAdminService(svc)
type HTTPServerService struct {
	name            string
	newServer       func() HTTPServer
	endpoint        Endpoint
	shutdownTimeout time.Duration

	mu sync.Mutex
	ln net.Listener
}

// NewHTTPServerService creates the service. A shutdownTimeout of zero or
// less means 10s.
func NewHTTPServerService(name string, newServer func() HTTPServer, endpoint Endpoint, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		name:            name,
		newServer:       newServer,
		endpoint:        endpoint,
		shutdownTimeout: shutdownTimeout,
	}
}

// Listen binds the endpoint ahead of Serve so the caller can fail fast at
// startup. The first Serve uses this listener.
func (h *HTTPServerService) Listen(ctx context.Context) error {
	ln, err := h.endpoint.Listen(ctx)
	if err != nil {
		return fmt.Errorf("%s listen on %s: %w", h.name, h.endpoint.Describe(), err)
	}
	h.mu.Lock()
	h.ln = ln
	h.mu.Unlock()
	return nil
}

// Addr returns the pre-bound listener address, or nil.
func (h *HTTPServerService) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ln == nil {
		return nil
	}
	return h.ln.Addr()
}

func (h *HTTPServerService) takeListener(ctx context.Context) (net.Listener, error) {
	h.mu.Lock()
	ln := h.ln
	h.ln = nil
	h.mu.Unlock()
	if ln != nil {
		return ln, nil
	}
	ln, err := h.endpoint.Listen(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s listen on %s: %w", h.name, h.endpoint.Describe(), err)
	}
	return ln, nil
}

// Serve implements suture.Service.
//
// It serves until ctx is canceled, then shuts the server down within the
// shutdown timeout and removes the endpoint's socket file.
// http.ErrServerClosed is not reported as a failure.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	ln, err := h.takeListener(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.endpoint.Cleanup(); err != nil {
			logging.Warn().Err(err).Str("service", h.name).Msg("Endpoint cleanup failed")
		}
	}()

	server := h.newServer()
	logging.Info().Str("service", h.name).Str("addr", h.endpoint.Describe()).Msg("HTTP server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s failed: %w", h.name, err)
		}
		return nil

	case <-ctx.Done():
		// The original context is already canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s shutdown failed: %w", h.name, err)
		}

		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPServerService) String() string {
	return h.name
}

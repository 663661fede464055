// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package admin

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tagrouter/internal/config"
	"github.com/tomtom215/tagrouter/internal/logging"
	"github.com/tomtom215/tagrouter/internal/registry"
	"github.com/tomtom215/tagrouter/internal/router"
	"github.com/tomtom215/tagrouter/internal/source"
)

// Server is the operator HTTP control plane.
type Server struct {
	topo       *registry.Topology
	dir        *router.Directory
	cfg        config.AdminConfig
	queueLimit int
	version    string
	started    time.Time
	logger     zerolog.Logger
	upgrader   websocket.Upgrader

	// ctx outlives individual requests; stream taps are hijacked
	// connections that http.Server.Shutdown does not track. Each
	// HTTPServer gets a fresh one.
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates the admin server. queueLimit caps the bytes queued for
// one stream tap.
func NewServer(topo *registry.Topology, dir *router.Directory, cfg config.AdminConfig, queueLimit int, version string) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		topo:       topo,
		dir:        dir,
		cfg:        cfg,
		queueLimit: queueLimit,
		version:    version,
		started:    time.Now(),
		logger:     logging.WithComponent("admin"),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  32 * 1024,
		CheckOrigin:      s.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the Chi router.
func (s *Server) Handler() http.Handler {
	mw := NewMiddleware(&MiddlewareConfig{
		CORSAllowedOrigins: s.cfg.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		CORSMaxAge:         86400,
		RateLimitRequests:  s.cfg.RateLimitRequests,
		RateLimitWindow:    s.cfg.RateLimitWindow,
	})

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(Metrics)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", s.healthLive)
		r.Get("/", s.health)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())

		r.Get("/inputs", s.listInputs)
		r.Get("/inputs/{tag}", s.getInput)
		r.Get("/inputs/{tag}/stream", s.streamInput)
		r.Get("/routes", s.listRoutes)
	})

	return r
}

// HTTPServer returns an http.Server for Handler with the configured
// timeouts. Shutting it down also closes every stream tap it accepted.
func (s *Server) HTTPServer() *http.Server {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	prev := s.cancel
	s.ctx, s.cancel = ctx, cancel
	s.mu.Unlock()
	prev()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	srv.RegisterOnShutdown(cancel)
	return srv
}

// Close disconnects every stream tap.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
}

func (s *Server) tapContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Server) healthLive(w http.ResponseWriter, _ *http.Request) {
	respondData(w, map[string]string{"status": "alive"})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondData(w, HealthInfo{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: time.Since(s.started).Seconds(),
		Inputs:        len(s.dir.Tags()),
		Outputs:       len(s.topo.Outputs),
	})
}

func (s *Server) listInputs(w http.ResponseWriter, _ *http.Request) {
	infos := make([]InputInfo, 0, len(s.topo.Inputs))
	for i := range s.topo.Inputs {
		infos = append(infos, s.inputInfo(&s.topo.Inputs[i]))
	}
	respondData(w, infos)
}

func (s *Server) getInput(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	for i := range s.topo.Inputs {
		if s.topo.Inputs[i].Tag == tag {
			respondData(w, s.inputInfo(&s.topo.Inputs[i]))
			return
		}
	}
	respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown input")
}

func (s *Server) listRoutes(w http.ResponseWriter, _ *http.Request) {
	routes := make([]RouteInfo, 0, len(s.topo.Inputs))
	for _, tag := range s.topo.Routes.Inputs() {
		outs := s.topo.Routes.Outputs(tag)
		route := RouteInfo{Input: tag, Outputs: make([]OutputInfo, 0, len(outs))}
		for _, out := range outs {
			route.Outputs = append(route.Outputs, OutputInfo{
				Tag:       out.Tag,
				Transport: out.Domain().String(),
				Address:   out.Describe(),
			})
		}
		routes = append(routes, route)
	}
	respondData(w, routes)
}

func (s *Server) inputInfo(in *source.Source) InputInfo {
	info := InputInfo{
		Tag:       in.Tag,
		Transport: in.Domain().String(),
		Address:   in.Describe(),
		Outputs:   []string{},
	}
	if !s.topo.Routes.Has(in.Tag) {
		return info
	}
	info.Routed = true
	for _, out := range s.topo.Routes.Outputs(in.Tag) {
		info.Outputs = append(info.Outputs, out.Tag)
	}
	if node, ok := s.dir.Lookup(in.Tag); ok {
		info.AttachedOutputs, info.Subscribers = node.Counts()
	}
	return info
}

// checkOrigin accepts clients without an Origin header (command line tools)
// and browsers from an allowed CORS origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	s.logger.Warn().Str("origin", origin).Msg("Stream tap rejected from unauthorized origin")
	return false
}

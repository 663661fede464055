// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

/*
Package admin serves the operator HTTP API on the cmd_server endpoint.

Endpoints:

	GET /api/v1/health/          version, uptime, input and output counts
	GET /api/v1/health/live      liveness probe
	GET /metrics                 Prometheus metrics
	GET /api/v1/inputs           every configured input with live sink counts
	GET /api/v1/inputs/{tag}     one input
	GET /api/v1/routes           the resolved routing table
	GET /api/v1/inputs/{tag}/stream
	                             WebSocket tap, one binary message per chunk

JSON endpoints answer with the APIResponse envelope. The /api/v1 routes are
rate limited per client IP with go-chi/httprate; CORS is handled by
go-chi/cors.

A stream tap is an ordinary router subscriber with its own outbound queue, so
a slow browser is disconnected on overflow instead of slowing the input.
*/
package admin

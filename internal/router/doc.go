// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

/*
Package router fans input streams out to their sinks.

Every servable input has a Node. A Node holds two sets of sinks: the
configured outputs, attached and detached only by the input's InputService,
and subscribers such as bound command clients, WebSocket taps and the NATS
mirror. Forward hands the same immutable chunk to every sink.

# Sinks

QueueSink is the standard sink. Enqueue appends to an ordered in-memory queue
and never blocks; a single writer goroutine drains the queue to the
connection, so each sink sees chunks in read order and a slow sink never
stalls the others. A sink that falls more than its queue limit behind is
closed with ErrQueueOverflow.

A sink may start without a connection. Output sinks dial from their writer
goroutine through a per-output circuit breaker, and chunks forwarded while
the dial is in flight are queued, not dropped.

# Input services

InputService runs one input under suture:

	dir := router.NewDirectory(topology.Routes.Inputs())
	node, _ := dir.Lookup("SYSLOG")
	svc := router.NewInputService(src, topology.Routes.Outputs("SYSLOG"), node, settings.Routing)
	sup.Add(svc)

The service owns its listener, producer table and output sinks; all of them
are touched only from its Serve loop. If the listener cannot be bound, Serve
returns an error wrapping suture.ErrDoNotRestart so only this input stops.
When the context is canceled, every producer and output connection is closed
and the input's Unix socket node is removed.
*/
package router

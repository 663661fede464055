// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

/*
Package command implements the client command channel.

A client connects to the conn_server endpoint, discovers the input tags and
binds its connection to one input. From then on the connection carries that
input's raw byte stream.

# Protocol

Requests are single JSON objects, sent without delimiters:

	{"getInputS": true}        -> "syslog\nmetrics\n"
	{"selectedInput": "syslog"} -> no reply, stream bytes follow

A list request is only answered before the session is bound. A selection of
an unknown tag is ignored unless Options.RejectUnknown is set, in which case
the client gets an error line:

	{"error":"unknown input","selectedInput":"nope"}

A bound session ignores further selections unless Options.AllowRebind is set.
Rebinding unsubscribes from the old input; bytes already queued from it are
delivered before the new stream starts.

# Framing

Framer cuts complete objects out of the byte stream, so a request may arrive
split over several reads and several requests may arrive in one read. Bytes
that are not a JSON object, or a request larger than the configured limit,
cause the whole buffer to be discarded.

# Server

Server runs one loop that owns every Session. Each connection has a reader
goroutine reporting to the loop and a router.QueueSink for everything written
back, so list replies and stream bytes share one ordered queue.
*/
package command

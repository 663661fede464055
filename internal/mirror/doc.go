// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

/*
Package mirror publishes every routed input stream to NATS.

The mirror subscribes one router sink per input. Each chunk read from a
producer becomes one NATS message on the subject

	<subject_prefix>.<input tag>

Characters that NATS reserves in subjects are replaced with '_' (see Subject).
The mirror is best effort: a NATS outage never slows the input, the sink of
an input that falls QueueLimit bytes behind is closed and the service is
restarted by the supervisor.

The NATS client is only compiled into builds with the nats tag:

	go build -tags nats ./cmd/tagrouter

Other builds carry a stub whose Serve refuses to start, and Available is
false so the caller can skip the service with a warning.
*/
package mirror

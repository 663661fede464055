// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

/*
Package logging provides the process-wide zerolog logger.

Initialize once at startup, then derive component loggers:

	logging.Init(logging.Config{Level: "info", Format: "json"})

	log := logging.WithComponent("router")
	log.Info().Str("tag", "SYSLOG").Msg("Input listening")

Connection-scoped loggers carry a role and a correlation ID so that one
producer, output or command client can be followed through the log:

	connLog := logging.WithConn(log, "input_peer", logging.GenerateCorrelationID())

The supervisor tree logs through log/slog; NewSlogLogger adapts the global
zerolog logger for that purpose.

Always terminate log chains with .Msg() or .Send(). Use structured fields
instead of Msgf.
*/
package logging

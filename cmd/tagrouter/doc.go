// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

/*
Tagrouter accepts byte streams on named input sockets and fans each stream out
to the output sockets its configuration routes it to. Clients on the
conn_server endpoint can list the inputs and bind to one to receive its raw
stream.

Usage:

	tagrouter [flags] <config-file>

Flags:

	--log-level string    override settings.logging.level
	--log-format string   override settings.logging.format (json, console)
	--version             print version information and exit

# Configuration

The configuration file is JSON (comments and trailing commas allowed) or YAML
when it ends in .yaml or .yml:

	{
	  "input": [
	    {"tag": "SYSLOG", "comm_type": "UNIX_SOCK",
	     "UNIX_SOCK": {"sock_file_path": "/run/tagrouter/syslog.sock"},
	     "output_to": ["ARCHIVE", "COLLECTOR"]}
	  ],
	  "output": [
	    {"tag": "ARCHIVE", "comm_type": "UNIX_SOCK",
	     "UNIX_SOCK": {"sock_file_path": "/run/archive.sock"}},
	    {"tag": "COLLECTOR", "comm_type": "IPv4",
	     "IPv4": {"uri": "10.0.0.5", "port": 5140}}
	  ],
	  "cmd_server":  [{"comm_type": "IPv4", "IPv4": {"uri": "127.0.0.1", "port": 8080}}],
	  "conn_server": [{"comm_type": "UNIX_SOCK",
	                   "UNIX_SOCK": {"sock_file_path": "/run/tagrouter/cmd.sock"}}],
	  "settings": {"logging": {"level": "info"}}
	}

The optional settings object tunes logging, routing, the command protocol,
the admin HTTP server on cmd_server, supervision and the NATS mirror. Every
setting can also be set with a TAGROUTER_* environment variable.

# Exit Status

Tagrouter exits 1 when the arguments are wrong, the configuration cannot be
read or is invalid, or the cmd_server or conn_server endpoint cannot be bound.
SIGINT and SIGTERM stop it cleanly: connections are closed and socket files
removed.

# Build Tags

	go build -tags nats ./cmd/tagrouter   # enable the NATS mirror
*/
package main

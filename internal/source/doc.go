// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

/*
Package source models a single named stream endpoint.

A Source pairs a routing tag with a Transport. Three transports exist:

  - UnixSocket: a Unix-domain stream socket addressed by a filesystem path
  - IPv4Socket: a TCP socket addressed by a dotted-decimal host and a port
  - Undefined: a configuration entry whose comm_type is not recognized

The Transport interface is sealed; callers branch on the concrete variant with a
type switch. An Undefined transport never produces an address: BuildAddress,
Listen and Dial return ErrInvalidSource instead of failing at bind time.

# Configuration

Sources are built from one element of a configuration array with Parse:

	{
	  "tag": "SYSLOG",
	  "comm_type": "UNIX_SOCK",
	  "UNIX_SOCK": {"sock_file_path": "/tmp/syslog.sock"}
	}

	{
	  "tag": "METRICS",
	  "comm_type": "IPv4",
	  "IPv4": {"uri": "127.0.0.1", "port": 3002}
	}

Unix socket paths must be shorter than MaxUnixPathLen bytes. Longer paths are
rejected with ErrAddressTooLong rather than silently truncated.

# Lifecycle

Listen removes a stale Unix socket node left behind by a previous run before
binding. Cleanup removes the node again after the listener is closed and is a
no-op for other transports.
*/
package source

// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

/*
Package config loads the router's configuration document and runtime settings.

The document is a single JSON file (comments allowed) or YAML file. Its
source arrays (input, output, cmd_server, conn_server) are consumed by the
registry package; this package only reads the optional "settings" object:

	{
	  "input":  [ ... ],
	  "output": [ ... ],
	  "cmd_server":  [ ... ],
	  "conn_server": [ ... ],
	  "settings": {
	    "logging": {"level": "debug"},
	    "routing": {"queue_limit": 1048576, "redial_interval": "5s"},
	    "command": {"allow_rebind": false}
	  }
	}

# Precedence

Settings are layered with koanf: built-in defaults, then the document's
settings object, then environment variables. Only the variables listed in
envMappings are read, for example:

  - TAGROUTER_LOG_LEVEL: logging.level
  - TAGROUTER_QUEUE_LIMIT: routing.queue_limit
  - TAGROUTER_REDIAL_INTERVAL: routing.redial_interval
  - TAGROUTER_CORS_ORIGINS: admin.cors_origins (comma-separated)
  - TAGROUTER_MIRROR_ENABLED: mirror.enabled

Durations accept Go duration strings ("250ms", "5s").
*/
package config

// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

/*
Package supervisor runs the router's long-lived services under suture v4.

# Overview

Services are grouped into three layers for failure isolation:

	RootSupervisor ("tagrouter")
	├── RoutingSupervisor ("routing-layer")
	│   └── InputService per input ("input-<tag>")
	├── CommandSupervisor ("command-layer")
	│   ├── command.Server ("command-server")
	│   └── mirror.Service ("nats-mirror", build tag: nats)
	└── AdminSupervisor ("admin-layer")
	    └── HTTPServerService ("admin-http")

A crashing input is restarted inside the routing layer; bound command
clients and the admin API keep running. An input whose listener cannot bind
returns suture.ErrDoNotRestart and stays down while the rest keep routing.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(),
	    supervisor.TreeConfigFromSettings(settings.Supervisor))
	if err != nil {
	    return err
	}
	for _, svc := range inputs {
	    tree.AddRoutingService(svc)
	}
	tree.AddCommandService(cmdServer)
	tree.AddAdminService(adminSvc)

	err = tree.Serve(ctx) // blocks until ctx is canceled

# Failure Handling

Each failure increments a counter that decays over FailureDecay seconds.
When it exceeds FailureThreshold the supervisor waits FailureBackoff before
the next restart. Supervisor events are logged through sutureslog.

# Shutdown

Canceling the context stops every layer. Services get ShutdownTimeout to
return from Serve; UnstoppedServiceReport lists the ones that did not.
*/
package supervisor

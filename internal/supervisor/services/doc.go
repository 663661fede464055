// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

/*
Package services adapts blocking servers to suture's Serve pattern.

Input services, the command server and the mirror implement suture.Service
themselves. The admin HTTP server does not: an *http.Server blocks in Serve
and stops through Shutdown, and cannot be reused once shut down.
HTTPServerService bridges the two:

 1. binds the configured endpoint, or takes the listener bound by Listen
 2. serves a freshly built server until the context is canceled
 3. shuts the server down within the shutdown timeout
 4. removes the endpoint's socket file

Example:

	svc := services.NewHTTPServerService("admin-http",
	    func() services.HTTPServer { return adminSrv.HTTPServer() },
	    topo.CommandServer, settings.Admin.ShutdownTimeout)
	if err := svc.Listen(ctx); err != nil {
	    // exit 1
	}
	tree.AddAdminService(svc)
*/
package services

// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/tomtom215/tagrouter/internal/admin"
	"github.com/tomtom215/tagrouter/internal/command"
	"github.com/tomtom215/tagrouter/internal/config"
	"github.com/tomtom215/tagrouter/internal/logging"
	"github.com/tomtom215/tagrouter/internal/metrics"
	"github.com/tomtom215/tagrouter/internal/mirror"
	"github.com/tomtom215/tagrouter/internal/registry"
	"github.com/tomtom215/tagrouter/internal/router"
	"github.com/tomtom215/tagrouter/internal/supervisor"
	"github.com/tomtom215/tagrouter/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errUsage marks command line mistakes.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command line arguments.
type options struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("tagrouter", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.logLevel, "log-level", "", "override settings.logging.level (trace, debug, info, warn, error)")
	flagSet.StringVar(&opts.logFormat, "log-format", "", "override settings.logging.format (json, console)")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage: tagrouter [flags] <config-file>\n\nFlags:\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if opts.showVersion {
		return &opts, nil
	}

	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return nil, fmt.Errorf("%w: expected exactly one configuration file, got %d arguments", errUsage, flagSet.NArg())
	}
	opts.configPath = flagSet.Arg(0)

	if opts.logLevel != "" && !logging.ValidLevel(opts.logLevel) {
		return nil, fmt.Errorf("%w: invalid --log-level %q", errUsage, opts.logLevel)
	}
	if opts.logFormat != "" && opts.logFormat != "json" && opts.logFormat != "console" {
		return nil, fmt.Errorf("%w: invalid --log-format %q", errUsage, opts.logFormat)
	}
	return &opts, nil
}

//nolint:gocyclo // sequential startup steps
func run(ctx context.Context, args []string, stderr io.Writer) error {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Printf("tagrouter %s (%s)\n", version, runtime.Version())
		return nil
	}

	doc, err := config.LoadDocument(opts.configPath)
	if err != nil {
		return err
	}
	settings, err := config.LoadSettings(doc)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		settings.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		settings.Logging.Format = opts.logFormat
	}

	logging.Init(logging.Config{
		Level:     settings.Logging.Level,
		Format:    settings.Logging.Format,
		Caller:    settings.Logging.Caller,
		Timestamp: true,
		Output:    stderr,
	})
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	topo, err := registry.Load(doc)
	if err != nil {
		return err
	}

	logging.Info().
		Str("version", version).
		Str("config", opts.configPath).
		Int("inputs", len(topo.Inputs)).
		Int("outputs", len(topo.Outputs)).
		Int("routed_inputs", len(topo.Routes.Inputs())).
		Msg("Starting tagrouter")

	dir := router.NewDirectory(topo.Routes.Inputs())

	// Bind the client-facing endpoints before anything runs so a conflict
	// fails startup instead of restarting in the background.
	cmdServer := command.NewServer(topo.ListenServer, dir, settings.Command, settings.Routing.QueueLimit)
	if err := cmdServer.Listen(ctx); err != nil {
		return err
	}

	var adminSvc *services.HTTPServerService
	if settings.Admin.Enabled {
		adminSrv := admin.NewServer(topo, dir, settings.Admin, settings.Routing.QueueLimit, version)
		adminSvc = services.NewHTTPServerService("admin-http",
			func() services.HTTPServer { return adminSrv.HTTPServer() },
			topo.CommandServer, settings.Admin.ShutdownTimeout)
		if err := adminSvc.Listen(ctx); err != nil {
			_ = topo.ListenServer.Cleanup()
			return err
		}
	} else {
		logging.Info().Str("addr", topo.CommandServer.Describe()).Msg("Admin server disabled")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(),
		supervisor.TreeConfigFromSettings(settings.Supervisor))
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	for _, tag := range topo.Routes.Inputs() {
		node, _ := dir.Lookup(tag)
		src, _ := topo.Input(tag)
		tree.AddRoutingService(router.NewInputService(src, topo.Routes.Outputs(tag), node, settings.Routing))
	}
	tree.AddCommandService(cmdServer)
	if adminSvc != nil {
		tree.AddAdminService(adminSvc)
	}

	if settings.Mirror.Enabled {
		if mirror.Available {
			tree.AddCommandService(mirror.NewService(settings.Mirror, dir, settings.Routing.QueueLimit))
		} else {
			logging.Warn().Msg("Mirror enabled but this build has no NATS support (build with -tags nats)")
		}
	}

	logging.Info().Msg("Starting supervisor tree")
	err = tree.Serve(ctx)

	for _, node := range dir.Nodes() {
		node.Close()
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}
	logging.Info().Msg("Tagrouter stopped")
	return nil
}

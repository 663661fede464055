// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

//go:build nats

package mirror

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/tagrouter/internal/config"
	"github.com/tomtom215/tagrouter/internal/logging"
	"github.com/tomtom215/tagrouter/internal/router"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

func startNATS(t *testing.T) string {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   server.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("create NATS server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		t.Fatal("NATS server not ready within timeout")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func waitSubscribed(t *testing.T, node *router.Node) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, subs := node.Counts(); subs == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("input %s never got a mirror subscriber", node.Tag())
}

func TestServiceImplementsSutureService(t *testing.T) {
	var _ suture.Service = (*Service)(nil)
}

func TestMirrorPublishesChunks(t *testing.T) {
	url := startNATS(t)

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()

	msgs := make(chan *nats.Msg, 16)
	sub, err := nc.ChanSubscribe("test.input.>", msgs)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer func() { _ = sub.Unsubscribe() }()
	if err := nc.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	dir := router.NewDirectory([]string{"SYSLOG", "gps.front"})
	svc := NewService(config.MirrorConfig{
		Enabled:       true,
		URL:           url,
		SubjectPrefix: "test.input",
		FlushInterval: 10 * time.Millisecond,
	}, dir, 1<<20)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	syslog, _ := dir.Lookup("SYSLOG")
	gps, _ := dir.Lookup("gps.front")
	waitSubscribed(t, syslog)
	waitSubscribed(t, gps)

	syslog.Forward([]byte("first"))
	syslog.Forward([]byte("second"))
	gps.Forward([]byte("$GPGGA"))

	got := make(map[string][]string)
	timeout := time.After(5 * time.Second)
	for n := 0; n < 3; n++ {
		select {
		case m := <-msgs:
			got[m.Subject] = append(got[m.Subject], string(m.Data))
		case <-timeout:
			t.Fatalf("received %d of 3 messages: %v", n, got)
		}
	}

	if s := got["test.input.SYSLOG"]; len(s) != 2 || s[0] != "first" || s[1] != "second" {
		t.Errorf("SYSLOG messages = %v, want [first second]", s)
	}
	if s := got["test.input.gps_front"]; len(s) != 1 || s[0] != "$GPGGA" {
		t.Errorf("gps.front messages = %v, want [$GPGGA]", s)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if _, subs := syslog.Counts(); subs != 0 {
		t.Errorf("SYSLOG still has %d subscribers after shutdown", subs)
	}
}

func TestMirrorStopsWhenSinkCloses(t *testing.T) {
	url := startNATS(t)

	dir := router.NewDirectory([]string{"SYSLOG"})
	svc := NewService(config.MirrorConfig{
		URL:           url,
		SubjectPrefix: "test.input",
	}, dir, 1<<20)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	node, _ := dir.Lookup("SYSLOG")
	waitSubscribed(t, node)
	node.Close()

	select {
	case err := <-done:
		if err == nil || errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want mirror stopped error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after the sink closed")
	}
}

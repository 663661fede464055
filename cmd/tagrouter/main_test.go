// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/tomtom215/tagrouter/internal/command"
	"github.com/tomtom215/tagrouter/internal/registry"
	"github.com/tomtom215/tagrouter/internal/source"
)

const testTimeout = 5 * time.Second

func TestParseArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr error
		check   func(t *testing.T, opts *options)
	}{
		{
			name: "config path",
			args: []string{"router.json"},
			check: func(t *testing.T, opts *options) {
				if opts.configPath != "router.json" {
					t.Errorf("configPath = %q", opts.configPath)
				}
			},
		},
		{
			name: "log overrides",
			args: []string{"--log-level", "debug", "--log-format=console", "router.json"},
			check: func(t *testing.T, opts *options) {
				if opts.logLevel != "debug" || opts.logFormat != "console" {
					t.Errorf("opts = %+v", opts)
				}
			},
		},
		{
			name: "version needs no config",
			args: []string{"--version"},
			check: func(t *testing.T, opts *options) {
				if !opts.showVersion {
					t.Error("showVersion not set")
				}
			},
		},
		{name: "no config", args: nil, wantErr: errUsage},
		{name: "two configs", args: []string{"a.json", "b.json"}, wantErr: errUsage},
		{name: "bad level", args: []string{"--log-level", "loud", "a.json"}, wantErr: errUsage},
		{name: "bad format", args: []string{"--log-format", "xml", "a.json"}, wantErr: errUsage},
		{name: "help", args: []string{"--help"}, wantErr: pflag.ErrHelp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var stderr bytes.Buffer
			opts, err := parseArgs(tt.args, &stderr)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("parseArgs() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseArgs() error: %v", err)
			}
			tt.check(t, opts)
		})
	}
}

// shortTempDir keeps socket paths under the Unix path limit.
func shortTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "tr")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func unixEntry(tag, path string, outputs ...string) string {
	s := fmt.Sprintf(`{"tag": %q, "comm_type": "UNIX_SOCK", "UNIX_SOCK": {"sock_file_path": %q}`, tag, path)
	if outputs != nil {
		quoted := make([]string, len(outputs))
		for i, o := range outputs {
			quoted[i] = fmt.Sprintf("%q", o)
		}
		s += `, "output_to": [` + strings.Join(quoted, ", ") + `]`
	}
	return s + "}"
}

type testPaths struct {
	input, output, admin, command string
}

func writeConfig(t *testing.T, dir string, p testPaths, extraInput string) string {
	t.Helper()
	inputs := unixEntry("SYSLOG", p.input, "DISK")
	if extraInput != "" {
		inputs += ",\n    " + extraInput
	}
	body := fmt.Sprintf(`{
  // Single input routed to a single output.
  "input": [
    %s
  ],
  "output": [%s],
  "cmd_server": [%s],
  "conn_server": [%s],
  "settings": {
    "logging": {"level": "error"},
    "routing": {"queue_limit": 65536}
  }
}`, inputs, unixEntry("DISK", p.output), unixEntry("admin", p.admin), unixEntry("cmd", p.command))

	path := filepath.Join(dir, "router.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunConfigErrors(t *testing.T) {
	dir := shortTempDir(t)
	p := testPaths{
		input:   filepath.Join(dir, "in.sock"),
		output:  filepath.Join(dir, "out.sock"),
		admin:   filepath.Join(dir, "admin.sock"),
		command: filepath.Join(dir, "cmd.sock"),
	}

	t.Run("missing file", func(t *testing.T) {
		err := run(context.Background(), []string{filepath.Join(dir, "nope.json")}, io.Discard)
		if err == nil {
			t.Fatal("run() succeeded with a missing config")
		}
	})

	t.Run("duplicate input tag", func(t *testing.T) {
		path := writeConfig(t, dir, p, unixEntry("SYSLOG", filepath.Join(dir, "dup.sock"), "DISK"))
		err := run(context.Background(), []string{path}, io.Discard)
		var dup *registry.DuplicateTagError
		if !errors.As(err, &dup) || dup.Tag != "SYSLOG" {
			t.Errorf("run() = %v, want DuplicateTagError for SYSLOG", err)
		}
	})

	t.Run("command endpoint cannot bind", func(t *testing.T) {
		long := dir + "/"
		for len(long) < source.MaxUnixPathLen {
			long += "x"
		}
		bad := p
		bad.command = long
		path := writeConfig(t, dir, bad, "")
		err := run(context.Background(), []string{path}, io.Discard)
		if !errors.Is(err, source.ErrAddressTooLong) {
			t.Errorf("run() = %v, want ErrAddressTooLong", err)
		}
	})
}

// adminClient talks HTTP over the admin Unix socket.
func adminClient(path string) *http.Client {
	return &http.Client{
		Timeout: time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", path)
			},
		},
	}
}

type inputStatus struct {
	Data struct {
		AttachedOutputs int `json:"attached_outputs"`
		Subscribers     int `json:"subscribers"`
	} `json:"data"`
}

func waitInputStatus(t *testing.T, client *http.Client, outputs, subscribers int) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	var last inputStatus
	for time.Now().Before(deadline) {
		resp, err := client.Get("http://tagrouter/api/v1/inputs/SYSLOG")
		if err == nil {
			last = inputStatus{}
			_ = json.NewDecoder(resp.Body).Decode(&last)
			resp.Body.Close()
			if last.Data.AttachedOutputs == outputs && last.Data.Subscribers == subscribers {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("SYSLOG status = %+v, want %d outputs and %d subscribers", last.Data, outputs, subscribers)
}

func dialRetry(t *testing.T, path string) net.Conn {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for {
		conn, err := net.Dial("unix", path)
		if err == nil {
			return conn
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial %s: %v", path, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRunRoutesEndToEnd(t *testing.T) {
	dir := shortTempDir(t)
	p := testPaths{
		input:   filepath.Join(dir, "in.sock"),
		output:  filepath.Join(dir, "out.sock"),
		admin:   filepath.Join(dir, "admin.sock"),
		command: filepath.Join(dir, "cmd.sock"),
	}
	path := writeConfig(t, dir, p, "")

	outLn, err := net.Listen("unix", p.output)
	if err != nil {
		t.Fatal(err)
	}
	defer outLn.Close()
	outConns := make(chan net.Conn, 1)
	go func() {
		if c, err := outLn.Accept(); err == nil {
			outConns <- c
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, []string{path}, io.Discard) }()

	cmdConn := dialRetry(t, p.command)
	client := command.NewClient(cmdConn)
	defer client.Close()

	listCtx, listCancel := context.WithTimeout(context.Background(), testTimeout)
	tags, err := client.ListInputs(listCtx)
	listCancel()
	if err != nil {
		t.Fatalf("ListInputs() error: %v", err)
	}
	if len(tags) != 1 || tags[0] != "SYSLOG" {
		t.Fatalf("ListInputs() = %v, want [SYSLOG]", tags)
	}
	if err := client.Select("SYSLOG"); err != nil {
		t.Fatalf("Select() error: %v", err)
	}

	waitInputStatus(t, adminClient(p.admin), 1, 1)

	var outConn net.Conn
	select {
	case outConn = <-outConns:
		defer outConn.Close()
	case <-time.After(testTimeout):
		t.Fatal("router never connected to the output")
	}

	producer := dialRetry(t, p.input)
	if _, err := producer.Write([]byte("hello\n")); err != nil {
		t.Fatal(err)
	}
	defer producer.Close()

	for name, r := range map[string]interface {
		io.Reader
		SetReadDeadline(time.Time) error
	}{"output": outConn, "client": client} {
		_ = r.SetReadDeadline(time.Now().Add(testTimeout))
		buf := make([]byte, len("hello\n"))
		if _, err := io.ReadFull(r, buf); err != nil {
			t.Fatalf("%s read: %v", name, err)
		}
		if string(buf) != "hello\n" {
			t.Errorf("%s got %q, want %q", name, buf, "hello\n")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() = %v, want nil after cancel", err)
		}
	case <-time.After(2 * testTimeout):
		t.Fatal("run() did not return after cancel")
	}

	for _, sock := range []string{p.input, p.command, p.admin} {
		if _, err := os.Stat(sock); !os.IsNotExist(err) {
			t.Errorf("%s still present after shutdown", sock)
		}
	}
}

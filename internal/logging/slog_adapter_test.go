// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlogHandler_Handle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		level     slog.Level
		wantLevel string
	}{
		{"info", slog.LevelInfo, `"level":"info"`},
		{"warn", slog.LevelWarn, `"level":"warn"`},
		{"error", slog.LevelError, `"level":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			logger := slog.New(NewSlogHandler(zerolog.New(&buf)))
			logger.Log(context.Background(), tt.level, "service restarted")

			output := buf.String()
			if !strings.Contains(output, tt.wantLevel) {
				t.Errorf("expected %s, got: %s", tt.wantLevel, output)
			}
			if !strings.Contains(output, "service restarted") {
				t.Errorf("expected message, got: %s", output)
			}
		})
	}
}

func TestSlogHandler_Attributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSlogHandler(zerolog.New(&buf))).
		With("supervisor", "routing-layer").
		WithGroup("service")

	logger.Info("backoff",
		"name", "input-SYSLOG",
		"failures", 3,
		"ok", false,
		"wait", 15*time.Second,
		slog.Group("detail", "restarting", true),
	)

	output := buf.String()
	for _, want := range []string{
		`"supervisor":"routing-layer"`,
		`"service.name":"input-SYSLOG"`,
		`"service.failures":3`,
		`"service.ok":false`,
		`"service.detail.restarting":true`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
}

func TestSlogHandler_Enabled(t *testing.T) {
	t.Parallel()

	handler := NewSlogHandler(zerolog.New(&bytes.Buffer{}).Level(zerolog.WarnLevel))
	ctx := context.Background()

	if handler.Enabled(ctx, slog.LevelInfo) {
		t.Error("info should be disabled on a warn-level logger")
	}
	if !handler.Enabled(ctx, slog.LevelError) {
		t.Error("error should be enabled on a warn-level logger")
	}
}

func TestSlogHandler_EmptyGroupAndAttrs(t *testing.T) {
	t.Parallel()

	h := NewSlogHandler(zerolog.Nop())
	if h.WithGroup("") != h {
		t.Error("WithGroup(\"\") should return the same handler")
	}
	if h.WithAttrs(nil) != h {
		t.Error("WithAttrs(nil) should return the same handler")
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		slogLvl  slog.Level
		wantZlog zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		if got := slogToZerologLevel(tt.slogLvl); got != tt.wantZlog {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.slogLvl, got, tt.wantZlog)
		}
	}
}

func TestNewSlogLogger(t *testing.T) {
	// Not parallel because it uses global logger state
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer Init(DefaultConfig())

	NewSlogLogger().Info("tree started")

	output := buf.String()
	if !strings.Contains(output, "tree started") {
		t.Errorf("NewSlogLogger() should write to global logger: %s", output)
	}
	if !strings.Contains(output, `"component":"supervisor"`) {
		t.Errorf("expected supervisor component, got: %s", output)
	}
}

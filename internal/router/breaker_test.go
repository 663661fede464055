// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package router

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

func TestOutputDialerOpensAfterFailures(t *testing.T) {
	t.Parallel()

	dir := shortTempDir(t)
	out := unixSource("BRK", filepath.Join(dir, "brk.sock"))
	d := newOutputDialer("IN", out, time.Second, 2, time.Hour)

	for i := 0; i < 2; i++ {
		if _, err := d.Connect(context.Background()); err == nil {
			t.Fatalf("connect %d to a missing socket succeeded", i)
		}
	}
	if got := d.State(); got != "open" {
		t.Fatalf("State() = %q, want open", got)
	}

	_, err := d.Connect(context.Background())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Connect() while open = %v, want ErrOpenState", err)
	}
}

func TestOutputDialerRecovers(t *testing.T) {
	t.Parallel()

	dir := shortTempDir(t)
	d := newOutputDialer("IN", unixSource("REC", filepath.Join(dir, "rec.sock")), time.Second, 1, 20*time.Millisecond)

	if _, err := d.Connect(context.Background()); err == nil {
		t.Fatal("connect to a missing socket succeeded")
	}
	if got := d.State(); got != "open" {
		t.Fatalf("State() = %q, want open", got)
	}

	ol := listenOutput(t, dir, "REC")
	time.Sleep(50 * time.Millisecond)

	conn, err := d.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect() after the output came up: %v", err)
	}
	defer conn.Close()
	ol.accept(t).Close()

	if got := d.State(); got != "closed" {
		t.Errorf("State() = %q, want closed", got)
	}
}

func TestStateConversions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state gobreaker.State
		name  string
		value float64
	}{
		{gobreaker.StateClosed, "closed", 0},
		{gobreaker.StateHalfOpen, "half-open", 1},
		{gobreaker.StateOpen, "open", 2},
		{gobreaker.State(99), "unknown", -1},
	}
	for _, tt := range tests {
		if got := stateToString(tt.state); got != tt.name {
			t.Errorf("stateToString(%v) = %q, want %q", tt.state, got, tt.name)
		}
		if got := stateToFloat(tt.state); got != tt.value {
			t.Errorf("stateToFloat(%v) = %v, want %v", tt.state, got, tt.value)
		}
	}
}

// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordReadAndForward(t *testing.T) {
	before := testutil.ToFloat64(InputBytesReceived.WithLabelValues("metrics-test-in"))
	RecordRead("metrics-test-in", 128)
	RecordRead("metrics-test-in", 72)
	if got := testutil.ToFloat64(InputBytesReceived.WithLabelValues("metrics-test-in")) - before; got != 200 {
		t.Errorf("bytes received delta = %v, want 200", got)
	}

	RecordForward("metrics-test-in", SinkOutput, 200)
	if got := testutil.ToFloat64(SinkBytesForwarded.WithLabelValues("metrics-test-in", SinkOutput)); got < 200 {
		t.Errorf("bytes forwarded = %v, want >= 200", got)
	}
}

func TestTrackGauges(t *testing.T) {
	TrackSink("metrics-test-gauge", SinkClient, true)
	TrackSink("metrics-test-gauge", SinkClient, true)
	TrackSink("metrics-test-gauge", SinkClient, false)

	var m dto.Metric
	if err := SinksAttached.WithLabelValues("metrics-test-gauge", SinkClient).Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.GetGauge().GetValue(); got != 1 {
		t.Errorf("sinks attached = %v, want 1", got)
	}

	TrackProducer("metrics-test-gauge", true)
	TrackProducer("metrics-test-gauge", false)
	if got := testutil.ToFloat64(InputProducers.WithLabelValues("metrics-test-gauge")); got != 0 {
		t.Errorf("producers = %v, want 0", got)
	}
}

func TestRecordCommandAndDial(t *testing.T) {
	RecordCommand("list", "ok")
	RecordDial("metrics-test-out", "failure")

	if got := testutil.ToFloat64(OutputDials.WithLabelValues("metrics-test-out", "failure")); got != 1 {
		t.Errorf("dial failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(CommandRequests.WithLabelValues("list", "ok")); got < 1 {
		t.Errorf("list requests = %v, want >= 1", got)
	}
}

func TestRecordAdminRequest(t *testing.T) {
	RecordAdminRequest("GET", "/api/v1/metrics-test", "200", 15*time.Millisecond)
	RecordAdminRequest("GET", "/api/v1/metrics-test", "200", 5*time.Millisecond)

	if got := testutil.ToFloat64(AdminRequests.WithLabelValues("GET", "/api/v1/metrics-test", "200")); got != 2 {
		t.Errorf("admin requests = %v, want 2", got)
	}
	if n := testutil.CollectAndCount(AdminRequestDuration, "tagrouter_admin_request_duration_seconds"); n < 1 {
		t.Errorf("duration series = %d, want >= 1", n)
	}
}

// TestMetricGathering checks the registered collectors pass the Prometheus linter.
func TestMetricGathering(t *testing.T) {
	RecordRead("lint", 1)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Fatalf("GatherAndLint: %v", err)
	}
	for _, p := range problems {
		if len(p.Metric) >= len("tagrouter_") && p.Metric[:len("tagrouter_")] == "tagrouter_" {
			t.Errorf("metric lint problem on %s: %s", p.Metric, p.Text)
		}
	}
}

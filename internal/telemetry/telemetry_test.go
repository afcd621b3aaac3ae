package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CountRequest("assist", "200")
	m.CountRequest("assist", "200")
	m.CountRequest("assist", "429")

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("assist", "200")); got != 2 {
		t.Fatalf("counter = %v, want 2", got)
	}

	snap := m.RequestSnapshot()
	if snap["assist:200"] != 2 || snap["assist:429"] != 1 {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.CountRequest("health", "200")

	snap := m.RequestSnapshot()
	snap["health:200"] = 99

	if m.RequestSnapshot()["health:200"] != 1 {
		t.Fatalf("snapshot mutation leaked into metrics state")
	}
}

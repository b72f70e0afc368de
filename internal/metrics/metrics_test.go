package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jamesprial/mcp-passthrough/internal/envelope"
)

func TestNewRecorder_RegistersCollectors(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	if r == nil {
		t.Fatal("NewRecorder returned nil")
	}

	r.ObserveRequest(envelope.MethodToolsCall, "downstream", "continue", 0.01)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one registered metric family")
	}
}

func TestRecorder_NilIsNoOp(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.ObserveRequest(envelope.MethodToolsCall, "downstream", "continue", 0.01)
	r.AsyncStarted()
	r.AsyncFinished()
}

func TestRecorder_AsyncGauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.AsyncStarted()
	r.AsyncStarted()
	r.AsyncFinished()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	var found bool
	for _, fam := range families {
		if fam.GetName() != "mcp_passthrough_continue_async_in_flight" {
			continue
		}
		found = true
		if got := fam.Metric[0].GetGauge().GetValue(); got != 1 {
			t.Errorf("gauge value = %v, want 1", got)
		}
	}
	if !found {
		t.Fatal("continue_async_in_flight metric not found")
	}
}

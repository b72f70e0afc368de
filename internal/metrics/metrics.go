// Package metrics exposes Prometheus instrumentation for the passthrough
// pipelines: per-method request counts, traversal latency, and outcome
// breakdown (continue/respond/continueAsync/abort).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jamesprial/mcp-passthrough/internal/envelope"
)

// Recorder wraps the Prometheus collectors the passthrough context reports
// to. A nil *Recorder is valid and every method becomes a no-op, so
// instrumentation can be wired in optionally (spec.md Non-goals/§1, out of
// core scope but carried as ambient stack per the teacher's conventions).
type Recorder struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	outcomes        *prometheus.CounterVec
	asyncInFlight   prometheus.Gauge
}

// NewRecorder builds a Recorder and registers its collectors with reg. If
// reg is nil, prometheus.DefaultRegisterer is used.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcp_passthrough",
			Name:      "requests_total",
			Help:      "Total MCP requests processed by the hook chain, by method and direction.",
		}, []string{"method", "direction"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mcp_passthrough",
			Name:      "request_duration_seconds",
			Help:      "End-to-end duration of a request pipeline run, by method and direction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "direction"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcp_passthrough",
			Name:      "request_outcomes_total",
			Help:      "Terminal outcome of request pipeline runs, by method and outcome kind.",
		}, []string{"method", "outcome"}),
		asyncInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mcp_passthrough",
			Name:      "continue_async_in_flight",
			Help:      "Number of continueAsync background continuations currently running.",
		}),
	}

	reg.MustRegister(r.requests, r.requestDuration, r.outcomes, r.asyncInFlight)
	return r
}

// ObserveRequest records one completed request pipeline run.
func (r *Recorder) ObserveRequest(method envelope.Method, direction string, outcome string, durationSeconds float64) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(string(method), direction).Inc()
	r.requestDuration.WithLabelValues(string(method), direction).Observe(durationSeconds)
	r.outcomes.WithLabelValues(string(method), outcome).Inc()
}

// AsyncStarted increments the in-flight continueAsync gauge.
func (r *Recorder) AsyncStarted() {
	if r == nil {
		return
	}
	r.asyncInFlight.Inc()
}

// AsyncFinished decrements the in-flight continueAsync gauge.
func (r *Recorder) AsyncFinished() {
	if r == nil {
		return
	}
	r.asyncInFlight.Dec()
}

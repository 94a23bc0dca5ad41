// Package metrics exposes this node's Prometheus metrics: how the
// correction loop is doing, how deep the bootstrap queue still is, and
// how the node server is answering peer requests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "paritynode"

// Metrics holds every counter/gauge this node records. Callers that want
// metrics disabled pass a nil *Metrics to component constructors, and
// those components check for nil explicitly before recording.
type Metrics struct {
	registry *prometheus.Registry

	CorrectionsAttempted prometheus.Counter
	CorrectionsSucceeded prometheus.Counter
	CorrectionsFailed    prometheus.Counter
	TicketsInProgress    prometheus.Gauge

	BootstrapQueueDepth prometheus.Gauge

	BlocksServed   prometheus.Counter
	BlocksRejected prometheus.Counter
}

// New constructs a Metrics with its own registry, so multiple Metrics
// instances (e.g. in tests) never collide on process-global state.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CorrectionsAttempted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "correction", Name: "attempts_total",
			Help: "Number of TryCorrect attempts that took a correction ticket.",
		}),
		CorrectionsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "correction", Name: "succeeded_total",
			Help: "Number of corrections committed by peer majority vote.",
		}),
		CorrectionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "correction", Name: "failed_total",
			Help: "Number of correction attempts that committed no value (no peers, or no strict majority).",
		}),
		TicketsInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "correction", Name: "tickets_in_progress",
			Help: "Number of indices currently being corrected.",
		}),
		BootstrapQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "bootstrap", Name: "queue_depth",
			Help: "Number of block requests still pending during bootstrap.",
		}),
		BlocksServed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "server", Name: "blocks_served_total",
			Help: "Number of block requests answered with data.",
		}),
		BlocksRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "server", Name: "blocks_rejected_total",
			Help: "Number of block requests answered with the null sentinel.",
		}),
	}
}

// Handler returns the HTTP handler to mount a Prometheus scrape endpoint
// on, e.g. http.Handle("/metrics", m.Handler()).
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package metrics provides Prometheus metrics for integration cycles.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "msync"

// Metrics holds the integration collectors. Collectors are registered on the
// registerer given to New, so tests can use a private registry.
type Metrics struct {
	// EnvelopesTotal counts processed envelopes by table and outcome.
	EnvelopesTotal *prometheus.CounterVec

	// CyclesTotal counts integration cycles by result (ok, fatal, busy).
	CyclesTotal *prometheus.CounterVec

	// CycleDuration observes the wall time of integration cycles.
	CycleDuration prometheus.Histogram

	// MergesTotal counts applied merges by link kind.
	MergesTotal *prometheus.CounterVec

	// CursorPosition is the last integrated seq per stream.
	CursorPosition *prometheus.GaugeVec
}

// New creates and registers the collectors on reg. A nil reg registers on
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EnvelopesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "integration",
				Name:      "envelopes_total",
				Help:      "Total number of processed envelopes by table and outcome",
			},
			[]string{"table", "outcome"},
		),
		CyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "integration",
				Name:      "cycles_total",
				Help:      "Total number of integration cycles by result",
			},
			[]string{"result"},
		),
		CycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "integration",
				Name:      "cycle_duration_seconds",
				Help:      "Duration of integration cycles in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),
		MergesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "links",
				Name:      "merges_total",
				Help:      "Total number of applied merges by link kind",
			},
			[]string{"kind"},
		),
		CursorPosition: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "integration",
				Name:      "cursor_seq",
				Help:      "Last integrated seq per stream",
			},
			[]string{"stream"},
		),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aistate"

// Compensation results.
const (
	CompensationOK     = "ok"
	CompensationFailed = "failed"
)

// Collector holds the forwarder's Prometheus metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	SetRequestsTotal          *prometheus.CounterVec
	SetResultsTotal           *prometheus.CounterVec
	ProbeOutcomesTotal        *prometheus.CounterVec
	ProbeDuration             prometheus.Histogram
	CompensationsTotal        *prometheus.CounterVec
	UpstreamReadFailuresTotal prometheus.Counter
}

// NewCollector creates and registers all metrics, plus the Go and process collectors.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	c := &Collector{
		registry: registry,

		SetRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "set_requests_total",
				Help:      "State change requests by requested state",
			},
			[]string{"state"},
		),

		SetResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "set_results_total",
				Help:      "State change results by ok flag",
			},
			[]string{"ok"},
		),

		ProbeOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probe_outcomes_total",
				Help:      "Liveness probe outcomes (success, timeout, network_error)",
			},
			[]string{"outcome"},
		),

		ProbeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "probe_duration_seconds",
				Help:      "Liveness probe duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 180},
			},
		),

		CompensationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compensations_total",
				Help:      "Compensating down writes by result",
			},
			[]string{"result"},
		),

		UpstreamReadFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_read_failures_total",
				Help:      "Failed reads of the upstream state",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry exposes the underlying registry, mostly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordSetRequest counts an incoming state change.
func (c *Collector) RecordSetRequest(state string) {
	c.SetRequestsTotal.WithLabelValues(state).Inc()
}

// RecordSetResult counts the reported result of a state change.
func (c *Collector) RecordSetResult(ok bool) {
	c.SetResultsTotal.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

// RecordProbe counts a probe outcome and observes its duration.
func (c *Collector) RecordProbe(outcome string, seconds float64) {
	c.ProbeOutcomesTotal.WithLabelValues(outcome).Inc()
	c.ProbeDuration.Observe(seconds)
}

// RecordCompensation counts a compensating write.
func (c *Collector) RecordCompensation(ok bool) {
	result := CompensationOK
	if !ok {
		result = CompensationFailed
	}
	c.CompensationsTotal.WithLabelValues(result).Inc()
}

// RecordUpstreamReadFailure counts a failed state read.
func (c *Collector) RecordUpstreamReadFailure() {
	c.UpstreamReadFailuresTotal.Inc()
}

// Package metrics exports signal state as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/traffic-light/internal/logic"
)

const namespace = "traffic_light"

// Collector holds the signal metrics on its own registry.
type Collector struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	lit         *prometheus.GaugeVec
	powered     prometheus.Gauge
	dwell       *prometheus.GaugeVec
}

// New creates a Collector. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_entries_total",
			Help:      "Number of times each phase has been entered.",
		}, []string{"phase"}),
		lit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lamp_on",
			Help:      "1 if the lamp is lit, 0 otherwise.",
		}, []string{"phase"}),
		powered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "powered",
			Help:      "1 while the cycle is armed.",
		}),
		dwell: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_dwell_seconds",
			Help:      "Configured dwell time of each phase.",
		}, []string{"phase"}),
	}

	registry.MustRegister(c.transitions, c.lit, c.powered, c.dwell)

	for _, p := range logic.Phases() {
		label := string(p)
		c.transitions.WithLabelValues(label)
		c.lit.WithLabelValues(label).Set(0)
		c.dwell.WithLabelValues(label).Set(logic.Dwell(p).Seconds())
	}
	return c
}

// Record updates the metrics for a scheduler event. Safe to call from a
// scheduler listener.
func (c *Collector) Record(e logic.Event) {
	for _, p := range logic.Phases() {
		v := 0.0
		if p == e.To {
			v = 1
		}
		c.lit.WithLabelValues(string(p)).Set(v)
	}
	if e.To.Valid() {
		c.transitions.WithLabelValues(string(e.To)).Inc()
	}
	if e.Powered {
		c.powered.Set(1)
	} else {
		c.powered.Set(0)
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

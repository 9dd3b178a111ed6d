package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors updated by the scheduler loop.
type Metrics struct {
	registry *prometheus.Registry

	CycleDuration   prometheus.Histogram
	CyclesTotal     *prometheus.CounterVec
	RuleUpdates     prometheus.Counter
	LastSuccess     prometheus.Gauge
	NextDelay       prometheus.Gauge
	ConsecutiveErrs prometheus.Gauge
}

// New registers the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "homesync_cycle_duration_seconds",
			Help:    "Duration of each reconciliation cycle",
			Buckets: prometheus.DefBuckets,
		}),
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "homesync_cycles_total",
			Help: "Total reconciliation cycles by result",
		}, []string{"result"}),
		RuleUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "homesync_rule_updates_total",
			Help: "Total home rule replacements",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "homesync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful cycle",
		}),
		NextDelay: factory.NewGauge(prometheus.GaugeOpts{
			Name: "homesync_next_delay_seconds",
			Help: "Delay before the next cycle",
		}),
		ConsecutiveErrs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "homesync_consecutive_errors",
			Help: "Number of failed cycles since the last success",
		}),
	}
}

// Registry returns the registry backing these collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

package catalog

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for catalog loading.
type Metrics struct {
	ReloadsTotal   *prometheus.CounterVec
	Forms          prometheus.Gauge
	MalformedRules prometheus.Gauge
	LastReload     prometheus.Gauge
}

// NewMetrics registers and returns catalog metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aftercare_catalog_reloads_total",
			Help: "Catalog load attempts by result.",
		}, []string{"result"}),
		Forms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aftercare_catalog_forms",
			Help: "Forms in the active catalog snapshot.",
		}),
		MalformedRules: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aftercare_catalog_malformed_rules",
			Help: "Rules in the active snapshot missing a field or operator.",
		}),
		LastReload: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aftercare_catalog_last_reload_timestamp_seconds",
			Help: "Unix time of the last successful catalog load.",
		}),
	}

	reg.MustRegister(m.ReloadsTotal, m.Forms, m.MalformedRules, m.LastReload)
	return m
}

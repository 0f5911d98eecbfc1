package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	SubmitsTotal       *prometheus.CounterVec
	EvaluationsTotal   *prometheus.CounterVec
	MatchedRules       prometheus.Histogram
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aftercare_triage_submits_total",
			Help: "Total response submissions by result.",
		}, []string{"result"}),
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aftercare_triage_evaluations_total",
			Help: "Total triage evaluations by resulting severity.",
		}, []string{"severity"}),
		MatchedRules: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aftercare_triage_matched_rules",
			Help:    "Rules matched per evaluated response.",
			Buckets: prometheus.LinearBuckets(0, 1, 11), // 0 .. 10
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aftercare_triage_notifications_total",
			Help: "Total care-team notifications by delivery status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.SubmitsTotal,
		m.EvaluationsTotal,
		m.MatchedRules,
		m.NotificationsTotal,
	)

	return m
}

// ObserveEvaluation records one completed evaluation.
func (m *Metrics) ObserveEvaluation(sev Severity, matched int) {
	m.EvaluationsTotal.WithLabelValues(string(sev.Normalize())).Inc()
	m.MatchedRules.Observe(float64(matched))
}

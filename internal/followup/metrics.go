package followup

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for follow-up planning.
type Metrics struct {
	PlansTotal    *prometheus.CounterVec
	PlanSends     prometheus.Histogram
	DeferredSends prometheus.Counter
}

// NewMetrics registers and returns planning metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PlansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aftercare_followup_plans_total",
			Help: "Total follow-up plan requests by outcome.",
		}, []string{"outcome"}),
		PlanSends: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aftercare_followup_plan_sends",
			Help:    "Number of sends per computed plan.",
			Buckets: prometheus.LinearBuckets(1, 1, MaxCountLimit), // 1 .. 20
		}),
		DeferredSends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aftercare_followup_deferred_sends_total",
			Help: "Total planned sends moved out of quiet hours.",
		}),
	}

	reg.MustRegister(
		m.PlansTotal,
		m.PlanSends,
		m.DeferredSends,
	)

	return m
}

// Hooks returns planner Hooks that update the metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnPlan: func(sends, deferred int) {
			m.PlansTotal.WithLabelValues("ok").Inc()
			m.PlanSends.Observe(float64(sends))
			m.DeferredSends.Add(float64(deferred))
		},
		OnFail: func(reason string) {
			m.PlansTotal.WithLabelValues(reason).Inc()
		},
	}
}

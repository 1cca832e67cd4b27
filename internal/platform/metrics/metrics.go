package metrics

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for cohort calculations. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Collaborator lookup latencies by source
	LookupLatency *prometheus.HistogramVec

	// Evaluations by stage and outcome ("ok", "error")
	Evaluations *prometheus.CounterVec

	// Patients classified by stage and result ("qualified", "not_qualified", "ineligible")
	Patients *prometheus.CounterVec

	// Overall evaluation latency
	EvaluateLatency prometheus.Histogram
}

// New registers the calculation metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LookupLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mchms_lookup_duration_seconds",
			Help:    "Duration of batched collaborator lookups by source",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}),

		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mchms_evaluations_total",
			Help: "Total cohort evaluations by stage and outcome",
		}, []string{"stage", "outcome"}),

		Patients: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mchms_patients_total",
			Help: "Total patients classified by stage and result",
		}, []string{"stage", "result"}),

		EvaluateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mchms_evaluate_duration_seconds",
			Help:    "Duration of full cohort evaluation including lookups",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// ObserveLookupLatency records the duration of a batched lookup.
func (m *Metrics) ObserveLookupLatency(source string, d time.Duration) {
	if m != nil {
		m.LookupLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncrementEvaluation records an evaluation outcome.
func (m *Metrics) IncrementEvaluation(stage, outcome string) {
	if m != nil {
		m.Evaluations.WithLabelValues(stage, outcome).Inc()
	}
}

// AddPatients records n patients with the given result.
func (m *Metrics) AddPatients(stage, result string, n int) {
	if m != nil && n > 0 {
		m.Patients.WithLabelValues(stage, result).Add(float64(n))
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// Package telemetry wires AVA's Prometheus metrics and OpenTelemetry
// tracing (§4.19), the ambient observability stack the distilled spec
// omits. Metrics follow the teacher's internal/escrow/metrics.go shape:
// a struct of promauto-registered CounterVec/HistogramVec fields plus
// Record* methods, one field per metric named in spec.md.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ava/internal/core"
)

// Metrics holds every Prometheus instrument AVA exports.
type Metrics struct {
	EvaluationsTotal       *prometheus.CounterVec
	GateOverrideTotal      *prometheus.CounterVec
	InterventionsFiredTotal *prometheus.CounterVec
	TrainingDatapointsTotal *prometheus.CounterVec
	DriftAlertsTotal        *prometheus.CounterVec
	JobRunDurationSeconds   *prometheus.HistogramVec
}

// NewMetrics constructs and registers every instrument against the default
// Prometheus registry, matching the teacher's NewMetrics constructor shape.
func NewMetrics() *Metrics {
	return &Metrics{
		EvaluationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ava_evaluations_total",
				Help: "Total MSWIM evaluations run, by decision and tier",
			},
			[]string{"decision", "tier"},
		),
		GateOverrideTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ava_gate_override_total",
				Help: "Total gate overrides applied, by rule",
			},
			[]string{"rule"},
		),
		InterventionsFiredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ava_interventions_fired_total",
				Help: "Total interventions fired, by type",
			},
			[]string{"type"},
		),
		TrainingDatapointsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ava_training_datapoints_total",
				Help: "Total training datapoints assembled, by quality grade",
			},
			[]string{"grade"},
		),
		DriftAlertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ava_drift_alerts_total",
				Help: "Total drift alerts raised, by severity",
			},
			[]string{"severity"},
		),
		JobRunDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ava_job_run_duration_seconds",
				Help:    "Duration of nightly/hourly/canary job runs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		),
	}
}

// RecordEvaluation increments evaluations_total for the given decision/tier.
func (m *Metrics) RecordEvaluation(decision core.Decision, tier core.Tier) {
	m.EvaluationsTotal.WithLabelValues(string(decision), string(tier)).Inc()
}

// RecordGateOverride increments gate_override_total for the given rule.
func (m *Metrics) RecordGateOverride(rule core.GateOverride) {
	m.GateOverrideTotal.WithLabelValues(string(rule)).Inc()
}

// RecordInterventionFired increments interventions_fired_total for the
// given intervention type.
func (m *Metrics) RecordInterventionFired(t core.InterventionType) {
	m.InterventionsFiredTotal.WithLabelValues(string(t)).Inc()
}

// RecordTrainingDatapoint increments training_datapoints_total for the
// given quality grade.
func (m *Metrics) RecordTrainingDatapoint(grade core.QualityGrade) {
	m.TrainingDatapointsTotal.WithLabelValues(string(grade)).Inc()
}

// RecordDriftAlert increments drift_alerts_total for the given severity.
func (m *Metrics) RecordDriftAlert(severity core.AlertSeverity) {
	m.DriftAlertsTotal.WithLabelValues(string(severity)).Inc()
}

// RecordJobRun observes a job run's wall-clock duration in seconds.
func (m *Metrics) RecordJobRun(jobName string, seconds float64) {
	m.JobRunDurationSeconds.WithLabelValues(jobName).Observe(seconds)
}

package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"ava/internal/core"
)

// NewMetrics registers with the default Prometheus registry, which panics on
// a second registration of the same names, so the tests share one instance.
var testMetrics = NewMetrics()

func TestRecordEvaluationIncrementsByDecisionAndTier(t *testing.T) {
	m := testMetrics
	m.RecordEvaluation(core.DecisionFire, core.TierEscalate)
	m.RecordEvaluation(core.DecisionFire, core.TierEscalate)
	m.RecordEvaluation(core.DecisionSuppress, core.TierMonitor)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("fire", "ESCALATE")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("suppress", "MONITOR")))
}

func TestRecordDriftAlertIncrementsBySeverity(t *testing.T) {
	m := testMetrics
	m.RecordDriftAlert(core.SeverityCritical)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DriftAlertsTotal.WithLabelValues("critical")))
}

func TestRecordJobRunObservesDuration(t *testing.T) {
	m := testMetrics
	m.RecordJobRun("nightly", 1.5)
	assert.Equal(t, 1, testutil.CollectAndCount(m.JobRunDurationSeconds))
}

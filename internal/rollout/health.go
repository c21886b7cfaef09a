package rollout

import (
	"context"
	"fmt"
	"time"

	"ava/internal/apierr"
	"ava/internal/core"
)

// treatmentVariantID is the fixed id stageVariants assigns to the arm
// carrying the rollout's proposed change.
const treatmentVariantID = "treatment"

// EvaluateHealth runs the current stage's HealthCriteria against the linked
// experiment's treatment-variant metrics, returning a recommendation of
// promote, hold or rollback.
//
//   - rollback: sample size has reached the minimum AND (conversion rate is
//     below half the required minimum OR dismissal rate exceeds 1.5x the
//     allowed maximum) — a clear, well-sampled regression.
//   - hold: sample size hasn't reached the minimum yet, or a criterion
//     failed without crossing the rollback thresholds above.
//   - promote: every criterion passes and the stage has been held for at
//     least its configured duration.
func (c *Controller) EvaluateHealth(ctx context.Context, rolloutID string, metrics core.VariantMetrics) (core.HealthStatus, error) {
	ro, ok, err := c.Rollouts.Get(ctx, rolloutID)
	if err != nil {
		return core.HealthStatus{}, apierr.Transient("rollout.EvaluateHealth.Get", err)
	}
	if !ok {
		return core.HealthStatus{}, apierr.Permanent("rollout.EvaluateHealth", fmt.Errorf("rollout %s not found", rolloutID))
	}
	stage, ok := ro.CurrentStageSpec()
	if !ok {
		return core.HealthStatus{}, apierr.Invariant("rollout.EvaluateHealth", fmt.Errorf("rollout %s has no current stage", rolloutID))
	}

	status := evaluateRolloutHealth(stage.HealthChecks, metrics, ro.CurrentStageSince, stage.DurationHours, c.now())
	ro.LastHealthCheck = &status.EvaluatedAt
	ro.LastHealthStatus = &status
	if err := c.Rollouts.Update(ctx, ro); err != nil {
		return core.HealthStatus{}, apierr.Transient("rollout.EvaluateHealth.Update", err)
	}
	return status, nil
}

func evaluateRolloutHealth(crit core.HealthCriteria, m core.VariantMetrics, stageSince *time.Time, stageDurationHours float64, now time.Time) core.HealthStatus {
	sampleOK := m.SampleSize >= crit.MinSampleSize
	conversionOK := m.ConversionRate >= crit.MinConversionRate
	dismissalOK := m.DismissalRate <= crit.MaxDismissalRate

	checks := []core.HealthCheckResult{
		{Name: "sample_size", Passed: sampleOK, Detail: fmt.Sprintf("%d/%d", m.SampleSize, crit.MinSampleSize)},
		{Name: "conversion_rate", Passed: conversionOK, Detail: fmt.Sprintf("%.4f/%.4f", m.ConversionRate, crit.MinConversionRate)},
		{Name: "dismissal_rate", Passed: dismissalOK, Detail: fmt.Sprintf("%.4f/%.4f", m.DismissalRate, crit.MaxDismissalRate)},
	}

	rec := core.RecommendHold
	switch {
	case sampleOK && (m.ConversionRate < 0.5*crit.MinConversionRate || m.DismissalRate > 1.5*crit.MaxDismissalRate):
		rec = core.RecommendRollback
	case sampleOK && conversionOK && dismissalOK && stageHeldLongEnough(stageSince, stageDurationHours, now):
		rec = core.RecommendPromote
	}

	return core.HealthStatus{Recommendation: rec, Checks: checks, EvaluatedAt: now}
}

func stageHeldLongEnough(stageSince *time.Time, durationHours float64, now time.Time) bool {
	if stageSince == nil {
		return false
	}
	return now.Sub(*stageSince).Hours() >= durationHours
}

// CheckAllRolloutsHealth walks every rolling rollout across all sites,
// fetches its treatment variant's metrics, evaluates health and applies the
// resulting recommendation (promote/rollback); a hold recommendation just
// persists the health status via EvaluateHealth and leaves the rollout
// rolling. Individual rollout failures are returned but do not stop the
// walk over the rest.
func (c *Controller) CheckAllRolloutsHealth(ctx context.Context) ([]core.Rollout, error) {
	rollouts, err := c.Rollouts.ListRolling(ctx)
	if err != nil {
		return nil, apierr.Transient("rollout.CheckAllRolloutsHealth.List", err)
	}

	var results []core.Rollout
	var firstErr error
	for _, ro := range rollouts {
		updated, err := c.checkOneRolloutHealth(ctx, ro)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, updated)
	}
	return results, firstErr
}

func (c *Controller) checkOneRolloutHealth(ctx context.Context, ro core.Rollout) (core.Rollout, error) {
	exp, found, err := c.Experiments.Get(ctx, ro.ExperimentID)
	if err != nil {
		return core.Rollout{}, apierr.Transient("rollout.checkOneRolloutHealth.GetExperiment", err)
	}
	if !found {
		return core.Rollout{}, apierr.Invariant("rollout.checkOneRolloutHealth", fmt.Errorf("rollout %s references missing experiment %s", ro.ID, ro.ExperimentID))
	}

	metrics := treatmentMetrics(exp)
	status, err := c.EvaluateHealth(ctx, ro.ID, metrics)
	if err != nil {
		return core.Rollout{}, err
	}

	switch status.Recommendation {
	case core.RecommendPromote:
		return c.Promote(ctx, ro.ID)
	case core.RecommendRollback:
		return c.Rollback(ctx, ro.ID, "automated health check: "+string(status.Recommendation))
	default:
		ro.LastHealthCheck = &status.EvaluatedAt
		ro.LastHealthStatus = &status
		return ro, nil
	}
}

// treatmentMetrics extracts VariantMetrics for the experiment's treatment
// arm from exp.Metrics as stored on the experiment; internal/rollout does
// not compute variant metrics itself, matching the teacher's pattern of accepting
// pre-aggregated metrics rather than reaching into another domain's
// storage.
func treatmentMetrics(exp core.Experiment) core.VariantMetrics {
	for _, v := range exp.Variants {
		if v.ID == treatmentVariantID {
			return exp.Metrics[v.ID]
		}
	}
	return core.VariantMetrics{}
}

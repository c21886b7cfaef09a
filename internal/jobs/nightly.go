package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ava/internal/core"
	"ava/internal/repo"
)

// subtaskResult is one independently-run nightly subtask's outcome.
type subtaskResult struct {
	name string
	err  error
	note string
}

// RunNightly executes the nightly batch's subtasks independently — one
// subtask's failure is recorded but does not block the others — and
// persists a single JobRun summarizing all of them.
func (r *Runner) RunNightly(ctx context.Context, triggeredBy string) (core.JobRun, error) {
	id, startedAt, err := r.startRun(ctx, "nightly_batch", triggeredBy)
	if err != nil {
		return core.JobRun{}, err
	}

	results := []subtaskResult{
		r.runSubtask("quality_stats_aggregate", func() (string, error) { return r.qualityStatsAggregate(ctx) }),
		r.runSubtask("eval_harness_regression_check", func() (string, error) { return r.evalHarnessRegressionCheck(ctx) }),
		r.runSubtask("drift_check", func() (string, error) { return r.driftCheckSubtask(ctx) }),
		r.runSubtask("rollout_health_check", func() (string, error) { return r.rolloutHealthSubtask(ctx) }),
		r.runSubtask("stale_data_cleanup", func() (string, error) { return r.staleDataCleanup(ctx) }),
	}
	results = append(results, r.runSubtask("daily_summary", func() (string, error) { return r.dailySummary(ctx, results) }))

	summary, failure := summarizeSubtasks(results)
	r.finishRun(ctx, id, "nightly_batch", summary, failure)

	completedAt := r.now()
	status := core.JobCompleted
	if failure != "" {
		status = core.JobFailed
	}
	duration := completedAt.Sub(startedAt).Milliseconds()
	return core.JobRun{
		ID: id, JobName: "nightly_batch", Status: status, StartedAt: startedAt,
		CompletedAt: &completedAt, DurationMs: &duration, Summary: summary, Error: failure, TriggeredBy: triggeredBy,
	}, nil
}

func (r *Runner) runSubtask(name string, fn func() (string, error)) subtaskResult {
	note, err := fn()
	return subtaskResult{name: name, err: err, note: note}
}

func summarizeSubtasks(results []subtaskResult) (summary, failure string) {
	var summaryLines, failureLines []string
	for _, res := range results {
		if res.err != nil {
			failureLines = append(failureLines, fmt.Sprintf("%s: %v", res.name, res.err))
			continue
		}
		summaryLines = append(summaryLines, fmt.Sprintf("%s: %s", res.name, res.note))
	}
	return strings.Join(summaryLines, "; "), strings.Join(failureLines, "; ")
}

func (r *Runner) qualityStatsAggregate(ctx context.Context) (string, error) {
	if r.TrainingData == nil {
		return "skipped: no training-datapoint repo configured", nil
	}
	since := r.now().Add(-24 * time.Hour)
	count, err := r.TrainingData.Count(ctx, repo.TrainingDatapointFilter{Since: &since})
	if err != nil {
		return "", err
	}
	dist, err := r.TrainingData.OutcomeDistribution(ctx, "")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d datapoints in last 24h, outcome distribution %v", count, dist), nil
}

func (r *Runner) evalHarnessRegressionCheck(ctx context.Context) (string, error) {
	if r.Drift == nil || r.Drift.Shadows == nil {
		return "skipped: no drift detector configured", nil
	}
	since := r.now().Add(-24 * time.Hour)
	stats, err := r.Drift.Shadows.Stats(ctx, "", since)
	if err != nil {
		return "", err
	}
	t := r.Drift.Thresholds
	if stats.Count > 0 && (stats.TierAgreementRate < t.TierAgreementFloor || stats.DecisionAgreementRate < t.DecisionAgreementFloor) {
		return fmt.Sprintf("regression suspected: tier_agreement=%.3f decision_agreement=%.3f over %d samples", stats.TierAgreementRate, stats.DecisionAgreementRate, stats.Count), nil
	}
	return fmt.Sprintf("no regression detected over %d samples", stats.Count), nil
}

func (r *Runner) driftCheckSubtask(ctx context.Context) (string, error) {
	if r.Drift == nil {
		return "skipped: no drift detector configured", nil
	}
	alerts, err := r.Drift.RunDriftCheck(ctx, "")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d new alert(s) raised", len(alerts)), nil
}

func (r *Runner) rolloutHealthSubtask(ctx context.Context) (string, error) {
	if r.Rollouts == nil {
		return "skipped: no rollout controller configured", nil
	}
	updated, err := r.Rollouts.CheckAllRolloutsHealth(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d rolling rollout(s) checked", len(updated)), nil
}

func (r *Runner) dailySummary(ctx context.Context, priorResults []subtaskResult) (string, error) {
	ok, failed := 0, 0
	for _, res := range priorResults {
		if res.err != nil {
			failed++
		} else {
			ok++
		}
	}
	return fmt.Sprintf("%d subtasks ok, %d failed", ok, failed), nil
}

func (r *Runner) staleDataCleanup(ctx context.Context) (string, error) {
	var prunedSnapshots, prunedJobRuns int
	if r.Snapshots != nil && r.Drift != nil {
		before := r.now().AddDate(0, 0, -r.Drift.Thresholds.RetentionDays)
		n, err := r.Snapshots.PruneOlderThan(ctx, before)
		if err != nil {
			return "", err
		}
		prunedSnapshots = n
	}
	if r.JobRuns != nil {
		before := r.now().AddDate(0, 0, -r.Config.JobRunRetentionDays)
		n, err := r.JobRuns.PruneOlderThan(ctx, before)
		if err != nil {
			return "", err
		}
		prunedJobRuns = n
	}
	return fmt.Sprintf("pruned %d drift snapshot(s), %d job run(s)", prunedSnapshots, prunedJobRuns), nil
}

// RunHourlySnapshot computes and persists a single 1h drift snapshot.
func (r *Runner) RunHourlySnapshot(ctx context.Context, triggeredBy string) (core.JobRun, error) {
	id, startedAt, err := r.startRun(ctx, "hourly_snapshot", triggeredBy)
	if err != nil {
		return core.JobRun{}, err
	}

	var summary, failure string
	if r.Drift == nil {
		summary = "skipped: no drift detector configured"
	} else if _, snapErr := r.Drift.ComputeWindowSnapshot(ctx, core.Window1h, ""); snapErr != nil {
		failure = snapErr.Error()
	} else {
		summary = "1h drift snapshot computed"
	}

	r.finishRun(ctx, id, "hourly_snapshot", summary, failure)
	return r.buildJobRun(id, "hourly_snapshot", startedAt, summary, failure, triggeredBy), nil
}

// RunCanaryCheck invokes the rollout health check across all rolling
// rollouts.
func (r *Runner) RunCanaryCheck(ctx context.Context, triggeredBy string) (core.JobRun, error) {
	id, startedAt, err := r.startRun(ctx, "canary_check", triggeredBy)
	if err != nil {
		return core.JobRun{}, err
	}

	var summary, failure string
	if r.Rollouts == nil {
		summary = "skipped: no rollout controller configured"
	} else if updated, checkErr := r.Rollouts.CheckAllRolloutsHealth(ctx); checkErr != nil {
		failure = checkErr.Error()
	} else {
		summary = fmt.Sprintf("%d rolling rollout(s) checked", len(updated))
	}

	r.finishRun(ctx, id, "canary_check", summary, failure)
	return r.buildJobRun(id, "canary_check", startedAt, summary, failure, triggeredBy), nil
}

func (r *Runner) buildJobRun(id, name string, startedAt time.Time, summary, failure, triggeredBy string) core.JobRun {
	completedAt := r.now()
	status := core.JobCompleted
	if failure != "" {
		status = core.JobFailed
	}
	duration := completedAt.Sub(startedAt).Milliseconds()
	return core.JobRun{
		ID: id, JobName: name, Status: status, StartedAt: startedAt,
		CompletedAt: &completedAt, DurationMs: &duration, Summary: summary, Error: failure, TriggeredBy: triggeredBy,
	}
}

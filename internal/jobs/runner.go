// Package jobs implements the §4.14 job runner: three self-scheduling
// timers (nightly batch, hourly snapshot, canary check) that drive the
// drift detector and rollout controller, each run persisted as a
// core.JobRun for observability and manual re-trigger.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"ava/internal/apierr"
	"ava/internal/core"
	"ava/internal/drift"
	"ava/internal/repo"
	"ava/internal/rollout"
	"ava/internal/webhooks"
)

// TriggeredByAPI marks a JobRun created by a manual-trigger endpoint rather
// than a timer firing.
const TriggeredByAPI = "api"

const triggeredByTimer = "timer"

// Config parameterizes the runner's three timers.
type Config struct {
	NightlyHourUTC           int
	CanaryCheckIntervalHours int
	JobRunRetentionDays      int
}

// DefaultConfig mirrors spec §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		NightlyHourUTC:           2,
		CanaryCheckIntervalHours: 4,
		JobRunRetentionDays:      30,
	}
}

// Runner owns the three periodic jobs and their JobRun bookkeeping.
type Runner struct {
	JobRuns      repo.JobRunRepo
	TrainingData repo.TrainingDatapointRepo
	Snapshots    repo.DriftSnapshotRepo
	Drift        *drift.Detector
	Rollouts     *rollout.Controller
	Config       Config
	Now          func() time.Time

	// Emitter, if set, is notified with EventJobRunFailed whenever a job
	// run completes with a failure.
	Emitter webhooks.WebhookEmitter

	stopCh chan struct{}
}

// NewRunner constructs a Runner with DefaultConfig and time.Now.
func NewRunner(jobRuns repo.JobRunRepo, trainingData repo.TrainingDatapointRepo, snapshots repo.DriftSnapshotRepo, d *drift.Detector, r *rollout.Controller) *Runner {
	return &Runner{
		JobRuns:      jobRuns,
		TrainingData: trainingData,
		Snapshots:    snapshots,
		Drift:        d,
		Rollouts:     r,
		Config:       DefaultConfig(),
		Now:          time.Now,
		stopCh:       make(chan struct{}),
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Start launches the three timers as background goroutines. Stop (or
// cancelling ctx) ends them gracefully.
func (r *Runner) Start(ctx context.Context) {
	go r.runNightlyLoop(ctx)
	go r.runHourlyLoop(ctx)
	go r.runCanaryLoop(ctx)
}

// Stop signals all running timer loops to exit.
func (r *Runner) Stop() {
	close(r.stopCh)
}

// nextNightlyFire returns the next absolute wall-clock instant at
// hourUTC:00:00 UTC strictly after now — today if hourUTC hasn't passed
// yet, tomorrow otherwise. Computing from the absolute target each time
// (rather than now+24h) prevents cumulative drift from slow ticks or
// process pauses.
func nextNightlyFire(now time.Time, hourUTC int) time.Time {
	now = now.UTC()
	target := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}

func (r *Runner) runNightlyLoop(ctx context.Context) {
	for {
		next := nextNightlyFire(r.now(), r.Config.NightlyHourUTC)
		timer := time.NewTimer(next.Sub(r.now()))
		select {
		case <-timer.C:
			if _, err := r.RunNightly(ctx, triggeredByTimer); err != nil {
				slog.Error("jobs: nightly run failed", "error", err)
			}
		case <-ctx.Done():
			timer.Stop()
			return
		case <-r.stopCh:
			timer.Stop()
			return
		}
	}
}

func (r *Runner) runHourlyLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := r.RunHourlySnapshot(ctx, triggeredByTimer); err != nil {
				slog.Error("jobs: hourly snapshot failed", "error", err)
			}
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		}
	}
}

func (r *Runner) runCanaryLoop(ctx context.Context) {
	interval := time.Duration(r.Config.CanaryCheckIntervalHours) * time.Hour
	if interval <= 0 {
		interval = 4 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := r.RunCanaryCheck(ctx, triggeredByTimer); err != nil {
				slog.Error("jobs: canary check failed", "error", err)
			}
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		}
	}
}

// startRun persists a running JobRun and returns its id.
func (r *Runner) startRun(ctx context.Context, jobName, triggeredBy string) (string, time.Time, error) {
	startedAt := r.now()
	id, err := r.JobRuns.Create(ctx, core.JobRun{
		JobName:     jobName,
		Status:      core.JobRunning,
		StartedAt:   startedAt,
		TriggeredBy: triggeredBy,
	})
	if err != nil {
		return "", startedAt, apierr.Transient("jobs.startRun", err)
	}
	return id, startedAt, nil
}

func (r *Runner) finishRun(ctx context.Context, id, jobName, summary, failure string) {
	completedAt := r.now()
	if failure != "" {
		if err := r.JobRuns.Fail(ctx, id, completedAt, failure); err != nil {
			slog.Error("jobs: failed to record job failure", "job_run_id", id, "error", err)
		}
		if r.Emitter != nil {
			r.Emitter.Emit(webhooks.EventJobRunFailed, "", map[string]interface{}{
				"job_run_id": id,
				"job_name":   jobName,
				"error":      failure,
			})
		}
		return
	}
	if err := r.JobRuns.Complete(ctx, id, completedAt, summary); err != nil {
		slog.Error("jobs: failed to record job completion", "job_run_id", id, "error", err)
	}
}

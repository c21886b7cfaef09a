package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ava/internal/drift"
	"ava/internal/rollout"
)

func TestNextNightlyFire_TodayWhenHourHasNotPassed(t *testing.T) {
	now := time.Date(2026, 7, 30, 1, 0, 0, 0, time.UTC)
	next := nextNightlyFire(now, 3)
	assert.Equal(t, time.Date(2026, 7, 30, 3, 0, 0, 0, time.UTC), next)
}

func TestNextNightlyFire_RollsToTomorrowWhenHourAlreadyPassed(t *testing.T) {
	now := time.Date(2026, 7, 30, 5, 0, 0, 0, time.UTC)
	next := nextNightlyFire(now, 3)
	assert.Equal(t, time.Date(2026, 7, 31, 3, 0, 0, 0, time.UTC), next)
}

func TestNextNightlyFire_ExactlyAtTargetRollsToTomorrow(t *testing.T) {
	now := time.Date(2026, 7, 30, 3, 0, 0, 0, time.UTC)
	next := nextNightlyFire(now, 3)
	assert.Equal(t, time.Date(2026, 7, 31, 3, 0, 0, 0, time.UTC), next)
}

func TestNextNightlyFire_MonthBoundaryRollsCorrectly(t *testing.T) {
	now := time.Date(2026, 7, 31, 4, 0, 0, 0, time.UTC)
	next := nextNightlyFire(now, 3)
	assert.Equal(t, time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC), next)
}

func newTestRunner(now time.Time) (*Runner, *fakeJobRunRepo, *failingTrainingDataRepo, *fakeDriftSnapshotRepo) {
	jobRuns := newFakeJobRunRepo()
	training := &failingTrainingDataRepo{}
	snapshots := &fakeDriftSnapshotRepo{}
	d := drift.NewDetector(&fakeShadowRepo{}, &fakeInterventionRepo{}, snapshots, &fakeAlertRepo{})
	d.Now = func() time.Time { return now }
	rc := rollout.NewController(&fakeRolloutRepo{}, &fakeExperimentRepo{}, &fakeScoringConfigRepo{})
	rc.Now = func() time.Time { return now }

	r := &Runner{
		JobRuns:      jobRuns,
		TrainingData: training,
		Snapshots:    snapshots,
		Drift:        d,
		Rollouts:     rc,
		Config:       DefaultConfig(),
		Now:          func() time.Time { return now },
		stopCh:       make(chan struct{}),
	}
	return r, jobRuns, training, snapshots
}

func TestRunNightly_AllSubtasksSucceedYieldsCompletedRun(t *testing.T) {
	now := time.Date(2026, 7, 30, 3, 0, 0, 0, time.UTC)
	r, jobRuns, _, _ := newTestRunner(now)

	run, err := r.RunNightly(context.Background(), TriggeredByAPI)
	require.NoError(t, err)
	assert.Equal(t, "completed", string(run.Status))
	assert.Empty(t, run.Error)
	assert.NotEmpty(t, run.Summary)

	require.Len(t, jobRuns.created, 1)
	assert.Equal(t, "nightly_batch", jobRuns.created[0].JobName)
}

func TestRunNightly_OneFailingSubtaskDoesNotBlockOthers(t *testing.T) {
	now := time.Date(2026, 7, 30, 3, 0, 0, 0, time.UTC)
	r, _, training, _ := newTestRunner(now)
	training.countErr = errors.New("training datapoint store unavailable")

	run, err := r.RunNightly(context.Background(), TriggeredByAPI)
	require.NoError(t, err)
	assert.Equal(t, "failed", string(run.Status))
	assert.Contains(t, run.Error, "quality_stats_aggregate")
	// the other subtasks still ran and contributed to the summary.
	assert.Contains(t, run.Summary, "drift_check")
	assert.Contains(t, run.Summary, "rollout_health_check")
	assert.Contains(t, run.Summary, "stale_data_cleanup")
}

func TestRunNightly_NilOptionalDependenciesSkipGracefully(t *testing.T) {
	now := time.Date(2026, 7, 30, 3, 0, 0, 0, time.UTC)
	r, jobRuns, _, _ := newTestRunner(now)
	r.Drift = nil
	r.Rollouts = nil
	r.TrainingData = nil
	r.Snapshots = nil

	run, err := r.RunNightly(context.Background(), TriggeredByAPI)
	require.NoError(t, err)
	assert.Equal(t, "completed", string(run.Status))
	assert.Contains(t, run.Summary, "skipped")
	require.Len(t, jobRuns.created, 1)
}

func TestRunHourlySnapshot_PersistsOneSnapshot(t *testing.T) {
	now := time.Date(2026, 7, 30, 3, 0, 0, 0, time.UTC)
	r, jobRuns, _, snapshots := newTestRunner(now)

	run, err := r.RunHourlySnapshot(context.Background(), TriggeredByAPI)
	require.NoError(t, err)
	assert.Equal(t, "completed", string(run.Status))
	assert.Len(t, snapshots.created, 1)
	require.Len(t, jobRuns.created, 1)
	assert.Equal(t, "hourly_snapshot", jobRuns.created[0].JobName)
}

func TestRunCanaryCheck_NoRollingRolloutsStillCompletes(t *testing.T) {
	now := time.Date(2026, 7, 30, 3, 0, 0, 0, time.UTC)
	r, jobRuns, _, _ := newTestRunner(now)

	run, err := r.RunCanaryCheck(context.Background(), TriggeredByAPI)
	require.NoError(t, err)
	assert.Equal(t, "completed", string(run.Status))
	assert.Contains(t, run.Summary, "0 rolling rollout")
	require.Len(t, jobRuns.created, 1)
	assert.Equal(t, "canary_check", jobRuns.created[0].JobName)
}

func TestStartStop_DoesNotPanicWithNoTimerFiring(t *testing.T) {
	now := time.Date(2026, 7, 30, 3, 0, 0, 0, time.UTC)
	r, _, _, _ := newTestRunner(now)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()
	r.Stop()
}

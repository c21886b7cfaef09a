package jobs

import (
	"context"
	"fmt"
	"time"

	"ava/internal/core"
	"ava/internal/repo"
)

type fakeJobRunRepo struct {
	runs    map[string]core.JobRun
	nextID  int
	created []core.JobRun
}

func newFakeJobRunRepo() *fakeJobRunRepo {
	return &fakeJobRunRepo{runs: make(map[string]core.JobRun)}
}

func (f *fakeJobRunRepo) Create(ctx context.Context, j core.JobRun) (string, error) {
	f.nextID++
	id := fmt.Sprintf("run-%d", f.nextID)
	j.ID = id
	f.runs[id] = j
	f.created = append(f.created, j)
	return id, nil
}

func (f *fakeJobRunRepo) Complete(ctx context.Context, id string, completedAt time.Time, summary string) error {
	run := f.runs[id]
	run.Status = core.JobCompleted
	run.CompletedAt = &completedAt
	run.Summary = summary
	f.runs[id] = run
	return nil
}

func (f *fakeJobRunRepo) Fail(ctx context.Context, id string, completedAt time.Time, errMsg string) error {
	run := f.runs[id]
	run.Status = core.JobFailed
	run.CompletedAt = &completedAt
	run.Error = errMsg
	f.runs[id] = run
	return nil
}

func (f *fakeJobRunRepo) GetLastRun(ctx context.Context, jobName string) (core.JobRun, bool, error) {
	var latest core.JobRun
	found := false
	for _, run := range f.runs {
		if run.JobName != jobName {
			continue
		}
		if !found || run.StartedAt.After(latest.StartedAt) {
			latest = run
			found = true
		}
	}
	return latest, found, nil
}

func (f *fakeJobRunRepo) PruneOlderThan(ctx context.Context, before time.Time) (int, error) {
	n := 0
	for id, run := range f.runs {
		if run.StartedAt.Before(before) {
			delete(f.runs, id)
			n++
		}
	}
	return n, nil
}

type failingTrainingDataRepo struct {
	countErr error
}

func (f *failingTrainingDataRepo) Create(ctx context.Context, dp core.TrainingDatapoint) (bool, error) {
	return true, nil
}

func (f *failingTrainingDataRepo) List(ctx context.Context, filter repo.TrainingDatapointFilter) ([]core.TrainingDatapoint, error) {
	return nil, nil
}

func (f *failingTrainingDataRepo) OutcomeDistribution(ctx context.Context, siteURL string) (map[core.InterventionStatus]int, error) {
	return map[core.InterventionStatus]int{core.StatusConverted: 3, core.StatusDismissed: 1}, nil
}

func (f *failingTrainingDataRepo) TierOutcomeCrossTab(ctx context.Context, siteURL string) (map[core.Tier]map[core.InterventionStatus]int, error) {
	return nil, nil
}

func (f *failingTrainingDataRepo) Count(ctx context.Context, filter repo.TrainingDatapointFilter) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return 42, nil
}

type fakeDriftSnapshotRepo struct {
	created []core.DriftSnapshot
	pruned  int
}

func (f *fakeDriftSnapshotRepo) Create(ctx context.Context, s core.DriftSnapshot) error {
	f.created = append(f.created, s)
	return nil
}

func (f *fakeDriftSnapshotRepo) List(ctx context.Context, filter repo.DriftSnapshotFilter) ([]core.DriftSnapshot, error) {
	return f.created, nil
}

func (f *fakeDriftSnapshotRepo) PruneOlderThan(ctx context.Context, before time.Time) (int, error) {
	f.pruned++
	return f.pruned, nil
}

type fakeShadowRepo struct{}

func (f *fakeShadowRepo) Create(ctx context.Context, c core.ShadowComparison) error { return nil }
func (f *fakeShadowRepo) List(ctx context.Context, filter repo.ShadowComparisonFilter) ([]core.ShadowComparison, error) {
	return nil, nil
}
func (f *fakeShadowRepo) Stats(ctx context.Context, siteURL string, since time.Time) (repo.ShadowComparisonStats, error) {
	return repo.ShadowComparisonStats{Count: 10, TierAgreementRate: 0.9, DecisionAgreementRate: 0.9}, nil
}
func (f *fakeShadowRepo) TopDivergences(ctx context.Context, siteURL string, limit int) ([]core.ShadowComparison, error) {
	return nil, nil
}

type fakeInterventionRepo struct{}

func (f *fakeInterventionRepo) Create(ctx context.Context, iv core.Intervention) error { return nil }
func (f *fakeInterventionRepo) Get(ctx context.Context, id string) (core.Intervention, bool, error) {
	return core.Intervention{}, false, nil
}
func (f *fakeInterventionRepo) GetBySession(ctx context.Context, sessionID string) ([]core.Intervention, error) {
	return nil, nil
}
func (f *fakeInterventionRepo) List(ctx context.Context, filter repo.InterventionFilter) ([]core.Intervention, error) {
	return nil, nil
}
func (f *fakeInterventionRepo) UpdateStatus(ctx context.Context, id string, status core.InterventionStatus, conversionAction *string, at time.Time) error {
	return nil
}

type fakeAlertRepo struct{}

func (f *fakeAlertRepo) Create(ctx context.Context, a core.DriftAlert) error { return nil }
func (f *fakeAlertRepo) List(ctx context.Context, filter repo.DriftAlertFilter) ([]core.DriftAlert, error) {
	return nil, nil
}
func (f *fakeAlertRepo) Acknowledge(ctx context.Context, id string, at time.Time) error { return nil }
func (f *fakeAlertRepo) PruneOlderThan(ctx context.Context, before time.Time) (int, error) {
	return 0, nil
}
func (f *fakeAlertRepo) FindUnacknowledged(ctx context.Context, alertType core.DriftAlertType, siteURL string) (core.DriftAlert, bool, error) {
	return core.DriftAlert{}, false, nil
}

type fakeRolloutRepo struct{}

func (f *fakeRolloutRepo) Create(ctx context.Context, r core.Rollout) error { return nil }
func (f *fakeRolloutRepo) Get(ctx context.Context, id string) (core.Rollout, bool, error) {
	return core.Rollout{}, false, nil
}
func (f *fakeRolloutRepo) Update(ctx context.Context, r core.Rollout) error { return nil }
func (f *fakeRolloutRepo) List(ctx context.Context, siteURL string) ([]core.Rollout, error) {
	return nil, nil
}
func (f *fakeRolloutRepo) GetActiveRollout(ctx context.Context, siteURL string) (core.Rollout, bool, error) {
	return core.Rollout{}, false, nil
}
func (f *fakeRolloutRepo) ListRolling(ctx context.Context) ([]core.Rollout, error) {
	return nil, nil
}

type fakeExperimentRepo struct{}

func (f *fakeExperimentRepo) Create(ctx context.Context, e core.Experiment) error { return nil }
func (f *fakeExperimentRepo) Get(ctx context.Context, id string) (core.Experiment, bool, error) {
	return core.Experiment{}, false, nil
}
func (f *fakeExperimentRepo) Update(ctx context.Context, e core.Experiment) error { return nil }
func (f *fakeExperimentRepo) List(ctx context.Context, siteURL string) ([]core.Experiment, error) {
	return nil, nil
}

type fakeScoringConfigRepo struct{}

func (f *fakeScoringConfigRepo) Create(ctx context.Context, c core.ScoringConfig) error { return nil }
func (f *fakeScoringConfigRepo) Get(ctx context.Context, id string) (core.ScoringConfig, bool, error) {
	return core.ScoringConfig{}, false, nil
}
func (f *fakeScoringConfigRepo) Update(ctx context.Context, c core.ScoringConfig) error { return nil }
func (f *fakeScoringConfigRepo) List(ctx context.Context, siteURL string) ([]core.ScoringConfig, error) {
	return nil, nil
}
func (f *fakeScoringConfigRepo) Activate(ctx context.Context, id string) error { return nil }
func (f *fakeScoringConfigRepo) Delete(ctx context.Context, id string) error   { return nil }
func (f *fakeScoringConfigRepo) GetActiveConfig(ctx context.Context, siteURL string) (core.ScoringConfig, bool, error) {
	return core.ScoringConfig{}, false, nil
}

package outcome

import (
	"context"
	"sync"
	"time"

	"ava/internal/core"
	"ava/internal/repo"
)

type fakeInterventionRepo struct {
	mu          sync.Mutex
	byID        map[string]core.Intervention
	updateCalls int
}

func newFakeInterventionRepo(ivs ...core.Intervention) *fakeInterventionRepo {
	f := &fakeInterventionRepo{byID: map[string]core.Intervention{}}
	for _, iv := range ivs {
		f.byID[iv.ID] = iv
	}
	return f
}

func (f *fakeInterventionRepo) Create(ctx context.Context, iv core.Intervention) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[iv.ID] = iv
	return nil
}
func (f *fakeInterventionRepo) List(ctx context.Context, filter repo.InterventionFilter) ([]core.Intervention, error) {
	return nil, nil
}
func (f *fakeInterventionRepo) GetBySession(ctx context.Context, sessionID string) ([]core.Intervention, error) {
	return nil, nil
}
func (f *fakeInterventionRepo) Get(ctx context.Context, id string) (core.Intervention, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	iv, ok := f.byID[id]
	return iv, ok, nil
}
func (f *fakeInterventionRepo) UpdateStatus(ctx context.Context, id string, status core.InterventionStatus, conversionAction *string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	iv, ok := f.byID[id]
	if !ok {
		return nil
	}
	iv.Status = status
	iv.ConversionAction = conversionAction
	iv.StatusUpdatedAt = at
	f.byID[id] = iv
	return nil
}

func (f *fakeInterventionRepo) statusFor(id string) core.InterventionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].Status
}

type fakeEvaluationRepo struct {
	bySession map[string][]core.Evaluation
}

func newFakeEvaluationRepo() *fakeEvaluationRepo {
	return &fakeEvaluationRepo{bySession: map[string][]core.Evaluation{}}
}

func (f *fakeEvaluationRepo) Create(ctx context.Context, e core.Evaluation) (string, error) {
	f.bySession[e.SessionID] = append(f.bySession[e.SessionID], e)
	return e.ID, nil
}
func (f *fakeEvaluationRepo) List(ctx context.Context, sessionID string, limit int) ([]core.Evaluation, error) {
	return f.bySession[sessionID], nil
}
func (f *fakeEvaluationRepo) GetBySession(ctx context.Context, sessionID string) ([]core.Evaluation, error) {
	return f.bySession[sessionID], nil
}

type fakeTrainingDatapointRepo struct {
	mu       sync.Mutex
	byIv     map[string]core.TrainingDatapoint
	creates  int
}

func newFakeTrainingDatapointRepo() *fakeTrainingDatapointRepo {
	return &fakeTrainingDatapointRepo{byIv: map[string]core.TrainingDatapoint{}}
}

func (f *fakeTrainingDatapointRepo) Create(ctx context.Context, dp core.TrainingDatapoint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if _, exists := f.byIv[dp.InterventionID]; exists {
		return false, nil
	}
	f.byIv[dp.InterventionID] = dp
	return true, nil
}
func (f *fakeTrainingDatapointRepo) List(ctx context.Context, filter repo.TrainingDatapointFilter) ([]core.TrainingDatapoint, error) {
	return nil, nil
}
func (f *fakeTrainingDatapointRepo) OutcomeDistribution(ctx context.Context, siteURL string) (map[core.InterventionStatus]int, error) {
	return nil, nil
}
func (f *fakeTrainingDatapointRepo) TierOutcomeCrossTab(ctx context.Context, siteURL string) (map[core.Tier]map[core.InterventionStatus]int, error) {
	return nil, nil
}
func (f *fakeTrainingDatapointRepo) Count(ctx context.Context, filter repo.TrainingDatapointFilter) (int, error) {
	return 0, nil
}

func (f *fakeTrainingDatapointRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byIv)
}

func (f *fakeTrainingDatapointRepo) get(interventionID string) (core.TrainingDatapoint, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dp, ok := f.byIv[interventionID]
	return dp, ok
}

package variant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ava/internal/core"
)

type fakeRolloutRepo struct{ active core.Rollout; found bool }

func (f *fakeRolloutRepo) Create(ctx context.Context, r core.Rollout) error { return nil }
func (f *fakeRolloutRepo) Get(ctx context.Context, id string) (core.Rollout, bool, error) {
	return core.Rollout{}, false, nil
}
func (f *fakeRolloutRepo) Update(ctx context.Context, r core.Rollout) error { return nil }
func (f *fakeRolloutRepo) List(ctx context.Context, siteURL string) ([]core.Rollout, error) {
	return nil, nil
}
func (f *fakeRolloutRepo) GetActiveRollout(ctx context.Context, siteURL string) (core.Rollout, bool, error) {
	return f.active, f.found, nil
}
func (f *fakeRolloutRepo) ListRolling(ctx context.Context) ([]core.Rollout, error) { return nil, nil }

type fakeExperimentRepo struct{ byID map[string]core.Experiment }

func newFakeExperimentRepo(exps ...core.Experiment) *fakeExperimentRepo {
	f := &fakeExperimentRepo{byID: map[string]core.Experiment{}}
	for _, e := range exps {
		f.byID[e.ID] = e
	}
	return f
}

func (f *fakeExperimentRepo) Create(ctx context.Context, e core.Experiment) error { return nil }
func (f *fakeExperimentRepo) Get(ctx context.Context, id string) (core.Experiment, bool, error) {
	e, ok := f.byID[id]
	return e, ok, nil
}
func (f *fakeExperimentRepo) Update(ctx context.Context, e core.Experiment) error { return nil }
func (f *fakeExperimentRepo) List(ctx context.Context, siteURL string) ([]core.Experiment, error) {
	return nil, nil
}

func runningExperiment() core.Experiment {
	configID := "cfg-new"
	engine := "llm"
	return core.Experiment{
		ID:             "exp-1",
		Status:         core.ExperimentRunning,
		TrafficPercent: 100,
		// A single full-weight variant removes any bucket-placement
		// ambiguity from the test: every enrolled session lands here.
		Variants: []core.Variant{
			{ID: "treatment", Weight: 1.0, ScoringConfigID: &configID, EvalEngine: &engine},
		},
	}
}

func TestResolveOverride_NoActiveRolloutReturnsNotOK(t *testing.T) {
	r := NewResolver(&fakeRolloutRepo{found: false}, newFakeExperimentRepo())
	_, _, ok := r.ResolveOverride(context.Background(), "shop.example.com", "sess-1")
	assert.False(t, ok)
}

func TestResolveOverride_ExperimentNotRunningReturnsNotOK(t *testing.T) {
	exp := runningExperiment()
	exp.Status = core.ExperimentPaused
	rollouts := &fakeRolloutRepo{found: true, active: core.Rollout{ExperimentID: exp.ID}}
	r := NewResolver(rollouts, newFakeExperimentRepo(exp))

	_, _, ok := r.ResolveOverride(context.Background(), "shop.example.com", "sess-1")
	assert.False(t, ok)
}

func TestResolveOverride_EnrolledInOverrideCarryingVariantReturnsOverride(t *testing.T) {
	exp := runningExperiment()
	rollouts := &fakeRolloutRepo{found: true, active: core.Rollout{ExperimentID: exp.ID, UpdatedAt: time.Now()}}
	r := NewResolver(rollouts, newFakeExperimentRepo(exp))

	configID, evalEngine, ok := r.ResolveOverride(context.Background(), "shop.example.com", "sess-1")

	require.True(t, ok, "100%% traffic into a single full-weight variant must always enroll and resolve")
	assert.Equal(t, "cfg-new", configID)
	assert.Equal(t, "llm", evalEngine)
}

func TestResolveOverride_NilCollaboratorsReturnNotOK(t *testing.T) {
	r := &Resolver{}
	_, _, ok := r.ResolveOverride(context.Background(), "shop.example.com", "sess-1")
	assert.False(t, ok)
}

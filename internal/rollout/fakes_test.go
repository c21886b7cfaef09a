package rollout

import (
	"context"
	"errors"

	"ava/internal/core"
)

type fakeRolloutRepo struct {
	byID map[string]core.Rollout
}

func newFakeRolloutRepo(rollouts ...core.Rollout) *fakeRolloutRepo {
	f := &fakeRolloutRepo{byID: map[string]core.Rollout{}}
	for _, r := range rollouts {
		f.byID[r.ID] = r
	}
	return f
}

func (f *fakeRolloutRepo) Create(ctx context.Context, r core.Rollout) error {
	f.byID[r.ID] = r
	return nil
}

func (f *fakeRolloutRepo) Get(ctx context.Context, id string) (core.Rollout, bool, error) {
	r, ok := f.byID[id]
	return r, ok, nil
}

func (f *fakeRolloutRepo) Update(ctx context.Context, r core.Rollout) error {
	if _, ok := f.byID[r.ID]; !ok {
		return errors.New("not found")
	}
	f.byID[r.ID] = r
	return nil
}

func (f *fakeRolloutRepo) List(ctx context.Context, siteURL string) ([]core.Rollout, error) {
	var out []core.Rollout
	for _, r := range f.byID {
		if r.SiteURL == siteURL {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRolloutRepo) GetActiveRollout(ctx context.Context, siteURL string) (core.Rollout, bool, error) {
	for _, r := range f.byID {
		if r.SiteURL == siteURL && r.Status == core.RolloutRolling {
			return r, true, nil
		}
	}
	return core.Rollout{}, false, nil
}

func (f *fakeRolloutRepo) ListRolling(ctx context.Context) ([]core.Rollout, error) {
	var out []core.Rollout
	for _, r := range f.byID {
		if r.Status == core.RolloutRolling {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeExperimentRepo struct {
	byID map[string]core.Experiment
}

func newFakeExperimentRepo(exps ...core.Experiment) *fakeExperimentRepo {
	f := &fakeExperimentRepo{byID: map[string]core.Experiment{}}
	for _, e := range exps {
		f.byID[e.ID] = e
	}
	return f
}

func (f *fakeExperimentRepo) Create(ctx context.Context, e core.Experiment) error {
	f.byID[e.ID] = e
	return nil
}

func (f *fakeExperimentRepo) Get(ctx context.Context, id string) (core.Experiment, bool, error) {
	e, ok := f.byID[id]
	return e, ok, nil
}

func (f *fakeExperimentRepo) Update(ctx context.Context, e core.Experiment) error {
	f.byID[e.ID] = e
	return nil
}

func (f *fakeExperimentRepo) List(ctx context.Context, siteURL string) ([]core.Experiment, error) {
	var out []core.Experiment
	for _, e := range f.byID {
		if e.SiteURL == siteURL {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeScoringConfigRepo struct {
	activated []string
}

func (f *fakeScoringConfigRepo) List(ctx context.Context, siteURL string) ([]core.ScoringConfig, error) {
	return nil, nil
}
func (f *fakeScoringConfigRepo) Get(ctx context.Context, id string) (core.ScoringConfig, bool, error) {
	return core.ScoringConfig{}, false, nil
}
func (f *fakeScoringConfigRepo) Create(ctx context.Context, cfg core.ScoringConfig) error { return nil }
func (f *fakeScoringConfigRepo) Update(ctx context.Context, cfg core.ScoringConfig) error { return nil }
func (f *fakeScoringConfigRepo) Activate(ctx context.Context, id string) error {
	f.activated = append(f.activated, id)
	return nil
}
func (f *fakeScoringConfigRepo) Delete(ctx context.Context, id string) error { return nil }
func (f *fakeScoringConfigRepo) GetActiveConfig(ctx context.Context, siteURL string) (core.ScoringConfig, bool, error) {
	return core.ScoringConfig{}, false, nil
}

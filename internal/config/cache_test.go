package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ava/internal/core"
)

type fakeScoringConfigRepo struct {
	byID     map[string]core.ScoringConfig
	activeBySite map[string]core.ScoringConfig
	getCalls int
	failGet  bool
}

func newFakeRepo() *fakeScoringConfigRepo {
	return &fakeScoringConfigRepo{byID: map[string]core.ScoringConfig{}, activeBySite: map[string]core.ScoringConfig{}}
}

func (f *fakeScoringConfigRepo) List(ctx context.Context, siteURL string) ([]core.ScoringConfig, error) {
	return nil, nil
}
func (f *fakeScoringConfigRepo) Get(ctx context.Context, id string) (core.ScoringConfig, bool, error) {
	f.getCalls++
	if f.failGet {
		return core.ScoringConfig{}, false, errors.New("boom")
	}
	cfg, ok := f.byID[id]
	return cfg, ok, nil
}
func (f *fakeScoringConfigRepo) Create(ctx context.Context, cfg core.ScoringConfig) error { return nil }
func (f *fakeScoringConfigRepo) Update(ctx context.Context, cfg core.ScoringConfig) error { return nil }
func (f *fakeScoringConfigRepo) Activate(ctx context.Context, id string) error            { return nil }
func (f *fakeScoringConfigRepo) Delete(ctx context.Context, id string) error              { return nil }
func (f *fakeScoringConfigRepo) GetActiveConfig(ctx context.Context, siteURL string) (core.ScoringConfig, bool, error) {
	f.getCalls++
	cfg, ok := f.activeBySite[siteURL]
	return cfg, ok, nil
}

func TestScoringConfigLoader_CacheHitSkipsRepo(t *testing.T) {
	r := newFakeRepo()
	r.activeBySite[""] = core.ScoringConfig{ID: "global-active", IsActive: true}
	loader := NewScoringConfigLoader(r, time.Minute)

	first := loader.Load(context.Background(), "", "")
	calls := r.getCalls
	second := loader.Load(context.Background(), "", "")

	assert.Equal(t, first, second)
	assert.Equal(t, calls, r.getCalls, "second load within TTL must not hit the repo again")
}

func TestScoringConfigLoader_FallsBackToGlobalActive(t *testing.T) {
	r := newFakeRepo()
	r.activeBySite[""] = core.ScoringConfig{ID: "global-active", IsActive: true}
	loader := NewScoringConfigLoader(r, time.Minute)

	cfg := loader.Load(context.Background(), "shop.example.com", "")
	assert.Equal(t, "global-active", cfg.ID, "missing site-active config should fall back to global active")
}

func TestScoringConfigLoader_RepoErrorReturnsBuiltinDefault(t *testing.T) {
	r := newFakeRepo()
	r.failGet = true
	loader := NewScoringConfigLoader(r, time.Minute)

	cfg := loader.Load(context.Background(), "", "some-id")
	assert.Equal(t, core.DefaultScoringConfig().ID, cfg.ID)
}

func TestScoringConfigLoader_InvalidateForcesReload(t *testing.T) {
	r := newFakeRepo()
	r.activeBySite[""] = core.ScoringConfig{ID: "v1", IsActive: true}
	loader := NewScoringConfigLoader(r, time.Minute)

	first := loader.Load(context.Background(), "", "")
	require.Equal(t, "v1", first.ID)

	r.activeBySite[""] = core.ScoringConfig{ID: "v2", IsActive: true}
	loader.Invalidate()

	second := loader.Load(context.Background(), "", "")
	assert.Equal(t, "v2", second.ID)
}

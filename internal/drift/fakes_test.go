package drift

import (
	"context"
	"time"

	"ava/internal/core"
	"ava/internal/repo"
)

type fakeShadowRepo struct {
	all []core.ShadowComparison
}

func (f *fakeShadowRepo) Create(ctx context.Context, c core.ShadowComparison) error {
	f.all = append(f.all, c)
	return nil
}

func (f *fakeShadowRepo) List(ctx context.Context, filter repo.ShadowComparisonFilter) ([]core.ShadowComparison, error) {
	var out []core.ShadowComparison
	for _, c := range f.all {
		if filter.SiteURL != "" && c.SiteURL != filter.SiteURL {
			continue
		}
		if filter.Since != nil && c.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && c.CreatedAt.After(*filter.Until) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeShadowRepo) Stats(ctx context.Context, siteURL string, since time.Time) (repo.ShadowComparisonStats, error) {
	var stats repo.ShadowComparisonStats
	var tierMatches, decisionMatches int
	var divergenceSum float64
	for _, c := range f.all {
		if siteURL != "" && c.SiteURL != siteURL {
			continue
		}
		if c.CreatedAt.Before(since) {
			continue
		}
		stats.Count++
		if c.TierMatch {
			tierMatches++
		}
		if c.DecisionMatch {
			decisionMatches++
		}
		divergenceSum += c.CompositeDivergence
	}
	if stats.Count > 0 {
		stats.TierAgreementRate = float64(tierMatches) / float64(stats.Count)
		stats.DecisionAgreementRate = float64(decisionMatches) / float64(stats.Count)
		stats.AvgCompositeDivergence = divergenceSum / float64(stats.Count)
	}
	return stats, nil
}

func (f *fakeShadowRepo) TopDivergences(ctx context.Context, siteURL string, limit int) ([]core.ShadowComparison, error) {
	return nil, nil
}

type fakeInterventionRepo struct {
	all []core.Intervention
}

func (f *fakeInterventionRepo) Create(ctx context.Context, iv core.Intervention) error {
	f.all = append(f.all, iv)
	return nil
}

func (f *fakeInterventionRepo) List(ctx context.Context, filter repo.InterventionFilter) ([]core.Intervention, error) {
	var out []core.Intervention
	for _, iv := range f.all {
		if filter.Since != nil && iv.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && iv.CreatedAt.After(*filter.Until) {
			continue
		}
		out = append(out, iv)
	}
	return out, nil
}

func (f *fakeInterventionRepo) GetBySession(ctx context.Context, sessionID string) ([]core.Intervention, error) {
	return nil, nil
}

func (f *fakeInterventionRepo) Get(ctx context.Context, id string) (core.Intervention, bool, error) {
	for _, iv := range f.all {
		if iv.ID == id {
			return iv, true, nil
		}
	}
	return core.Intervention{}, false, nil
}

func (f *fakeInterventionRepo) UpdateStatus(ctx context.Context, id string, status core.InterventionStatus, conversionAction *string, at time.Time) error {
	return nil
}

type fakeSnapshotRepo struct {
	created []core.DriftSnapshot
}

func (f *fakeSnapshotRepo) Create(ctx context.Context, s core.DriftSnapshot) error {
	f.created = append(f.created, s)
	return nil
}

func (f *fakeSnapshotRepo) List(ctx context.Context, filter repo.DriftSnapshotFilter) ([]core.DriftSnapshot, error) {
	return f.created, nil
}

func (f *fakeSnapshotRepo) PruneOlderThan(ctx context.Context, before time.Time) (int, error) {
	return 0, nil
}

type fakeAlertRepo struct {
	created       []core.DriftAlert
	unacknowledged map[string]core.DriftAlert
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{unacknowledged: map[string]core.DriftAlert{}}
}

func alertKey(alertType core.DriftAlertType, siteURL string) string {
	return string(alertType) + "|" + siteURL
}

func (f *fakeAlertRepo) Create(ctx context.Context, a core.DriftAlert) error {
	f.created = append(f.created, a)
	f.unacknowledged[alertKey(a.AlertType, a.SiteURL)] = a
	return nil
}

func (f *fakeAlertRepo) List(ctx context.Context, filter repo.DriftAlertFilter) ([]core.DriftAlert, error) {
	return f.created, nil
}

func (f *fakeAlertRepo) Acknowledge(ctx context.Context, id string, at time.Time) error {
	for k, a := range f.unacknowledged {
		if a.ID == id {
			delete(f.unacknowledged, k)
		}
	}
	return nil
}

func (f *fakeAlertRepo) PruneOlderThan(ctx context.Context, before time.Time) (int, error) {
	return 0, nil
}

func (f *fakeAlertRepo) FindUnacknowledged(ctx context.Context, alertType core.DriftAlertType, siteURL string) (core.DriftAlert, bool, error) {
	a, ok := f.unacknowledged[alertKey(alertType, siteURL)]
	return a, ok, nil
}

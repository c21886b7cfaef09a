// Package drift implements window-scoped agreement/outcome aggregation and
// threshold-based alerting (§4.13): computeWindowSnapshot aggregates
// ShadowComparisons and terminal Interventions over a sliding window;
// runDriftCheck compares a 24h snapshot against a 7d baseline and emits
// de-duplicated alerts.
package drift

import (
	"context"
	"time"

	"ava/internal/apierr"
	"ava/internal/core"
	"ava/internal/repo"
	"ava/internal/webhooks"
)

// Detector computes window snapshots and runs the periodic drift check.
type Detector struct {
	Shadows       repo.ShadowComparisonRepo
	Interventions repo.InterventionRepo
	Snapshots     repo.DriftSnapshotRepo
	Alerts        repo.DriftAlertRepo
	Thresholds    core.DriftThresholds
	Now           func() time.Time

	// Emitter, if set, is notified of every newly-raised DriftAlert so an
	// operator can wire external delivery (Slack, PagerDuty, email) without
	// RunDriftCheck's callers having to poll DriftAlertRepo. Nil is fine;
	// Emit is simply skipped.
	Emitter webhooks.WebhookEmitter
}

// NewDetector constructs a Detector with §6's default thresholds and
// time.Now as the clock.
func NewDetector(shadows repo.ShadowComparisonRepo, interventions repo.InterventionRepo, snapshots repo.DriftSnapshotRepo, alerts repo.DriftAlertRepo) *Detector {
	return &Detector{
		Shadows:       shadows,
		Interventions: interventions,
		Snapshots:     snapshots,
		Alerts:        alerts,
		Thresholds:    core.DefaultDriftThresholds(),
		Now:           time.Now,
	}
}

func (d *Detector) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// ComputeWindowSnapshot aggregates ShadowComparisons and terminal
// Interventions within [now-window, now] (optionally scoped to siteURL),
// persists the resulting DriftSnapshot and returns it.
func (d *Detector) ComputeWindowSnapshot(ctx context.Context, windowType core.WindowType, siteURL string) (core.DriftSnapshot, error) {
	now := d.now()
	start := now.Add(-windowType.Duration())

	shadowFilter := repo.ShadowComparisonFilter{SiteURL: siteURL, Since: &start, Until: &now}
	comparisons, err := d.Shadows.List(ctx, shadowFilter)
	if err != nil {
		return core.DriftSnapshot{}, apierr.Transient("drift.ComputeWindowSnapshot.ListShadows", err)
	}

	stats, err := d.Shadows.Stats(ctx, siteURL, start)
	if err != nil {
		return core.DriftSnapshot{}, apierr.Transient("drift.ComputeWindowSnapshot.ShadowStats", err)
	}

	ivFilter := repo.InterventionFilter{SiteURL: siteURL, Since: &start, Until: &now}
	interventions, err := d.Interventions.List(ctx, ivFilter)
	if err != nil {
		return core.DriftSnapshot{}, apierr.Transient("drift.ComputeWindowSnapshot.ListInterventions", err)
	}

	snap := core.DriftSnapshot{
		ID:                     newID(),
		WindowType:             windowType,
		WindowStart:            start,
		WindowEnd:              now,
		SiteURL:                siteURL,
		TierAgreementRate:      stats.TierAgreementRate,
		DecisionAgreementRate:  stats.DecisionAgreementRate,
		AvgCompositeDivergence: stats.AvgCompositeDivergence,
		SignalShift:            meanProdSignals(comparisons),
		CreatedAt:              now,
	}
	snap.ConversionRate, snap.DismissalRate, snap.SampleSize = outcomeRates(interventions)

	if err := d.Snapshots.Create(ctx, snap); err != nil {
		return core.DriftSnapshot{}, apierr.Transient("drift.ComputeWindowSnapshot.Create", err)
	}
	return snap, nil
}

// meanProdSignals averages each production signal across comparisons. The
// field is named SignalShift on DriftSnapshot (matching the type it holds)
// but at the per-window level it is a mean, not yet a shift; runDriftCheck
// turns two windows' means into an actual shift vector.
func meanProdSignals(comparisons []core.ShadowComparison) core.SignalShiftVector {
	if len(comparisons) == 0 {
		return core.SignalShiftVector{}
	}
	var sum core.SignalShiftVector
	for _, c := range comparisons {
		sum.Intent += float64(c.ProdSignals.Intent)
		sum.Friction += float64(c.ProdSignals.Friction)
		sum.Clarity += float64(c.ProdSignals.Clarity)
		sum.Receptivity += float64(c.ProdSignals.Receptivity)
		sum.Value += float64(c.ProdSignals.Value)
	}
	n := float64(len(comparisons))
	return core.SignalShiftVector{
		Intent:      sum.Intent / n,
		Friction:    sum.Friction / n,
		Clarity:     sum.Clarity / n,
		Receptivity: sum.Receptivity / n,
		Value:       sum.Value / n,
	}
}

// outcomeRates computes conversion/dismissal rates over terminal
// interventions in the window, plus the total sample size of terminal
// outcomes the rates are based on.
func outcomeRates(interventions []core.Intervention) (conversionRate, dismissalRate float64, sampleSize int) {
	var converted, dismissed int
	for _, iv := range interventions {
		if !iv.Status.IsTerminal() {
			continue
		}
		sampleSize++
		switch iv.Status {
		case core.StatusConverted:
			converted++
		case core.StatusDismissed:
			dismissed++
		}
	}
	if sampleSize == 0 {
		return 0, 0, 0
	}
	return float64(converted) / float64(sampleSize), float64(dismissed) / float64(sampleSize), sampleSize
}

package drift

import (
	"context"
	"fmt"

	"ava/internal/apierr"
	"ava/internal/core"
	"ava/internal/webhooks"
)

// RunDriftCheck computes a 24h and a 7d window snapshot for siteURL, then
// emits alerts by comparing the 24h (recent) snapshot's agreement and
// divergence rates against absolute thresholds, and the 24h snapshot's
// signal means and conversion rate against the 7d snapshot as baseline.
// Alerts are skipped when an unacknowledged alert of the same
// (alertType, siteURL) already exists.
func (d *Detector) RunDriftCheck(ctx context.Context, siteURL string) ([]core.DriftAlert, error) {
	recent, err := d.ComputeWindowSnapshot(ctx, core.Window24h, siteURL)
	if err != nil {
		return nil, err
	}
	baseline, err := d.ComputeWindowSnapshot(ctx, core.Window7d, siteURL)
	if err != nil {
		return nil, err
	}

	candidates := d.evaluateAlerts(recent, baseline)

	var raised []core.DriftAlert
	for _, a := range candidates {
		_, exists, err := d.Alerts.FindUnacknowledged(ctx, a.AlertType, siteURL)
		if err != nil {
			return raised, apierr.Transient("drift.RunDriftCheck.FindUnacknowledged", err)
		}
		if exists {
			continue
		}
		a.ID = newID()
		a.DetectedAt = d.now()
		if err := d.Alerts.Create(ctx, a); err != nil {
			return raised, apierr.Transient("drift.RunDriftCheck.Create", err)
		}
		raised = append(raised, a)
		d.emitAlertRaised(a)
	}
	return raised, nil
}

// emitAlertRaised notifies d.Emitter, if configured, that a DriftAlert was
// just persisted. Delivery is fire-and-forget: RunDriftCheck's result
// reflects what was written to DriftAlertRepo, not whether any webhook
// subscriber received it.
func (d *Detector) emitAlertRaised(a core.DriftAlert) {
	if d.Emitter == nil {
		return
	}
	d.Emitter.Emit(webhooks.EventDriftAlertRaised, a.SiteURL, map[string]interface{}{
		"alert_id":   a.ID,
		"alert_type": string(a.AlertType),
		"severity":   string(a.Severity),
		"message":    a.Message,
	})
}

// evaluateAlerts builds the candidate DriftAlerts (before dedup) for a
// (recent, baseline) snapshot pair, per §4.13's five trigger conditions.
func (d *Detector) evaluateAlerts(recent, baseline core.DriftSnapshot) []core.DriftAlert {
	t := d.Thresholds
	var alerts []core.DriftAlert

	if recent.SampleSize == 0 && recent.TierAgreementRate == 0 && recent.DecisionAgreementRate == 0 {
		// No shadow/intervention traffic in the window at all: nothing to
		// compare against thresholds without producing false positives from
		// zero-valued rates.
		return alerts
	}

	if recent.TierAgreementRate < t.TierAgreementFloor {
		alerts = append(alerts, core.DriftAlert{
			Severity:  core.SeverityWarning,
			AlertType: core.AlertTierAgreementLow,
			SiteURL:   recent.SiteURL,
			Message:   fmt.Sprintf("tier agreement rate %.3f below floor %.3f", recent.TierAgreementRate, t.TierAgreementFloor),
		})
	}

	if recent.DecisionAgreementRate < t.DecisionAgreementFloor {
		alerts = append(alerts, core.DriftAlert{
			Severity:  core.SeverityWarning,
			AlertType: core.AlertDecisionAgreementLow,
			SiteURL:   recent.SiteURL,
			Message:   fmt.Sprintf("decision agreement rate %.3f below floor %.3f", recent.DecisionAgreementRate, t.DecisionAgreementFloor),
		})
	}

	if recent.AvgCompositeDivergence > t.MaxCompositeDivergence {
		alerts = append(alerts, core.DriftAlert{
			Severity:  core.SeverityWarning,
			AlertType: core.AlertCompositeDivergence,
			SiteURL:   recent.SiteURL,
			Message:   fmt.Sprintf("avg composite divergence %.2f above max %.2f", recent.AvgCompositeDivergence, t.MaxCompositeDivergence),
		})
	}

	shift := core.SignalShiftVector{
		Intent:      recent.SignalShift.Intent - baseline.SignalShift.Intent,
		Friction:    recent.SignalShift.Friction - baseline.SignalShift.Friction,
		Clarity:     recent.SignalShift.Clarity - baseline.SignalShift.Clarity,
		Receptivity: recent.SignalShift.Receptivity - baseline.SignalShift.Receptivity,
		Value:       recent.SignalShift.Value - baseline.SignalShift.Value,
	}
	if shift.MaxAbs() > t.SignalShiftThreshold {
		alerts = append(alerts, core.DriftAlert{
			Severity:  core.SeverityWarning,
			AlertType: core.AlertSignalShift,
			SiteURL:   recent.SiteURL,
			Message:   fmt.Sprintf("signal mean shifted %.2f vs 7d baseline (threshold %.2f)", shift.MaxAbs(), t.SignalShiftThreshold),
		})
	}

	if baseline.ConversionRate > 0 {
		drop := (baseline.ConversionRate - recent.ConversionRate) / baseline.ConversionRate
		if drop > t.ConversionDropPercent {
			alerts = append(alerts, core.DriftAlert{
				Severity:  core.SeverityCritical,
				AlertType: core.AlertConversionDrop,
				SiteURL:   recent.SiteURL,
				Message:   fmt.Sprintf("conversion rate dropped %.1f%% vs 7d baseline (threshold %.1f%%)", drop*100, t.ConversionDropPercent*100),
			})
		}
	}

	return alerts
}

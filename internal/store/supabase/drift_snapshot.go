package supabase

import (
	"context"
	"fmt"
	"time"

	"ava/internal/core"
	"ava/internal/repo"
)

type driftSnapshotRow struct {
	ID                     string                  `json:"id"`
	WindowType             core.WindowType         `json:"window_type"`
	WindowStart            string                  `json:"window_start"`
	WindowEnd              string                  `json:"window_end"`
	SiteURL                string                  `json:"site_url,omitempty"`
	TierAgreementRate      float64                 `json:"tier_agreement_rate"`
	DecisionAgreementRate  float64                 `json:"decision_agreement_rate"`
	AvgCompositeDivergence float64                 `json:"avg_composite_divergence"`
	SignalShift            core.SignalShiftVector  `json:"signal_shift"`
	ConversionRate         float64                 `json:"conversion_rate"`
	DismissalRate          float64                 `json:"dismissal_rate"`
	SampleSize             int                     `json:"sample_size"`
	CreatedAt              string                  `json:"created_at"`
}

func toDriftSnapshotRow(s core.DriftSnapshot) driftSnapshotRow {
	return driftSnapshotRow{
		ID: s.ID, WindowType: s.WindowType,
		WindowStart: s.WindowStart.UTC().Format(time.RFC3339Nano),
		WindowEnd:   s.WindowEnd.UTC().Format(time.RFC3339Nano),
		SiteURL:     s.SiteURL,
		TierAgreementRate: s.TierAgreementRate, DecisionAgreementRate: s.DecisionAgreementRate,
		AvgCompositeDivergence: s.AvgCompositeDivergence, SignalShift: s.SignalShift,
		ConversionRate: s.ConversionRate, DismissalRate: s.DismissalRate,
		SampleSize: s.SampleSize, CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (row driftSnapshotRow) toCore() (core.DriftSnapshot, error) {
	start, err := time.Parse(time.RFC3339Nano, row.WindowStart)
	if err != nil {
		return core.DriftSnapshot{}, fmt.Errorf("supabase: parse window_start: %w", err)
	}
	end, err := time.Parse(time.RFC3339Nano, row.WindowEnd)
	if err != nil {
		return core.DriftSnapshot{}, fmt.Errorf("supabase: parse window_end: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return core.DriftSnapshot{}, fmt.Errorf("supabase: parse created_at: %w", err)
	}
	return core.DriftSnapshot{
		ID: row.ID, WindowType: row.WindowType, WindowStart: start, WindowEnd: end, SiteURL: row.SiteURL,
		TierAgreementRate: row.TierAgreementRate, DecisionAgreementRate: row.DecisionAgreementRate,
		AvgCompositeDivergence: row.AvgCompositeDivergence, SignalShift: row.SignalShift,
		ConversionRate: row.ConversionRate, DismissalRate: row.DismissalRate,
		SampleSize: row.SampleSize, CreatedAt: created,
	}, nil
}

// Create persists a window-scoped drift snapshot.
func (r *DriftSnapshotRepo) Create(ctx context.Context, s core.DriftSnapshot) error {
	var result []driftSnapshotRow
	_, err := r.c.c.From("drift_snapshots").
		Insert(toDriftSnapshotRow(s), false, "", "", "").
		ExecuteTo(&result)
	if err != nil {
		return fmt.Errorf("supabase: create drift snapshot: %w", err)
	}
	return nil
}

// List returns drift snapshots matching filter.
func (r *DriftSnapshotRepo) List(ctx context.Context, filter repo.DriftSnapshotFilter) ([]core.DriftSnapshot, error) {
	q := r.c.c.From("drift_snapshots").Select("*", "", false)
	if filter.SiteURL != "" {
		q = q.Eq("site_url", filter.SiteURL)
	}
	if filter.WindowType != nil {
		q = q.Eq("window_type", string(*filter.WindowType))
	}
	if filter.Since != nil {
		q = q.Gte("created_at", filter.Since.UTC().Format(time.RFC3339Nano))
	}
	q = q.Order("created_at", nil)

	var rows []driftSnapshotRow
	if _, err := q.ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("supabase: list drift snapshots: %w", err)
	}
	out := make([]core.DriftSnapshot, 0, len(rows))
	for _, row := range rows {
		s, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// PruneOlderThan deletes snapshots created before the given instant,
// returning how many rows were removed.
func (r *DriftSnapshotRepo) PruneOlderThan(ctx context.Context, before time.Time) (int, error) {
	var deleted []driftSnapshotRow
	_, err := r.c.c.From("drift_snapshots").
		Delete("", "").
		Lt("created_at", before.UTC().Format(time.RFC3339Nano)).
		ExecuteTo(&deleted)
	if err != nil {
		return 0, fmt.Errorf("supabase: prune drift snapshots: %w", err)
	}
	return len(deleted), nil
}

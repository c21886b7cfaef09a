package supabase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ava/internal/core"
	"ava/internal/repo"
)

type shadowComparisonRow struct {
	ID                  string               `json:"id"`
	SessionID           string               `json:"session_id"`
	SiteURL             string               `json:"site_url,omitempty"`
	EvaluationID        string               `json:"evaluation_id"`
	ProdSignals         core.MSWIMSignals    `json:"prod_signals"`
	ProdComposite       float64              `json:"prod_composite"`
	ProdTier            core.Tier            `json:"prod_tier"`
	ProdDecision        core.Decision        `json:"prod_decision"`
	ProdOverride        *core.GateOverride   `json:"prod_override,omitempty"`
	ShadowSignals       core.MSWIMSignals    `json:"shadow_signals"`
	ShadowComposite     float64              `json:"shadow_composite"`
	ShadowTier          core.Tier            `json:"shadow_tier"`
	ShadowDecision       core.Decision       `json:"shadow_decision"`
	ShadowOverride       *core.GateOverride  `json:"shadow_override,omitempty"`
	CompositeDivergence float64              `json:"composite_divergence"`
	TierMatch           bool                 `json:"tier_match"`
	DecisionMatch       bool                 `json:"decision_match"`
	GateOverrideMatch   bool                 `json:"gate_override_match"`
	SyntheticHint       core.GenerativeHint  `json:"synthetic_hint"`
	CreatedAt           string               `json:"created_at"`
}

func toShadowComparisonRow(c core.ShadowComparison) shadowComparisonRow {
	return shadowComparisonRow{
		ID: c.ID, SessionID: c.SessionID, SiteURL: c.SiteURL, EvaluationID: c.EvaluationID,
		ProdSignals: c.ProdSignals, ProdComposite: c.ProdComposite, ProdTier: c.ProdTier,
		ProdDecision: c.ProdDecision, ProdOverride: c.ProdOverride,
		ShadowSignals: c.ShadowSignals, ShadowComposite: c.ShadowComposite, ShadowTier: c.ShadowTier,
		ShadowDecision: c.ShadowDecision, ShadowOverride: c.ShadowOverride,
		CompositeDivergence: c.CompositeDivergence, TierMatch: c.TierMatch,
		DecisionMatch: c.DecisionMatch, GateOverrideMatch: c.GateOverrideMatch,
		SyntheticHint: c.SyntheticHint, CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (row shadowComparisonRow) toCore() (core.ShadowComparison, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return core.ShadowComparison{}, fmt.Errorf("supabase: parse created_at: %w", err)
	}
	return core.ShadowComparison{
		ID: row.ID, SessionID: row.SessionID, SiteURL: row.SiteURL, EvaluationID: row.EvaluationID,
		ProdSignals: row.ProdSignals, ProdComposite: row.ProdComposite, ProdTier: row.ProdTier,
		ProdDecision: row.ProdDecision, ProdOverride: row.ProdOverride,
		ShadowSignals: row.ShadowSignals, ShadowComposite: row.ShadowComposite, ShadowTier: row.ShadowTier,
		ShadowDecision: row.ShadowDecision, ShadowOverride: row.ShadowOverride,
		CompositeDivergence: row.CompositeDivergence, TierMatch: row.TierMatch,
		DecisionMatch: row.DecisionMatch, GateOverrideMatch: row.GateOverrideMatch,
		SyntheticHint: row.SyntheticHint, CreatedAt: createdAt,
	}, nil
}

// Create persists a shadow/production comparison.
func (r *ShadowComparisonRepo) Create(ctx context.Context, c core.ShadowComparison) error {
	var result []shadowComparisonRow
	_, err := r.c.c.From("shadow_comparisons").
		Insert(toShadowComparisonRow(c), false, "", "", "").
		ExecuteTo(&result)
	if err != nil {
		return fmt.Errorf("supabase: create shadow comparison: %w", err)
	}
	return nil
}

func (r *ShadowComparisonRepo) listRows(filter repo.ShadowComparisonFilter) ([]shadowComparisonRow, error) {
	q := r.c.c.From("shadow_comparisons").Select("*", "", false)
	if filter.SessionID != "" {
		q = q.Eq("session_id", filter.SessionID)
	}
	if filter.SiteURL != "" {
		q = q.Eq("site_url", filter.SiteURL)
	}
	if filter.Since != nil {
		q = q.Gte("created_at", filter.Since.UTC().Format(time.RFC3339Nano))
	}
	if filter.Until != nil {
		q = q.Lte("created_at", filter.Until.UTC().Format(time.RFC3339Nano))
	}
	if filter.TierMatch != nil {
		q = q.Eq("tier_match", fmt.Sprintf("%t", *filter.TierMatch))
	}
	if filter.DecisionMatch != nil {
		q = q.Eq("decision_match", fmt.Sprintf("%t", *filter.DecisionMatch))
	}
	q = q.Order("created_at", nil)

	var rows []shadowComparisonRow
	_, err := q.ExecuteTo(&rows)
	return rows, err
}

// List returns shadow comparisons matching filter, applying the
// MinDivergence floor client-side (PostgREST's `gte` filter takes a single
// column, and divergence filtering here is a post-facto slice, not a
// first-class query parameter in the teacher's fluent builder).
func (r *ShadowComparisonRepo) List(ctx context.Context, filter repo.ShadowComparisonFilter) ([]core.ShadowComparison, error) {
	rows, err := r.listRows(filter)
	if err != nil {
		return nil, fmt.Errorf("supabase: list shadow comparisons: %w", err)
	}
	out := make([]core.ShadowComparison, 0, len(rows))
	for _, row := range rows {
		c, err := row.toCore()
		if err != nil {
			return nil, err
		}
		if filter.MinDivergence != nil && c.CompositeDivergence < *filter.MinDivergence {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Stats computes agreement rates and average divergence for a site since a
// given instant, aggregating client-side over the filtered rows.
func (r *ShadowComparisonRepo) Stats(ctx context.Context, siteURL string, since time.Time) (repo.ShadowComparisonStats, error) {
	rows, err := r.listRows(repo.ShadowComparisonFilter{SiteURL: siteURL, Since: &since})
	if err != nil {
		return repo.ShadowComparisonStats{}, fmt.Errorf("supabase: shadow stats: %w", err)
	}
	var stats repo.ShadowComparisonStats
	if len(rows) == 0 {
		return stats, nil
	}
	var tierAgree, decisionAgree int
	var divergenceSum float64
	for _, row := range rows {
		if row.TierMatch {
			tierAgree++
		}
		if row.DecisionMatch {
			decisionAgree++
		}
		divergenceSum += row.CompositeDivergence
	}
	stats.Count = len(rows)
	stats.TierAgreementRate = float64(tierAgree) / float64(stats.Count)
	stats.DecisionAgreementRate = float64(decisionAgree) / float64(stats.Count)
	stats.AvgCompositeDivergence = divergenceSum / float64(stats.Count)
	return stats, nil
}

// TopDivergences returns the limit comparisons with the largest divergence
// for a site, sorted client-side (PostgREST ordering by a computed/absolute
// value isn't expressible through the fluent builder's Order(column)).
func (r *ShadowComparisonRepo) TopDivergences(ctx context.Context, siteURL string, limit int) ([]core.ShadowComparison, error) {
	rows, err := r.listRows(repo.ShadowComparisonFilter{SiteURL: siteURL})
	if err != nil {
		return nil, fmt.Errorf("supabase: top divergences: %w", err)
	}
	comparisons := make([]core.ShadowComparison, 0, len(rows))
	for _, row := range rows {
		c, err := row.toCore()
		if err != nil {
			return nil, err
		}
		comparisons = append(comparisons, c)
	}
	sort.Slice(comparisons, func(i, j int) bool {
		return comparisons[i].CompositeDivergence > comparisons[j].CompositeDivergence
	})
	if limit > 0 && len(comparisons) > limit {
		comparisons = comparisons[:limit]
	}
	return comparisons, nil
}

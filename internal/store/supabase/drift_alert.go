package supabase

import (
	"context"
	"fmt"
	"time"

	"ava/internal/core"
	"ava/internal/repo"
)

type driftAlertRow struct {
	ID             string              `json:"id"`
	Severity       core.AlertSeverity  `json:"severity"`
	AlertType      core.DriftAlertType `json:"alert_type"`
	Message        string              `json:"message"`
	SiteURL        string              `json:"site_url,omitempty"`
	DetectedAt     string              `json:"detected_at"`
	Acknowledged   bool                `json:"acknowledged"`
	AcknowledgedAt *string             `json:"acknowledged_at,omitempty"`
}

func toDriftAlertRow(a core.DriftAlert) driftAlertRow {
	row := driftAlertRow{
		ID: a.ID, Severity: a.Severity, AlertType: a.AlertType, Message: a.Message,
		SiteURL: a.SiteURL, DetectedAt: a.DetectedAt.UTC().Format(time.RFC3339Nano),
		Acknowledged: a.Acknowledged,
	}
	if a.AcknowledgedAt != nil {
		s := a.AcknowledgedAt.UTC().Format(time.RFC3339Nano)
		row.AcknowledgedAt = &s
	}
	return row
}

func (row driftAlertRow) toCore() (core.DriftAlert, error) {
	detected, err := time.Parse(time.RFC3339Nano, row.DetectedAt)
	if err != nil {
		return core.DriftAlert{}, fmt.Errorf("supabase: parse detected_at: %w", err)
	}
	a := core.DriftAlert{
		ID: row.ID, Severity: row.Severity, AlertType: row.AlertType, Message: row.Message,
		SiteURL: row.SiteURL, DetectedAt: detected, Acknowledged: row.Acknowledged,
	}
	if row.AcknowledgedAt != nil {
		t, err := time.Parse(time.RFC3339Nano, *row.AcknowledgedAt)
		if err != nil {
			return core.DriftAlert{}, fmt.Errorf("supabase: parse acknowledged_at: %w", err)
		}
		a.AcknowledgedAt = &t
	}
	return a, nil
}

// Create persists a raised drift alert.
func (r *DriftAlertRepo) Create(ctx context.Context, a core.DriftAlert) error {
	var result []driftAlertRow
	_, err := r.c.c.From("drift_alerts").
		Insert(toDriftAlertRow(a), false, "", "", "").
		ExecuteTo(&result)
	if err != nil {
		return fmt.Errorf("supabase: create drift alert: %w", err)
	}
	return nil
}

// List returns drift alerts matching filter.
func (r *DriftAlertRepo) List(ctx context.Context, filter repo.DriftAlertFilter) ([]core.DriftAlert, error) {
	q := r.c.c.From("drift_alerts").Select("*", "", false)
	if filter.SiteURL != "" {
		q = q.Eq("site_url", filter.SiteURL)
	}
	if filter.Severity != nil {
		q = q.Eq("severity", string(*filter.Severity))
	}
	if filter.Acknowledged != nil {
		q = q.Eq("acknowledged", fmt.Sprintf("%t", *filter.Acknowledged))
	}
	q = q.Order("detected_at", nil)

	var rows []driftAlertRow
	if _, err := q.ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("supabase: list drift alerts: %w", err)
	}
	out := make([]core.DriftAlert, 0, len(rows))
	for _, row := range rows {
		a, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Acknowledge marks an alert acknowledged at the given instant.
func (r *DriftAlertRepo) Acknowledge(ctx context.Context, id string, at time.Time) error {
	patch := map[string]interface{}{
		"acknowledged":    true,
		"acknowledged_at": at.UTC().Format(time.RFC3339Nano),
	}
	var result []driftAlertRow
	_, err := r.c.c.From("drift_alerts").
		Update(patch, "", "").
		Eq("id", id).
		ExecuteTo(&result)
	if err != nil {
		return fmt.Errorf("supabase: acknowledge drift alert: %w", err)
	}
	return nil
}

// PruneOlderThan deletes alerts detected before the given instant.
func (r *DriftAlertRepo) PruneOlderThan(ctx context.Context, before time.Time) (int, error) {
	var deleted []driftAlertRow
	_, err := r.c.c.From("drift_alerts").
		Delete("", "").
		Lt("detected_at", before.UTC().Format(time.RFC3339Nano)).
		ExecuteTo(&deleted)
	if err != nil {
		return 0, fmt.Errorf("supabase: prune drift alerts: %w", err)
	}
	return len(deleted), nil
}

// FindUnacknowledged looks up an existing unacknowledged alert of the given
// type/site for deduplication.
func (r *DriftAlertRepo) FindUnacknowledged(ctx context.Context, alertType core.DriftAlertType, siteURL string) (core.DriftAlert, bool, error) {
	q := r.c.c.From("drift_alerts").
		Select("*", "", false).
		Eq("alert_type", string(alertType)).
		Eq("acknowledged", "false")
	if siteURL != "" {
		q = q.Eq("site_url", siteURL)
	}
	q = q.Order("detected_at", nil).Limit(1, "")

	var rows []driftAlertRow
	if _, err := q.ExecuteTo(&rows); err != nil {
		return core.DriftAlert{}, false, fmt.Errorf("supabase: find unacknowledged alert: %w", err)
	}
	if len(rows) == 0 {
		return core.DriftAlert{}, false, nil
	}
	a, err := rows[0].toCore()
	if err != nil {
		return core.DriftAlert{}, false, err
	}
	return a, true, nil
}

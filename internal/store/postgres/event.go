package postgres

import (
	"context"
	"encoding/json"
	"time"

	"ava/internal/core"
	"ava/internal/repo"
)

// Append inserts an immutable TrackEvent row.
func (r *EventRepo) Append(ctx context.Context, e core.TrackEvent) error {
	signals, err := json.Marshal(e.RawSignals)
	if err != nil {
		return err
	}
	_, err = r.db.exec(ctx, `
		INSERT INTO track_events (
			id, session_id, timestamp, category, event_type, page_type,
			raw_signals, friction_id, page_url, scroll_depth_pct, time_on_page_ms,
			device_type, referrer_type
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, e.ID, e.SessionID, e.Timestamp, e.Category, e.EventType, e.PageType,
		signals, e.FrictionID, e.PageURL, e.ScrollDepthPct, e.TimeOnPageMs,
		e.DeviceType, e.ReferrerType)
	return err
}

// ListBySession returns the most recent limit events for a session.
func (r *EventRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]core.TrackEvent, error) {
	rows, err := r.db.query(ctx, `
		SELECT id, session_id, timestamp, category, event_type, page_type,
			raw_signals, friction_id, page_url, scroll_depth_pct, time_on_page_ms,
			device_type, referrer_type
		FROM track_events WHERE session_id = $1 ORDER BY timestamp DESC LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.TrackEvent
	for rows.Next() {
		var e core.TrackEvent
		var signals []byte
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Timestamp, &e.Category, &e.EventType, &e.PageType,
			&signals, &e.FrictionID, &e.PageURL, &e.ScrollDepthPct, &e.TimeOnPageMs,
			&e.DeviceType, &e.ReferrerType); err != nil {
			return nil, err
		}
		if len(signals) > 0 {
			if err := json.Unmarshal(signals, &e.RawSignals); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FunnelStepCounts aggregates event_type hit counts for a site since a
// given instant, joining through sessions since TrackEvent carries no
// site_url of its own.
func (r *EventRepo) FunnelStepCounts(ctx context.Context, siteURL string, since time.Time) ([]repo.FunnelStepCount, error) {
	rows, err := r.db.query(ctx, `
		SELECT te.event_type, COUNT(*)
		FROM track_events te
		JOIN sessions s ON s.session_id = te.session_id
		WHERE s.site_url = $1 AND te.timestamp >= $2
		GROUP BY te.event_type
		ORDER BY COUNT(*) DESC
	`, siteURL, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repo.FunnelStepCount
	for rows.Next() {
		var c repo.FunnelStepCount
		if err := rows.Scan(&c.Step, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AvgTimeOnPageMs returns the average time-on-page for a site/page type.
func (r *EventRepo) AvgTimeOnPageMs(ctx context.Context, siteURL string, pageType core.PageType) (float64, error) {
	var avg float64
	row := r.db.queryRow(ctx, `
		SELECT COALESCE(AVG(te.time_on_page_ms), 0)
		FROM track_events te
		JOIN sessions s ON s.session_id = te.session_id
		WHERE s.site_url = $1 AND te.page_type = $2
	`, siteURL, pageType)
	if err := row.Scan(&avg); err != nil {
		return 0, err
	}
	return avg, nil
}

// AvgScrollDepthPct returns the average scroll depth for a site/page type.
func (r *EventRepo) AvgScrollDepthPct(ctx context.Context, siteURL string, pageType core.PageType) (float64, error) {
	var avg float64
	row := r.db.queryRow(ctx, `
		SELECT COALESCE(AVG(te.scroll_depth_pct), 0)
		FROM track_events te
		JOIN sessions s ON s.session_id = te.session_id
		WHERE s.site_url = $1 AND te.page_type = $2
	`, siteURL, pageType)
	if err := row.Scan(&avg); err != nil {
		return 0, err
	}
	return avg, nil
}

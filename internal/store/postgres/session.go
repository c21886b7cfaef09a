package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"ava/internal/core"
)

// Upsert inserts or updates a session row keyed on session_id.
func (r *SessionRepo) Upsert(ctx context.Context, s core.Session) error {
	counters, err := json.Marshal(s.RunningCounters)
	if err != nil {
		return err
	}
	_, err = r.db.exec(ctx, `
		INSERT INTO sessions (
			session_id, visitor_key, session_key, site_url, started_at, last_seen_at,
			status, device_type, referrer_type, is_logged_in, is_repeat_visitor,
			cart_value, cart_item_count, running_counters
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (session_id) DO UPDATE SET
			last_seen_at = EXCLUDED.last_seen_at,
			status = EXCLUDED.status,
			is_logged_in = EXCLUDED.is_logged_in,
			is_repeat_visitor = EXCLUDED.is_repeat_visitor,
			cart_value = EXCLUDED.cart_value,
			cart_item_count = EXCLUDED.cart_item_count,
			running_counters = EXCLUDED.running_counters
	`, s.SessionID, s.VisitorKey, s.SessionKey, s.SiteURL, s.StartedAt, s.LastSeenAt,
		s.Status, s.DeviceType, s.ReferrerType, s.IsLoggedIn, s.IsRepeatVisitor,
		s.CartValue, s.CartItemCount, counters)
	return err
}

// LookupBy resolves a session by its (visitorKey, sessionKey) pair.
func (r *SessionRepo) LookupBy(ctx context.Context, visitorKey, sessionKey string) (core.Session, bool, error) {
	row := r.db.queryRow(ctx, `
		SELECT session_id, visitor_key, session_key, site_url, started_at, last_seen_at,
			status, device_type, referrer_type, is_logged_in, is_repeat_visitor,
			cart_value, cart_item_count, running_counters
		FROM sessions WHERE visitor_key = $1 AND session_key = $2
	`, visitorKey, sessionKey)
	return scanSession(row)
}

func scanSession(row *sql.Row) (core.Session, bool, error) {
	var s core.Session
	var counters []byte
	err := row.Scan(&s.SessionID, &s.VisitorKey, &s.SessionKey, &s.SiteURL, &s.StartedAt, &s.LastSeenAt,
		&s.Status, &s.DeviceType, &s.ReferrerType, &s.IsLoggedIn, &s.IsRepeatVisitor,
		&s.CartValue, &s.CartItemCount, &counters)
	if err == sql.ErrNoRows {
		return core.Session{}, false, nil
	}
	if err != nil {
		return core.Session{}, false, err
	}
	if len(counters) > 0 {
		if err := json.Unmarshal(counters, &s.RunningCounters); err != nil {
			return core.Session{}, false, err
		}
	}
	return s, true, nil
}

// ListSince lists every session on siteURL last seen at or after since.
func (r *SessionRepo) ListSince(ctx context.Context, siteURL string, since time.Time) ([]core.Session, error) {
	rows, err := r.db.query(ctx, `
		SELECT session_id, visitor_key, session_key, site_url, started_at, last_seen_at,
			status, device_type, referrer_type, is_logged_in, is_repeat_visitor,
			cart_value, cart_item_count, running_counters
		FROM sessions WHERE site_url = $1 AND last_seen_at >= $2
	`, siteURL, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Session
	for rows.Next() {
		var s core.Session
		var counters []byte
		if err := rows.Scan(&s.SessionID, &s.VisitorKey, &s.SessionKey, &s.SiteURL, &s.StartedAt, &s.LastSeenAt,
			&s.Status, &s.DeviceType, &s.ReferrerType, &s.IsLoggedIn, &s.IsRepeatVisitor,
			&s.CartValue, &s.CartItemCount, &counters); err != nil {
			return nil, err
		}
		if len(counters) > 0 {
			if err := json.Unmarshal(counters, &s.RunningCounters); err != nil {
				return nil, err
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkEnded sets a session's status to ended.
func (r *SessionRepo) MarkEnded(ctx context.Context, sessionID string) error {
	_, err := r.db.exec(ctx, `UPDATE sessions SET status = $1 WHERE session_id = $2`, core.SessionEnded, sessionID)
	return err
}

// UpdateCounters overwrites a session's running counters.
func (r *SessionRepo) UpdateCounters(ctx context.Context, sessionID string, counters core.SessionRunningCounters) error {
	data, err := json.Marshal(counters)
	if err != nil {
		return err
	}
	_, err = r.db.exec(ctx, `UPDATE sessions SET running_counters = $1 WHERE session_id = $2`, data, sessionID)
	return err
}

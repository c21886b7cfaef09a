package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"ava/internal/core"
)

// Create persists an Evaluation, JSON-encoding its result and snapshot blobs.
func (r *EvaluationRepo) Create(ctx context.Context, e core.Evaluation) (string, error) {
	result, err := json.Marshal(e.Result)
	if err != nil {
		return "", err
	}
	sessionSnap, err := json.Marshal(e.SessionSnapshot)
	if err != nil {
		return "", err
	}
	eventsSnap, err := json.Marshal(e.EventsSnapshot)
	if err != nil {
		return "", err
	}
	frictions, err := json.Marshal(e.DetectedFrictions)
	if err != nil {
		return "", err
	}
	_, err = r.db.exec(ctx, `
		INSERT INTO evaluations (
			id, session_id, site_url, eval_engine, result, session_snapshot,
			events_snapshot, narrative, detected_frictions, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, e.ID, e.SessionID, e.SiteURL, e.EvalEngine, result, sessionSnap,
		eventsSnap, e.Narrative, frictions, e.CreatedAt)
	if err != nil {
		return "", err
	}
	return e.ID, nil
}

func scanEvaluation(rows interface {
	Scan(dest ...interface{}) error
}) (core.Evaluation, error) {
	var e core.Evaluation
	var result, sessionSnap, eventsSnap, frictions []byte
	err := rows.Scan(&e.ID, &e.SessionID, &e.SiteURL, &e.EvalEngine, &result, &sessionSnap,
		&eventsSnap, &e.Narrative, &frictions, &e.CreatedAt)
	if err != nil {
		return core.Evaluation{}, err
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &e.Result); err != nil {
			return core.Evaluation{}, err
		}
	}
	if len(sessionSnap) > 0 {
		if err := json.Unmarshal(sessionSnap, &e.SessionSnapshot); err != nil {
			return core.Evaluation{}, err
		}
	}
	if len(eventsSnap) > 0 {
		if err := json.Unmarshal(eventsSnap, &e.EventsSnapshot); err != nil {
			return core.Evaluation{}, err
		}
	}
	if len(frictions) > 0 {
		if err := json.Unmarshal(frictions, &e.DetectedFrictions); err != nil {
			return core.Evaluation{}, err
		}
	}
	return e, nil
}

// List returns the most recent limit evaluations for a session.
func (r *EvaluationRepo) List(ctx context.Context, sessionID string, limit int) ([]core.Evaluation, error) {
	rows, err := r.db.query(ctx, `
		SELECT id, session_id, site_url, eval_engine, result, session_snapshot,
			events_snapshot, narrative, detected_frictions, created_at
		FROM evaluations WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvaluationRows(rows)
}

// GetBySession returns every evaluation for a session, oldest first.
func (r *EvaluationRepo) GetBySession(ctx context.Context, sessionID string) ([]core.Evaluation, error) {
	rows, err := r.db.query(ctx, `
		SELECT id, session_id, site_url, eval_engine, result, session_snapshot,
			events_snapshot, narrative, detected_frictions, created_at
		FROM evaluations WHERE session_id = $1 ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvaluationRows(rows)
}

func scanEvaluationRows(rows *sql.Rows) ([]core.Evaluation, error) {
	var out []core.Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

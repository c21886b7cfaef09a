package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ava/internal/core"
	"ava/internal/repo"
)

// Create persists a fired intervention.
func (r *InterventionRepo) Create(ctx context.Context, iv core.Intervention) error {
	payload, err := json.Marshal(iv.Payload)
	if err != nil {
		return err
	}
	_, err = r.db.exec(ctx, `
		INSERT INTO interventions (
			id, session_id, evaluation_id, type, friction_id, action_code,
			message, mswim_score, tier_at_fire, payload, created_at, status,
			conversion_action, status_updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, iv.ID, iv.SessionID, iv.EvaluationID, iv.Type, iv.FrictionID, iv.ActionCode,
		iv.Message, iv.MSWIMScore, iv.TierAtFire, payload, iv.CreatedAt, iv.Status,
		iv.ConversionAction, iv.StatusUpdatedAt)
	return err
}

const interventionColumns = `
	iv.id, iv.session_id, iv.evaluation_id, iv.type, iv.friction_id, iv.action_code,
	iv.message, iv.mswim_score, iv.tier_at_fire, iv.payload, iv.created_at, iv.status,
	iv.conversion_action, iv.status_updated_at`

func scanIntervention(row interface{ Scan(dest ...interface{}) error }) (core.Intervention, error) {
	var iv core.Intervention
	var payload []byte
	err := row.Scan(&iv.ID, &iv.SessionID, &iv.EvaluationID, &iv.Type, &iv.FrictionID, &iv.ActionCode,
		&iv.Message, &iv.MSWIMScore, &iv.TierAtFire, &payload, &iv.CreatedAt, &iv.Status,
		&iv.ConversionAction, &iv.StatusUpdatedAt)
	if err != nil {
		return core.Intervention{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &iv.Payload); err != nil {
			return core.Intervention{}, err
		}
	}
	return iv, nil
}

// List returns interventions matching filter, joining through sessions
// when a site scope is requested (Intervention itself carries no site_url).
func (r *InterventionRepo) List(ctx context.Context, filter repo.InterventionFilter) ([]core.Intervention, error) {
	query := fmt.Sprintf(`SELECT %s FROM interventions iv`, interventionColumns)
	var conds []string
	var args []interface{}
	argN := 0
	next := func(v interface{}) string {
		argN++
		args = append(args, v)
		return fmt.Sprintf("$%d", argN)
	}

	if filter.SiteURL != "" {
		query += " JOIN sessions s ON s.session_id = iv.session_id"
		conds = append(conds, "s.site_url = "+next(filter.SiteURL))
	}
	if filter.Tier != nil {
		conds = append(conds, "iv.tier_at_fire = "+next(*filter.Tier))
	}
	if filter.FrictionID != "" {
		conds = append(conds, "iv.friction_id = "+next(filter.FrictionID))
	}
	if filter.Since != nil {
		conds = append(conds, "iv.created_at >= "+next(*filter.Since))
	}
	if filter.Until != nil {
		conds = append(conds, "iv.created_at <= "+next(*filter.Until))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY iv.created_at DESC"

	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInterventionRows(rows)
}

// GetBySession returns every intervention fired against a session.
func (r *InterventionRepo) GetBySession(ctx context.Context, sessionID string) ([]core.Intervention, error) {
	rows, err := r.db.query(ctx, fmt.Sprintf(`
		SELECT %s FROM interventions iv WHERE iv.session_id = $1 ORDER BY iv.created_at ASC
	`, interventionColumns), sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInterventionRows(rows)
}

func scanInterventionRows(rows *sql.Rows) ([]core.Intervention, error) {
	var out []core.Intervention
	for rows.Next() {
		iv, err := scanIntervention(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// Get resolves a single intervention by id.
func (r *InterventionRepo) Get(ctx context.Context, id string) (core.Intervention, bool, error) {
	row := r.db.queryRow(ctx, fmt.Sprintf(`SELECT %s FROM interventions iv WHERE iv.id = $1`, interventionColumns), id)
	iv, err := scanIntervention(row)
	if err == sql.ErrNoRows {
		return core.Intervention{}, false, nil
	}
	if err != nil {
		return core.Intervention{}, false, err
	}
	return iv, true, nil
}

// UpdateStatus overwrites the status, conversion action and status time;
// it does not check that the transition is monotonic.
func (r *InterventionRepo) UpdateStatus(ctx context.Context, id string, status core.InterventionStatus, conversionAction *string, at time.Time) error {
	_, err := r.db.exec(ctx, `
		UPDATE interventions SET status = $1, conversion_action = $2, status_updated_at = $3 WHERE id = $4
	`, status, conversionAction, at, id)
	return err
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"ava/internal/core"
)

const rolloutColumns = `
	id, name, site_url, change_type, new_config_id, new_eval_engine, stages,
	status, current_stage, started_at, current_stage_since, experiment_id,
	last_health_check, last_health_status, created_at, updated_at`

// Create persists a new Rollout.
func (r *RolloutRepo) Create(ctx context.Context, ro core.Rollout) error {
	stages, err := json.Marshal(ro.Stages)
	if err != nil {
		return err
	}
	health, err := json.Marshal(ro.LastHealthStatus)
	if err != nil {
		return err
	}
	_, err = r.db.exec(ctx, `
		INSERT INTO rollouts (`+rolloutColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, ro.ID, ro.Name, ro.SiteURL, ro.ChangeType, ro.NewConfigID, ro.NewEvalEngine, stages,
		ro.Status, ro.CurrentStage, ro.StartedAt, ro.CurrentStageSince, ro.ExperimentID,
		ro.LastHealthCheck, health, ro.CreatedAt, ro.UpdatedAt)
	return err
}

func scanRollout(row interface{ Scan(dest ...interface{}) error }) (core.Rollout, error) {
	var ro core.Rollout
	var stages, health []byte
	err := row.Scan(&ro.ID, &ro.Name, &ro.SiteURL, &ro.ChangeType, &ro.NewConfigID, &ro.NewEvalEngine, &stages,
		&ro.Status, &ro.CurrentStage, &ro.StartedAt, &ro.CurrentStageSince, &ro.ExperimentID,
		&ro.LastHealthCheck, &health, &ro.CreatedAt, &ro.UpdatedAt)
	if err != nil {
		return core.Rollout{}, err
	}
	if len(stages) > 0 {
		if err := json.Unmarshal(stages, &ro.Stages); err != nil {
			return core.Rollout{}, err
		}
	}
	if len(health) > 0 && string(health) != "null" {
		if err := json.Unmarshal(health, &ro.LastHealthStatus); err != nil {
			return core.Rollout{}, err
		}
	}
	return ro, nil
}

// Get resolves a single rollout by id.
func (r *RolloutRepo) Get(ctx context.Context, id string) (core.Rollout, bool, error) {
	row := r.db.queryRow(ctx, `SELECT `+rolloutColumns+` FROM rollouts WHERE id = $1`, id)
	ro, err := scanRollout(row)
	if err == sql.ErrNoRows {
		return core.Rollout{}, false, nil
	}
	if err != nil {
		return core.Rollout{}, false, err
	}
	return ro, true, nil
}

// Update overwrites a rollout's mutable fields.
func (r *RolloutRepo) Update(ctx context.Context, ro core.Rollout) error {
	stages, err := json.Marshal(ro.Stages)
	if err != nil {
		return err
	}
	health, err := json.Marshal(ro.LastHealthStatus)
	if err != nil {
		return err
	}
	_, err = r.db.exec(ctx, `
		UPDATE rollouts SET status = $1, current_stage = $2, started_at = $3,
			current_stage_since = $4, last_health_check = $5, last_health_status = $6,
			stages = $7, updated_at = $8
		WHERE id = $9
	`, ro.Status, ro.CurrentStage, ro.StartedAt, ro.CurrentStageSince, ro.LastHealthCheck,
		health, stages, ro.UpdatedAt, ro.ID)
	return err
}

// List returns every rollout for a site.
func (r *RolloutRepo) List(ctx context.Context, siteURL string) ([]core.Rollout, error) {
	rows, err := r.db.query(ctx, `SELECT `+rolloutColumns+` FROM rollouts WHERE site_url = $1 ORDER BY created_at DESC`, siteURL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRolloutRows(rows)
}

// GetActiveRollout returns the single rolling/paused rollout for a site,
// if any — the invariant that at most one rollout is active per site is
// enforced by the caller, not this query.
func (r *RolloutRepo) GetActiveRollout(ctx context.Context, siteURL string) (core.Rollout, bool, error) {
	row := r.db.queryRow(ctx, `
		SELECT `+rolloutColumns+` FROM rollouts
		WHERE site_url = $1 AND status IN ('rolling', 'paused')
		ORDER BY created_at DESC LIMIT 1
	`, siteURL)
	ro, err := scanRollout(row)
	if err == sql.ErrNoRows {
		return core.Rollout{}, false, nil
	}
	if err != nil {
		return core.Rollout{}, false, err
	}
	return ro, true, nil
}

// ListRolling returns every rollout currently in the rolling state, across
// all sites — the canary job's health-check worklist.
func (r *RolloutRepo) ListRolling(ctx context.Context) ([]core.Rollout, error) {
	rows, err := r.db.query(ctx, `SELECT `+rolloutColumns+` FROM rollouts WHERE status = 'rolling'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRolloutRows(rows)
}

func scanRolloutRows(rows *sql.Rows) ([]core.Rollout, error) {
	var out []core.Rollout
	for rows.Next() {
		ro, err := scanRollout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ro)
	}
	return out, rows.Err()
}

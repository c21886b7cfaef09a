package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"ava/internal/core"
)

const scoringConfigColumns = `id, site_url, weights, thresholds, gate, is_active, created_at, updated_at`

// List returns every scoring config for a site (siteURL=="" lists the
// global configs).
func (r *ScoringConfigRepo) List(ctx context.Context, siteURL string) ([]core.ScoringConfig, error) {
	rows, err := r.db.query(ctx, `SELECT `+scoringConfigColumns+` FROM scoring_configs WHERE site_url = $1 ORDER BY created_at DESC`, siteURL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.ScoringConfig
	for rows.Next() {
		cfg, err := scanScoringConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func scanScoringConfig(row interface{ Scan(dest ...interface{}) error }) (core.ScoringConfig, error) {
	var cfg core.ScoringConfig
	var weights, thresholds, gate []byte
	err := row.Scan(&cfg.ID, &cfg.SiteURL, &weights, &thresholds, &gate, &cfg.IsActive, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return core.ScoringConfig{}, err
	}
	if err := json.Unmarshal(weights, &cfg.Weights); err != nil {
		return core.ScoringConfig{}, err
	}
	if err := json.Unmarshal(thresholds, &cfg.Thresholds); err != nil {
		return core.ScoringConfig{}, err
	}
	if err := json.Unmarshal(gate, &cfg.Gate); err != nil {
		return core.ScoringConfig{}, err
	}
	return cfg, nil
}

// Get resolves a single scoring config by id.
func (r *ScoringConfigRepo) Get(ctx context.Context, id string) (core.ScoringConfig, bool, error) {
	row := r.db.queryRow(ctx, `SELECT `+scoringConfigColumns+` FROM scoring_configs WHERE id = $1`, id)
	cfg, err := scanScoringConfig(row)
	if err == sql.ErrNoRows {
		return core.ScoringConfig{}, false, nil
	}
	if err != nil {
		return core.ScoringConfig{}, false, err
	}
	return cfg, true, nil
}

// Create persists a new scoring config.
func (r *ScoringConfigRepo) Create(ctx context.Context, cfg core.ScoringConfig) error {
	weights, err := json.Marshal(cfg.Weights)
	if err != nil {
		return err
	}
	thresholds, err := json.Marshal(cfg.Thresholds)
	if err != nil {
		return err
	}
	gate, err := json.Marshal(cfg.Gate)
	if err != nil {
		return err
	}
	_, err = r.db.exec(ctx, `
		INSERT INTO scoring_configs (id, site_url, weights, thresholds, gate, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, cfg.ID, cfg.SiteURL, weights, thresholds, gate, cfg.IsActive, cfg.CreatedAt, cfg.UpdatedAt)
	return err
}

// Update overwrites a scoring config's weights/thresholds/gate.
func (r *ScoringConfigRepo) Update(ctx context.Context, cfg core.ScoringConfig) error {
	weights, err := json.Marshal(cfg.Weights)
	if err != nil {
		return err
	}
	thresholds, err := json.Marshal(cfg.Thresholds)
	if err != nil {
		return err
	}
	gate, err := json.Marshal(cfg.Gate)
	if err != nil {
		return err
	}
	_, err = r.db.exec(ctx, `
		UPDATE scoring_configs SET weights = $1, thresholds = $2, gate = $3, updated_at = $4
		WHERE id = $5
	`, weights, thresholds, gate, cfg.UpdatedAt, cfg.ID)
	return err
}

// Activate marks id as the sole active config for its site scope, within a
// transaction so the at-most-one-active invariant never observes two
// simultaneously active rows.
func (r *ScoringConfigRepo) Activate(ctx context.Context, id string) error {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: activate config: begin: %w", err)
	}
	defer tx.Rollback()

	var siteURL string
	if err := tx.QueryRowContext(ctx, `SELECT site_url FROM scoring_configs WHERE id = $1`, id).Scan(&siteURL); err != nil {
		return fmt.Errorf("postgres: activate config: lookup: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE scoring_configs SET is_active = false WHERE site_url = $1`, siteURL); err != nil {
		return fmt.Errorf("postgres: activate config: deactivate: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE scoring_configs SET is_active = true WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: activate config: activate: %w", err)
	}
	return tx.Commit()
}

// Delete removes a scoring config.
func (r *ScoringConfigRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.exec(ctx, `DELETE FROM scoring_configs WHERE id = $1`, id)
	return err
}

// GetActiveConfig returns siteURL's active config, falling back to the
// global (site_url = '') active config if none is set.
func (r *ScoringConfigRepo) GetActiveConfig(ctx context.Context, siteURL string) (core.ScoringConfig, bool, error) {
	row := r.db.queryRow(ctx, `SELECT `+scoringConfigColumns+` FROM scoring_configs WHERE site_url = $1 AND is_active = true LIMIT 1`, siteURL)
	cfg, err := scanScoringConfig(row)
	if err == nil {
		return cfg, true, nil
	}
	if err != sql.ErrNoRows {
		return core.ScoringConfig{}, false, err
	}
	if siteURL == "" {
		return core.ScoringConfig{}, false, nil
	}
	row = r.db.queryRow(ctx, `SELECT `+scoringConfigColumns+` FROM scoring_configs WHERE site_url = '' AND is_active = true LIMIT 1`)
	cfg, err = scanScoringConfig(row)
	if err == sql.ErrNoRows {
		return core.ScoringConfig{}, false, nil
	}
	if err != nil {
		return core.ScoringConfig{}, false, err
	}
	return cfg, true, nil
}

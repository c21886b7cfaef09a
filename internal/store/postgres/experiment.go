package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"ava/internal/core"
)

// Create persists a new Experiment.
func (r *ExperimentRepo) Create(ctx context.Context, e core.Experiment) error {
	variants, err := json.Marshal(e.Variants)
	if err != nil {
		return err
	}
	metrics, err := json.Marshal(e.Metrics)
	if err != nil {
		return err
	}
	_, err = r.db.exec(ctx, `
		INSERT INTO experiments (
			id, name, site_url, status, traffic_percent, variants, primary_metric,
			metrics, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, e.ID, e.Name, e.SiteURL, e.Status, e.TrafficPercent, variants, e.PrimaryMetric,
		metrics, e.CreatedAt, e.UpdatedAt)
	return err
}

func scanExperiment(row interface{ Scan(dest ...interface{}) error }) (core.Experiment, error) {
	var e core.Experiment
	var variants, metrics []byte
	err := row.Scan(&e.ID, &e.Name, &e.SiteURL, &e.Status, &e.TrafficPercent, &variants, &e.PrimaryMetric,
		&metrics, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return core.Experiment{}, err
	}
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &e.Variants); err != nil {
			return core.Experiment{}, err
		}
	}
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &e.Metrics); err != nil {
			return core.Experiment{}, err
		}
	}
	return e, nil
}

const experimentColumns = `id, name, site_url, status, traffic_percent, variants, primary_metric, metrics, created_at, updated_at`

// Get resolves a single experiment by id.
func (r *ExperimentRepo) Get(ctx context.Context, id string) (core.Experiment, bool, error) {
	row := r.db.queryRow(ctx, `SELECT `+experimentColumns+` FROM experiments WHERE id = $1`, id)
	e, err := scanExperiment(row)
	if err == sql.ErrNoRows {
		return core.Experiment{}, false, nil
	}
	if err != nil {
		return core.Experiment{}, false, err
	}
	return e, true, nil
}

// Update overwrites an experiment's mutable fields.
func (r *ExperimentRepo) Update(ctx context.Context, e core.Experiment) error {
	variants, err := json.Marshal(e.Variants)
	if err != nil {
		return err
	}
	metrics, err := json.Marshal(e.Metrics)
	if err != nil {
		return err
	}
	_, err = r.db.exec(ctx, `
		UPDATE experiments SET name = $1, status = $2, traffic_percent = $3, variants = $4,
			primary_metric = $5, metrics = $6, updated_at = $7
		WHERE id = $8
	`, e.Name, e.Status, e.TrafficPercent, variants, e.PrimaryMetric, metrics, e.UpdatedAt, e.ID)
	return err
}

// List returns every experiment for a site.
func (r *ExperimentRepo) List(ctx context.Context, siteURL string) ([]core.Experiment, error) {
	rows, err := r.db.query(ctx, `SELECT `+experimentColumns+` FROM experiments WHERE site_url = $1 ORDER BY created_at DESC`, siteURL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Experiment
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Package spanner implements an alternate ScoringConfigRepo backend on
// Cloud Spanner, selectable via config.StorageConfig.ScoringConfigBackend
// == "spanner". Grounded on the teacher's internal/reputation/spanner.go
// (SpannerWallet): stale reads via ReadOnlyTransaction+MaxStaleness for
// hot-path lookups, ReadWriteTransaction+BufferWrite for the
// read-modify-write Activate transition, and spanner.Insert/Update
// mutations with spanner.CommitTimestamp for the updated_at column.
package spanner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"

	"ava/internal/core"
)

// ScoringConfigRepo backs repo.ScoringConfigRepo against Cloud Spanner.
type ScoringConfigRepo struct {
	client *spanner.Client
}

// NewScoringConfigRepo connects to the Spanner database at
// projects/<project>/instances/<instance>/databases/<db>, mirroring the
// teacher's NewSpannerWallet.
func NewScoringConfigRepo(ctx context.Context, project, instance, db string) (*ScoringConfigRepo, error) {
	dbPath := fmt.Sprintf("projects/%s/instances/%s/databases/%s", project, instance, db)
	client, err := spanner.NewClient(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("spanner: new client: %w", err)
	}
	return &ScoringConfigRepo{client: client}, nil
}

// Close releases the underlying Spanner client.
func (r *ScoringConfigRepo) Close() error {
	r.client.Close()
	return nil
}

func scanScoringConfigRow(row *spanner.Row) (core.ScoringConfig, error) {
	var cfg core.ScoringConfig
	var weightsJSON, thresholdsJSON, gateJSON string
	var createdAt, updatedAt time.Time
	if err := row.Columns(&cfg.ID, &cfg.SiteURL, &weightsJSON, &thresholdsJSON, &gateJSON, &cfg.IsActive, &createdAt, &updatedAt); err != nil {
		return core.ScoringConfig{}, err
	}
	if err := json.Unmarshal([]byte(weightsJSON), &cfg.Weights); err != nil {
		return core.ScoringConfig{}, fmt.Errorf("spanner: unmarshal weights: %w", err)
	}
	if err := json.Unmarshal([]byte(thresholdsJSON), &cfg.Thresholds); err != nil {
		return core.ScoringConfig{}, fmt.Errorf("spanner: unmarshal thresholds: %w", err)
	}
	if err := json.Unmarshal([]byte(gateJSON), &cfg.Gate); err != nil {
		return core.ScoringConfig{}, fmt.Errorf("spanner: unmarshal gate: %w", err)
	}
	cfg.CreatedAt, cfg.UpdatedAt = createdAt, updatedAt
	return cfg, nil
}

// List returns every scoring config for a site.
func (r *ScoringConfigRepo) List(ctx context.Context, siteURL string) ([]core.ScoringConfig, error) {
	stmt := spanner.Statement{
		SQL: `SELECT Id, SiteUrl, Weights, Thresholds, Gate, IsActive, CreatedAt, UpdatedAt
		      FROM ScoringConfigs WHERE SiteUrl = @siteURL ORDER BY CreatedAt DESC`,
		Params: map[string]interface{}{"siteURL": siteURL},
	}
	iter := r.client.Single().Query(ctx, stmt)
	defer iter.Stop()

	var out []core.ScoringConfig
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("spanner: list scoring configs: %w", err)
		}
		cfg, err := scanScoringConfigRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// Get resolves a single scoring config by id, using a 15-second stale read
// since config lookups are hot-path and eventual consistency within that
// window is acceptable, per the teacher's CheckBalance staleness bound.
func (r *ScoringConfigRepo) Get(ctx context.Context, id string) (core.ScoringConfig, bool, error) {
	roTx := r.client.ReadOnlyTransaction().WithTimestampBound(spanner.MaxStaleness(15 * time.Second))
	defer roTx.Close()

	row, err := roTx.ReadRow(ctx, "ScoringConfigs", spanner.Key{id},
		[]string{"Id", "SiteUrl", "Weights", "Thresholds", "Gate", "IsActive", "CreatedAt", "UpdatedAt"})
	if err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return core.ScoringConfig{}, false, nil
		}
		return core.ScoringConfig{}, false, fmt.Errorf("spanner: get scoring config: %w", err)
	}
	cfg, err := scanScoringConfigRow(row)
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
	_, err = r.client.Apply(ctx, []*spanner.Mutation{
		spanner.Insert("ScoringConfigs",
			[]string{"Id", "SiteUrl", "Weights", "Thresholds", "Gate", "IsActive", "CreatedAt", "UpdatedAt"},
			[]interface{}{cfg.ID, cfg.SiteURL, string(weights), string(thresholds), string(gate), cfg.IsActive, cfg.CreatedAt, spanner.CommitTimestamp},
		),
	})
	if err != nil {
		return fmt.Errorf("spanner: create scoring config: %w", err)
	}
	return nil
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
	_, err = r.client.Apply(ctx, []*spanner.Mutation{
		spanner.Update("ScoringConfigs",
			[]string{"Id", "Weights", "Thresholds", "Gate", "UpdatedAt"},
			[]interface{}{cfg.ID, string(weights), string(thresholds), string(gate), spanner.CommitTimestamp},
		),
	})
	if err != nil {
		return fmt.Errorf("spanner: update scoring config: %w", err)
	}
	return nil
}

// Activate marks id the sole active config for its site scope inside a
// ReadWriteTransaction, buffering the deactivate-all-then-activate-one
// mutation set atomically, mirroring ApplyPenalty's
// read-then-BufferWrite shape.
func (r *ScoringConfigRepo) Activate(ctx context.Context, id string) error {
	_, err := r.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		row, err := txn.ReadRow(ctx, "ScoringConfigs", spanner.Key{id}, []string{"SiteUrl"})
		if err != nil {
			return err
		}
		var siteURL string
		if err := row.Columns(&siteURL); err != nil {
			return err
		}

		stmt := spanner.Statement{
			SQL:    `SELECT Id FROM ScoringConfigs WHERE SiteUrl = @siteURL AND IsActive = TRUE`,
			Params: map[string]interface{}{"siteURL": siteURL},
		}
		iter := txn.Query(ctx, stmt)
		defer iter.Stop()

		var mutations []*spanner.Mutation
		for {
			r, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return err
			}
			var activeID string
			if err := r.Columns(&activeID); err != nil {
				return err
			}
			mutations = append(mutations, spanner.Update("ScoringConfigs",
				[]string{"Id", "IsActive", "UpdatedAt"},
				[]interface{}{activeID, false, spanner.CommitTimestamp}))
		}
		mutations = append(mutations, spanner.Update("ScoringConfigs",
			[]string{"Id", "IsActive", "UpdatedAt"},
			[]interface{}{id, true, spanner.CommitTimestamp}))

		return txn.BufferWrite(mutations)
	})
	if err != nil {
		return fmt.Errorf("spanner: activate scoring config: %w", err)
	}
	return nil
}

// Delete removes a scoring config.
func (r *ScoringConfigRepo) Delete(ctx context.Context, id string) error {
	_, err := r.client.Apply(ctx, []*spanner.Mutation{
		spanner.Delete("ScoringConfigs", spanner.Key{id}),
	})
	if err != nil {
		return fmt.Errorf("spanner: delete scoring config: %w", err)
	}
	return nil
}

// GetActiveConfig returns siteURL's active config, falling back to the
// global (SiteUrl == "") active config if none is set.
func (r *ScoringConfigRepo) GetActiveConfig(ctx context.Context, siteURL string) (core.ScoringConfig, bool, error) {
	cfg, ok, err := r.queryActive(ctx, siteURL)
	if err != nil || ok || siteURL == "" {
		return cfg, ok, err
	}
	return r.queryActive(ctx, "")
}

func (r *ScoringConfigRepo) queryActive(ctx context.Context, siteURL string) (core.ScoringConfig, bool, error) {
	stmt := spanner.Statement{
		SQL: `SELECT Id, SiteUrl, Weights, Thresholds, Gate, IsActive, CreatedAt, UpdatedAt
		      FROM ScoringConfigs WHERE SiteUrl = @siteURL AND IsActive = TRUE LIMIT 1`,
		Params: map[string]interface{}{"siteURL": siteURL},
	}
	iter := r.client.Single().Query(ctx, stmt)
	defer iter.Stop()

	row, err := iter.Next()
	if err == iterator.Done {
		return core.ScoringConfig{}, false, nil
	}
	if err != nil {
		return core.ScoringConfig{}, false, fmt.Errorf("spanner: get active config: %w", err)
	}
	cfg, err := scanScoringConfigRow(row)
	if err != nil {
		return core.ScoringConfig{}, false, err
	}
	return cfg, true, nil
}

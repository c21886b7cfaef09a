// Package postgres implements AVA's hot-path repository contracts
// (Session, TrackEvent, Evaluation, Intervention, Experiment, Rollout, and
// the default ScoringConfig backend) against PostgreSQL via database/sql
// and lib/pq, grounded on the teacher's raw-SQL + lib/pq usage in
// cmd/server/main.go and internal/gvisor/database_state.go.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// DB wraps a *sql.DB shared by every repo in this package.
type DB struct {
	conn *sql.DB
}

// Open connects to PostgreSQL at dsn and verifies the connection with a
// ping, mirroring the teacher's NewDatabaseStateManager.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error { return d.conn.Close() }

func (d *DB) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return d.conn.ExecContext(ctx, query, args...)
}

func (d *DB) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return d.conn.QueryRowContext(ctx, query, args...)
}

func (d *DB) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return d.conn.QueryContext(ctx, query, args...)
}

// SessionRepo backs repo.SessionRepo.
type SessionRepo struct{ db *DB }

// NewSessionRepo constructs a Postgres-backed SessionRepo.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

// EventRepo backs repo.EventRepo.
type EventRepo struct{ db *DB }

// NewEventRepo constructs a Postgres-backed EventRepo.
func NewEventRepo(db *DB) *EventRepo { return &EventRepo{db: db} }

// EvaluationRepo backs repo.EvaluationRepo.
type EvaluationRepo struct{ db *DB }

// NewEvaluationRepo constructs a Postgres-backed EvaluationRepo.
func NewEvaluationRepo(db *DB) *EvaluationRepo { return &EvaluationRepo{db: db} }

// InterventionRepo backs repo.InterventionRepo.
type InterventionRepo struct{ db *DB }

// NewInterventionRepo constructs a Postgres-backed InterventionRepo.
func NewInterventionRepo(db *DB) *InterventionRepo { return &InterventionRepo{db: db} }

// ExperimentRepo backs repo.ExperimentRepo.
type ExperimentRepo struct{ db *DB }

// NewExperimentRepo constructs a Postgres-backed ExperimentRepo.
func NewExperimentRepo(db *DB) *ExperimentRepo { return &ExperimentRepo{db: db} }

// RolloutRepo backs repo.RolloutRepo.
type RolloutRepo struct{ db *DB }

// NewRolloutRepo constructs a Postgres-backed RolloutRepo.
func NewRolloutRepo(db *DB) *RolloutRepo { return &RolloutRepo{db: db} }

// ScoringConfigRepo backs repo.ScoringConfigRepo — the default backend
// selected by config.StorageConfig.ScoringConfigBackend == "postgres".
type ScoringConfigRepo struct{ db *DB }

// NewScoringConfigRepo constructs a Postgres-backed ScoringConfigRepo.
func NewScoringConfigRepo(db *DB) *ScoringConfigRepo { return &ScoringConfigRepo{db: db} }

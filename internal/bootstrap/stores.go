// Package bootstrap wires repo.* implementations from process
// configuration, the way the teacher's cmd/server/main.go constructs its
// pool manager, escrow gate and reputation wallet directly in main — AVA
// factors the equivalent wiring into one function since three binaries
// (cmd/ava-server, cmd/ava-jobs, cmd/ava-export) all need the identical
// storage backends rather than one.
package bootstrap

import (
	"context"
	"fmt"

	"ava/internal/apierr"
	"ava/internal/config"
	"ava/internal/repo"
	"ava/internal/store/postgres"
	"ava/internal/store/rediscache"
	"ava/internal/store/spanner"
	"ava/internal/store/supabase"

	goredis "github.com/redis/go-redis/v9"
)

// Stores holds every repo.* implementation the rest of AVA consumes, plus
// the underlying connections so callers can close them on shutdown.
type Stores struct {
	Sessions      repo.SessionRepo
	Events        repo.EventRepo
	Evaluations   repo.EvaluationRepo
	Interventions repo.InterventionRepo
	Experiments   repo.ExperimentRepo
	Rollouts      repo.RolloutRepo
	ScoringConfigs repo.ScoringConfigRepo

	TrainingDatapoints repo.TrainingDatapointRepo
	ShadowComparisons  repo.ShadowComparisonRepo
	DriftSnapshots     repo.DriftSnapshotRepo
	DriftAlerts        repo.DriftAlertRepo
	JobRuns            repo.JobRunRepo

	pg       *postgres.DB
	spannerR *spanner.ScoringConfigRepo
}

// Close releases the underlying store connections.
func (s *Stores) Close() {
	if s.pg != nil {
		s.pg.Close()
	}
	if s.spannerR != nil {
		s.spannerR.Close()
	}
}

// Open constructs every repo.* implementation from cfg. Postgres backs the
// hot-path relational repos; Supabase backs the analytics-oriented repos
// (training data, shadow comparisons, drift, job runs); ScoringConfigRepo
// is selected between postgres and spanner per
// cfg.Storage.ScoringConfigBackend, then optionally wrapped with a Redis L2
// cache tier if cfg.Cache.RedisAddr is set. Returns a ConfigurationError
// (apierr.Configuration) on any connection failure, per spec §7's
// "missing required settings at startup; fatal, abort boot" taxonomy entry.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	if cfg.Storage.Postgres.DSN == "" {
		return nil, apierr.Configuration("bootstrap.Open", fmt.Errorf("POSTGRES_DSN is required"))
	}
	if cfg.Storage.Supabase.URL == "" || cfg.Storage.Supabase.ServiceKey == "" {
		return nil, apierr.Configuration("bootstrap.Open", fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required"))
	}

	pg, err := postgres.Open(cfg.Storage.Postgres.DSN)
	if err != nil {
		return nil, apierr.Configuration("bootstrap.Open.postgres", err)
	}

	sb, err := supabase.NewClient(cfg.Storage.Supabase.URL, cfg.Storage.Supabase.ServiceKey)
	if err != nil {
		pg.Close()
		return nil, apierr.Configuration("bootstrap.Open.supabase", err)
	}

	s := &Stores{
		pg:            pg,
		Sessions:      postgres.NewSessionRepo(pg),
		Events:        postgres.NewEventRepo(pg),
		Evaluations:   postgres.NewEvaluationRepo(pg),
		Interventions: postgres.NewInterventionRepo(pg),
		Experiments:   postgres.NewExperimentRepo(pg),
		Rollouts:      postgres.NewRolloutRepo(pg),

		TrainingDatapoints: supabase.NewTrainingDatapointRepo(sb),
		ShadowComparisons:  supabase.NewShadowComparisonRepo(sb),
		DriftSnapshots:     supabase.NewDriftSnapshotRepo(sb),
		DriftAlerts:        supabase.NewDriftAlertRepo(sb),
		JobRuns:            supabase.NewJobRunRepo(sb),
	}

	scoringBackend, err := newScoringConfigBackend(ctx, cfg, pg, s)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.ScoringConfigs = scoringBackend

	if cfg.Cache.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Cache.RedisAddr})
		s.ScoringConfigs = rediscache.New(s.ScoringConfigs, rediscache.NewGoRedisClient(client), "", 0)
	}

	return s, nil
}

func newScoringConfigBackend(ctx context.Context, cfg *config.Config, pg *postgres.DB, s *Stores) (repo.ScoringConfigRepo, error) {
	switch cfg.Storage.ScoringConfigBackend {
	case "spanner":
		sp, err := spanner.NewScoringConfigRepo(ctx, cfg.Storage.Spanner.ProjectID, cfg.Storage.Spanner.InstanceID, cfg.Storage.Spanner.DatabaseID)
		if err != nil {
			return nil, apierr.Configuration("bootstrap.Open.spanner", err)
		}
		s.spannerR = sp
		return sp, nil
	case "postgres", "":
		return postgres.NewScoringConfigRepo(pg), nil
	default:
		return nil, apierr.Configuration("bootstrap.Open.scoringConfigBackend", fmt.Errorf("unknown scoring config backend %q", cfg.Storage.ScoringConfigBackend))
	}
}

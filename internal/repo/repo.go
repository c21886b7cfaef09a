// Package repo defines the repository contracts AVA's core consumes.
// Concrete storage is external: internal/store/postgres, .../supabase,
// .../spanner and .../rediscache provide implementations.
package repo

import (
	"context"
	"time"

	"ava/internal/core"
)

// SessionRepo persists and resolves Session rows.
type SessionRepo interface {
	Upsert(ctx context.Context, s core.Session) error
	LookupBy(ctx context.Context, visitorKey, sessionKey string) (core.Session, bool, error)
	ListSince(ctx context.Context, siteURL string, since time.Time) ([]core.Session, error)
	MarkEnded(ctx context.Context, sessionID string) error
	UpdateCounters(ctx context.Context, sessionID string, counters core.SessionRunningCounters) error
}

// FunnelStepCount is one step's name and hit count in a funnel aggregate.
type FunnelStepCount struct {
	Step  string
	Count int
}

// EventRepo persists TrackEvents and serves the analytics aggregates that
// are not on the hot evaluation path.
type EventRepo interface {
	Append(ctx context.Context, e core.TrackEvent) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]core.TrackEvent, error)
	FunnelStepCounts(ctx context.Context, siteURL string, since time.Time) ([]FunnelStepCount, error)
	AvgTimeOnPageMs(ctx context.Context, siteURL string, pageType core.PageType) (float64, error)
	AvgScrollDepthPct(ctx context.Context, siteURL string, pageType core.PageType) (float64, error)
}

// EvaluationRepo persists the per-flush MSWIM evaluation record.
type EvaluationRepo interface {
	Create(ctx context.Context, e core.Evaluation) (string, error)
	List(ctx context.Context, sessionID string, limit int) ([]core.Evaluation, error)
	GetBySession(ctx context.Context, sessionID string) ([]core.Evaluation, error)
}

// InterventionRepo persists Interventions. UpdateStatus stores the given
// status as is; monotonic transitions are checked by the caller
// (outcome.Recorder via core.ValidTransition), not by the repository.
type InterventionRepo interface {
	Create(ctx context.Context, iv core.Intervention) error
	List(ctx context.Context, filter InterventionFilter) ([]core.Intervention, error)
	GetBySession(ctx context.Context, sessionID string) ([]core.Intervention, error)
	Get(ctx context.Context, id string) (core.Intervention, bool, error)
	UpdateStatus(ctx context.Context, id string, status core.InterventionStatus, conversionAction *string, at time.Time) error
}

// InterventionFilter narrows InterventionRepo.List.
type InterventionFilter struct {
	SiteURL    string
	Tier       *core.Tier
	FrictionID string
	Since      *time.Time
	Until      *time.Time
}

// ScoringConfigRepo is the authoritative CRUD/activation contract for
// ScoringConfig rows, including the global-fallback active-config lookup
// the config loader (§4.5) depends on.
type ScoringConfigRepo interface {
	List(ctx context.Context, siteURL string) ([]core.ScoringConfig, error)
	Get(ctx context.Context, id string) (core.ScoringConfig, bool, error)
	Create(ctx context.Context, cfg core.ScoringConfig) error
	Update(ctx context.Context, cfg core.ScoringConfig) error
	Activate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	// GetActiveConfig returns the active config for siteURL, falling back
	// to the global (siteURL=="") active config if none is set.
	GetActiveConfig(ctx context.Context, siteURL string) (core.ScoringConfig, bool, error)
}

// TrainingDatapointFilter narrows TrainingDatapointRepo.List.
type TrainingDatapointFilter struct {
	Outcome    *core.InterventionStatus
	Tier       *core.Tier
	SiteURL    string
	FrictionID string
	Since      *time.Time
	Until      *time.Time
}

// TrainingDatapointRepo persists assembled TrainingDatapoints, idempotent
// on InterventionID.
type TrainingDatapointRepo interface {
	Create(ctx context.Context, dp core.TrainingDatapoint) (created bool, err error)
	List(ctx context.Context, filter TrainingDatapointFilter) ([]core.TrainingDatapoint, error)
	OutcomeDistribution(ctx context.Context, siteURL string) (map[core.InterventionStatus]int, error)
	TierOutcomeCrossTab(ctx context.Context, siteURL string) (map[core.Tier]map[core.InterventionStatus]int, error)
	Count(ctx context.Context, filter TrainingDatapointFilter) (int, error)
}

// ShadowComparisonFilter narrows ShadowComparisonRepo.List.
type ShadowComparisonFilter struct {
	SessionID     string
	SiteURL       string
	Since         *time.Time
	Until         *time.Time
	TierMatch     *bool
	DecisionMatch *bool
	MinDivergence *float64
}

// ShadowComparisonStats summarizes ShadowComparisonRepo.Stats' output.
type ShadowComparisonStats struct {
	Count                 int
	TierAgreementRate     float64
	DecisionAgreementRate float64
	AvgCompositeDivergence float64
}

// ShadowComparisonRepo persists shadow/production comparisons.
type ShadowComparisonRepo interface {
	Create(ctx context.Context, c core.ShadowComparison) error
	List(ctx context.Context, filter ShadowComparisonFilter) ([]core.ShadowComparison, error)
	Stats(ctx context.Context, siteURL string, since time.Time) (ShadowComparisonStats, error)
	TopDivergences(ctx context.Context, siteURL string, limit int) ([]core.ShadowComparison, error)
}

// DriftSnapshotFilter narrows DriftSnapshotRepo.List.
type DriftSnapshotFilter struct {
	SiteURL    string
	WindowType *core.WindowType
	Since      *time.Time
}

// DriftSnapshotRepo persists window-scoped drift snapshots.
type DriftSnapshotRepo interface {
	Create(ctx context.Context, s core.DriftSnapshot) error
	List(ctx context.Context, filter DriftSnapshotFilter) ([]core.DriftSnapshot, error)
	PruneOlderThan(ctx context.Context, before time.Time) (int, error)
}

// DriftAlertFilter narrows DriftAlertRepo.List.
type DriftAlertFilter struct {
	SiteURL      string
	Severity     *core.AlertSeverity
	Acknowledged *bool
}

// DriftAlertRepo persists and manages drift alerts.
type DriftAlertRepo interface {
	Create(ctx context.Context, a core.DriftAlert) error
	List(ctx context.Context, filter DriftAlertFilter) ([]core.DriftAlert, error)
	Acknowledge(ctx context.Context, id string, at time.Time) error
	PruneOlderThan(ctx context.Context, before time.Time) (int, error)
	// FindUnacknowledged looks up an existing unacknowledged alert of the
	// given type/site for deduplication.
	FindUnacknowledged(ctx context.Context, alertType core.DriftAlertType, siteURL string) (core.DriftAlert, bool, error)
}

// ExperimentRepo is the lifecycle CRUD contract for Experiments.
type ExperimentRepo interface {
	Create(ctx context.Context, e core.Experiment) error
	Get(ctx context.Context, id string) (core.Experiment, bool, error)
	Update(ctx context.Context, e core.Experiment) error
	List(ctx context.Context, siteURL string) ([]core.Experiment, error)
}

// RolloutRepo is the lifecycle CRUD contract for Rollouts.
type RolloutRepo interface {
	Create(ctx context.Context, r core.Rollout) error
	Get(ctx context.Context, id string) (core.Rollout, bool, error)
	Update(ctx context.Context, r core.Rollout) error
	List(ctx context.Context, siteURL string) ([]core.Rollout, error)
	GetActiveRollout(ctx context.Context, siteURL string) (core.Rollout, bool, error)
	ListRolling(ctx context.Context) ([]core.Rollout, error)
}

// JobRunRepo persists job-runner execution records.
type JobRunRepo interface {
	Create(ctx context.Context, j core.JobRun) (string, error)
	Complete(ctx context.Context, id string, completedAt time.Time, summary string) error
	Fail(ctx context.Context, id string, completedAt time.Time, errMsg string) error
	GetLastRun(ctx context.Context, jobName string) (core.JobRun, bool, error)
	PruneOlderThan(ctx context.Context, before time.Time) (int, error)
}

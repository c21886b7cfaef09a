package core

import "time"

// RolloutStatus is a Rollout's state-machine state, driven by the job
// runner and user commands (§4.12).
type RolloutStatus string

const (
	RolloutPending     RolloutStatus = "pending"
	RolloutRolling     RolloutStatus = "rolling"
	RolloutPaused      RolloutStatus = "paused"
	RolloutCompleted   RolloutStatus = "completed"
	RolloutRolledBack  RolloutStatus = "rolled_back"
)

// RolloutChangeType names what a rollout's stages are promoting: a new
// scoring config or a new default eval engine.
type RolloutChangeType string

const (
	ChangeScoringConfig RolloutChangeType = "scoring_config"
	ChangeEvalEngine    RolloutChangeType = "eval_engine"
)

// HealthCriteria parameterizes evaluateRolloutHealth's pass/fail checks and
// promote/rollback thresholds.
type HealthCriteria struct {
	MinSampleSize     int     `json:"min_sample_size" yaml:"min_sample_size"`
	MinConversionRate float64 `json:"min_conversion_rate" yaml:"min_conversion_rate"`
	MaxDismissalRate  float64 `json:"max_dismissal_rate" yaml:"max_dismissal_rate"`
}

// RolloutStage is one step of a staged rollout: a traffic percentage held
// for a duration before health is (re-)evaluated.
type RolloutStage struct {
	Percent         int            `json:"percent"`
	DurationHours   float64        `json:"duration_hours"`
	HealthChecks    HealthCriteria `json:"health_checks"`
}

// HealthCheckResult is one named pass/fail outcome within
// evaluateRolloutHealth.
type HealthCheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// HealthRecommendation is evaluateRolloutHealth's verdict.
type HealthRecommendation string

const (
	RecommendPromote  HealthRecommendation = "promote"
	RecommendHold     HealthRecommendation = "hold"
	RecommendRollback HealthRecommendation = "rollback"
)

// HealthStatus bundles a health evaluation's checks and recommendation.
type HealthStatus struct {
	Recommendation HealthRecommendation `json:"recommendation"`
	Checks         []HealthCheckResult  `json:"checks"`
	EvaluatedAt    time.Time            `json:"evaluated_at"`
}

// Rollout is a staged configuration or eval-engine change for a site,
// health-monitored by the job runner's canary check.
type Rollout struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	SiteURL string            `json:"site_url"`

	ChangeType    RolloutChangeType `json:"change_type"`
	NewConfigID   *string           `json:"new_config_id,omitempty"`
	NewEvalEngine *string           `json:"new_eval_engine,omitempty"`

	Stages []RolloutStage `json:"stages"`

	Status           RolloutStatus `json:"status"`
	CurrentStage     int           `json:"current_stage"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	CurrentStageSince *time.Time   `json:"current_stage_since,omitempty"`

	ExperimentID string `json:"experiment_id"`

	LastHealthCheck  *time.Time    `json:"last_health_check,omitempty"`
	LastHealthStatus *HealthStatus `json:"last_health_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CurrentStageSpec returns the rollout's currently-active stage.
func (r Rollout) CurrentStageSpec() (RolloutStage, bool) {
	if r.CurrentStage < 0 || r.CurrentStage >= len(r.Stages) {
		return RolloutStage{}, false
	}
	return r.Stages[r.CurrentStage], true
}

// IsFinalStage reports whether the current stage is the last one (percent
// must be 100 per the rollout invariant).
func (r Rollout) IsFinalStage() bool {
	return r.CurrentStage == len(r.Stages)-1
}

// JobRunStatus is a JobRun record's lifecycle state.
type JobRunStatus string

const (
	JobRunning   JobRunStatus = "running"
	JobCompleted JobRunStatus = "completed"
	JobFailed    JobRunStatus = "failed"
)

// JobRun persists the outcome of one job-runner execution (§4.14).
type JobRun struct {
	ID          string       `json:"id"`
	JobName     string       `json:"job_name"`
	Status      JobRunStatus `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	DurationMs  *int64       `json:"duration_ms,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	Error       string       `json:"error,omitempty"`
	TriggeredBy string       `json:"triggered_by"`
}

package core

import "time"

// ExperimentStatus is an Experiment's lifecycle state.
type ExperimentStatus string

const (
	ExperimentDraft   ExperimentStatus = "draft"
	ExperimentRunning ExperimentStatus = "running"
	ExperimentPaused  ExperimentStatus = "paused"
	ExperimentEnded   ExperimentStatus = "ended"
)

// Variant is one arm of an Experiment.
type Variant struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`

	ScoringConfigID *string `json:"scoring_config_id,omitempty"`
	EvalEngine      *string `json:"eval_engine,omitempty"`
}

// VariantMetrics is the treatment-variant metrics the rollout controller's
// health evaluation consumes.
type VariantMetrics struct {
	SampleSize      int     `json:"sample_size"`
	ConversionRate  float64 `json:"conversion_rate"`
	DismissalRate   float64 `json:"dismissal_rate"`
}

// Experiment is an A/B test: a named set of variants splitting a percentage
// of site traffic.
type Experiment struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	SiteURL        string           `json:"site_url,omitempty"`
	Status         ExperimentStatus `json:"status"`
	TrafficPercent int              `json:"traffic_percent"`
	Variants       []Variant        `json:"variants"`
	PrimaryMetric  string           `json:"primary_metric"`

	// Metrics holds each variant's latest aggregated VariantMetrics, keyed
	// by Variant.ID. It is stored and loaded with the experiment; no
	// component here computes it from TrainingDatapoints, and the rollout
	// controller only reads it.
	Metrics map[string]VariantMetrics `json:"metrics,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VariantAssignment is the result of assign() (§4.11).
type VariantAssignment struct {
	Enrolled  bool    `json:"enrolled"`
	VariantID *string `json:"variant_id,omitempty"`
}

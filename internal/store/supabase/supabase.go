// Package supabase implements AVA's analytics-oriented repository
// contracts (TrainingDatapoint, ShadowComparison, DriftSnapshot,
// DriftAlert, JobRun) against Supabase's PostgREST API via
// supabase-community/supabase-go, grounded on the teacher's
// internal/database/supabase.go client wrapper.
package supabase

import (
	"fmt"

	supa "github.com/supabase-community/supabase-go"
)

// Client wraps a *supa.Client shared by every repo in this package.
type Client struct {
	c *supa.Client
}

// NewClient creates a Supabase-backed client, mirroring the teacher's
// NewSupabaseClient env-driven construction.
func NewClient(url, serviceKey string) (*Client, error) {
	if url == "" || serviceKey == "" {
		return nil, fmt.Errorf("supabase: url and service key must be set")
	}
	c, err := supa.NewClient(url, serviceKey, &supa.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase: new client: %w", err)
	}
	return &Client{c: c}, nil
}

// TrainingDatapointRepo backs repo.TrainingDatapointRepo.
type TrainingDatapointRepo struct{ c *Client }

// NewTrainingDatapointRepo constructs a Supabase-backed TrainingDatapointRepo.
func NewTrainingDatapointRepo(c *Client) *TrainingDatapointRepo { return &TrainingDatapointRepo{c: c} }

// ShadowComparisonRepo backs repo.ShadowComparisonRepo.
type ShadowComparisonRepo struct{ c *Client }

// NewShadowComparisonRepo constructs a Supabase-backed ShadowComparisonRepo.
func NewShadowComparisonRepo(c *Client) *ShadowComparisonRepo { return &ShadowComparisonRepo{c: c} }

// DriftSnapshotRepo backs repo.DriftSnapshotRepo.
type DriftSnapshotRepo struct{ c *Client }

// NewDriftSnapshotRepo constructs a Supabase-backed DriftSnapshotRepo.
func NewDriftSnapshotRepo(c *Client) *DriftSnapshotRepo { return &DriftSnapshotRepo{c: c} }

// DriftAlertRepo backs repo.DriftAlertRepo.
type DriftAlertRepo struct{ c *Client }

// NewDriftAlertRepo constructs a Supabase-backed DriftAlertRepo.
func NewDriftAlertRepo(c *Client) *DriftAlertRepo { return &DriftAlertRepo{c: c} }

// JobRunRepo backs repo.JobRunRepo.
type JobRunRepo struct{ c *Client }

// NewJobRunRepo constructs a Supabase-backed JobRunRepo.
func NewJobRunRepo(c *Client) *JobRunRepo { return &JobRunRepo{c: c} }

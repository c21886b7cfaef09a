package supabase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"ava/internal/core"
)

type jobRunRow struct {
	ID          string  `json:"id"`
	JobName     string  `json:"job_name"`
	Status      string  `json:"status"`
	StartedAt   string  `json:"started_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
	DurationMs  *int64  `json:"duration_ms,omitempty"`
	Summary     string  `json:"summary,omitempty"`
	Error       string  `json:"error,omitempty"`
	TriggeredBy string  `json:"triggered_by"`
}

func (row jobRunRow) toCore() (core.JobRun, error) {
	started, err := time.Parse(time.RFC3339Nano, row.StartedAt)
	if err != nil {
		return core.JobRun{}, fmt.Errorf("supabase: parse started_at: %w", err)
	}
	j := core.JobRun{
		ID: row.ID, JobName: row.JobName, Status: core.JobRunStatus(row.Status),
		StartedAt: started, DurationMs: row.DurationMs, Summary: row.Summary,
		Error: row.Error, TriggeredBy: row.TriggeredBy,
	}
	if row.CompletedAt != nil {
		t, err := time.Parse(time.RFC3339Nano, *row.CompletedAt)
		if err != nil {
			return core.JobRun{}, fmt.Errorf("supabase: parse completed_at: %w", err)
		}
		j.CompletedAt = &t
	}
	return j, nil
}

// Create persists a new, in-progress JobRun and returns its ID, assigning a
// fresh one when j.ID is empty.
func (r *JobRunRepo) Create(ctx context.Context, j core.JobRun) (string, error) {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	row := jobRunRow{
		ID: j.ID, JobName: j.JobName, Status: string(j.Status),
		StartedAt: j.StartedAt.UTC().Format(time.RFC3339Nano),
		Summary:   j.Summary, Error: j.Error, TriggeredBy: j.TriggeredBy,
	}
	var result []jobRunRow
	_, err := r.c.c.From("job_runs").
		Insert(row, false, "", "", "").
		ExecuteTo(&result)
	if err != nil {
		return "", fmt.Errorf("supabase: create job run: %w", err)
	}
	return j.ID, nil
}

// Complete marks a job run completed with a summary.
func (r *JobRunRepo) Complete(ctx context.Context, id string, completedAt time.Time, summary string) error {
	return r.finish(ctx, id, completedAt, core.JobCompleted, summary, "")
}

// Fail marks a job run failed with an error message.
func (r *JobRunRepo) Fail(ctx context.Context, id string, completedAt time.Time, errMsg string) error {
	return r.finish(ctx, id, completedAt, core.JobFailed, "", errMsg)
}

func (r *JobRunRepo) finish(ctx context.Context, id string, completedAt time.Time, status core.JobRunStatus, summary, errMsg string) error {
	patch := map[string]interface{}{
		"status":       string(status),
		"completed_at": completedAt.UTC().Format(time.RFC3339Nano),
	}
	if summary != "" {
		patch["summary"] = summary
	}
	if errMsg != "" {
		patch["error"] = errMsg
	}
	var result []jobRunRow
	_, err := r.c.c.From("job_runs").
		Update(patch, "", "").
		Eq("id", id).
		ExecuteTo(&result)
	if err != nil {
		return fmt.Errorf("supabase: finish job run: %w", err)
	}
	return nil
}

// GetLastRun returns the most recent run of jobName, if any. The fluent
// builder's Order(column, nil) doesn't expose a descending toggle the way
// the teacher's code uses it, so the whole (bounded) job_name slice is
// fetched and the max StartedAt picked client-side rather than guessing at
// an untested ordering option.
func (r *JobRunRepo) GetLastRun(ctx context.Context, jobName string) (core.JobRun, bool, error) {
	var rows []jobRunRow
	_, err := r.c.c.From("job_runs").
		Select("*", "", false).
		Eq("job_name", jobName).
		ExecuteTo(&rows)
	if err != nil {
		return core.JobRun{}, false, fmt.Errorf("supabase: get last run: %w", err)
	}
	if len(rows) == 0 {
		return core.JobRun{}, false, nil
	}
	runs := make([]core.JobRun, 0, len(rows))
	for _, row := range rows {
		j, err := row.toCore()
		if err != nil {
			return core.JobRun{}, false, err
		}
		runs = append(runs, j)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	return runs[0], true, nil
}

// PruneOlderThan deletes job runs started before the given instant.
func (r *JobRunRepo) PruneOlderThan(ctx context.Context, before time.Time) (int, error) {
	var deleted []jobRunRow
	_, err := r.c.c.From("job_runs").
		Delete("", "").
		Lt("started_at", before.UTC().Format(time.RFC3339Nano)).
		ExecuteTo(&deleted)
	if err != nil {
		return 0, fmt.Errorf("supabase: prune job runs: %w", err)
	}
	return len(deleted), nil
}

// Package outcome closes the intervention lifecycle loop: it ingests
// client-reported outcome messages, enforces the monotonic status state
// machine, and assembles the immutable TrainingDatapoint exactly once per
// intervention when a terminal outcome lands.
package outcome

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ava/internal/apierr"
	"ava/internal/core"
	"ava/internal/repo"
)

// ErrDuplicateOutcome is returned (and should be treated as a no-op by
// callers) when an outcome message would regress or repeat an already-
// recorded status.
var ErrDuplicateOutcome = errors.New("outcome: duplicate or out-of-order status transition")

// Recorder ingests OutcomeMessages and builds TrainingDatapoints.
type Recorder struct {
	Interventions      repo.InterventionRepo
	Evaluations        repo.EvaluationRepo
	TrainingDatapoints repo.TrainingDatapointRepo
	Now                func() time.Time
}

// NewRecorder constructs a Recorder, defaulting Now to time.Now.
func NewRecorder(interventions repo.InterventionRepo, evaluations repo.EvaluationRepo, datapoints repo.TrainingDatapointRepo) *Recorder {
	return &Recorder{
		Interventions:      interventions,
		Evaluations:        evaluations,
		TrainingDatapoints: datapoints,
		Now:                time.Now,
	}
}

// Record validates and applies msg against the referenced intervention. If
// the resulting status is terminal, it assembles and persists a
// TrainingDatapoint (idempotent on InterventionID — a duplicate or
// non-monotonic outcome for the same intervention is logged and rejected
// with ErrDuplicateOutcome, so no second datapoint is created).
func (r *Recorder) Record(ctx context.Context, msg core.OutcomeMessage) error {
	iv, ok, err := r.Interventions.Get(ctx, msg.InterventionID)
	if err != nil {
		return apierr.Transient("outcome.Record.Get", err)
	}
	if !ok {
		return apierr.Permanent("outcome.Record", errors.New("unknown intervention_id"))
	}

	if !core.ValidTransition(iv.Status, msg.Status) {
		slog.Warn("outcome: dropping non-monotonic status transition", "intervention_id", msg.InterventionID, "from", iv.Status, "to", msg.Status)
		return ErrDuplicateOutcome
	}

	now := r.now()
	if err := r.Interventions.UpdateStatus(ctx, iv.ID, msg.Status, msg.ConversionAction, now); err != nil {
		return apierr.Transient("outcome.Record.UpdateStatus", err)
	}

	if !msg.Status.IsTerminal() {
		return nil
	}

	dp, err := r.buildDatapoint(ctx, iv, msg)
	if err != nil {
		return err
	}

	if _, err := r.TrainingDatapoints.Create(ctx, dp); err != nil {
		return apierr.Transient("outcome.Record.CreateDatapoint", err)
	}
	return nil
}

// buildDatapoint snapshots the evaluation referenced by iv.EvaluationID and
// joins it with the intervention and outcome to form an immutable
// TrainingDatapoint.
func (r *Recorder) buildDatapoint(ctx context.Context, iv core.Intervention, msg core.OutcomeMessage) (core.TrainingDatapoint, error) {
	evals, err := r.Evaluations.GetBySession(ctx, iv.SessionID)
	if err != nil {
		return core.TrainingDatapoint{}, apierr.Transient("outcome.buildDatapoint.GetBySession", err)
	}

	var eval core.Evaluation
	found := false
	for _, e := range evals {
		if e.ID == iv.EvaluationID {
			eval = e
			found = true
			break
		}
	}
	if !found {
		return core.TrainingDatapoint{}, apierr.Permanent("outcome.buildDatapoint", errors.New("evaluation for intervention not found"))
	}

	delayMs := msg.Timestamp.Sub(iv.CreatedAt).Milliseconds()
	if delayMs < 0 {
		delayMs = 0
	}

	return core.TrainingDatapoint{
		ID:                     newID(),
		InterventionID:         iv.ID,
		SessionID:              iv.SessionID,
		SiteURL:                eval.SiteURL,
		SessionContextSnapshot: eval.SessionSnapshot,
		EventsSnapshot:         eval.EventsSnapshot,
		Narrative:              eval.Narrative,
		DetectedFrictions:      eval.DetectedFrictions,
		Signals:                eval.Result.Signals,
		CompositeScore:         eval.Result.CompositeScore,
		WeightsUsed:            eval.Result.WeightsUsed,
		Decision:               eval.Result.Decision,
		GateOverride:           eval.Result.GateOverride,
		InterventionType:       iv.Type,
		ActionCode:             iv.ActionCode,
		FrictionID:             iv.FrictionID,
		Outcome:                msg.Status,
		ConversionAction:       msg.ConversionAction,
		OutcomeDelayMs:         delayMs,
		CreatedAt:              r.now(),
	}, nil
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

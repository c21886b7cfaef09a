// Package rollout implements the staged-rollout state machine and health
// evaluation of §4.12: pending -> rolling -> {paused <-> rolling} ->
// completed, with rollback reachable from any non-terminal state, driven
// by explicit user commands and the job runner's periodic health check.
package rollout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ava/internal/apierr"
	"ava/internal/core"
	"ava/internal/repo"
	"ava/internal/webhooks"
)

// ErrAlreadyRolling is returned by Start when siteUrl already has a rolling
// rollout — only one rolling rollout per site is permitted.
var ErrAlreadyRolling = errors.New("rollout: site already has a rolling rollout")

// ErrInvalidTransition is returned when a command does not apply to the
// rollout's current status.
var ErrInvalidTransition = errors.New("rollout: invalid state transition")

// Controller drives rollout lifecycle commands and health evaluation.
type Controller struct {
	Rollouts       repo.RolloutRepo
	Experiments    repo.ExperimentRepo
	ScoringConfigs repo.ScoringConfigRepo
	Now            func() time.Time

	// Emitter, if set, is notified of every lifecycle transition this
	// Controller drives (start/promote/pause/rollback).
	Emitter webhooks.WebhookEmitter
}

func (c *Controller) emit(eventType webhooks.EventType, ro core.Rollout, data map[string]interface{}) {
	if c.Emitter == nil {
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	data["rollout_id"] = ro.ID
	data["status"] = string(ro.Status)
	c.Emitter.Emit(eventType, ro.SiteURL, data)
}

// NewController constructs a Controller, defaulting Now to time.Now.
func NewController(rollouts repo.RolloutRepo, experiments repo.ExperimentRepo, configs repo.ScoringConfigRepo) *Controller {
	return &Controller{Rollouts: rollouts, Experiments: experiments, ScoringConfigs: configs, Now: time.Now}
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Start transitions a pending (or paused) rollout into rolling, creating
// (if pending) the linked experiment in "running" status with the first
// stage's weights, or resuming (if paused) the existing experiment.
func (c *Controller) Start(ctx context.Context, rolloutID string) (core.Rollout, error) {
	ro, ok, err := c.Rollouts.Get(ctx, rolloutID)
	if err != nil {
		return core.Rollout{}, apierr.Transient("rollout.Start.Get", err)
	}
	if !ok {
		return core.Rollout{}, apierr.Permanent("rollout.Start", errors.New("rollout not found"))
	}
	if ro.Status != core.RolloutPending && ro.Status != core.RolloutPaused {
		return core.Rollout{}, ErrInvalidTransition
	}

	if ro.Status == core.RolloutPending {
		if err := c.assertNoOtherRolling(ctx, ro.SiteURL, ro.ID); err != nil {
			return core.Rollout{}, err
		}
		exp, err := c.createLinkedExperiment(ctx, ro)
		if err != nil {
			return core.Rollout{}, err
		}
		ro.ExperimentID = exp.ID
		started := c.now()
		ro.StartedAt = &started
		ro.CurrentStageSince = &started
	} else {
		resumed := c.now()
		ro.CurrentStageSince = &resumed
		exp, ok, err := c.Experiments.Get(ctx, ro.ExperimentID)
		if err != nil {
			return core.Rollout{}, apierr.Transient("rollout.Start.GetExperiment", err)
		}
		if ok {
			exp.Status = core.ExperimentRunning
			exp.UpdatedAt = c.now()
			if err := c.Experiments.Update(ctx, exp); err != nil {
				return core.Rollout{}, apierr.Transient("rollout.Start.UpdateExperiment", err)
			}
		}
	}

	ro.Status = core.RolloutRolling
	ro.UpdatedAt = c.now()
	if err := c.Rollouts.Update(ctx, ro); err != nil {
		return core.Rollout{}, apierr.Transient("rollout.Start.Update", err)
	}
	c.emit(webhooks.EventRolloutStarted, ro, nil)
	return ro, nil
}

func (c *Controller) assertNoOtherRolling(ctx context.Context, siteURL, excludeID string) error {
	all, err := c.Rollouts.List(ctx, siteURL)
	if err != nil {
		return apierr.Transient("rollout.assertNoOtherRolling", err)
	}
	for _, r := range all {
		if r.ID != excludeID && r.Status == core.RolloutRolling {
			return ErrAlreadyRolling
		}
	}
	return nil
}

func (c *Controller) createLinkedExperiment(ctx context.Context, ro core.Rollout) (core.Experiment, error) {
	stage, _ := ro.CurrentStageSpec()
	exp := core.Experiment{
		ID:             newID(),
		Name:           ro.Name,
		SiteURL:        ro.SiteURL,
		Status:         core.ExperimentRunning,
		TrafficPercent: stage.Percent,
		Variants:       stageVariants(ro, stage),
		PrimaryMetric:  "conversion_rate",
		CreatedAt:      c.now(),
		UpdatedAt:      c.now(),
	}
	if err := c.Experiments.Create(ctx, exp); err != nil {
		return core.Experiment{}, apierr.Transient("rollout.createLinkedExperiment", err)
	}
	return exp, nil
}

// stageVariants builds a two-arm control/treatment split for the current
// stage's traffic percent: treatment carries the rollout's proposed
// change, control stays on the prior default.
func stageVariants(ro core.Rollout, stage core.RolloutStage) []core.Variant {
	treatment := core.Variant{ID: "treatment", Weight: 1.0}
	switch ro.ChangeType {
	case core.ChangeScoringConfig:
		treatment.ScoringConfigID = ro.NewConfigID
	case core.ChangeEvalEngine:
		treatment.EvalEngine = ro.NewEvalEngine
	}
	return []core.Variant{{ID: "control", Weight: 0}, treatment}
}

// Promote advances a rolling rollout to its next stage, re-weighting the
// linked experiment's traffic percent. If the new stage is the final stage
// (percent=100), it instead runs completeRollout.
func (c *Controller) Promote(ctx context.Context, rolloutID string) (core.Rollout, error) {
	ro, ok, err := c.Rollouts.Get(ctx, rolloutID)
	if err != nil {
		return core.Rollout{}, apierr.Transient("rollout.Promote.Get", err)
	}
	if !ok {
		return core.Rollout{}, apierr.Permanent("rollout.Promote", errors.New("rollout not found"))
	}
	if ro.Status != core.RolloutRolling {
		return core.Rollout{}, ErrInvalidTransition
	}

	if ro.IsFinalStage() {
		completed, err := c.completeRollout(ctx, ro)
		if err == nil {
			c.emit(webhooks.EventRolloutPromoted, completed, map[string]interface{}{"final_stage": true})
		}
		return completed, err
	}

	ro.CurrentStage++
	stage, ok := ro.CurrentStageSpec()
	if !ok {
		return core.Rollout{}, apierr.Invariant("rollout.Promote", errors.New("advanced past last configured stage"))
	}
	entered := c.now()
	ro.CurrentStageSince = &entered

	exp, found, err := c.Experiments.Get(ctx, ro.ExperimentID)
	if err == nil && found {
		exp.TrafficPercent = stage.Percent
		exp.UpdatedAt = c.now()
		if uerr := c.Experiments.Update(ctx, exp); uerr != nil {
			slog.Error("rollout: failed to re-weight experiment on promote", "rollout_id", ro.ID, "error", uerr)
		}
	}

	if stage.Percent == 100 {
		completed, err := c.completeRollout(ctx, ro)
		if err == nil {
			c.emit(webhooks.EventRolloutPromoted, completed, map[string]interface{}{"final_stage": true})
		}
		return completed, err
	}

	ro.UpdatedAt = c.now()
	if err := c.Rollouts.Update(ctx, ro); err != nil {
		return core.Rollout{}, apierr.Transient("rollout.Promote.Update", err)
	}
	c.emit(webhooks.EventRolloutPromoted, ro, map[string]interface{}{"stage": ro.CurrentStage})
	return ro, nil
}

// completeRollout activates the rollout's proposed scoring config as the
// site default, ends the linked experiment, and marks the rollout
// completed.
func (c *Controller) completeRollout(ctx context.Context, ro core.Rollout) (core.Rollout, error) {
	if ro.ChangeType == core.ChangeScoringConfig && ro.NewConfigID != nil && c.ScoringConfigs != nil {
		if err := c.ScoringConfigs.Activate(ctx, *ro.NewConfigID); err != nil {
			slog.Error("rollout: failed to activate new scoring config on completion", "rollout_id", ro.ID, "config_id", *ro.NewConfigID, "error", err)
		}
	}

	if exp, found, err := c.Experiments.Get(ctx, ro.ExperimentID); err == nil && found {
		exp.Status = core.ExperimentEnded
		exp.UpdatedAt = c.now()
		if uerr := c.Experiments.Update(ctx, exp); uerr != nil {
			slog.Error("rollout: failed to end experiment on completion", "rollout_id", ro.ID, "error", uerr)
		}
	}

	ro.Status = core.RolloutCompleted
	ro.UpdatedAt = c.now()
	if err := c.Rollouts.Update(ctx, ro); err != nil {
		return core.Rollout{}, apierr.Transient("rollout.completeRollout.Update", err)
	}
	return ro, nil
}

// Pause transitions a rolling rollout to paused, pausing the linked
// experiment.
func (c *Controller) Pause(ctx context.Context, rolloutID string) (core.Rollout, error) {
	ro, ok, err := c.Rollouts.Get(ctx, rolloutID)
	if err != nil {
		return core.Rollout{}, apierr.Transient("rollout.Pause.Get", err)
	}
	if !ok {
		return core.Rollout{}, apierr.Permanent("rollout.Pause", errors.New("rollout not found"))
	}
	if ro.Status != core.RolloutRolling {
		return core.Rollout{}, ErrInvalidTransition
	}

	if exp, found, err := c.Experiments.Get(ctx, ro.ExperimentID); err == nil && found {
		exp.Status = core.ExperimentPaused
		exp.UpdatedAt = c.now()
		if uerr := c.Experiments.Update(ctx, exp); uerr != nil {
			slog.Error("rollout: failed to pause experiment", "rollout_id", ro.ID, "error", uerr)
		}
	}

	ro.Status = core.RolloutPaused
	ro.UpdatedAt = c.now()
	if err := c.Rollouts.Update(ctx, ro); err != nil {
		return core.Rollout{}, apierr.Transient("rollout.Pause.Update", err)
	}
	c.emit(webhooks.EventRolloutPaused, ro, nil)
	return ro, nil
}

// Rollback transitions any non-terminal rollout to rolled_back, ending the
// linked experiment. The active scoring config is left untouched.
func (c *Controller) Rollback(ctx context.Context, rolloutID, reason string) (core.Rollout, error) {
	ro, ok, err := c.Rollouts.Get(ctx, rolloutID)
	if err != nil {
		return core.Rollout{}, apierr.Transient("rollout.Rollback.Get", err)
	}
	if !ok {
		return core.Rollout{}, apierr.Permanent("rollout.Rollback", errors.New("rollout not found"))
	}
	if ro.Status == core.RolloutCompleted || ro.Status == core.RolloutRolledBack {
		return core.Rollout{}, ErrInvalidTransition
	}

	if ro.ExperimentID != "" {
		if exp, found, err := c.Experiments.Get(ctx, ro.ExperimentID); err == nil && found {
			exp.Status = core.ExperimentEnded
			exp.UpdatedAt = c.now()
			if uerr := c.Experiments.Update(ctx, exp); uerr != nil {
				slog.Error("rollout: failed to end experiment on rollback", "rollout_id", ro.ID, "error", uerr)
			}
		}
	}

	ro.Status = core.RolloutRolledBack
	ro.UpdatedAt = c.now()
	if err := c.Rollouts.Update(ctx, ro); err != nil {
		return core.Rollout{}, apierr.Transient("rollout.Rollback.Update", err)
	}
	slog.Warn("rollout: rolled back", "rollout_id", ro.ID, "reason", reason)
	c.emit(webhooks.EventRolloutRolledBack, ro, map[string]interface{}{"reason": reason})
	return ro, nil
}

package variant

import (
	"context"
	"log/slog"

	"ava/internal/core"
	"ava/internal/repo"
)

// Resolver implements session.VariantResolver: it looks up a site's active
// rollout (if any), resolves the linked running experiment, and deterministically
// assigns the session into one of its variants.
type Resolver struct {
	Rollouts    repo.RolloutRepo
	Experiments repo.ExperimentRepo
}

// NewResolver constructs a Resolver.
func NewResolver(rollouts repo.RolloutRepo, experiments repo.ExperimentRepo) *Resolver {
	return &Resolver{Rollouts: rollouts, Experiments: experiments}
}

// ResolveOverride returns the scoring-config id and/or eval-engine override
// for sessionID under siteURL's active experiment, if one exists and the
// session lands in a variant that carries an override. ok is false when
// there is no active rollout, no running experiment, or the session is not
// enrolled.
func (r *Resolver) ResolveOverride(ctx context.Context, siteURL, sessionID string) (configID, evalEngine string, ok bool) {
	if r.Rollouts == nil || r.Experiments == nil {
		return "", "", false
	}

	rollout, found, err := r.Rollouts.GetActiveRollout(ctx, siteURL)
	if err != nil {
		slog.Warn("variant: failed to look up active rollout", "site_url", siteURL, "error", err)
		return "", "", false
	}
	if !found {
		return "", "", false
	}

	exp, found, err := r.Experiments.Get(ctx, rollout.ExperimentID)
	if err != nil {
		slog.Warn("variant: failed to look up linked experiment", "experiment_id", rollout.ExperimentID, "error", err)
		return "", "", false
	}
	if !found || exp.Status != core.ExperimentRunning {
		return "", "", false
	}

	assignment := Assign(sessionID, exp.ID, exp.Variants, exp.TrafficPercent)
	if !assignment.Enrolled || assignment.VariantID == nil {
		return "", "", false
	}

	for _, v := range exp.Variants {
		if v.ID != *assignment.VariantID {
			continue
		}
		if v.ScoringConfigID != nil {
			configID = *v.ScoringConfigID
		}
		if v.EvalEngine != nil {
			evalEngine = *v.EvalEngine
		}
		return configID, evalEngine, configID != "" || evalEngine != ""
	}
	return "", "", false
}

package mswim

import (
	"fmt"

	"ava/internal/core"
)

// SessionCtx is the full narrow-context bundle runMSWIM needs: the union of
// every signal adjuster's inputs plus the gate engine's history inputs.
type SessionCtx struct {
	PageType        core.PageType
	IsLoggedIn      bool
	IsRepeatVisitor bool
	CartValue       float64
	CartItemCount   int

	DetectedFrictionIDs []string

	SessionAgeSec          float64
	EventCount             int
	RuleBasedCorroboration bool

	TotalInterventionsFired      int
	TotalDismissals              int
	SecondsSinceLastIntervention float64
	IsMobile                     bool
	WidgetOpenedVoluntarily      bool
	IdleSeconds                  int

	ReferrerType string

	Gate GateContext
}

// Engine runs the MSWIM pipeline: adjust each signal, compute the
// composite and tier, run the gate engine, and apply the override. It is
// pure and deterministic given its inputs; the only I/O is the config read
// that happens before Run is called (§4.5, handled by the caller).
type Engine struct{}

// NewEngine constructs a stateless MSWIM engine.
func NewEngine() *Engine { return &Engine{} }

// Run computes a full MSWIMResult for one hint/context pair against cfg.
func (e *Engine) Run(hint core.GenerativeHint, ctx SessionCtx, cfg core.ScoringConfig) core.MSWIMResult {
	signals := core.MSWIMSignals{
		Intent: adjustIntent(hint.Intent, IntentContext{
			PageType:        ctx.PageType,
			IsLoggedIn:      ctx.IsLoggedIn,
			IsRepeatVisitor: ctx.IsRepeatVisitor,
			CartValue:       ctx.CartValue,
			CartItemCount:   ctx.CartItemCount,
		}),
		Friction: adjustFriction(hint.Friction, ctx.DetectedFrictionIDs),
		Clarity: adjustClarity(hint.Clarity, ClarityContext{
			SessionAgeSec:          ctx.SessionAgeSec,
			EventCount:             ctx.EventCount,
			RuleBasedCorroboration: ctx.RuleBasedCorroboration,
		}),
		Receptivity: computeReceptivity(hint.Receptivity, ReceptivityContext{
			TotalInterventionsFired:      ctx.TotalInterventionsFired,
			TotalDismissals:              ctx.TotalDismissals,
			SecondsSinceLastIntervention: ctx.SecondsSinceLastIntervention,
			IsMobile:                     ctx.IsMobile,
			WidgetOpenedVoluntarily:      ctx.WidgetOpenedVoluntarily,
			IdleSeconds:                  ctx.IdleSeconds,
		}),
		Value: computeValue(hint.Value, ValueContext{
			CartValue:       ctx.CartValue,
			IsLoggedIn:      ctx.IsLoggedIn,
			IsRepeatVisitor: ctx.IsRepeatVisitor,
			ReferrerType:    ctx.ReferrerType,
		}),
	}
	signals.Clamp()

	comp := composite(signals, cfg.Weights)
	tier := resolveTier(comp, cfg.Thresholds)

	gateCtx := ctx.Gate
	gateCtx.CurrentFrictionIDs = ctx.DetectedFrictionIDs
	outcome := evaluateGates(tier, cfg.Gate, gateCtx)
	finalTier, decision := applyGateOutcome(tier, outcome)

	var override *core.GateOverride
	if outcome != nil {
		override = outcome.Override
	}

	return core.MSWIMResult{
		Signals:        signals,
		WeightsUsed:    cfg.Weights,
		CompositeScore: comp,
		Tier:           finalTier,
		GateOverride:   override,
		Decision:       decision,
		Reasoning:      reasoning(comp, signals, tier, finalTier, outcome, decision),
	}
}

func reasoning(comp float64, s core.MSWIMSignals, resolvedTier, finalTier core.Tier, outcome *GateOutcome, decision core.Decision) string {
	base := fmt.Sprintf(
		"composite=%.1f I=%d F=%d C=%d R=%d V=%d tier=%s",
		comp, s.Intent, s.Friction, s.Clarity, s.Receptivity, s.Value, resolvedTier,
	)
	if outcome == nil {
		return fmt.Sprintf("%s decision=%s", base, decision)
	}
	return fmt.Sprintf("%s override=%s(%s) final_tier=%s decision=%s",
		base, *outcome.Override, outcome.Reason, finalTier, decision)
}

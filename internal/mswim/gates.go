package mswim

import "ava/internal/core"

// GateContext is everything the gate engine needs about session history and
// the current friction set to evaluate its 12 ordered rules.
type GateContext struct {
	SessionAgeSec float64

	TotalDismissals  int
	TotalActiveFired int
	TotalNudgeFired  int
	TotalNonPassive  int

	CurrentFrictionIDs           []string
	FrictionIDsAlreadyIntervened map[string]bool

	SecondsSinceLastActive float64 // -1 if never
	SecondsSinceLastNudge  float64 // -1 if never

	HasTechnicalError  bool
	HasOutOfStock      bool
	HasShippingIssue   bool
	HasPaymentFailure  bool
	HasCheckoutTimeout bool
	HasHelpSearch      bool
}

// GateOutcome is what the gate engine decides: the first matching rule (if
// any) and the resulting action.
type GateOutcome struct {
	Override *core.GateOverride
	Action   core.GateAction
	Reason   string
}

// evaluateGates runs the 12 rules in fixed order, first match wins. Only
// one of the rules fires per evaluation.
func evaluateGates(tier core.Tier, cfg core.GateConfig, ctx GateContext) *GateOutcome {
	if out := evaluateSuppressionGates(tier, cfg, ctx); out != nil {
		return out
	}
	if out := evaluateForcePassiveGates(tier, ctx); out != nil {
		return out
	}
	if out := evaluateForceEscalateGates(ctx); out != nil {
		return out
	}
	return nil
}

// evaluateSuppressionGates covers rules 1-6: SESSION_TOO_YOUNG, DISMISS_CAP,
// DUPLICATE_FRICTION, COOLDOWN_ACTIVE, COOLDOWN_NUDGE (emitted as
// COOLDOWN_ACTIVE), SESSION_CAP.
func evaluateSuppressionGates(tier core.Tier, cfg core.GateConfig, ctx GateContext) *GateOutcome {
	if ctx.SessionAgeSec < float64(cfg.MinSessionAgeSec) && tier != core.TierEscalate {
		return suppressGate(core.GateSessionTooYoung, "session younger than min_session_age_sec")
	}
	if ctx.TotalDismissals >= cfg.DismissalsToSuppress {
		return suppressGate(core.GateDismissCap, "dismissal cap reached")
	}
	if hasDuplicateFriction(ctx) && tier.Rank() < core.TierEscalate.Rank() {
		return suppressGate(core.GateDuplicateFriction, "friction id already intervened this session")
	}
	if ctx.SecondsSinceLastActive >= 0 && ctx.SecondsSinceLastActive < float64(cfg.CooldownAfterActiveSec) && tier.Rank() < core.TierEscalate.Rank() {
		return suppressGate(core.GateCooldownActive, "within cooldown_after_active_sec")
	}
	if ctx.SecondsSinceLastNudge >= 0 && ctx.SecondsSinceLastNudge < float64(cfg.CooldownAfterNudgeSec) && tier.Rank() <= core.TierNudge.Rank() {
		return suppressGate(core.GateCooldownActive, "within cooldown_after_nudge_sec")
	}
	if sessionCapReached(tier, cfg, ctx) {
		return suppressGate(core.GateSessionCap, "per-session tier cap reached")
	}
	return nil
}

func hasDuplicateFriction(ctx GateContext) bool {
	if len(ctx.FrictionIDsAlreadyIntervened) == 0 {
		return false
	}
	for _, id := range ctx.CurrentFrictionIDs {
		if ctx.FrictionIDsAlreadyIntervened[id] {
			return true
		}
	}
	return false
}

func sessionCapReached(tier core.Tier, cfg core.GateConfig, ctx GateContext) bool {
	switch tier {
	case core.TierActive:
		if cfg.MaxActivePerSession > 0 && ctx.TotalActiveFired >= cfg.MaxActivePerSession {
			return true
		}
	case core.TierNudge:
		if cfg.MaxNudgePerSession > 0 && ctx.TotalNudgeFired >= cfg.MaxNudgePerSession {
			return true
		}
	}
	if tier != core.TierPassive && tier != core.TierMonitor {
		if cfg.MaxNonPassivePerSession > 0 && ctx.TotalNonPassive >= cfg.MaxNonPassivePerSession {
			return true
		}
	}
	return false
}

// evaluateForcePassiveGates covers rules 7-9: technical error, out of
// stock, shipping issue — each only applies when the resolved tier is
// already more severe than PASSIVE.
func evaluateForcePassiveGates(tier core.Tier, ctx GateContext) *GateOutcome {
	if tier.Rank() <= core.TierPassive.Rank() {
		return nil
	}
	if ctx.HasTechnicalError {
		return forcePassiveGate(core.GateForcePassiveTech, "technical error flag set")
	}
	if ctx.HasOutOfStock {
		return forcePassiveGate(core.GateForcePassiveOOS, "out of stock flag set")
	}
	if ctx.HasShippingIssue {
		return forcePassiveGate(core.GateForcePassiveShip, "shipping issue flag set")
	}
	return nil
}

// evaluateForceEscalateGates covers rules 10-12: payment failure, checkout
// timeout, help search — unconditional on tier.
func evaluateForceEscalateGates(ctx GateContext) *GateOutcome {
	if ctx.HasPaymentFailure {
		return forceEscalateGate(core.GateForceEscalatePay, "payment failure flag set")
	}
	if ctx.HasCheckoutTimeout {
		return forceEscalateGate(core.GateForceEscalateCOTO, "checkout timeout flag set")
	}
	if ctx.HasHelpSearch {
		return forceEscalateGate(core.GateForceEscalateHelp, "help search flag set")
	}
	return nil
}

func suppressGate(o core.GateOverride, reason string) *GateOutcome {
	return &GateOutcome{Override: &o, Action: core.ActionSuppress, Reason: reason}
}

func forcePassiveGate(o core.GateOverride, reason string) *GateOutcome {
	return &GateOutcome{Override: &o, Action: core.ActionForcePassive, Reason: reason}
}

func forceEscalateGate(o core.GateOverride, reason string) *GateOutcome {
	return &GateOutcome{Override: &o, Action: core.ActionForceEscalate, Reason: reason}
}

// applyGateOutcome applies an outcome (possibly nil) to a resolved tier and
// returns the final tier and decision, per §4.3's "After override" rules.
func applyGateOutcome(tier core.Tier, outcome *GateOutcome) (core.Tier, core.Decision) {
	if outcome == nil {
		if tier.Above(core.TierMonitor) {
			return tier, core.DecisionFire
		}
		return tier, core.DecisionSuppress
	}
	switch outcome.Action {
	case core.ActionSuppress:
		return tier, core.DecisionSuppress
	case core.ActionForcePassive:
		return core.TierPassive, core.DecisionFire
	case core.ActionForceEscalate:
		return core.TierEscalate, core.DecisionFire
	default:
		return tier, core.DecisionSuppress
	}
}

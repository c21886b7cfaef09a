package mswim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ava/internal/core"
)

func TestAdjustIntent_FunnelMonotonicity(t *testing.T) {
	base := 50
	landing := adjustIntent(base, IntentContext{PageType: core.PageLanding})
	checkout := adjustIntent(base, IntentContext{PageType: core.PageCheckout})
	assert.Less(t, landing, checkout, "checkout should score higher intent than landing")
}

func TestAdjustIntent_ClampsAtUpperBound(t *testing.T) {
	got := adjustIntent(100, IntentContext{
		PageType: core.PageCheckout, IsLoggedIn: true, IsRepeatVisitor: true, CartValue: 999, CartItemCount: 3,
	})
	assert.Equal(t, 100, got)
}

func TestAdjustFriction_UnknownIDDefaultsTo50(t *testing.T) {
	got := adjustFriction(0, []string{"F999999"})
	assert.Equal(t, 50, got)
}

func TestAdjustFriction_MultiFrictionBoostRisesWithCount(t *testing.T) {
	one := adjustFriction(0, []string{"F001"})
	many := adjustFriction(0, []string{"F001", "F002", "F003", "F004", "F005"})
	assert.Greater(t, many, one)
}

func TestAdjustClarity_YoungSessionPenalty(t *testing.T) {
	young := adjustClarity(50, ClarityContext{SessionAgeSec: 5, EventCount: 10})
	established := adjustClarity(50, ClarityContext{SessionAgeSec: 600, EventCount: 10})
	assert.Less(t, young, established)
}

func TestComputeReceptivity_DismissalsReduceScore(t *testing.T) {
	fresh := computeReceptivity(50, ReceptivityContext{})
	fatigued := computeReceptivity(50, ReceptivityContext{TotalDismissals: 3, TotalInterventionsFired: 4})
	assert.Less(t, fatigued, fresh)
}

func TestComputeValue_CartBracketsIncreaseBase(t *testing.T) {
	empty := computeValue(50, ValueContext{CartValue: 0})
	bigCart := computeValue(50, ValueContext{CartValue: 600})
	assert.Less(t, empty, bigCart)
}

func TestSignalsClampedToRange(t *testing.T) {
	for _, hint := range []int{-500, 0, 50, 100, 500} {
		s := core.MSWIMSignals{Intent: hint, Friction: hint, Clarity: hint, Receptivity: hint, Value: hint}
		s.Clamp()
		assert.GreaterOrEqual(t, s.Intent, 0)
		assert.LessOrEqual(t, s.Intent, 100)
	}
}

func TestTierThresholds_Resolve(t *testing.T) {
	thr := core.DefaultScoringConfig().Thresholds
	assert.Equal(t, core.TierMonitor, thr.Resolve(0))
	assert.Equal(t, core.TierPassive, thr.Resolve(29))
	assert.Equal(t, core.TierNudge, thr.Resolve(49))
	assert.Equal(t, core.TierActive, thr.Resolve(64))
	assert.Equal(t, core.TierEscalate, thr.Resolve(79))
	assert.Equal(t, core.TierEscalate, thr.Resolve(100))
}

func TestGateEngine_SessionTooYoungSuppressesUnlessEscalate(t *testing.T) {
	cfg := core.DefaultScoringConfig().Gate
	out := evaluateGates(core.TierNudge, cfg, GateContext{SessionAgeSec: 1})
	require.NotNil(t, out)
	assert.Equal(t, core.GateSessionTooYoung, *out.Override)
	assert.Equal(t, core.ActionSuppress, out.Action)

	// ESCALATE bypasses the young-session suppression.
	out = evaluateGates(core.TierEscalate, cfg, GateContext{SessionAgeSec: 1})
	assert.Nil(t, out)
}

func TestGateEngine_FirstMatchWins_DismissCapBeforeDuplicateFriction(t *testing.T) {
	cfg := core.DefaultScoringConfig().Gate
	out := evaluateGates(core.TierNudge, cfg, GateContext{
		SessionAgeSec:                1000,
		TotalDismissals:              cfg.DismissalsToSuppress,
		CurrentFrictionIDs:           []string{"F001"},
		FrictionIDsAlreadyIntervened: map[string]bool{"F001": true},
	})
	require.NotNil(t, out)
	assert.Equal(t, core.GateDismissCap, *out.Override, "dismiss cap is rule 2, duplicate friction is rule 3 — rule 2 must win")
}

func TestGateEngine_ForcePassiveTechnicalWinsOverForceEscalatePayment(t *testing.T) {
	cfg := core.DefaultScoringConfig().Gate
	out := evaluateGates(core.TierNudge, cfg, GateContext{
		SessionAgeSec:      1000,
		HasTechnicalError:  true,
		HasPaymentFailure:  true,
	})
	require.NotNil(t, out)
	assert.Equal(t, core.GateForcePassiveTech, *out.Override, "force-passive rules (7-9) are evaluated before force-escalate rules (10-12)")
}

func TestApplyGateOutcome_ForceEscalateSetsTierAndFires(t *testing.T) {
	tier, decision := applyGateOutcome(core.TierPassive, &GateOutcome{
		Override: overridePtr(core.GateForceEscalatePay), Action: core.ActionForceEscalate,
	})
	assert.Equal(t, core.TierEscalate, tier)
	assert.Equal(t, core.DecisionFire, decision)
}

func TestApplyGateOutcome_NoOverrideSuppressesMonitor(t *testing.T) {
	tier, decision := applyGateOutcome(core.TierMonitor, nil)
	assert.Equal(t, core.TierMonitor, tier)
	assert.Equal(t, core.DecisionSuppress, decision)
}

func TestEngine_Run_EndToEnd_NoOverride(t *testing.T) {
	e := NewEngine()
	cfg := core.DefaultScoringConfig()
	result := e.Run(core.GenerativeHint{Intent: 60, Friction: 10, Clarity: 50, Receptivity: 50, Value: 50}, SessionCtx{
		PageType:   core.PageCart,
		EventCount: 10,
		Gate:       GateContext{SessionAgeSec: 600},
	}, cfg)
	assert.GreaterOrEqual(t, result.CompositeScore, 0.0)
	assert.NotEmpty(t, result.Reasoning)
}

func TestEngine_Run_Deterministic(t *testing.T) {
	e := NewEngine()
	cfg := core.DefaultScoringConfig()
	hint := core.GenerativeHint{Intent: 40, Friction: 70, Clarity: 30, Receptivity: 55, Value: 45}
	ctx := SessionCtx{PageType: core.PagePDP, EventCount: 5, Gate: GateContext{SessionAgeSec: 120}}

	a := e.Run(hint, ctx, cfg)
	b := e.Run(hint, ctx, cfg)
	assert.Equal(t, a, b, "MSWIM engine must be pure and deterministic given identical inputs")
}

func overridePtr(o core.GateOverride) *core.GateOverride { return &o }

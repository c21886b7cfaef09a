package shadow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ava/internal/core"
	"ava/internal/mswim"
)

func TestSynthesize_CheckoutRaisesIntentOverLanding(t *testing.T) {
	landing := Synthesize(mswim.SessionCtx{PageType: core.PageLanding})
	checkout := Synthesize(mswim.SessionCtx{PageType: core.PageCheckout})
	assert.Greater(t, checkout.Intent, landing.Intent)
}

func TestSynthesize_FrictionDetectedRaisesFrictionHint(t *testing.T) {
	clean := Synthesize(mswim.SessionCtx{PageType: core.PagePDP})
	withFriction := Synthesize(mswim.SessionCtx{PageType: core.PagePDP, DetectedFrictionIDs: []string{"F013"}})
	assert.Greater(t, withFriction.Friction, clean.Friction)
	assert.Equal(t, []string{"F013"}, withFriction.Frictions)
}

func TestSynthesize_IsDeterministic(t *testing.T) {
	ctx := mswim.SessionCtx{PageType: core.PageCart, CartValue: 120, EventCount: 8, TotalDismissals: 1}
	a := Synthesize(ctx)
	b := Synthesize(ctx)
	assert.Equal(t, a, b)
}

func TestEvaluator_Compare_ProducesComparisonAgainstProd(t *testing.T) {
	engine := mswim.NewEngine()
	cfg := core.DefaultScoringConfig()
	ctx := mswim.SessionCtx{PageType: core.PageCheckout, SessionAgeSec: 60}

	prodHint := core.GenerativeHint{Intent: 70, Friction: 10, Clarity: 60, Receptivity: 60, Value: 50}
	prod := engine.Run(prodHint, ctx, cfg)

	ev := NewEvaluator(engine)
	cmp := ev.Compare("sc1", "sess1", "shop.example.com", "eval1", prod, ctx, cfg, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "sc1", cmp.ID)
	assert.Equal(t, prod.Tier, cmp.ProdTier)
	assert.GreaterOrEqual(t, cmp.CompositeDivergence, 0.0)
}

// Package shadow implements the shadow evaluator (§4.6): it generates
// synthetic hints deterministically from session context — no generative
// call — so the same MSWIM engine can run both the production and shadow
// paths and the divergence between them can feed drift detection (§4.13).
package shadow

import (
	"time"

	"ava/internal/core"
	"ava/internal/mswim"
)

// Synthesize deterministically derives a GenerativeHint from
// (sessionCtx, detectedFrictionIds, pageType, eventCount), mirroring
// §4.1's adjuster inputs so the shadow path exercises the same signal
// shape as the production path would without an actual generative call.
func Synthesize(ctx mswim.SessionCtx) core.GenerativeHint {
	intent := funnelBaseline[ctx.PageType]
	if ctx.IsLoggedIn {
		intent += 5
	}

	friction := 0
	if len(ctx.DetectedFrictionIDs) > 0 {
		friction = 40
	}

	clarity := 50
	if ctx.EventCount > 5 {
		clarity += 10
	}

	receptivity := 60 - ctx.TotalDismissals*8

	value := 30
	if ctx.CartValue > 0 {
		value = 55
	}

	return core.GenerativeHint{
		Intent:      clampHint(intent),
		Friction:    clampHint(friction),
		Clarity:     clampHint(clarity),
		Receptivity: clampHint(receptivity),
		Value:       clampHint(value),
		Narrative:   "synthetic shadow hint (no generative call)",
		Frictions:   ctx.DetectedFrictionIDs,
	}
}

var funnelBaseline = map[core.PageType]int{
	core.PageLanding:       20,
	core.PageCategory:      30,
	core.PageSearchResults: 35,
	core.PagePDP:           45,
	core.PageCart:          55,
	core.PageCheckout:      65,
	core.PageAccount:       25,
	core.PageOther:         20,
}

func clampHint(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Evaluator runs both the production and shadow paths through the same
// MSWIM engine and produces a ShadowComparison.
type Evaluator struct {
	engine *mswim.Engine
}

// NewEvaluator constructs a shadow evaluator over the given MSWIM engine.
func NewEvaluator(engine *mswim.Engine) *Evaluator {
	return &Evaluator{engine: engine}
}

// Compare runs the shadow path and builds a ShadowComparison against an
// already-computed production result.
func (e *Evaluator) Compare(id, sessionID, siteURL, evaluationID string, prod core.MSWIMResult, ctx mswim.SessionCtx, cfg core.ScoringConfig, now time.Time) core.ShadowComparison {
	hint := Synthesize(ctx)
	shadowResult := e.engine.Run(hint, ctx, cfg)
	return core.NewShadowComparison(id, sessionID, siteURL, evaluationID, prod, shadowResult, hint, now)
}

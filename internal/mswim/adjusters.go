// Package mswim implements the multi-signal weighted intervention model:
// per-signal adjusters, the composite/tier resolver, the ordered gate
// engine, and the engine entry point that ties them together (§4.1-4.4).
package mswim

import (
	"ava/internal/catalog"
	"ava/internal/core"
)

// funnelScore is a fixed lookup, monotonically increasing from landing to
// checkout, used by adjustIntent.
var funnelScore = map[core.PageType]int{
	core.PageLanding:       10,
	core.PageCategory:      30,
	core.PageSearchResults: 40,
	core.PagePDP:           55,
	core.PageCart:          70,
	core.PageCheckout:      85,
	core.PageAccount:       25,
	core.PageOther:         10,
}

// IntentContext is the narrow context adjustIntent consumes.
type IntentContext struct {
	PageType        core.PageType
	IsLoggedIn      bool
	IsRepeatVisitor bool
	CartValue       float64
	CartItemCount   int
}

// adjustIntent returns clamp(hint + funnelScore[pageType] + loginBonus +
// repeatBonus + cartBonus).
func adjustIntent(hint int, ctx IntentContext) int {
	score := hint + funnelScore[ctx.PageType]
	if ctx.IsLoggedIn {
		score += 5
	}
	if ctx.IsRepeatVisitor {
		score += 5
	}
	score += cartBonus(ctx.CartValue, ctx.CartItemCount)
	return clamp(score)
}

func cartBonus(cartValue float64, itemCount int) int {
	switch {
	case itemCount <= 0:
		return 0
	case cartValue >= 200:
		return 12
	case cartValue >= 75:
		return 8
	case cartValue > 0:
		return 4
	default:
		return 0
	}
}

// adjustFriction returns clamp(max(hint, maxCatalogSeverity(ids)) +
// multiFrictionBoost(count)).
func adjustFriction(hint int, detectedFrictionIDs []string) int {
	base := hint
	if s := catalog.MaxSeverity(detectedFrictionIDs); s > base {
		base = s
	}
	return clamp(base + catalog.MultiFrictionBoost(len(detectedFrictionIDs)))
}

// ClarityContext is the narrow context adjustClarity consumes.
type ClarityContext struct {
	SessionAgeSec          float64
	EventCount             int
	RuleBasedCorroboration bool
}

// adjustClarity applies the documented +10/-15/-10 adjustments.
func adjustClarity(hint int, ctx ClarityContext) int {
	score := hint
	if ctx.RuleBasedCorroboration {
		score += 10
	}
	if ctx.SessionAgeSec < 60 {
		score -= 15
	}
	if ctx.EventCount <= 2 {
		score -= 10
	}
	return clamp(score)
}

// ReceptivityContext is the narrow context computeReceptivity consumes.
type ReceptivityContext struct {
	TotalInterventionsFired     int
	TotalDismissals             int
	SecondsSinceLastIntervention float64
	IsMobile                    bool
	WidgetOpenedVoluntarily     bool
	IdleSeconds                 int
}

// computeReceptivity starts from a base of 80, is reduced by intervention
// count/dismissals and raised by a voluntary widget open; the hint is
// blended in at ~10% weight. Mobile imposes a modest penalty.
func computeReceptivity(hint int, ctx ReceptivityContext) int {
	base := 80
	base -= ctx.TotalInterventionsFired * 6
	base -= ctx.TotalDismissals * 10
	if ctx.WidgetOpenedVoluntarily {
		base += 15
	}
	if ctx.IsMobile {
		base -= 8
	}
	if ctx.IdleSeconds > 120 {
		base -= 5
	}
	blended := float64(base)*0.9 + float64(hint)*0.1
	return clamp(int(blended + 0.5))
}

// ValueContext is the narrow context computeValue consumes.
type ValueContext struct {
	CartValue       float64
	IsLoggedIn      bool
	IsRepeatVisitor bool
	ReferrerType    string
}

// computeValue derives a cart-bracketed base (20-95), adds login/repeat
// bonuses, and blends in the hint at ~20% weight.
func computeValue(hint int, ctx ValueContext) int {
	base := valueBase(ctx.CartValue)
	if ctx.IsLoggedIn {
		base += 5
	}
	if ctx.IsRepeatVisitor {
		base += 5
	}
	blended := float64(base)*0.8 + float64(hint)*0.2
	return clamp(int(blended + 0.5))
}

func valueBase(cartValue float64) int {
	switch {
	case cartValue >= 500:
		return 95
	case cartValue >= 200:
		return 80
	case cartValue >= 75:
		return 60
	case cartValue > 0:
		return 40
	default:
		return 20
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

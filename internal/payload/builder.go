// Package payload builds InterventionPayloads (§4.8): given a friction id,
// tier, and session context, it chooses an action code from a compile-time
// registry keyed by (tier, frictionId prefix) with a per-tier default, in
// the style of the teacher's catalog registry but fixed at compile time
// rather than API-registered.
package payload

import (
	"fmt"
	"strings"

	"ava/internal/core"
)

// actionRule is one (tier, frictionPrefix) -> actionCode registry entry.
type actionRule struct {
	tier   core.Tier
	prefix string
	code   string
}

// registry is the compile-time (tier, frictionId prefix) -> actionCode
// table. Prefix "" matches any frictionId and acts as that tier's default.
var registry = []actionRule{
	{core.TierPassive, "F01", "HIGHLIGHT_SHIPPING_INFO"},
	{core.TierPassive, "F02", "SHOW_SIZE_GUIDE"},
	{core.TierPassive, "", "SOFT_HIGHLIGHT"},

	{core.TierNudge, "F01", "OFFER_SHIPPING_THRESHOLD_NUDGE"},
	{core.TierNudge, "F02", "SHOW_FIT_COMPARISON"},
	{core.TierNudge, "F03", "SUGGEST_ALTERNATIVE_PRODUCT"},
	{core.TierNudge, "", "GENERIC_NUDGE"},

	{core.TierActive, "F01", "OFFER_DISCOUNT_CODE"},
	{core.TierActive, "F013", "RETRY_PAYMENT_ASSIST"},
	{core.TierActive, "", "ACTIVE_ASSIST_PROMPT"},

	{core.TierEscalate, "F013", "ESCALATE_PAYMENT_TO_AGENT"},
	{core.TierEscalate, "", "ESCALATE_TO_AGENT"},
}

// Context is the narrow session context the builder needs beyond
// (frictionId, tier).
type Context struct {
	SessionID    string
	EvaluationID string
	FrictionID   string
	PageType     core.PageType
	CartValue    float64
	SiteURL      string
}

// Build chooses an action code and assembles the full InterventionPayload
// for the given tier/context.
func Build(tier core.Tier, ctx Context) core.InterventionPayload {
	typ, ok := tierToType(tier)
	if !ok {
		// MONITOR/SUPPRESS never reach the payload builder; callers must
		// only invoke this on decision=fire.
		typ = core.InterventionPassive
	}

	code := resolveActionCode(tier, ctx.FrictionID)

	p := core.InterventionPayload{
		Type:       typ,
		ActionCode: code,
	}

	switch typ {
	case core.InterventionPassive:
		// Passive payloads never carry a message.
	case core.InterventionNudge:
		msg := messageFor(code, ctx)
		p.Message = &msg
		p.CTALabel = ptr("See details")
		p.CTAAction = ptr(strings.ToLower(code))
	case core.InterventionActive:
		msg := messageFor(code, ctx)
		p.Message = &msg
		p.CTALabel = ptr("Claim offer")
		p.CTAAction = ptr(strings.ToLower(code))
		p.UIAdjustment = map[string]interface{}{"highlight": ctx.FrictionID}
	case core.InterventionEscalate:
		msg := messageFor(code, ctx)
		p.Message = &msg
		p.CTALabel = ptr("Talk to a human")
		p.CTAAction = ptr("open_handoff")
		p.HandoffContext = map[string]interface{}{
			"session_id":    ctx.SessionID,
			"evaluation_id": ctx.EvaluationID,
			"friction_id":   ctx.FrictionID,
			"page_type":     string(ctx.PageType),
			"cart_value":    ctx.CartValue,
			"site_url":      ctx.SiteURL,
		}
	}

	return p
}

func tierToType(tier core.Tier) (core.InterventionType, bool) {
	switch tier {
	case core.TierPassive:
		return core.InterventionPassive, true
	case core.TierNudge:
		return core.InterventionNudge, true
	case core.TierActive:
		return core.InterventionActive, true
	case core.TierEscalate:
		return core.InterventionEscalate, true
	default:
		return "", false
	}
}

// resolveActionCode walks the registry for the longest matching prefix at
// this tier, falling back to that tier's "" default entry.
func resolveActionCode(tier core.Tier, frictionID string) string {
	best := ""
	bestLen := -1
	for _, r := range registry {
		if r.tier != tier {
			continue
		}
		if r.prefix == "" {
			if bestLen < 0 {
				best = r.code
				bestLen = 0
			}
			continue
		}
		if strings.HasPrefix(frictionID, r.prefix) && len(r.prefix) > bestLen {
			best = r.code
			bestLen = len(r.prefix)
		}
	}
	return best
}

func messageFor(code string, ctx Context) string {
	return fmt.Sprintf("%s for friction %s on %s", code, ctx.FrictionID, ctx.PageType)
}

func ptr(s string) *string { return &s }

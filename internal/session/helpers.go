package session

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"ava/internal/core"
	"ava/internal/generative"
	"ava/internal/mswim"
)

// detectedFrictionIDs collects the distinct friction ids carried by events,
// in first-seen order.
func detectedFrictionIDs(events []core.TrackEvent) []string {
	seen := make(map[string]bool)
	ids := make([]string, 0, len(events))
	for _, e := range events {
		if !e.HasFriction() || seen[e.FrictionID] {
			continue
		}
		seen[e.FrictionID] = true
		ids = append(ids, e.FrictionID)
	}
	return ids
}

// buildSessionCtx assembles the full narrow context the MSWIM engine needs
// from a session snapshot, its running counters, and this flush's events.
// pageType is the most recent buffered event's page, the session's current
// funnel position.
func buildSessionCtx(sess core.Session, counters core.SessionRunningCounters, frictionIDs []string, eventCount int, pageType core.PageType, now time.Time) mswim.SessionCtx {
	return mswim.SessionCtx{
		PageType:        pageType,
		IsLoggedIn:      sess.IsLoggedIn,
		IsRepeatVisitor: sess.IsRepeatVisitor,
		CartValue:       sess.CartValue,
		CartItemCount:   sess.CartItemCount,

		DetectedFrictionIDs: frictionIDs,

		SessionAgeSec:          sess.AgeSeconds(now),
		EventCount:             eventCount,
		RuleBasedCorroboration: len(frictionIDs) > 0,

		TotalInterventionsFired:      counters.TotalInterventionsFired,
		TotalDismissals:              counters.TotalDismissals,
		SecondsSinceLastIntervention: lastInterventionAgeSec(counters, now),
		IsMobile:                     sess.DeviceType == core.DeviceMobile,
		WidgetOpenedVoluntarily:      counters.WidgetOpenedVoluntarily,
		IdleSeconds:                  counters.IdleSeconds,

		ReferrerType: sess.ReferrerType,

		Gate: mswim.GateContext{
			SessionAgeSec:                sess.AgeSeconds(now),
			TotalDismissals:              counters.TotalDismissals,
			TotalActiveFired:             counters.TotalActive,
			TotalNudgeFired:              counters.TotalNudges,
			TotalNonPassive:              counters.TotalNonPassive,
			FrictionIDsAlreadyIntervened: counters.FrictionIDsAlreadyIntervened,
			SecondsSinceLastActive:       counters.SecondsSinceLastIntervention(core.InterventionActive, now),
			SecondsSinceLastNudge:        counters.SecondsSinceLastIntervention(core.InterventionNudge, now),
			HasTechnicalError:            counters.HasTechnicalError,
			HasOutOfStock:                counters.HasOutOfStock,
			HasShippingIssue:             counters.HasShippingIssue,
			HasPaymentFailure:            counters.HasPaymentFailure,
			HasCheckoutTimeout:           counters.HasCheckoutTimeout,
			HasHelpSearch:                counters.HasHelpSearch,
		},
	}
}

func lastInterventionAgeSec(c core.SessionRunningCounters, now time.Time) float64 {
	best := -1.0
	for typ := range c.LastInterventionAt {
		age := c.SecondsSinceLastIntervention(core.InterventionType(typ), now)
		if best < 0 || (age >= 0 && age < best) {
			best = age
		}
	}
	return best
}

func toPrompt(sess core.Session, ctx mswim.SessionCtx, events []core.TrackEvent) generative.Prompt {
	return generative.Prompt{
		SessionID:       sess.SessionID,
		SiteURL:         sess.SiteURL,
		PageType:        ctx.PageType,
		RecentEvents:    events,
		CartValue:       ctx.CartValue,
		IsLoggedIn:      ctx.IsLoggedIn,
		IsRepeatVisitor: ctx.IsRepeatVisitor,
	}
}

// latestPageType returns the most recent event's page type, or PageOther if
// there are no events.
func latestPageType(events []core.TrackEvent) core.PageType {
	if len(events) == 0 {
		return core.PageOther
	}
	return events[len(events)-1].PageType
}

func newID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

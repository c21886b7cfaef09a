package session

import (
	"strings"

	"ava/internal/catalog"
	"ava/internal/core"
)

// applyEventToCounters updates the session's forced-gate flags from a
// single ingested event, per §4.7's ingest step ("updating counters and
// flag set from the event (technical error, OOS, etc.)"). Flags are
// sticky: once set within a session they are never cleared by ingest.
func applyEventToCounters(c *core.SessionRunningCounters, e core.TrackEvent) {
	if e.EventType == "checkout_timeout" {
		c.HasCheckoutTimeout = true
	}

	if !e.HasFriction() {
		return
	}

	rawLabel, category, ok := catalog.Describe(e.FrictionID)
	if !ok {
		return
	}

	label := strings.ToLower(rawLabel)

	switch category {
	case catalog.CategoryTechnical:
		c.HasTechnicalError = true
	case catalog.CategoryPayment:
		c.HasPaymentFailure = true
	case catalog.CategorySupport:
		c.HasHelpSearch = true
	case catalog.CategoryShipping:
		if strings.Contains(label, "pushed back") || strings.Contains(label, "delay") {
			c.HasShippingIssue = true
		}
	}

	if strings.Contains(label, "out of stock") {
		c.HasOutOfStock = true
	}
	if strings.Contains(label, "help") || strings.Contains(label, "live chat") || strings.Contains(label, "contact us") {
		c.HasHelpSearch = true
	}
}

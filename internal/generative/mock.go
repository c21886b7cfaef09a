package generative

import (
	"context"
	"strings"

	"ava/internal/core"
)

// MockClient is a deterministic Client used in tests and local development,
// in the style of the teacher's MockLedgerClient.
type MockClient struct{}

// Complete derives a plausible hint from the prompt deterministically, with
// no network call.
func (m *MockClient) Complete(ctx context.Context, p Prompt) (core.GenerativeHint, error) {
	frictions := make([]string, 0)
	for _, e := range p.RecentEvents {
		if e.HasFriction() {
			frictions = append(frictions, e.FrictionID)
		}
	}

	intent := 40
	if p.PageType == core.PageCheckout || p.PageType == core.PageCart {
		intent = 65
	}

	return core.GenerativeHint{
		Intent:      intent,
		Friction:    30 + 5*len(frictions),
		Clarity:     55,
		Receptivity: 55,
		Value:       valueHintFor(p.CartValue),
		Narrative:   narrativeFor(p, frictions),
		Frictions:   frictions,
	}, nil
}

func valueHintFor(cartValue float64) int {
	switch {
	case cartValue >= 200:
		return 75
	case cartValue > 0:
		return 50
	default:
		return 30
	}
}

func narrativeFor(p Prompt, frictions []string) string {
	if len(frictions) == 0 {
		return "visitor browsing " + string(p.PageType) + " with no detected friction"
	}
	return "visitor on " + string(p.PageType) + " hit friction: " + strings.Join(frictions, ", ")
}

package core

import "time"

// InterventionType mirrors the MSWIM tier the intervention was fired at,
// minus MONITOR (which never fires).
type InterventionType string

const (
	InterventionPassive  InterventionType = "passive"
	InterventionNudge    InterventionType = "nudge"
	InterventionActive   InterventionType = "active"
	InterventionEscalate InterventionType = "escalate"
)

// Tier returns the MSWIM tier this intervention type mirrors. Unrecognized
// values map to TierMonitor, since MONITOR never fires an intervention.
func (t InterventionType) Tier() Tier {
	switch t {
	case InterventionPassive:
		return TierPassive
	case InterventionNudge:
		return TierNudge
	case InterventionActive:
		return TierActive
	case InterventionEscalate:
		return TierEscalate
	default:
		return TierMonitor
	}
}

// InterventionStatus is the intervention delivery/outcome state machine:
// sent -> delivered -> {dismissed|converted|ignored}. delivered may be
// skipped if a terminal outcome arrives first.
type InterventionStatus string

const (
	StatusSent      InterventionStatus = "sent"
	StatusDelivered InterventionStatus = "delivered"
	StatusDismissed InterventionStatus = "dismissed"
	StatusConverted InterventionStatus = "converted"
	StatusIgnored   InterventionStatus = "ignored"
)

// statusRank orders statuses so transitions can be checked for monotonicity.
// delivered sits below the terminal statuses but sent < delivered < terminal.
var statusRank = map[InterventionStatus]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusDismissed: 2,
	StatusConverted: 2,
	StatusIgnored:   2,
}

// IsTerminal reports whether s is one of the outcome-terminal statuses.
func (s InterventionStatus) IsTerminal() bool {
	return s == StatusDismissed || s == StatusConverted || s == StatusIgnored
}

// ValidTransition reports whether moving from 'from' to 'to' is a legal,
// monotonic status transition. Equal statuses are rejected (not a
// transition); terminal statuses never transition further.
func ValidTransition(from, to InterventionStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if from == to {
		return false
	}
	return statusRank[to] > statusRank[from] || (from == StatusSent && to.IsTerminal())
}

// InterventionPayload is the structured body returned by the payload
// builder (§4.8); which optional fields are populated depends on tier.
type InterventionPayload struct {
	Type       InterventionType `json:"type"`
	ActionCode string           `json:"action_code"`
	Message    *string          `json:"message,omitempty"`

	UIAdjustment map[string]interface{} `json:"ui_adjustment,omitempty"`
	Products     []string               `json:"products,omitempty"`
	Comparison   map[string]interface{} `json:"comparison,omitempty"`

	CTALabel  *string `json:"cta_label,omitempty"`
	CTAAction *string `json:"cta_action,omitempty"`

	// HandoffContext is populated only for escalate payloads: a snapshot of
	// session/evaluation context for a human agent handoff.
	HandoffContext map[string]interface{} `json:"handoff_context,omitempty"`
}

// Intervention is one fired (or about-to-fire) nudge/active/escalate/passive
// action against a session.
type Intervention struct {
	ID           string           `json:"id"`
	SessionID    string           `json:"session_id"`
	EvaluationID string           `json:"evaluation_id"`
	Type         InterventionType `json:"type"`
	FrictionID   string           `json:"friction_id,omitempty"`
	ActionCode   string           `json:"action_code"`
	Message      *string          `json:"message,omitempty"`
	MSWIMScore   float64          `json:"mswim_score"`
	TierAtFire   Tier             `json:"tier_at_fire"`
	Payload      InterventionPayload `json:"payload"`

	CreatedAt        time.Time          `json:"created_at"`
	Status           InterventionStatus `json:"status"`
	ConversionAction *string            `json:"conversion_action,omitempty"`
	StatusUpdatedAt  time.Time          `json:"status_updated_at"`
}

// OutcomeMessage is the inbound payload for an intervention outcome event,
// per spec §6's widget-channel `intervention_outcome` frame.
type OutcomeMessage struct {
	InterventionID   string             `json:"intervention_id"`
	SessionID        string             `json:"session_id"`
	Status           InterventionStatus `json:"status"`
	ConversionAction *string            `json:"conversion_action,omitempty"`
	Timestamp        time.Time          `json:"timestamp"`
}

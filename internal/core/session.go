package core

import "time"

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionIdle   SessionStatus = "idle"
	SessionEnded  SessionStatus = "ended"
)

// SessionRunningCounters is an updatable materialized view of a session's
// event and intervention history. It is the sole state the gate engine
// consumes about a session's past.
type SessionRunningCounters struct {
	TotalInterventionsFired int `json:"total_interventions_fired"`
	TotalDismissals         int `json:"total_dismissals"`
	TotalNudges             int `json:"total_nudges"`
	TotalActive             int `json:"total_active"`
	TotalNonPassive         int `json:"total_non_passive"`
	TotalConversions        int `json:"total_conversions"`

	// LastInterventionAt tracks the most recent fire timestamp per
	// intervention type, keyed by the InterventionType string value.
	LastInterventionAt map[string]time.Time `json:"last_intervention_at,omitempty"`

	FrictionIDsAlreadyIntervened map[string]bool `json:"friction_ids_already_intervened,omitempty"`

	WidgetOpenedVoluntarily bool `json:"widget_opened_voluntarily"`
	IdleSeconds             int  `json:"idle_seconds"`

	HasTechnicalError  bool `json:"has_technical_error"`
	HasOutOfStock      bool `json:"has_out_of_stock"`
	HasShippingIssue   bool `json:"has_shipping_issue"`
	HasPaymentFailure  bool `json:"has_payment_failure"`
	HasCheckoutTimeout bool `json:"has_checkout_timeout"`
	HasHelpSearch      bool `json:"has_help_search"`
}

// NewSessionRunningCounters returns a zero-valued counters struct with its
// maps initialized, ready for mutation.
func NewSessionRunningCounters() SessionRunningCounters {
	return SessionRunningCounters{
		LastInterventionAt:           make(map[string]time.Time),
		FrictionIDsAlreadyIntervened: make(map[string]bool),
	}
}

// SecondsSinceLastIntervention returns the elapsed seconds since the given
// intervention type last fired, or -1 if it never has.
func (c SessionRunningCounters) SecondsSinceLastIntervention(typ InterventionType, now time.Time) float64 {
	t, ok := c.LastInterventionAt[string(typ)]
	if !ok {
		return -1
	}
	return now.Sub(t).Seconds()
}

// Session is a single visitor's browsing session as tracked by AVA.
type Session struct {
	SessionID string `json:"session_id"`
	VisitorKey string `json:"visitor_key"`
	SessionKey string `json:"session_key"`

	SiteURL    string        `json:"site_url"`
	StartedAt  time.Time     `json:"started_at"`
	LastSeenAt time.Time     `json:"last_seen_at"`
	Status     SessionStatus `json:"status"`

	DeviceType   DeviceType `json:"device_type"`
	ReferrerType string     `json:"referrer_type"`

	IsLoggedIn      bool `json:"is_logged_in"`
	IsRepeatVisitor bool `json:"is_repeat_visitor"`

	CartValue     float64 `json:"cart_value"`
	CartItemCount int     `json:"cart_item_count"`

	RunningCounters SessionRunningCounters `json:"running_counters"`
}

// AgeSeconds returns the session's age at the given instant.
func (s Session) AgeSeconds(now time.Time) float64 {
	return now.Sub(s.StartedAt).Seconds()
}

// IsActive reports whether the session should be considered active at now,
// per the invariant status=active iff (now - lastSeenAt) < idleThreshold.
func (s Session) IsActive(now time.Time, idleThreshold time.Duration) bool {
	return now.Sub(s.LastSeenAt) < idleThreshold
}

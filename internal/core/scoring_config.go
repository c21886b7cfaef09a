package core

import "time"

// TierThresholds are the four strictly-increasing composite-score lower
// bounds for PASSIVE/NUDGE/ACTIVE/ESCALATE (MONITOR's lower bound is
// implicitly 0).
type TierThresholds struct {
	Monitor int `json:"monitor" yaml:"monitor"`
	Passive int `json:"passive" yaml:"passive"`
	Nudge   int `json:"nudge" yaml:"nudge"`
	Active  int `json:"active" yaml:"active"`
}

// Monotonic reports whether the thresholds are strictly increasing, per the
// ScoringConfig invariant.
func (t TierThresholds) Monotonic() bool {
	return t.Monitor < t.Passive && t.Passive < t.Nudge && t.Nudge < t.Active
}

// Resolve returns the tier whose lower bound is the greatest one not
// exceeding composite.
func (t TierThresholds) Resolve(composite float64) Tier {
	switch {
	case composite >= float64(t.Active):
		return TierEscalate
	case composite >= float64(t.Nudge):
		return TierActive
	case composite >= float64(t.Passive):
		return TierNudge
	case composite >= float64(t.Monitor):
		return TierPassive
	default:
		return TierMonitor
	}
}

// GateConfig carries the gate engine's session caps, cooldowns and
// suppression thresholds.
type GateConfig struct {
	MinSessionAgeSec      int `json:"min_session_age_sec" yaml:"min_session_age_sec"`
	DismissalsToSuppress  int `json:"dismissals_to_suppress" yaml:"dismissals_to_suppress"`
	CooldownAfterActiveSec int `json:"cooldown_after_active_sec" yaml:"cooldown_after_active_sec"`
	CooldownAfterNudgeSec  int `json:"cooldown_after_nudge_sec" yaml:"cooldown_after_nudge_sec"`

	MaxActivePerSession     int `json:"max_active_per_session" yaml:"max_active_per_session"`
	MaxNudgePerSession      int `json:"max_nudge_per_session" yaml:"max_nudge_per_session"`
	MaxNonPassivePerSession int `json:"max_non_passive_per_session" yaml:"max_non_passive_per_session"`
}

// ScoringConfig is a versioned, keyed bundle of MSWIM weights, tier
// thresholds and gate configuration. At most one config per siteUrl may
// have IsActive=true (plus at most one global one where SiteURL == "").
type ScoringConfig struct {
	ID       string  `json:"id"`
	SiteURL  string  `json:"site_url,omitempty"`
	Weights  SignalWeights  `json:"weights"`
	Thresholds TierThresholds `json:"thresholds"`
	Gate     GateConfig     `json:"gate"`
	IsActive bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultScoringConfig returns the built-in fallback config used when no
// persisted config is resolvable, per spec §6 configuration defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		ID: "builtin-default",
		Weights: SignalWeights{
			Intent:      0.25,
			Friction:    0.25,
			Clarity:     0.15,
			Receptivity: 0.20,
			Value:       0.15,
		},
		Thresholds: TierThresholds{
			Monitor: 29,
			Passive: 49,
			Nudge:   64,
			Active:  79,
		},
		Gate: GateConfig{
			MinSessionAgeSec:        10,
			DismissalsToSuppress:    3,
			CooldownAfterActiveSec:  300,
			CooldownAfterNudgeSec:   120,
			MaxActivePerSession:     2,
			MaxNudgePerSession:      4,
			MaxNonPassivePerSession: 6,
		},
		IsActive: true,
	}
}

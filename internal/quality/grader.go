// Package quality grades assembled TrainingDatapoints (§4.10): a pure
// function of (datapoint, thresholds) that never touches a repository or
// clock, so it is trivially unit-testable and safe to run inline on the
// outcome-recording path or in bulk during the nightly job.
package quality

import (
	"fmt"
	"math"

	"ava/internal/core"
)

// checkName constants name the fixed list of checks assess runs. The three
// critical ones gate the grade ladder entirely on failure.
const (
	checkValidOutcome    = "valid_outcome"
	checkEventCount      = "min_event_count"
	checkNarrativeLen    = "narrative_length"
	checkScoresValid     = "scores_valid"
	checkClarityFloor    = "clarity_floor"
	checkCompositeFloor  = "composite_floor"
	checkSessionAgeBand  = "session_age_band"
	checkOutcomeDelay    = "outcome_delay_bound"
	checkFrictionPresent = "friction_present"
)

// Assess grades dp against thresholds, returning the weighted composite
// score, the coarse grade, and every individual check performed.
func Assess(dp core.TrainingDatapoint, thresholds core.QualityThresholds) core.QualityAssessment {
	checks := runChecks(dp, thresholds)

	if hardReject(checks) {
		return core.QualityAssessment{Grade: core.GradeRejected, Score: 0, Checks: checks}
	}

	score := compositeScore(dp, thresholds)
	return core.QualityAssessment{
		Grade:  gradeFor(score, thresholds),
		Score:  score,
		Checks: checks,
	}
}

// hardReject reports whether any critical check failed, bypassing the
// grade ladder per §4.10.
func hardReject(checks []core.QualityCheck) bool {
	for _, c := range checks {
		if c.Critical && !c.Passed {
			return true
		}
	}
	return false
}

func runChecks(dp core.TrainingDatapoint, t core.QualityThresholds) []core.QualityCheck {
	validOutcome := dp.Outcome.IsTerminal()
	eventCount := len(dp.EventsSnapshot)
	eventCountOK := eventCount >= t.MinEventCount && eventCount <= t.MaxEventCount
	scoresValid := signalsValid(dp.Signals) && !math.IsNaN(dp.CompositeScore) && !math.IsInf(dp.CompositeScore, 0)
	sessionAge := dp.SessionContextSnapshot.AgeSeconds(dp.CreatedAt)
	ageOK := sessionAge >= float64(t.MinSessionAgeSec) && sessionAge <= float64(t.MaxSessionAgeSec)

	return []core.QualityCheck{
		{Name: checkValidOutcome, Critical: true, Passed: validOutcome, Detail: fmt.Sprintf("outcome=%s", dp.Outcome)},
		{Name: checkEventCount, Critical: true, Passed: eventCountOK, Detail: fmt.Sprintf("count=%d", eventCount)},
		{Name: checkScoresValid, Critical: true, Passed: scoresValid},
		{Name: checkNarrativeLen, Passed: len(dp.Narrative) >= t.MinNarrativeLen, Detail: fmt.Sprintf("len=%d", len(dp.Narrative))},
		{Name: checkClarityFloor, Passed: dp.Signals.Clarity >= t.ClarityFloor, Detail: fmt.Sprintf("clarity=%d", dp.Signals.Clarity)},
		{Name: checkCompositeFloor, Passed: dp.CompositeScore >= t.CompositeFloor, Detail: fmt.Sprintf("composite=%.1f", dp.CompositeScore)},
		{Name: checkSessionAgeBand, Passed: ageOK, Detail: fmt.Sprintf("age_sec=%.0f", sessionAge)},
		{Name: checkOutcomeDelay, Passed: dp.OutcomeDelayMs >= 0 && dp.OutcomeDelayMs <= t.MaxOutcomeDelayMs, Detail: fmt.Sprintf("delay_ms=%d", dp.OutcomeDelayMs)},
		{Name: checkFrictionPresent, Passed: dp.FrictionID != "" || len(dp.DetectedFrictions) > 0},
	}
}

func signalsValid(s core.MSWIMSignals) bool {
	for _, v := range []int{s.Intent, s.Friction, s.Clarity, s.Receptivity, s.Value} {
		if v < 0 || v > 100 {
			return false
		}
	}
	return true
}

// compositeScore blends four sub-scores, each 0-100, weighted evenly.
func compositeScore(dp core.TrainingDatapoint, t core.QualityThresholds) float64 {
	completeness := dataCompleteness(dp, t)
	confidence := signalConfidence(dp)
	reliability := outcomeReliability(dp, t)
	richness := contextRichness(dp, t)
	return 0.25*completeness + 0.25*confidence + 0.25*reliability + 0.25*richness
}

// dataCompleteness rewards a fuller raw-events snapshot and a non-empty
// narrative; starts at 100 and loses points for thinness.
func dataCompleteness(dp core.TrainingDatapoint, t core.QualityThresholds) float64 {
	score := 100.0
	eventCount := len(dp.EventsSnapshot)
	if eventCount < t.MinEventCount*3 {
		score -= 25
	}
	if len(dp.Narrative) < t.MinNarrativeLen*2 {
		score -= 15
	}
	if len(dp.DetectedFrictions) == 0 {
		score -= 10
	}
	return clamp0100(score)
}

// signalConfidence penalizes weak/degenerate signal combinations — the
// model had little to work with if both intent and friction read low.
func signalConfidence(dp core.TrainingDatapoint) float64 {
	score := 100.0
	s := dp.Signals
	if s.Intent < 15 && s.Friction < 15 {
		score -= 20
	}
	if s.Clarity < 20 {
		score -= 15
	}
	if s.Receptivity < 10 {
		score -= 10
	}
	return clamp0100(score)
}

// outcomeReliability penalizes outcomes that arrived implausibly fast or
// implausibly slow, and sessions too young to trust.
func outcomeReliability(dp core.TrainingDatapoint, t core.QualityThresholds) float64 {
	score := 100.0
	sessionAge := dp.SessionContextSnapshot.AgeSeconds(dp.CreatedAt)
	if sessionAge < 10 {
		score -= 30
	}
	if dp.OutcomeDelayMs < 500 {
		score -= 20
	}
	if dp.OutcomeDelayMs > t.MaxOutcomeDelayMs {
		score -= 30
	}
	return clamp0100(score)
}

// contextRichness rewards a cart value/page-type/device profile that gives
// the downstream model something to condition on.
func contextRichness(dp core.TrainingDatapoint, t core.QualityThresholds) float64 {
	score := 60.0
	sess := dp.SessionContextSnapshot
	if sess.CartValue > 0 {
		score += 15
	}
	if sess.DeviceType != "" {
		score += 10
	}
	if sess.IsLoggedIn || sess.IsRepeatVisitor {
		score += 10
	}
	if len(dp.EventsSnapshot) >= t.MinEventCount*5 {
		score += 5
	}
	return clamp0100(score)
}

func clamp0100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func gradeFor(score float64, t core.QualityThresholds) core.QualityGrade {
	switch {
	case score >= t.HighGrade:
		return core.GradeHigh
	case score >= t.MediumGrade:
		return core.GradeMedium
	case score >= t.LowGrade:
		return core.GradeLow
	default:
		return core.GradeRejected
	}
}

package quality

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ava/internal/core"
)

func richDatapoint(now time.Time) core.TrainingDatapoint {
	events := make([]core.TrackEvent, 20)
	return core.TrainingDatapoint{
		Outcome:   core.StatusConverted,
		CreatedAt: now,
		SessionContextSnapshot: core.Session{
			StartedAt:  now.Add(-300 * time.Second),
			CartValue:  150,
			DeviceType: core.DeviceDesktop,
			IsLoggedIn: true,
		},
		EventsSnapshot:    events,
		Narrative:         "shopper abandoned cart after price shock and browsed competitor pricing pages",
		DetectedFrictions: []string{"F013"},
		Signals:           core.MSWIMSignals{Intent: 80, Friction: 70, Clarity: 60, Receptivity: 50, Value: 65},
		CompositeScore:    72.0,
		OutcomeDelayMs:    60_000,
		FrictionID:        "F013",
	}
}

func TestAssess_RichDatapointGradesHigh(t *testing.T) {
	now := time.Now()
	thresholds := core.DefaultQualityThresholds()
	result := Assess(richDatapoint(now), thresholds)

	assert.Equal(t, core.GradeHigh, result.Grade)
	assert.InDelta(t, 100.0, result.Score, 0.01)
	for _, c := range result.Checks {
		assert.True(t, c.Passed, "check %s expected to pass on a rich datapoint", c.Name)
	}
}

func thinDatapoint(now time.Time) core.TrainingDatapoint {
	events := make([]core.TrackEvent, 3)
	return core.TrainingDatapoint{
		Outcome:   core.StatusDismissed,
		CreatedAt: now,
		SessionContextSnapshot: core.Session{
			StartedAt: now.Add(-5 * time.Second), // younger than MinSessionAgeSec
		},
		EventsSnapshot: events,
		Narrative:      "meh",
		Signals:        core.MSWIMSignals{Intent: 10, Friction: 10, Clarity: 15, Receptivity: 5, Value: 20},
		CompositeScore: 5.0,
		OutcomeDelayMs: 200,
	}
}

func TestAssess_ThinDatapointGradesMediumNotRejected(t *testing.T) {
	now := time.Now()
	thresholds := core.DefaultQualityThresholds()
	result := Assess(thinDatapoint(now), thresholds)

	// Hand-derived: completeness=50, confidence=55, reliability=50, richness=60
	// -> composite = 0.25*(50+55+50+60) = 53.75, which lands in the medium band.
	require.NotEqual(t, core.GradeRejected, result.Grade, "no critical check fails on the thin datapoint")
	assert.Equal(t, core.GradeMedium, result.Grade)
	assert.InDelta(t, 53.75, result.Score, 0.01)

	checksByName := map[string]core.QualityCheck{}
	for _, c := range result.Checks {
		checksByName[c.Name] = c
	}
	assert.False(t, checksByName[checkSessionAgeBand].Passed)
	assert.False(t, checksByName[checkNarrativeLen].Passed)
	assert.False(t, checksByName[checkFrictionPresent].Passed)
	assert.True(t, checksByName[checkValidOutcome].Passed)
}

func TestAssess_NonTerminalOutcomeHardRejects(t *testing.T) {
	now := time.Now()
	dp := richDatapoint(now)
	dp.Outcome = core.StatusSent

	result := Assess(dp, core.DefaultQualityThresholds())

	assert.Equal(t, core.GradeRejected, result.Grade)
	assert.Equal(t, 0.0, result.Score)
}

func TestAssess_TooFewEventsHardRejects(t *testing.T) {
	now := time.Now()
	dp := richDatapoint(now)
	dp.EventsSnapshot = dp.EventsSnapshot[:1] // below MinEventCount

	result := Assess(dp, core.DefaultQualityThresholds())

	assert.Equal(t, core.GradeRejected, result.Grade)
}

func TestAssess_NaNCompositeHardRejects(t *testing.T) {
	now := time.Now()
	dp := richDatapoint(now)
	dp.CompositeScore = math.NaN()

	result := Assess(dp, core.DefaultQualityThresholds())

	assert.Equal(t, core.GradeRejected, result.Grade)
}

func TestAssess_OutOfRangeSignalHardRejects(t *testing.T) {
	now := time.Now()
	dp := richDatapoint(now)
	dp.Signals.Intent = 150

	result := Assess(dp, core.DefaultQualityThresholds())

	assert.Equal(t, core.GradeRejected, result.Grade)
}

func TestAssess_GradeLadderBoundaries(t *testing.T) {
	thresholds := core.DefaultQualityThresholds()
	assert.Equal(t, core.GradeHigh, gradeFor(75, thresholds))
	assert.Equal(t, core.GradeMedium, gradeFor(74.99, thresholds))
	assert.Equal(t, core.GradeMedium, gradeFor(50, thresholds))
	assert.Equal(t, core.GradeLow, gradeFor(49.99, thresholds))
	assert.Equal(t, core.GradeLow, gradeFor(25, thresholds))
	assert.Equal(t, core.GradeRejected, gradeFor(24.99, thresholds))
}

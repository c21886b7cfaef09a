package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ava/internal/core"
)

func twoVariants() []core.Variant {
	return []core.Variant{
		{ID: "control", Weight: 0.5},
		{ID: "treatment", Weight: 0.5},
	}
}

func TestAssign_IsDeterministicAcrossCalls(t *testing.T) {
	variants := twoVariants()
	a1 := Assign("sess-123", "exp-1", variants, 50)
	a2 := Assign("sess-123", "exp-1", variants, 50)

	assert.Equal(t, a1.Enrolled, a2.Enrolled)
	if a1.VariantID == nil {
		assert.Nil(t, a2.VariantID)
	} else {
		assert.Equal(t, *a1.VariantID, *a2.VariantID)
	}
}

func TestAssign_ZeroTrafficPercentNeverEnrolls(t *testing.T) {
	variants := twoVariants()
	for _, sid := range []string{"s1", "s2", "s3", "abc-def-ghi"} {
		result := Assign(sid, "exp-1", variants, 0)
		assert.False(t, result.Enrolled, "session %s must never enroll at 0%% traffic", sid)
	}
}

func TestAssign_FullTrafficPercentAlwaysEnrolls(t *testing.T) {
	variants := twoVariants()
	for _, sid := range []string{"s1", "s2", "s3", "abc-def-ghi"} {
		result := Assign(sid, "exp-1", variants, 100)
		assert.True(t, result.Enrolled, "session %s must always enroll at 100%% traffic", sid)
		assertNotNil(t, result.VariantID)
	}
}

func assertNotNil(t *testing.T, v *string) {
	t.Helper()
	assert.NotNil(t, v)
}

func TestAssign_EnrolledAssignmentIsAlwaysOneOfTheGivenVariants(t *testing.T) {
	variants := twoVariants()
	validIDs := map[string]bool{"control": true, "treatment": true}
	for i := 0; i < 50; i++ {
		sid := "session-" + string(rune('a'+i%26)) + string(rune('0'+i%10))
		result := Assign(sid, "exp-1", variants, 100)
		if result.Enrolled {
			assertNotNil(t, result.VariantID)
			assert.True(t, validIDs[*result.VariantID], "variant id %q must be one of the configured variants", *result.VariantID)
		}
	}
}

func TestAssign_DifferentExperimentIDsCanDivergeForSameSession(t *testing.T) {
	variants := twoVariants()
	a := Assign("sess-1", "exp-a", variants, 100)
	b := Assign("sess-1", "exp-b", variants, 100)

	// Both are deterministically enrolled (100% traffic), but the
	// variant-bucket hash input differs by experiment id, so there is no
	// requirement that they land in the same variant.
	assert.True(t, a.Enrolled)
	assert.True(t, b.Enrolled)
}

func TestAssign_NoVariantsYieldsNotEnrolledEvenAtFullTraffic(t *testing.T) {
	result := Assign("sess-1", "exp-1", nil, 100)
	assert.False(t, result.Enrolled)
	assert.Nil(t, result.VariantID)
}

func TestAssign_SingleVariantAtFullWeightAlwaysAssignsIt(t *testing.T) {
	variants := []core.Variant{{ID: "only", Weight: 1.0}}
	for _, sid := range []string{"s1", "s2", "s3"} {
		result := Assign(sid, "exp-1", variants, 100)
		assert.True(t, result.Enrolled)
		assertNotNil(t, result.VariantID)
		assert.Equal(t, "only", *result.VariantID)
	}
}

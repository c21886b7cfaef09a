package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalog_HasAtLeast325Entries(t *testing.T) {
	assert.GreaterOrEqual(t, Count(), 325)
}

func TestSeverity_UnknownIDReturnsDefault(t *testing.T) {
	assert.Equal(t, DefaultSeverity, Severity("F999999"))
}

func TestSeverity_CuratedEntryReturnsItsSeverity(t *testing.T) {
	assert.Equal(t, 92, Severity("F013"))
}

func TestDescribe_UnknownIDNotOK(t *testing.T) {
	_, _, ok := Describe("F999999")
	assert.False(t, ok)
}

func TestMultiFrictionBoost_Monotonic(t *testing.T) {
	prev := -1
	for n := 0; n <= 6; n++ {
		b := MultiFrictionBoost(n)
		assert.GreaterOrEqual(t, b, prev)
		assert.LessOrEqual(t, b, 20)
		prev = b
	}
}

func TestMaxSeverity_EmptyIsZero(t *testing.T) {
	assert.Equal(t, 0, MaxSeverity(nil))
}

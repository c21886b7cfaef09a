// Package variant implements deterministic experiment enrollment and
// variant-bucket assignment (§4.11), and the session.VariantResolver
// adapter that lets the session evaluator honor a site's active rollout.
package variant

import (
	"crypto/sha256"
	"encoding/binary"

	"ava/internal/core"
)

// bucketSpace is the modulus both enrollment and variant buckets are drawn
// from; trafficPercent/weights are expressed against it as integer
// permille-like fractions (×100 for a percent, ×10000 for a 0..1 weight).
const bucketSpace = 10000

// Assign deterministically enrolls sessionID into experimentID's traffic
// and, if enrolled, picks one of variants by cumulative weight. It is a
// pure function of its inputs: the same (sessionID, experimentID, variants,
// trafficPercent) always produces the same result, in any process, with no
// shared state — the SHA-256 digest of "experimentId:sessionId" is the only
// source of randomness, and it is stable by construction.
func Assign(sessionID, experimentID string, variants []core.Variant, trafficPercent int) core.VariantAssignment {
	digest := sha256.Sum256([]byte(experimentID + ":" + sessionID))

	enrollmentBucket := binary.BigEndian.Uint32(digest[0:4]) % bucketSpace
	if int(enrollmentBucket) >= trafficPercent*100 {
		return core.VariantAssignment{Enrolled: false}
	}

	variantBucket := binary.BigEndian.Uint32(digest[4:8]) % bucketSpace

	cumulative := uint32(0)
	for _, v := range variants {
		cumulative += uint32(v.Weight * bucketSpace)
		if variantBucket < cumulative {
			id := v.ID
			return core.VariantAssignment{Enrolled: true, VariantID: &id}
		}
	}

	// Weights not summing to exactly 1.0 (core.SignalWeights.Sum()'s sibling
	// looseness applies to variant weights too) can leave a residual bucket
	// range past the last cumulative boundary; fall back to the last
	// variant rather than leaving the session unassigned.
	if len(variants) > 0 {
		id := variants[len(variants)-1].ID
		return core.VariantAssignment{Enrolled: true, VariantID: &id}
	}
	return core.VariantAssignment{Enrolled: false}
}

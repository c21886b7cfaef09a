package mswim

import "ava/internal/core"

// composite computes the weighted sum of the five signals.
func composite(signals core.MSWIMSignals, weights core.SignalWeights) float64 {
	return weights.Intent*float64(signals.Intent) +
		weights.Friction*float64(signals.Friction) +
		weights.Clarity*float64(signals.Clarity) +
		weights.Receptivity*float64(signals.Receptivity) +
		weights.Value*float64(signals.Value)
}

// resolveTier picks the highest tier whose lower bound is <= composite;
// every threshold is inclusive, so a composite exactly at a threshold takes
// the higher tier.
func resolveTier(compositeScore float64, thresholds core.TierThresholds) core.Tier {
	return thresholds.Resolve(compositeScore)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gate decides whether key result entry is unlocked for an objective.
package gate

import "math"

// KeyResultThreshold is the minimum objective score that unlocks key results.
// It is policy, not configuration.
const KeyResultThreshold = 7.5

// CanAddKeyResults reports whether key results may be entered for an
// objective with the given score. An unknown (nil or NaN) score fails closed.
func CanAddKeyResults(score *float64) bool {
	if score == nil || math.IsNaN(*score) {
		return false
	}
	return *score >= KeyResultThreshold
}

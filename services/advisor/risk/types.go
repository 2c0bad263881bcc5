// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package risk

import (
	"errors"
	"fmt"
	"strings"
)

// AlgorithmVersion is the version of the aggregation algorithm.
// Increment when making changes that affect how tiers are combined.
const AlgorithmVersion = "1.0"

// APIVersion is the JSON output API version.
const APIVersion = "1.0"

// Exit codes for the evaluate command.
const (
	ExitSuccess   = 0 // Tier at or below threshold
	ExitRiskFound = 1 // Tier above threshold
	ExitError     = 2 // Load, validation, or inference failure
)

// ErrUnknownTier indicates a tier name outside none, low, medium, high.
var ErrUnknownTier = errors.New("unknown risk tier")

// Tier is an ordered risk classification.
type Tier string

const (
	TierNone   Tier = "none"
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Tiers lists every tier in ascending order.
var Tiers = []Tier{TierNone, TierLow, TierMedium, TierHigh}

var tierOrder = map[Tier]int{
	TierNone:   0,
	TierLow:    1,
	TierMedium: 2,
	TierHigh:   3,
}

// Recommendations maps each tier to the guidance shown alongside a verdict.
var Recommendations = map[Tier]string{
	TierNone:   "No risk indicators found. Proceed under standard practice.",
	TierLow:    "Low risk. Proceed and apply the listed safeguards.",
	TierMedium: "Moderate risk. Apply all safeguards and notify the governance team before launch.",
	TierHigh:   "High risk. Do not launch until a human expert has reviewed this use case.",
}

// ParseTier parses a case-insensitive tier name.
//
// # Outputs
//
//   - Tier: The parsed tier.
//   - error: Wraps ErrUnknownTier when s is not a tier name.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tierOrder[t]; !ok {
		return TierNone, fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
	return t, nil
}

// Valid reports whether t is one of the four tiers.
func (t Tier) Valid() bool {
	_, ok := tierOrder[t]
	return ok
}

// Order returns the numeric rank of t. Unknown tiers rank as none.
func (t Tier) Order() int {
	return tierOrder[t]
}

// Exceeds returns true if t ranks strictly above threshold.
func (t Tier) Exceeds(threshold Tier) bool {
	return t.Order() > threshold.Order()
}

// MaxTier returns the higher of a and b.
func MaxTier(a, b Tier) Tier {
	if b.Order() > a.Order() {
		return b
	}
	return a
}

// String implements fmt.Stringer.
func (t Tier) String() string {
	return string(t)
}

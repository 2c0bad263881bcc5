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
	"testing"
)

// TestParseTier tests tier parsing.
func TestParseTier(t *testing.T) {
	tests := []struct {
		input   string
		want    Tier
		wantErr bool
	}{
		{"none", TierNone, false},
		{"low", TierLow, false},
		{"MEDIUM", TierMedium, false},
		{" High ", TierHigh, false},
		{"critical", TierNone, true},
		{"", TierNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTier(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownTier) {
					t.Errorf("ParseTier(%q) error = %v, want ErrUnknownTier", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTier(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseTier(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestTierOrder tests the total order none < low < medium < high.
func TestTierOrder(t *testing.T) {
	for i := 1; i < len(Tiers); i++ {
		lo, hi := Tiers[i-1], Tiers[i]
		if !hi.Exceeds(lo) {
			t.Errorf("%s.Exceeds(%s) = false, want true", hi, lo)
		}
		if lo.Exceeds(hi) {
			t.Errorf("%s.Exceeds(%s) = true, want false", lo, hi)
		}
		if hi.Exceeds(hi) {
			t.Errorf("%s.Exceeds(%s) = true, want false", hi, hi)
		}
	}
}

// TestMaxTier tests that the higher tier always wins.
func TestMaxTier(t *testing.T) {
	for _, a := range Tiers {
		for _, b := range Tiers {
			got := MaxTier(a, b)
			if got.Order() < a.Order() || got.Order() < b.Order() {
				t.Errorf("MaxTier(%s, %s) = %s, lower than an input", a, b, got)
			}
		}
	}
}

// TestAggregate tests tier and safeguard aggregation.
func TestAggregate(t *testing.T) {
	tests := []struct {
		name           string
		contributions  []Contribution
		wantTier       Tier
		wantSafeguards []string
	}{
		{
			name:           "empty defaults to none",
			wantTier:       TierNone,
			wantSafeguards: []string{},
		},
		{
			name: "max of contributions",
			contributions: []Contribution{
				{RuleID: "R1", Tier: TierMedium},
				{RuleID: "R2", Tier: TierHigh, Safeguards: []string{"legal review"}},
				{RuleID: "R3", Safeguards: []string{"mandatory human checkpoint"}},
			},
			wantTier:       TierHigh,
			wantSafeguards: []string{"legal review", "mandatory human checkpoint"},
		},
		{
			name: "later lower tier never downgrades",
			contributions: []Contribution{
				{RuleID: "A", Tier: TierHigh},
				{RuleID: "B", Tier: TierLow},
			},
			wantTier:       TierHigh,
			wantSafeguards: []string{},
		},
		{
			name: "duplicate safeguards keep first position",
			contributions: []Contribution{
				{RuleID: "A", Safeguards: []string{"x", "y"}},
				{RuleID: "B", Safeguards: []string{"z", "x"}},
			},
			wantTier:       TierNone,
			wantSafeguards: []string{"x", "y", "z"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.contributions)
			if got.Tier != tt.wantTier {
				t.Errorf("Aggregate().Tier = %v, want %v", got.Tier, tt.wantTier)
			}
			if len(got.Safeguards) != len(tt.wantSafeguards) {
				t.Fatalf("Aggregate().Safeguards = %v, want %v", got.Safeguards, tt.wantSafeguards)
			}
			for i := range got.Safeguards {
				if got.Safeguards[i] != tt.wantSafeguards[i] {
					t.Errorf("Safeguards[%d] = %q, want %q", i, got.Safeguards[i], tt.wantSafeguards[i])
				}
			}
		})
	}
}

// TestAggregate_Monotonic tests that adding a contribution never lowers the tier.
func TestAggregate_Monotonic(t *testing.T) {
	base := []Contribution{{RuleID: "A", Tier: TierMedium}}
	before := Aggregate(base).Tier

	for _, extra := range Tiers {
		after := Aggregate(append(append([]Contribution{}, base...), Contribution{RuleID: "B", Tier: extra})).Tier
		if after.Order() < before.Order() {
			t.Errorf("adding %s lowered tier from %s to %s", extra, before, after)
		}
	}
}

// TestRecommendations tests recommendation text.
func TestRecommendations(t *testing.T) {
	for _, tier := range Tiers {
		if Recommendations[tier] == "" {
			t.Errorf("No recommendation for tier %s", tier)
		}
	}
}

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

// Contribution is what one fired rule adds to an assessment.
//
// # Fields
//
//   - RuleID: The rule that made the contribution.
//   - Tier: The contributed tier. Empty means the rule contributed no tier.
//   - Safeguards: Safeguard labels in the order the rule lists them.
type Contribution struct {
	RuleID     string
	Tier       Tier
	Safeguards []string
}

// Assessment is the aggregated result of all contributions.
type Assessment struct {
	Tier       Tier     `json:"risk_tier"`
	Safeguards []string `json:"safeguards"`
}

// Aggregate combines contributions into a single assessment.
//
// # Description
//
// The tier is the maximum contributed tier, defaulting to none. Safeguards
// are the union of all labels, deduplicated by exact text and kept in the
// order of first appearance. Contributions are read in the order given.
//
// # Inputs
//
//   - contributions: Contributions in firing order. May be empty.
//
// # Outputs
//
//   - Assessment: Safeguards is never nil.
//
// # Thread Safety
//
// Pure function. Safe for concurrent use.
func Aggregate(contributions []Contribution) Assessment {
	out := Assessment{Tier: TierNone, Safeguards: []string{}}
	seen := make(map[string]struct{})

	for _, c := range contributions {
		if c.Tier != "" {
			out.Tier = MaxTier(out.Tier, c.Tier)
		}
		for _, s := range c.Safeguards {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out.Safeguards = append(out.Safeguards, s)
		}
	}

	return out
}

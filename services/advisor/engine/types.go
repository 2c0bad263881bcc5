// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/explain"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/facts"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/risk"
)

// Verdict is the complete outcome of one evaluation.
//
// A Verdict holds no timestamps or identifiers, so evaluating the same
// record against the same rule base always encodes to the same bytes.
//
// # Fields
//
//   - RiskTier: Maximum tier contributed by any fired rule, or none.
//   - Recommendation: Fixed guidance text for RiskTier.
//   - Safeguards: Deduplicated safeguards in first-contribution order.
//   - Rationale: One entry per fired rule, in firing order.
//   - Facts: Final fact record in name order, with provenance.
//   - Cycles: Number of cycles that fired at least one rule.
type Verdict struct {
	RiskTier       risk.Tier          `json:"risk_tier"`
	Recommendation string             `json:"recommendation"`
	Safeguards     []string           `json:"safeguards"`
	Rationale      []explain.Entry    `json:"rationale"`
	Facts          []facts.NamedEntry `json:"facts"`
	Cycles         int                `json:"cycles"`
}

// Fired returns the ids of the fired rules in firing order.
func (v *Verdict) Fired() []string {
	ids := make([]string, len(v.Rationale))
	for i, e := range v.Rationale {
		ids[i] = e.RuleID
	}
	return ids
}

// RuleDescription is the read-only view of one rule.
type RuleDescription struct {
	ID          string `json:"id"`
	Priority    int    `json:"priority"`
	Condition   string `json:"condition"`
	Conclusion  string `json:"conclusion"`
	Description string `json:"description,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// Candidate is a rule that could still fire once more facts are known.
type Candidate struct {
	RuleID      string    `json:"rule_id"`
	Priority    int       `json:"priority"`
	Specificity int       `json:"specificity"`
	Tier        risk.Tier `json:"risk_tier,omitempty"`
	Missing     []string  `json:"missing"`
	Condition   string    `json:"condition"`
}

// Question is the next fact to ask a user for.
type Question struct {
	Fact     string     `json:"fact"`
	Type     facts.Type `json:"type"`
	Prompt   string     `json:"prompt"`
	Help     string     `json:"help,omitempty"`
	Options  []string   `json:"options,omitempty"`
	Score    int        `json:"score"`
	NeededBy []string   `json:"needed_by"`
}

// QuestionResult is the outcome of NextQuestion.
//
// Done is true when no candidate rule is waiting on an askable fact.
// Verdict is the evaluation of the facts known so far.
type QuestionResult struct {
	Done     bool      `json:"done"`
	Question *Question `json:"question,omitempty"`
	Verdict  *Verdict  `json:"verdict"`
}

// Inspection is a snapshot of inference over a partial record.
type Inspection struct {
	Known      []facts.NamedEntry `json:"known_facts"`
	Fired      []string           `json:"fired"`
	Candidates []Candidate        `json:"candidates"`
	Verdict    *Verdict           `json:"verdict"`
}

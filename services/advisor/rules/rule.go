// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/facts"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/risk"
)

// ConclusionKind identifies what a conclusion does.
type ConclusionKind string

const (
	ConclusionAssert    ConclusionKind = "assert"
	ConclusionRisk      ConclusionKind = "risk"
	ConclusionSafeguard ConclusionKind = "safeguard"
)

// Conclusion is one compiled conclusion of a rule.
type Conclusion struct {
	Kind      ConclusionKind
	Fact      string
	Value     facts.Value
	Tier      risk.Tier
	Safeguard string
}

// Status is a rule's standing against a partial record.
type Status string

const (
	// StatusSatisfied means the condition holds.
	StatusSatisfied Status = "satisfied"

	// StatusContradicted means the condition can no longer hold.
	StatusContradicted Status = "contradicted"

	// StatusUndecided means the condition depends on missing facts.
	StatusUndecided Status = "undecided"
)

// Rule is a compiled, immutable rule.
//
// When is the implicit conjunction of the rule's when list.
type Rule struct {
	ID          string
	Priority    int
	Description string
	Explanation string
	When        Condition
	Then        []Conclusion
}

// Matches reports whether the condition is true for r.
func (r *Rule) Matches(rec facts.Record) bool {
	t, _ := r.When.Eval(rec)
	return t == True
}

// Status classifies the rule against a possibly incomplete record.
//
// # Outputs
//
//   - Status: Satisfied, contradicted, or undecided.
//   - []string: The missing facts when undecided.
func (r *Rule) Status(rec facts.Record) (Status, []string) {
	t, missing := r.When.Eval(rec)
	switch t {
	case True:
		return StatusSatisfied, nil
	case False:
		return StatusContradicted, nil
	}
	return StatusUndecided, missing
}

// Specificity is the number of comparisons in the condition.
func (r *Rule) Specificity() int {
	return r.When.Leaves()
}

// Tier returns the highest tier the rule contributes, or "".
func (r *Rule) Tier() risk.Tier {
	var t risk.Tier
	for _, c := range r.Then {
		if c.Kind == ConclusionRisk {
			if t == "" {
				t = c.Tier
			} else {
				t = risk.MaxTier(t, c.Tier)
			}
		}
	}
	return t
}

func compileRule(spec RuleSpec, vocab *facts.Vocabulary) (*Rule, error) {
	id := strings.TrimSpace(spec.ID)
	if len(spec.Then) == 0 {
		return nil, loadErr(ErrEmptyConclusion, id, "", nil)
	}

	children := make([]Condition, 0, len(spec.When))
	for _, w := range spec.When {
		c, err := compileCondition(id, w, vocab)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}

	then := make([]Conclusion, 0, len(spec.Then))
	asserted := make(map[string]facts.Value)
	for i, t := range spec.Then {
		c, err := compileConclusion(id, i, t, vocab)
		if err != nil {
			return nil, err
		}
		if c.Kind == ConclusionAssert {
			if prev, ok := asserted[c.Fact]; ok && !prev.Equal(c.Value) {
				return nil, loadErr(ErrInvalidConclusion, id, c.Fact,
					fmt.Errorf("asserts both %s and %s", prev, c.Value))
			}
			asserted[c.Fact] = c.Value
		}
		then = append(then, c)
	}

	return &Rule{
		ID:          id,
		Priority:    spec.Priority,
		Description: strings.TrimSpace(spec.Description),
		Explanation: strings.TrimSpace(spec.Explanation),
		When:        Condition{Op: OpAnd, Children: children},
		Then:        then,
	}, nil
}

func compileConclusion(ruleID string, idx int, spec ConclusionSpec, vocab *facts.Vocabulary) (Conclusion, error) {
	set := 0
	if spec.Assert != nil {
		set++
	}
	if spec.Risk != "" {
		set++
	}
	if strings.TrimSpace(spec.Safeguard) != "" {
		set++
	}
	if set != 1 {
		return Conclusion{}, loadErr(ErrInvalidConclusion, ruleID, "",
			fmt.Errorf("conclusion %d must set exactly one of assert, risk, safeguard", idx+1))
	}

	switch {
	case spec.Assert != nil:
		name := spec.Assert.Fact
		if !vocab.Has(name) {
			return Conclusion{}, loadErr(ErrUnknownFact, ruleID, name, nil)
		}
		v, err := vocab.Coerce(name, spec.Assert.Value)
		if err != nil {
			return Conclusion{}, loadErr(ErrInvalidValue, ruleID, name, err)
		}
		return Conclusion{Kind: ConclusionAssert, Fact: name, Value: v}, nil
	case spec.Risk != "":
		tier, err := risk.ParseTier(spec.Risk)
		if err != nil {
			return Conclusion{}, loadErr(ErrInvalidConclusion, ruleID, "", err)
		}
		return Conclusion{Kind: ConclusionRisk, Tier: tier}, nil
	}
	return Conclusion{Kind: ConclusionSafeguard, Safeguard: strings.TrimSpace(spec.Safeguard)}, nil
}

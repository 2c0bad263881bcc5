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
	"context"
	"slices"
	"sort"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/explain"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/facts"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/rules"
)

const (
	// questionWindow is how many top candidates vote on the next question.
	questionWindow = 5

	// inspectWindow is how many candidates Inspect reports.
	inspectWindow = 10

	// questionBaseScore is added to a candidate's priority per missing fact.
	questionBaseScore = 10
)

// NextQuestion picks the fact whose answer most helps decide the
// remaining rules.
//
// # Description
//
// Runs inference over rec, then ranks rules that neither fired nor can
// no longer fire (their conditions are unknown) by priority, specificity,
// and id. Each of the top five candidates adds 10 + its priority to every
// missing fact that is askable and not listed in asked. The highest score
// wins; ties go to the lower fact name. Done is set when no fact scores.
//
// # Inputs
//
//   - ctx: Passed to the underlying evaluation.
//   - rec: Facts answered so far.
//   - asked: Facts already put to the user, including skipped ones.
//
// # Outputs
//
//   - *QuestionResult: The next question or Done, plus the current verdict.
//   - error: Any error Evaluate can return.
func (e *Engine) NextQuestion(ctx context.Context, rec facts.Record, asked []string) (*QuestionResult, error) {
	rb := e.current.Load()
	st, err := e.run(ctx, rb, rec)
	if err != nil {
		return nil, err
	}

	result := &QuestionResult{Verdict: st.verdict()}
	candidates := st.candidates()
	if len(candidates) > questionWindow {
		candidates = candidates[:questionWindow]
	}

	vocab := rb.Vocabulary()
	scores := make(map[string]int)
	neededBy := make(map[string][]string)
	for _, c := range candidates {
		for _, name := range c.Missing {
			attr, ok := vocab.Lookup(name)
			if !ok || !attr.Askable() || slices.Contains(asked, name) || st.record.Has(name) {
				continue
			}
			scores[name] += questionBaseScore + c.Priority
			neededBy[name] = append(neededBy[name], c.RuleID)
		}
	}

	best, bestScore := "", 0
	for name, score := range scores {
		if best == "" || score > bestScore || (score == bestScore && name < best) {
			best, bestScore = name, score
		}
	}
	if best == "" {
		result.Done = true
		return result, nil
	}

	attr, _ := vocab.Lookup(best)
	result.Question = &Question{
		Fact:     attr.Name,
		Type:     attr.Type,
		Prompt:   attr.Question,
		Help:     attr.Help,
		Options:  slices.Clone(attr.Options),
		Score:    bestScore,
		NeededBy: neededBy[best],
	}
	return result, nil
}

// Inspect reports the state of inference over a partial record: the
// facts known after chaining, the rules that fired, and up to ten rules
// still waiting on missing facts.
func (e *Engine) Inspect(ctx context.Context, rec facts.Record) (*Inspection, error) {
	rb := e.current.Load()
	st, err := e.run(ctx, rb, rec)
	if err != nil {
		return nil, err
	}

	candidates := st.candidates()
	if len(candidates) > inspectWindow {
		candidates = candidates[:inspectWindow]
	}

	v := st.verdict()
	return &Inspection{
		Known:      v.Facts,
		Fired:      v.Fired(),
		Candidates: candidates,
		Verdict:    v,
	}, nil
}

// candidates lists unfired rules whose condition is still undecided,
// ordered by priority desc, specificity desc, id asc.
func (st *state) candidates() []Candidate {
	var undecided []*rules.Rule
	missing := make(map[string][]string)
	for _, r := range st.rb.Rules() {
		if st.fired[r.ID] {
			continue
		}
		status, m := r.Status(st.record)
		if status != rules.StatusUndecided {
			continue
		}
		undecided = append(undecided, r)
		missing[r.ID] = m
	}

	sort.SliceStable(undecided, func(i, j int) bool {
		a, b := undecided[i], undecided[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if sa, sb := a.Specificity(), b.Specificity(); sa != sb {
			return sa > sb
		}
		return a.ID < b.ID
	})

	out := make([]Candidate, 0, len(undecided))
	for _, r := range undecided {
		out = append(out, Candidate{
			RuleID:      r.ID,
			Priority:    r.Priority,
			Specificity: r.Specificity(),
			Tier:        r.Tier(),
			Missing:     missing[r.ID],
			Condition:   explain.Condition(r.When),
		})
	}
	return out
}

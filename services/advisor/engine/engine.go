// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements forward-chaining inference over a rule base.
//
// # Algorithm
//
// Evaluation runs match-resolve-act cycles until a fixed point:
//
//	┌────────────────────────────────────────────────────────┐
//	│ validate input record                                  │
//	└───────────────┬────────────────────────────────────────┘
//	                ▼
//	┌────────────────────────────────────────────────────────┐
//	│ match: rules whose condition holds, not yet fired,     │◄──┐
//	│        ordered by priority desc, id asc                │   │
//	└───────────────┬────────────────────────────────────────┘   │
//	                │ none left ──► aggregate ──► Verdict        │
//	                ▼                                            │
//	┌────────────────────────────────────────────────────────┐   │
//	│ act: apply conclusions in order, resolving fact        │   │
//	│      conflicts by priority; mark rules fired           │───┘
//	└────────────────────────────────────────────────────────┘
//
// Each rule fires at most once per evaluation. Two rules of equal priority
// asserting different values for one fact abort the evaluation with an
// unresolvable *facts.ConflictError, whoever holds the fact at the time.
// Any other conflicting assertion is resolved against the current holder:
// caller-supplied facts win over rules, and a higher-priority rule wins
// over a lower one.
//
// # Thread Safety
//
// Engine is safe for concurrent use. The active rule base is held behind
// an atomic pointer; each evaluation pins the snapshot it started with, so
// Swap never affects an evaluation in flight.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/explain"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/facts"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/risk"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/rules"
)

// Option configures an Engine.
type Option func(*Engine)

// WithMaxCycles caps the number of productive cycles per evaluation.
// Zero or negative restores the default, which is the rule count.
func WithMaxCycles(n int) Option {
	return func(e *Engine) {
		e.maxCycles = n
	}
}

// Engine evaluates fact records against the active rule base.
type Engine struct {
	current   atomic.Pointer[rules.RuleBase]
	maxCycles int
}

// New creates an Engine serving rb.
//
// # Outputs
//
//   - *Engine: The engine.
//   - error: ErrNoRuleBase when rb is nil.
func New(rb *rules.RuleBase, opts ...Option) (*Engine, error) {
	if rb == nil {
		return nil, ErrNoRuleBase
	}
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	e.current.Store(rb)
	return e, nil
}

// Snapshot returns the active rule base.
func (e *Engine) Snapshot() *rules.RuleBase {
	return e.current.Load()
}

// Swap atomically replaces the active rule base and returns the previous
// one. Evaluations already running keep their snapshot.
func (e *Engine) Swap(rb *rules.RuleBase) (*rules.RuleBase, error) {
	if rb == nil {
		return nil, ErrNoRuleBase
	}
	return e.current.Swap(rb), nil
}

// Evaluate runs inference over rec and returns the verdict.
//
// # Description
//
// Validates rec against the vocabulary, then forward-chains to a fixed
// point. Either a complete Verdict or an error is returned, never both.
//
// # Inputs
//
//   - ctx: Checked between cycles. Cancellation aborts the evaluation.
//   - rec: Caller-supplied facts. Every entry is treated as input.
//
// # Outputs
//
//   - *Verdict: The complete verdict.
//   - error: *facts.ValidationError, *facts.ConflictError (unresolvable),
//     *InferenceError, or a wrapped context error.
func (e *Engine) Evaluate(ctx context.Context, rec facts.Record) (*Verdict, error) {
	v, _, err := e.EvaluatePinned(ctx, rec)
	return v, err
}

// EvaluatePinned is Evaluate that also returns the rule base snapshot
// the verdict was computed against.
func (e *Engine) EvaluatePinned(ctx context.Context, rec facts.Record) (*Verdict, *rules.RuleBase, error) {
	rb := e.current.Load()
	st, err := e.run(ctx, rb, rec)
	if err != nil {
		return nil, rb, err
	}
	return st.verdict(), rb, nil
}

// DescribeRules lists every rule of the active rule base in
// priority-then-id order with human-readable conditions and conclusions.
func (e *Engine) DescribeRules() []RuleDescription {
	rb := e.current.Load()
	out := make([]RuleDescription, 0, rb.Len())
	for _, r := range rb.Rules() {
		out = append(out, RuleDescription{
			ID:          r.ID,
			Priority:    r.Priority,
			Condition:   explain.Condition(r.When),
			Conclusion:  explain.Conclusions(r.Then),
			Description: r.Description,
			Explanation: r.Explanation,
		})
	}
	return out
}

// =============================================================================
// Inference Loop
// =============================================================================

// state is the private working set of one evaluation.
type state struct {
	rb            *rules.RuleBase
	record        facts.Record
	fired         map[string]bool
	order         []*rules.Rule
	builder       *explain.Builder
	contributions []risk.Contribution
	cycles        int

	// claims records, per fact and priority, the first rule assertion
	// made at that priority, including assertions that were dropped.
	claims map[string]map[int]claim
}

// claim is one rule's assertion of a fact value.
type claim struct {
	rule  string
	value facts.Value
}

func (e *Engine) limit(rb *rules.RuleBase) int {
	if e.maxCycles > 0 {
		return e.maxCycles
	}
	return rb.Len()
}

func (e *Engine) run(ctx context.Context, rb *rules.RuleBase, rec facts.Record) (*state, error) {
	if rb == nil {
		return nil, ErrNoRuleBase
	}
	if err := rb.Vocabulary().Validate(rec); err != nil {
		return nil, err
	}

	st := &state{
		rb:      rb,
		record:  asInput(rec),
		fired:   make(map[string]bool),
		builder: explain.NewBuilder(),
		claims:  make(map[string]map[int]claim),
	}
	limit := e.limit(rb)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evaluate: %w", err)
		}

		matched := st.pending()
		if len(matched) == 0 {
			return st, nil
		}

		st.cycles++
		if st.cycles > limit {
			ids := make([]string, len(matched))
			for i, r := range matched {
				ids[i] = r.ID
			}
			return nil, &InferenceError{Kind: ErrNonTermination, Limit: limit, Pending: ids}
		}

		snapshot := st.record
		for _, r := range matched {
			if err := st.fire(r, snapshot); err != nil {
				return nil, err
			}
		}
	}
}

// pending returns matching rules that have not fired yet.
func (st *state) pending() []*rules.Rule {
	var out []*rules.Rule
	for _, r := range st.rb.RulesMatching(st.record) {
		if !st.fired[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// fire applies the conclusions of r. matchedOn is the record r was
// matched against at the start of the cycle.
func (st *state) fire(r *rules.Rule, matchedOn facts.Record) error {
	var notes []string
	contribution := risk.Contribution{RuleID: r.ID}

	for _, c := range r.Then {
		switch c.Kind {
		case rules.ConclusionAssert:
			note, err := st.assert(r, c.Fact, c.Value)
			if err != nil {
				return err
			}
			if note != "" {
				notes = append(notes, note)
			}
		case rules.ConclusionRisk:
			if contribution.Tier == "" {
				contribution.Tier = c.Tier
			} else {
				contribution.Tier = risk.MaxTier(contribution.Tier, c.Tier)
			}
		case rules.ConclusionSafeguard:
			contribution.Safeguards = append(contribution.Safeguards, c.Safeguard)
		}
	}

	st.fired[r.ID] = true
	st.order = append(st.order, r)
	st.contributions = append(st.contributions, contribution)
	st.builder.Fired(r, st.cycles, matchedOn, notes)
	return nil
}

// assert applies fact = value on behalf of r and resolves any conflict.
// It returns a rationale note when the assertion was overridden or dropped.
func (st *state) assert(r *rules.Rule, fact string, value facts.Value) (string, error) {
	if err := st.claim(r, fact, value); err != nil {
		return "", err
	}

	next, err := st.record.Assert(fact, value, r.ID)
	if err == nil {
		st.record = next
		return "", nil
	}

	held, _ := st.record.Entry(fact)
	if held.Source == facts.SourceInput {
		return explain.NoteKeptInput(fact, held.Value, value), nil
	}

	holder, ok := st.rb.Rule(held.Source)
	if !ok {
		return "", err
	}

	switch {
	case r.Priority > holder.Priority:
		st.record = st.record.Override(fact, value, r.ID)
		return explain.NoteOverride(fact, held.Value, value, holder.ID, holder.Priority), nil
	case r.Priority < holder.Priority:
		return explain.NoteKeptHigher(fact, held.Value, value, holder.ID, holder.Priority), nil
	}

	return "", &facts.ConflictError{
		Fact:           fact,
		Existing:       held.Value,
		ExistingSource: holder.ID,
		Proposed:       value,
		ProposedSource: r.ID,
		Rules:          []string{holder.ID, r.ID},
		Kind:           facts.ErrUnresolvable,
	}
}

// claim registers r's assertion of fact = value and fails when another
// rule of the same priority already asserted a different value.
func (st *state) claim(r *rules.Rule, fact string, value facts.Value) error {
	byPriority, ok := st.claims[fact]
	if !ok {
		byPriority = make(map[int]claim)
		st.claims[fact] = byPriority
	}

	prior, ok := byPriority[r.Priority]
	if !ok {
		byPriority[r.Priority] = claim{rule: r.ID, value: value}
		return nil
	}
	if prior.value.Equal(value) {
		return nil
	}
	return &facts.ConflictError{
		Fact:           fact,
		Existing:       prior.value,
		ExistingSource: prior.rule,
		Proposed:       value,
		ProposedSource: r.ID,
		Rules:          []string{prior.rule, r.ID},
		Kind:           facts.ErrUnresolvable,
	}
}

func (st *state) verdict() *Verdict {
	agg := risk.Aggregate(st.contributions)
	return &Verdict{
		RiskTier:       agg.Tier,
		Recommendation: risk.Recommendations[agg.Tier],
		Safeguards:     agg.Safeguards,
		Rationale:      st.builder.Entries(),
		Facts:          st.record.Entries(),
		Cycles:         st.cycles,
	}
}

// asInput re-tags every entry of rec as caller-supplied.
func asInput(rec facts.Record) facts.Record {
	var out facts.Record
	for _, e := range rec.Entries() {
		out = out.Override(e.Name, e.Value, facts.SourceInput)
	}
	return out
}

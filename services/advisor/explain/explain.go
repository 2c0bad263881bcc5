// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package explain renders rule conditions and conclusions as text and
// assembles the rationale trail of an evaluation.
//
// Every function here is deterministic: the same rule and record always
// render the same text.
package explain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/facts"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/rules"
)

// Entry is one step of a rationale: a rule that fired and why.
type Entry struct {
	RuleID           string   `json:"rule_id"`
	Priority         int      `json:"priority"`
	Cycle            int      `json:"cycle"`
	MatchedCondition string   `json:"matched_condition_summary"`
	Conclusion       string   `json:"conclusion_summary"`
	Explanation      string   `json:"explanation,omitempty"`
	Notes            []string `json:"notes,omitempty"`
}

// Builder accumulates rationale entries in firing order.
//
// # Thread Safety
//
// Not safe for concurrent use. Each evaluation owns one Builder.
type Builder struct {
	entries []Entry
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{entries: []Entry{}}
}

// Fired records that rule fired in cycle after matching rec.
//
// rec must be the record the rule was matched against, so the summary
// shows the values that satisfied the condition. notes describe
// assertions that were overridden or dropped during conflict resolution.
func (b *Builder) Fired(rule *rules.Rule, cycle int, rec facts.Record, notes []string) {
	e := Entry{
		RuleID:           rule.ID,
		Priority:         rule.Priority,
		Cycle:            cycle,
		MatchedCondition: MatchedCondition(rule.When, rec),
		Conclusion:       Conclusions(rule.Then),
		Explanation:      rule.Explanation,
	}
	if len(notes) > 0 {
		e.Notes = append([]string(nil), notes...)
	}
	b.entries = append(b.entries, e)
}

// Entries returns the rationale in firing order. Never nil.
func (b *Builder) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// =============================================================================
// Condition Rendering
// =============================================================================

// Condition renders a condition without observed values, e.g.
// "consumer_pii_used = true AND public_facing = true".
func Condition(c rules.Condition) string {
	return render(c, nil, true)
}

// MatchedCondition renders a condition and, for comparisons other than
// equality, the value observed in rec, e.g.
// "automation_share >= 0.5 (observed 0.8)".
func MatchedCondition(c rules.Condition, rec facts.Record) string {
	return render(c, &rec, true)
}

func render(c rules.Condition, rec *facts.Record, top bool) string {
	switch c.Op {
	case rules.OpAnd, rules.OpOr:
		if len(c.Children) == 0 {
			return "always"
		}
		if len(c.Children) == 1 {
			return render(c.Children[0], rec, top)
		}
		sep := " AND "
		if c.Op == rules.OpOr {
			sep = " OR "
		}
		parts := make([]string, len(c.Children))
		for i, child := range c.Children {
			parts[i] = render(child, rec, false)
		}
		s := strings.Join(parts, sep)
		if top {
			return s
		}
		return "(" + s + ")"
	case rules.OpNot:
		return "NOT " + render(c.Children[0], rec, false)
	}

	s := leaf(c)
	if rec != nil && c.Op != rules.OpEq {
		if v, ok := rec.Get(c.Fact); ok {
			s += " (observed " + literal(v) + ")"
		}
	}
	return s
}

func leaf(c rules.Condition) string {
	switch c.Op {
	case rules.OpEq:
		return c.Fact + " = " + literal(c.Value)
	case rules.OpNe:
		return c.Fact + " != " + literal(c.Value)
	case rules.OpIn, rules.OpNotIn:
		vals := make([]string, len(c.Values))
		for i, v := range c.Values {
			vals[i] = literal(v)
		}
		op := " in "
		if c.Op == rules.OpNotIn {
			op = " not in "
		}
		return c.Fact + op + "[" + strings.Join(vals, ", ") + "]"
	case rules.OpGt:
		return c.Fact + " > " + literal(c.Value)
	case rules.OpGte:
		return c.Fact + " >= " + literal(c.Value)
	case rules.OpLt:
		return c.Fact + " < " + literal(c.Value)
	case rules.OpLte:
		return c.Fact + " <= " + literal(c.Value)
	}
	return c.Fact + " " + string(c.Op) + " " + literal(c.Value)
}

// =============================================================================
// Conclusion Rendering
// =============================================================================

// Conclusions renders a conclusion list, e.g.
// `risk=high; safeguard="legal review"`.
func Conclusions(cs []rules.Conclusion) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = Conclusion(c)
	}
	return strings.Join(parts, "; ")
}

// Conclusion renders one conclusion.
func Conclusion(c rules.Conclusion) string {
	switch c.Kind {
	case rules.ConclusionAssert:
		return "assert " + c.Fact + "=" + literal(c.Value)
	case rules.ConclusionRisk:
		return "risk=" + string(c.Tier)
	case rules.ConclusionSafeguard:
		return "safeguard=" + strconv.Quote(c.Safeguard)
	}
	return string(c.Kind)
}

// =============================================================================
// Conflict Notes
// =============================================================================

// NoteOverride describes a higher-priority assertion replacing a value.
func NoteOverride(fact string, from, to facts.Value, prevSource string, prevPriority int) string {
	return fmt.Sprintf("overrode %s=%s set by %s (priority %d) with %s",
		fact, literal(from), prevSource, prevPriority, literal(to))
}

// NoteKeptHigher describes an assertion dropped because a
// higher-priority rule already holds the fact.
func NoteKeptHigher(fact string, kept, dropped facts.Value, holder string, holderPriority int) string {
	return fmt.Sprintf("dropped %s=%s: %s (priority %d) holds %s",
		fact, literal(dropped), holder, holderPriority, literal(kept))
}

// NoteKeptInput describes an assertion dropped because the caller
// supplied the fact.
func NoteKeptInput(fact string, kept, dropped facts.Value) string {
	return fmt.Sprintf("dropped %s=%s: input value %s kept", fact, literal(dropped), literal(kept))
}

func literal(v facts.Value) string {
	if v.Type() == facts.TypeEnum && strings.ContainsAny(v.AsString(), " ,[]()") {
		return strconv.Quote(v.AsString())
	}
	return v.String()
}

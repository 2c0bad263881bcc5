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
	"slices"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/facts"
)

// Op is a condition operator.
type Op string

const (
	OpEq    Op = "eq"
	OpNe    Op = "ne"
	OpIn    Op = "in"
	OpNotIn Op = "not_in"
	OpGt    Op = "gt"
	OpGte   Op = "gte"
	OpLt    Op = "lt"
	OpLte   Op = "lte"
	OpAnd   Op = "and"
	OpOr    Op = "or"
	OpNot   Op = "not"
)

// IsLeaf reports whether op compares a single fact.
func (op Op) IsLeaf() bool {
	switch op {
	case OpAnd, OpOr, OpNot:
		return false
	}
	return true
}

// Truth is a three-valued evaluation result.
type Truth int

const (
	// Unknown means a referenced fact has no value yet.
	Unknown Truth = iota
	False
	True
)

// String returns "true", "false", or "unknown".
func (t Truth) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	}
	return "unknown"
}

// Condition is a compiled, immutable condition expression.
//
// Leaves set Fact with Value (eq, ne, and the numeric comparisons) or
// Values (in, not_in). Composites set Children; not has exactly one.
type Condition struct {
	Op       Op
	Fact     string
	Value    facts.Value
	Values   []facts.Value
	Children []Condition
}

// Eval evaluates the condition against r using Kleene logic.
//
// # Outputs
//
//   - Truth: True or False when decidable, Unknown otherwise.
//   - []string: Facts whose absence made the result Unknown, in first
//     reference order. Nil unless the result is Unknown.
func (c Condition) Eval(r facts.Record) (Truth, []string) {
	switch c.Op {
	case OpAnd:
		var missing []string
		result := True
		for _, child := range c.Children {
			t, m := child.Eval(r)
			switch t {
			case False:
				return False, nil
			case Unknown:
				result = Unknown
				missing = appendUnique(missing, m...)
			}
		}
		return result, missing
	case OpOr:
		var missing []string
		result := False
		for _, child := range c.Children {
			t, m := child.Eval(r)
			switch t {
			case True:
				return True, nil
			case Unknown:
				result = Unknown
				missing = appendUnique(missing, m...)
			}
		}
		return result, missing
	case OpNot:
		t, m := c.Children[0].Eval(r)
		switch t {
		case True:
			return False, nil
		case False:
			return True, nil
		}
		return Unknown, m
	}

	v, ok := r.Get(c.Fact)
	if !ok {
		return Unknown, []string{c.Fact}
	}
	if c.compare(v) {
		return True, nil
	}
	return False, nil
}

func (c Condition) compare(v facts.Value) bool {
	switch c.Op {
	case OpEq:
		return v.Equal(c.Value)
	case OpNe:
		return !v.Equal(c.Value)
	case OpIn:
		return slices.ContainsFunc(c.Values, v.Equal)
	case OpNotIn:
		return !slices.ContainsFunc(c.Values, v.Equal)
	}

	cmp, ok := v.Compare(c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	}
	return false
}

// Facts returns every fact name referenced, in first reference order.
func (c Condition) Facts() []string {
	if c.Op.IsLeaf() {
		return []string{c.Fact}
	}
	var out []string
	for _, child := range c.Children {
		out = appendUnique(out, child.Facts()...)
	}
	return out
}

// Leaves returns the number of comparisons in the expression.
func (c Condition) Leaves() int {
	if c.Op.IsLeaf() {
		return 1
	}
	n := 0
	for _, child := range c.Children {
		n += child.Leaves()
	}
	return n
}

func appendUnique(dst []string, names ...string) []string {
	for _, n := range names {
		if !slices.Contains(dst, n) {
			dst = append(dst, n)
		}
	}
	return dst
}

// =============================================================================
// Compilation
// =============================================================================

// compileCondition turns a ConditionSpec into a Condition, resolving every
// literal against the vocabulary.
func compileCondition(ruleID string, spec ConditionSpec, vocab *facts.Vocabulary) (Condition, error) {
	composites := 0
	if spec.And != nil {
		composites++
	}
	if spec.Or != nil {
		composites++
	}
	if spec.Not != nil {
		composites++
	}
	leafOps := spec.leafOps()

	switch {
	case composites > 0 && (spec.Fact != "" || len(leafOps) > 0):
		return Condition{}, loadErr(ErrInvalidCondition, ruleID, spec.Fact,
			fmt.Errorf("a condition cannot mix and/or/not with a fact comparison"))
	case composites > 1:
		return Condition{}, loadErr(ErrInvalidCondition, ruleID, "",
			fmt.Errorf("set exactly one of and, or, not"))
	case spec.And != nil:
		return compileGroup(ruleID, OpAnd, spec.And, vocab)
	case spec.Or != nil:
		return compileGroup(ruleID, OpOr, spec.Or, vocab)
	case spec.Not != nil:
		child, err := compileCondition(ruleID, *spec.Not, vocab)
		if err != nil {
			return Condition{}, err
		}
		return Condition{Op: OpNot, Children: []Condition{child}}, nil
	}

	return compileLeaf(ruleID, spec, leafOps, vocab)
}

func compileGroup(ruleID string, op Op, specs []ConditionSpec, vocab *facts.Vocabulary) (Condition, error) {
	if len(specs) == 0 {
		return Condition{}, loadErr(ErrInvalidCondition, ruleID, "", fmt.Errorf("%s needs at least one condition", op))
	}
	children := make([]Condition, 0, len(specs))
	for _, s := range specs {
		child, err := compileCondition(ruleID, s, vocab)
		if err != nil {
			return Condition{}, err
		}
		children = append(children, child)
	}
	return Condition{Op: op, Children: children}, nil
}

func compileLeaf(ruleID string, spec ConditionSpec, ops []Op, vocab *facts.Vocabulary) (Condition, error) {
	if spec.Fact == "" {
		return Condition{}, loadErr(ErrInvalidCondition, ruleID, "", fmt.Errorf("condition names no fact"))
	}
	attr, ok := vocab.Lookup(spec.Fact)
	if !ok {
		return Condition{}, loadErr(ErrUnknownFact, ruleID, spec.Fact, nil)
	}
	if len(ops) != 1 {
		return Condition{}, loadErr(ErrInvalidCondition, ruleID, spec.Fact,
			fmt.Errorf("set exactly one comparison, got %d", len(ops)))
	}

	c := Condition{Op: ops[0], Fact: spec.Fact}
	coerce := func(raw any) (facts.Value, error) {
		v, err := vocab.Coerce(spec.Fact, raw)
		if err != nil {
			return facts.Value{}, loadErr(ErrInvalidValue, ruleID, spec.Fact, err)
		}
		return v, nil
	}

	var err error
	switch c.Op {
	case OpEq:
		c.Value, err = coerce(spec.Eq)
	case OpNe:
		c.Value, err = coerce(spec.Ne)
	case OpIn, OpNotIn:
		raw := spec.In
		if c.Op == OpNotIn {
			raw = spec.NotIn
		}
		if len(raw) == 0 {
			return Condition{}, loadErr(ErrInvalidCondition, ruleID, spec.Fact, fmt.Errorf("%s needs at least one value", c.Op))
		}
		for _, r := range raw {
			v, cerr := coerce(r)
			if cerr != nil {
				return Condition{}, cerr
			}
			c.Values = append(c.Values, v)
		}
	default:
		if attr.Type != facts.TypeNumber {
			return Condition{}, loadErr(ErrInvalidCondition, ruleID, spec.Fact,
				fmt.Errorf("%s requires a number fact, %q is %s", c.Op, spec.Fact, attr.Type))
		}
		c.Value = facts.Number(*spec.threshold(c.Op))
	}
	if err != nil {
		return Condition{}, err
	}
	return c, nil
}

// leafOps lists the comparisons set on the spec, in a fixed order.
func (s ConditionSpec) leafOps() []Op {
	var ops []Op
	if s.Eq != nil {
		ops = append(ops, OpEq)
	}
	if s.Ne != nil {
		ops = append(ops, OpNe)
	}
	if s.In != nil {
		ops = append(ops, OpIn)
	}
	if s.NotIn != nil {
		ops = append(ops, OpNotIn)
	}
	if s.Gt != nil {
		ops = append(ops, OpGt)
	}
	if s.Gte != nil {
		ops = append(ops, OpGte)
	}
	if s.Lt != nil {
		ops = append(ops, OpLt)
	}
	if s.Lte != nil {
		ops = append(ops, OpLte)
	}
	return ops
}

func (s ConditionSpec) threshold(op Op) *float64 {
	switch op {
	case OpGt:
		return s.Gt
	case OpGte:
		return s.Gte
	case OpLt:
		return s.Lt
	}
	return s.Lte
}

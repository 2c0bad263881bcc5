// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package facts

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Attribute declares one fact name and its value domain.
//
// # Fields
//
//   - Name: Unique fact name, e.g. "consumer_pii_used".
//   - Type: bool, enum, or number.
//   - Options: Enum members. Required for enum, forbidden otherwise.
//   - Min, Max: Optional inclusive bounds for number facts.
//   - Question: Prompt used when asking a user for this fact.
//   - Help: Longer description shown next to the question.
//   - Derived: True when only rules assert this fact. Derived facts are
//     never asked.
type Attribute struct {
	Name     string   `json:"name"`
	Type     Type     `json:"type"`
	Options  []string `json:"options,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Question string   `json:"question,omitempty"`
	Help     string   `json:"help,omitempty"`
	Derived  bool     `json:"derived,omitempty"`
}

// Askable reports whether the attribute may be put to a user.
func (a Attribute) Askable() bool {
	return !a.Derived && a.Question != ""
}

// Vocabulary is the closed set of fact names a rule base understands.
//
// # Thread Safety
//
// Immutable after NewVocabulary. Safe for concurrent use.
type Vocabulary struct {
	attrs map[string]Attribute
	order []string
}

// NewVocabulary builds a vocabulary from attribute declarations.
//
// # Outputs
//
//   - *Vocabulary: The vocabulary, preserving declaration order.
//   - error: Wraps ErrInvalidVocabulary for an empty or duplicate name,
//     an unknown type, a missing or duplicated enum option, options on a
//     non-enum fact, or Min greater than Max.
func NewVocabulary(attrs []Attribute) (*Vocabulary, error) {
	v := &Vocabulary{attrs: make(map[string]Attribute, len(attrs))}

	for _, a := range attrs {
		if err := checkAttribute(a); err != nil {
			return nil, err
		}
		if _, dup := v.attrs[a.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate fact %q", ErrInvalidVocabulary, a.Name)
		}
		a.Options = slices.Clone(a.Options)
		v.attrs[a.Name] = a
		v.order = append(v.order, a.Name)
	}

	return v, nil
}

func checkAttribute(a Attribute) error {
	if strings.TrimSpace(a.Name) == "" || strings.ContainsAny(a.Name, " \t\n=") {
		return fmt.Errorf("%w: invalid fact name %q", ErrInvalidVocabulary, a.Name)
	}
	if !a.Type.Valid() {
		return fmt.Errorf("%w: fact %q has unknown type %q", ErrInvalidVocabulary, a.Name, a.Type)
	}
	if a.Type == TypeEnum {
		if len(a.Options) == 0 {
			return fmt.Errorf("%w: enum fact %q has no options", ErrInvalidVocabulary, a.Name)
		}
		seen := make(map[string]struct{}, len(a.Options))
		for _, o := range a.Options {
			if _, dup := seen[o]; dup || o == "" {
				return fmt.Errorf("%w: enum fact %q has empty or duplicate option %q", ErrInvalidVocabulary, a.Name, o)
			}
			seen[o] = struct{}{}
		}
	} else if len(a.Options) > 0 {
		return fmt.Errorf("%w: %s fact %q cannot declare options", ErrInvalidVocabulary, a.Type, a.Name)
	}
	if a.Type != TypeNumber && (a.Min != nil || a.Max != nil) {
		return fmt.Errorf("%w: %s fact %q cannot declare bounds", ErrInvalidVocabulary, a.Type, a.Name)
	}
	if a.Min != nil && a.Max != nil && *a.Min > *a.Max {
		return fmt.Errorf("%w: fact %q has min %v above max %v", ErrInvalidVocabulary, a.Name, *a.Min, *a.Max)
	}
	return nil
}

// Lookup returns the attribute declared for name.
func (v *Vocabulary) Lookup(name string) (Attribute, bool) {
	a, ok := v.attrs[name]
	return a, ok
}

// Has reports whether name is declared.
func (v *Vocabulary) Has(name string) bool {
	_, ok := v.attrs[name]
	return ok
}

// Len returns the number of declared facts.
func (v *Vocabulary) Len() int {
	return len(v.order)
}

// Attributes returns all declarations in declaration order.
func (v *Vocabulary) Attributes() []Attribute {
	out := make([]Attribute, len(v.order))
	for i, name := range v.order {
		out[i] = v.attrs[name]
	}
	return out
}

// Check verifies that value fits the declared domain of name.
func (v *Vocabulary) Check(name string, value Value) error {
	a, ok := v.attrs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUndeclaredFact, name)
	}
	if value.Type() != a.Type {
		return fmt.Errorf("%w: %q expects %s, got %s", ErrTypeMismatch, name, a.Type, describeType(value.Type()))
	}
	switch a.Type {
	case TypeEnum:
		if !slices.Contains(a.Options, value.AsString()) {
			return fmt.Errorf("%w: %q must be one of [%s], got %q",
				ErrOutOfDomain, name, strings.Join(a.Options, ", "), value.AsString())
		}
	case TypeNumber:
		n := value.AsNumber()
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return fmt.Errorf("%w: %q must be finite", ErrOutOfDomain, name)
		}
		if a.Min != nil && n < *a.Min {
			return fmt.Errorf("%w: %q must be >= %v, got %v", ErrOutOfDomain, name, *a.Min, n)
		}
		if a.Max != nil && n > *a.Max {
			return fmt.Errorf("%w: %q must be <= %v, got %v", ErrOutOfDomain, name, *a.Max, n)
		}
	}
	return nil
}

// Validate checks every fact of an input record against the vocabulary.
// Derived facts are rejected; only rules assert them.
//
// # Outputs
//
//   - error: nil, or a *ValidationError listing every offending fact in
//     name order.
func (v *Vocabulary) Validate(r Record) error {
	var problems []Problem
	for _, name := range r.Names() {
		val, _ := r.Get(name)
		if err := v.checkInput(name, val); err != nil {
			problems = append(problems, problemFrom(name, err))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// checkInput is Check for caller-supplied values.
func (v *Vocabulary) checkInput(name string, value Value) error {
	if a, ok := v.attrs[name]; ok && a.Derived {
		return fmt.Errorf("%w: %q", ErrDerivedFact, name)
	}
	return v.Check(name, value)
}

// Coerce converts a loosely typed value, as decoded from JSON or YAML,
// into a typed Value for name and checks its domain.
//
// Booleans accept bool or the strings true/false/yes/no. Enums accept
// strings. Numbers accept any Go numeric type, json.Number, or a numeric
// string.
func (v *Vocabulary) Coerce(name string, raw any) (Value, error) {
	a, ok := v.attrs[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrUndeclaredFact, name)
	}

	var val Value
	switch a.Type {
	case TypeBool:
		b, ok := toBool(raw)
		if !ok {
			return Value{}, fmt.Errorf("%w: %q expects bool, got %T", ErrTypeMismatch, name, raw)
		}
		val = Bool(b)
	case TypeEnum:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("%w: %q expects one of [%s], got %T",
				ErrTypeMismatch, name, strings.Join(a.Options, ", "), raw)
		}
		val = Enum(strings.TrimSpace(s))
	case TypeNumber:
		n, ok := toNumber(raw)
		if !ok {
			return Value{}, fmt.Errorf("%w: %q expects number, got %T", ErrTypeMismatch, name, raw)
		}
		val = Number(n)
	}

	if err := v.Check(name, val); err != nil {
		return Value{}, err
	}
	return val, nil
}

// ParseValue parses a command-line string such as "true", "internal", or
// "0.75" into a typed Value for name.
func (v *Vocabulary) ParseValue(name, raw string) (Value, error) {
	return v.Coerce(name, strings.TrimSpace(raw))
}

// NewRecord builds a validated input record from loosely typed values.
//
// # Description
//
// Every entry is coerced with Coerce and tagged with SourceInput. Derived
// facts are rejected. All problems are collected before returning.
//
// # Outputs
//
//   - Record: The input record.
//   - error: A *ValidationError when any entry is undeclared, derived, or
//     invalid.
func (v *Vocabulary) NewRecord(values map[string]any) (Record, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make(map[string]Entry, len(values))
	var problems []Problem
	for _, name := range names {
		if a, ok := v.attrs[name]; ok && a.Derived {
			problems = append(problems, problemFrom(name, fmt.Errorf("%w: %q", ErrDerivedFact, name)))
			continue
		}
		val, err := v.Coerce(name, values[name])
		if err != nil {
			problems = append(problems, problemFrom(name, err))
			continue
		}
		entries[name] = Entry{Value: val, Source: SourceInput}
	}

	if len(problems) > 0 {
		return Record{}, &ValidationError{Problems: problems}
	}
	return Record{entries: entries}, nil
}

func problemFrom(name string, err error) Problem {
	p := Problem{Fact: name, Reason: err.Error()}
	for _, kind := range []error{ErrUndeclaredFact, ErrDerivedFact, ErrTypeMismatch, ErrOutOfDomain} {
		if errors.Is(err, kind) {
			p.Kind = kind
			break
		}
	}
	return p
}

func toBool(raw any) (bool, bool) {
	switch x := raw.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y":
			return true, true
		case "false", "no", "n":
			return false, true
		}
	}
	return false, false
}

func toNumber(raw any) (float64, bool) {
	switch x := raw.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		n, err := x.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return n, err == nil
	}
	return 0, false
}

func describeType(t Type) string {
	if t == "" {
		return "unset value"
	}
	return string(t)
}

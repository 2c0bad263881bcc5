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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUndeclaredFact indicates a fact name outside the vocabulary.
	ErrUndeclaredFact = errors.New("undeclared fact")

	// ErrTypeMismatch indicates a value of the wrong type for its fact.
	ErrTypeMismatch = errors.New("value type mismatch")

	// ErrOutOfDomain indicates a value of the right type but outside the
	// declared domain (enum member or numeric bounds).
	ErrOutOfDomain = errors.New("value outside domain")

	// ErrDerivedFact indicates caller input for a fact that only rules
	// may assert.
	ErrDerivedFact = errors.New("derived fact cannot be supplied as input")

	// ErrInvalidVocabulary indicates a malformed attribute declaration.
	ErrInvalidVocabulary = errors.New("invalid vocabulary")

	// ErrFactConflict indicates an assertion of a different value for a
	// fact that already holds one.
	ErrFactConflict = errors.New("fact conflict")

	// ErrUnresolvable indicates two rules of equal priority asserted
	// different values for the same fact.
	ErrUnresolvable = errors.New("unresolvable fact conflict")
)

// Problem describes one offending fact in a record.
type Problem struct {
	Fact   string `json:"fact"`
	Reason string `json:"reason"`
	Kind   error  `json:"-"`
}

// ValidationError reports every fact in a record that falls outside the
// vocabulary or its value domain.
//
// errors.Is matches the Kind of any contained Problem.
type ValidationError struct {
	Problems []Problem
}

// Error implements error.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = fmt.Sprintf("%s: %s", p.Fact, p.Reason)
	}
	return "invalid facts: " + strings.Join(parts, "; ")
}

// Unwrap returns the kinds of all problems.
func (e *ValidationError) Unwrap() []error {
	kinds := make([]error, 0, len(e.Problems))
	for _, p := range e.Problems {
		if p.Kind != nil {
			kinds = append(kinds, p.Kind)
		}
	}
	return kinds
}

// ConflictError reports two different values for the same fact.
//
// Kind is ErrFactConflict for a plain assertion clash and ErrUnresolvable
// when the inference engine could not break the tie by priority. Rules
// holds the ids of the rules involved, existing holder first.
type ConflictError struct {
	Fact           string
	Existing       Value
	ExistingSource string
	Proposed       Value
	ProposedSource string
	Rules          []string
	Kind           error
}

// Error implements error.
func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("%s: %s holds %s (from %s), %s asserted %s",
		e.kind(), e.Fact, e.Existing, e.ExistingSource, e.ProposedSource, e.Proposed)
	if len(e.Rules) > 0 {
		msg += " [rules: " + strings.Join(e.Rules, ", ") + "]"
	}
	return msg
}

// Unwrap returns the conflict kind.
func (e *ConflictError) Unwrap() error {
	return e.kind()
}

// Unresolvable reports whether the conflict aborted an evaluation.
func (e *ConflictError) Unresolvable() bool {
	return errors.Is(e.kind(), ErrUnresolvable)
}

func (e *ConflictError) kind() error {
	if e.Kind == nil {
		return ErrFactConflict
	}
	return e.Kind
}

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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownFact indicates a condition or conclusion that references a
	// fact name not declared in the document's facts section.
	ErrUnknownFact = errors.New("unknown fact")

	// ErrDuplicateID indicates two rules sharing the same id.
	ErrDuplicateID = errors.New("duplicate rule id")

	// ErrEmptyConclusion indicates a rule with no conclusions.
	ErrEmptyConclusion = errors.New("empty conclusion")

	// ErrInvalidCondition indicates a malformed condition expression, such
	// as a leaf with no operator or a numeric comparison on a bool fact.
	ErrInvalidCondition = errors.New("invalid condition")

	// ErrInvalidConclusion indicates a conclusion that sets zero or more
	// than one of assert, risk, and safeguard, or names an unknown tier.
	ErrInvalidConclusion = errors.New("invalid conclusion")

	// ErrInvalidValue indicates a literal that does not fit the declared
	// fact type or domain.
	ErrInvalidValue = errors.New("invalid value")

	// ErrInvalidDocument indicates a document that fails structural
	// validation or cannot be decoded.
	ErrInvalidDocument = errors.New("invalid rule document")
)

// LoadError describes why a rule document could not be loaded.
//
// # Fields
//
//   - Kind: One of the sentinel errors above. errors.Is matches it.
//   - RuleID: The offending rule, if any.
//   - Fact: The offending fact name, if any.
//   - Err: The underlying cause, if any. errors.Is matches it too.
type LoadError struct {
	Kind   error
	RuleID string
	Fact   string
	Err    error
}

// Error implements error.
func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString("load rule base")
	if e.RuleID != "" {
		fmt.Fprintf(&b, ": rule %q", e.RuleID)
	}
	fmt.Fprintf(&b, ": %v", e.Kind)
	if e.Fact != "" {
		fmt.Fprintf(&b, " %q", e.Fact)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause.
func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsLoadError reports whether err came from loading a rule document.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

func loadErr(kind error, ruleID, fact string, cause error) *LoadError {
	return &LoadError{Kind: kind, RuleID: ruleID, Fact: fact, Err: cause}
}

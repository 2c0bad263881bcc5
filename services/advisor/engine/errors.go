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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNonTermination indicates the cycle cap was exceeded before a
	// fixed point was reached.
	ErrNonTermination = errors.New("inference did not terminate")

	// ErrNoRuleBase indicates an engine constructed or swapped with a nil
	// rule base.
	ErrNoRuleBase = errors.New("no rule base loaded")
)

// InferenceError reports an evaluation that ran past its cycle cap.
//
// # Fields
//
//   - Kind: ErrNonTermination.
//   - Limit: The cycle cap in force.
//   - Pending: Rules that were still matching when the cap was hit.
type InferenceError struct {
	Kind    error
	Limit   int
	Pending []string
}

// Error implements error.
func (e *InferenceError) Error() string {
	msg := fmt.Sprintf("%v: exceeded %d cycles", e.Kind, e.Limit)
	if len(e.Pending) > 0 {
		msg += "; pending rules: " + strings.Join(e.Pending, ", ")
	}
	return msg
}

// Unwrap returns Kind.
func (e *InferenceError) Unwrap() error {
	return e.Kind
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package advisor

import (
	"context"
	"errors"
	"net/http"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/engine"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/facts"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/kb"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/rules"
)

var (
	// ErrNoEngine is returned by NewService when no engine is given.
	ErrNoEngine = errors.New("advisor: engine is required")

	// ErrReloadUnavailable indicates the service was built without a
	// knowledge base reloader.
	ErrReloadUnavailable = errors.New("advisor: reload is not configured")
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeInvalidFacts         = "INVALID_FACTS"
	CodeUnresolvableConflict = "UNRESOLVABLE_CONFLICT"
	CodeNonTermination       = "NON_TERMINATION"
	CodeRateLimited          = "RATE_LIMITED"
	CodeReloadRejected       = "RELOAD_REJECTED"
	CodeReloadUnavailable    = "RELOAD_UNAVAILABLE"
	CodeCanceled             = "CANCELED"
	CodeInternal             = "INTERNAL_ERROR"
)

// classify maps an error to its HTTP status, response code, and metric
// outcome label.
func classify(err error) (status int, code, outcome string) {
	var validation *facts.ValidationError
	var conflict *facts.ConflictError
	var inference *engine.InferenceError

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, CodeInvalidFacts, "invalid_facts"
	case errors.As(err, &conflict) && conflict.Unresolvable():
		return http.StatusConflict, CodeUnresolvableConflict, "unresolvable_conflict"
	case errors.As(err, &inference), errors.Is(err, engine.ErrNonTermination):
		return http.StatusUnprocessableEntity, CodeNonTermination, "non_termination"
	case errors.Is(err, ErrReloadUnavailable):
		return http.StatusServiceUnavailable, CodeReloadUnavailable, "reload_unavailable"
	case rules.IsLoadError(err), errors.Is(err, kb.ErrVersionDowngrade),
		errors.Is(err, kb.ErrInvalidVersion), errors.Is(err, kb.ErrDocumentTooLarge):
		return http.StatusUnprocessableEntity, CodeReloadRejected, "reload_rejected"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, CodeCanceled, "canceled"
	}
	return http.StatusInternalServerError, CodeInternal, "error"
}

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
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/engine"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/facts"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/kb"
)

// =============================================================================
// Requests
// =============================================================================

// EvaluateRequest is the request body for POST /v1/advisor/evaluate.
type EvaluateRequest struct {
	// Facts maps fact names to values. An empty map is a valid record.
	Facts map[string]any `json:"facts" binding:"required"`
}

// QuestionRequest is the request body for POST /v1/advisor/questions/next.
type QuestionRequest struct {
	// Facts are the answers collected so far.
	Facts map[string]any `json:"facts"`

	// Asked lists facts already put to the user, including skipped ones.
	Asked []string `json:"asked" binding:"max=256"`
}

// InspectRequest is the request body for POST /v1/advisor/inspect.
type InspectRequest struct {
	Facts map[string]any `json:"facts"`
}

// =============================================================================
// Responses
// =============================================================================

// EvaluateResponse wraps a verdict with the identity of the evaluation and
// the knowledge base snapshot it ran against.
type EvaluateResponse struct {
	EvaluationID string          `json:"evaluation_id"`
	KBVersion    string          `json:"kb_version"`
	KBDigest     string          `json:"kb_digest"`
	Verdict      *engine.Verdict `json:"verdict"`
	DurationMs   float64         `json:"duration_ms"`
}

// RulesResponse is the response for GET /v1/advisor/rules.
type RulesResponse struct {
	KBVersion string                   `json:"kb_version"`
	KBName    string                   `json:"kb_name,omitempty"`
	Rules     []engine.RuleDescription `json:"rules"`
}

// FactsResponse is the response for GET /v1/advisor/facts.
type FactsResponse struct {
	KBVersion string            `json:"kb_version"`
	Facts     []facts.Attribute `json:"facts"`
}

// ReloadResponse is the response for POST /v1/advisor/reload.
type ReloadResponse struct {
	kb.ReloadResult
	Source string `json:"source"`
}

// HealthResponse is the response for GET /v1/advisor/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is the response for GET /v1/advisor/ready.
type ReadyResponse struct {
	Ready     bool   `json:"ready"`
	KBVersion string `json:"kb_version,omitempty"`
	KBDigest  string `json:"kb_digest,omitempty"`
	Rules     int    `json:"rules"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the machine-readable error code.
	Code string `json:"code,omitempty"`

	// Details provides additional context (optional).
	Details string `json:"details,omitempty"`

	// Problems lists offending facts for INVALID_FACTS.
	Problems []facts.Problem `json:"problems,omitempty"`
}

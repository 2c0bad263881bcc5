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
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianAdvisor/pkg/logging"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/facts"
)

// Handlers contains the HTTP handlers for the advisor API.
type Handlers struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc, logger: svc.logger}
}

// HandleEvaluate handles POST /v1/advisor/evaluate.
//
// # Description
//
// Evaluates a fact record against the active knowledge base.
//
// # Request Body
//
//	EvaluateRequest
//
// # Response
//
//	200 OK: EvaluateResponse
//	400 Bad Request: INVALID_REQUEST or INVALID_FACTS
//	409 Conflict: UNRESOLVABLE_CONFLICT
//	422 Unprocessable Entity: NON_TERMINATION
//	500 Internal Server Error: any other failure
func (h *Handlers) HandleEvaluate(c *gin.Context) {
	logger := h.requestLogger(c, "HandleEvaluate")

	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    CodeInvalidRequest,
			Details: err.Error(),
		})
		return
	}

	resp, err := h.svc.Evaluate(c.Request.Context(), req.Facts)
	if err != nil {
		h.fail(c, logger, "Evaluation failed", err)
		return
	}

	logger.Info("Evaluation complete",
		"evaluation_id", resp.EvaluationID,
		"kb_version", resp.KBVersion,
		"risk_tier", resp.Verdict.RiskTier,
		"rules_fired", len(resp.Verdict.Rationale),
		"facts", len(req.Facts),
		"duration_ms", resp.DurationMs)

	c.JSON(http.StatusOK, resp)
}

// HandleNextQuestion handles POST /v1/advisor/questions/next.
//
// # Response
//
//	200 OK: engine.QuestionResult (done=true when nothing is left to ask)
//	400 Bad Request: INVALID_REQUEST or INVALID_FACTS
func (h *Handlers) HandleNextQuestion(c *gin.Context) {
	logger := h.requestLogger(c, "HandleNextQuestion")

	var req QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    CodeInvalidRequest,
			Details: err.Error(),
		})
		return
	}

	res, err := h.svc.NextQuestion(c.Request.Context(), req.Facts, req.Asked)
	if err != nil {
		h.fail(c, logger, "Question selection failed", err)
		return
	}

	if res.Done {
		logger.Debug("Interview complete", "facts", len(req.Facts))
	} else {
		logger.Debug("Next question", "fact", res.Question.Fact, "score", res.Question.Score)
	}
	c.JSON(http.StatusOK, res)
}

// HandleInspect handles POST /v1/advisor/inspect.
//
// # Response
//
//	200 OK: engine.Inspection
//	400 Bad Request: INVALID_REQUEST or INVALID_FACTS
func (h *Handlers) HandleInspect(c *gin.Context) {
	logger := h.requestLogger(c, "HandleInspect")

	var req InspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    CodeInvalidRequest,
			Details: err.Error(),
		})
		return
	}

	ins, err := h.svc.Inspect(c.Request.Context(), req.Facts)
	if err != nil {
		h.fail(c, logger, "Inspection failed", err)
		return
	}
	c.JSON(http.StatusOK, ins)
}

// HandleRules handles GET /v1/advisor/rules.
func (h *Handlers) HandleRules(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Rules())
}

// HandleFacts handles GET /v1/advisor/facts.
func (h *Handlers) HandleFacts(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Facts())
}

// HandleReload handles POST /v1/advisor/reload.
//
// # Response
//
//	200 OK: ReloadResponse
//	422 Unprocessable Entity: RELOAD_REJECTED (active snapshot kept)
//	503 Service Unavailable: RELOAD_UNAVAILABLE
func (h *Handlers) HandleReload(c *gin.Context) {
	logger := h.requestLogger(c, "HandleReload")

	resp, err := h.svc.Reload(c.Request.Context())
	if err != nil {
		h.fail(c, logger, "Reload failed", err)
		return
	}

	logger.Info("Reload handled", "changed", resp.Changed, "version", resp.Version)
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/advisor/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/advisor/ready.
//
// # Response
//
//	200 OK: ReadyResponse (ready=true)
//	503 Service Unavailable: ReadyResponse (ready=false)
func (h *Handlers) HandleReady(c *gin.Context) {
	resp := h.svc.Ready()
	if !resp.Ready {
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) fail(c *gin.Context, logger *logging.Logger, msg string, err error) {
	status, code, _ := classify(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	var validation *facts.ValidationError
	if errors.As(err, &validation) {
		resp.Problems = validation.Problems
	}

	if status >= http.StatusInternalServerError {
		logger.Error(msg, "error", err, "code", code)
	} else {
		logger.Warn(msg, "error", err, "code", code)
	}
	c.JSON(status, resp)
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *logging.Logger {
	return h.logger.With("request_id", getOrCreateRequestID(c), "handler", handler)
}

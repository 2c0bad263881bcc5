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
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/telemetry"
)

// RegisterRoutes registers all advisor routes with the router.
//
// # Description
//
// Registers the /v1/advisor/* endpoints on rg. The group should already
// carry any required middleware.
//
// # Inputs
//
//   - rg: Gin router group (typically /v1).
//   - handlers: The handlers instance.
//
// # Endpoints
//
//	POST /v1/advisor/evaluate       - Evaluate a fact record
//	GET  /v1/advisor/rules          - Describe the active rules
//	GET  /v1/advisor/facts          - List the fact vocabulary
//	POST /v1/advisor/questions/next - Pick the next question to ask
//	POST /v1/advisor/inspect        - Inspect inference over partial facts
//	POST /v1/advisor/reload         - Reload the knowledge base
//	GET  /v1/advisor/health         - Liveness
//	GET  /v1/advisor/ready          - Readiness
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	advisor := rg.Group("/advisor")
	{
		advisor.POST("/evaluate", handlers.HandleEvaluate)
		advisor.GET("/rules", handlers.HandleRules)
		advisor.GET("/facts", handlers.HandleFacts)
		advisor.POST("/questions/next", handlers.HandleNextQuestion)
		advisor.POST("/inspect", handlers.HandleInspect)
		advisor.POST("/reload", handlers.HandleReload)

		advisor.GET("/health", handlers.HandleHealth)
		advisor.GET("/ready", handlers.HandleReady)
	}
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// ServiceName names the otelgin server spans. Default: "advisor".
	ServiceName string

	// RateLimit is the sustained request rate per second for /v1. Zero
	// disables limiting.
	RateLimit float64

	// RateBurst is the limiter burst. Defaults to 1 when RateLimit is set.
	RateBurst int
}

// NewRouter builds the gin engine serving the advisor API.
//
// # Description
//
// Applies recovery, otelgin tracing, request ids, access logging, and
// request metrics to every route, then rate limiting to /v1. GET
// /metrics is mounted when the Prometheus exporter is active.
func NewRouter(handlers *Handlers, opts RouterOptions) *gin.Engine {
	name := opts.ServiceName
	if name == "" {
		name = "advisor"
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(name),
		RequestID(),
		AccessLog(handlers.logger),
		Metrics(handlers.svc.metrics),
	)

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	v1 := router.Group("/v1")
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		v1.Use(RateLimit(rate.NewLimiter(rate.Limit(opts.RateLimit), burst)))
	}
	RegisterRoutes(v1, handlers)
	return router
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package advisor exposes the risk inference engine over HTTP.
//
//	┌────────┐   ┌──────────┐   ┌─────────┐   ┌──────────────┐
//	│  gin   │──▶│ Handlers │──▶│ Service │──▶│ engine.Engine │
//	└────────┘   └──────────┘   └────┬────┘   └──────────────┘
//	                                 │
//	                                 └──▶ kb.Reloader (POST /reload)
//
// Service owns tracing and metrics around every engine call. Handlers
// own request binding, error mapping, and request-scoped logging.
package advisor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianAdvisor/pkg/logging"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/engine"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/facts"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/kb"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/telemetry"
)

// ServiceVersion is the advisor HTTP API version.
const ServiceVersion = "1.0.0"

// ServiceOptions configures optional collaborators of a Service.
type ServiceOptions struct {
	// Reloader enables POST /reload. Nil disables it.
	Reloader *kb.Reloader

	// Metrics receives evaluation and reload measurements. Nil disables
	// them.
	Metrics *telemetry.Metrics

	// Logger defaults to logging.Default().
	Logger *logging.Logger
}

// Service runs engine operations with tracing and metrics.
//
// # Thread Safety
//
// Safe for concurrent use. All state lives in the engine's atomic
// snapshot.
type Service struct {
	engine   *engine.Engine
	reloader *kb.Reloader
	metrics  *telemetry.Metrics
	logger   *logging.Logger
}

// NewService creates a Service over e.
func NewService(e *engine.Engine, opts ServiceOptions) (*Service, error) {
	if e == nil {
		return nil, ErrNoEngine
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		engine:   e,
		reloader: opts.Reloader,
		metrics:  opts.Metrics,
		logger:   logger,
	}, nil
}

// Engine returns the underlying engine.
func (s *Service) Engine() *engine.Engine {
	return s.engine
}

// Evaluate builds a record from raw values and evaluates it.
//
// # Description
//
// Values are coerced with the active vocabulary. The response names the
// snapshot the verdict was computed against, which may differ from the
// active one if a reload landed mid-request.
//
// # Outputs
//
//   - *EvaluateResponse: The verdict with a fresh evaluation id.
//   - error: Any engine error, unchanged for errors.Is/errors.As.
func (s *Service) Evaluate(ctx context.Context, raw map[string]any) (*EvaluateResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "Service.Evaluate",
		trace.WithAttributes(attribute.Int("advisor.facts", len(raw))))
	defer span.End()

	start := time.Now()
	rec, err := s.record(raw)
	if err != nil {
		s.observe(ctx, span, start, nil, err)
		return nil, err
	}

	verdict, rb, err := s.engine.EvaluatePinned(ctx, rec)
	s.observe(ctx, span, start, verdict, err)
	if err != nil {
		return nil, err
	}

	return &EvaluateResponse{
		EvaluationID: uuid.NewString(),
		KBVersion:    rb.Version(),
		KBDigest:     rb.Digest(),
		Verdict:      verdict,
		DurationMs:   float64(time.Since(start).Microseconds()) / 1000,
	}, nil
}

// NextQuestion picks the next fact to ask for, given the answers so far.
func (s *Service) NextQuestion(ctx context.Context, raw map[string]any, asked []string) (*engine.QuestionResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Service.NextQuestion",
		trace.WithAttributes(attribute.Int("advisor.facts", len(raw)), attribute.Int("advisor.asked", len(asked))))
	defer span.End()

	rec, err := s.record(raw)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	res, err := s.engine.NextQuestion(ctx, rec, asked)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if res.Question != nil {
		span.SetAttributes(attribute.String("advisor.question", res.Question.Fact))
	}
	telemetry.SetSpanOK(span)
	return res, nil
}

// Inspect reports inference state over a partial record.
func (s *Service) Inspect(ctx context.Context, raw map[string]any) (*engine.Inspection, error) {
	ctx, span := telemetry.StartSpan(ctx, "Service.Inspect")
	defer span.End()

	rec, err := s.record(raw)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	ins, err := s.engine.Inspect(ctx, rec)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetSpanOK(span)
	return ins, nil
}

// Rules describes every rule of the active snapshot.
func (s *Service) Rules() RulesResponse {
	rb := s.engine.Snapshot()
	return RulesResponse{
		KBVersion: rb.Version(),
		KBName:    rb.Name(),
		Rules:     s.engine.DescribeRules(),
	}
}

// Facts lists the vocabulary of the active snapshot in declaration order.
func (s *Service) Facts() FactsResponse {
	rb := s.engine.Snapshot()
	return FactsResponse{
		KBVersion: rb.Version(),
		Facts:     rb.Vocabulary().Attributes(),
	}
}

// Ready reports the active snapshot.
func (s *Service) Ready() ReadyResponse {
	rb := s.engine.Snapshot()
	if rb == nil {
		return ReadyResponse{}
	}
	return ReadyResponse{
		Ready:     true,
		KBVersion: rb.Version(),
		KBDigest:  rb.Digest(),
		Rules:     rb.Len(),
	}
}

// Reload reloads the knowledge base from the configured source.
//
// # Outputs
//
//   - ReloadResponse: What changed. The active snapshot is kept on error.
//   - error: ErrReloadUnavailable, or the reloader's error.
func (s *Service) Reload(ctx context.Context) (ReloadResponse, error) {
	if s.reloader == nil {
		return ReloadResponse{}, ErrReloadUnavailable
	}
	ctx, span := telemetry.StartSpan(ctx, "Service.Reload")
	defer span.End()

	res, err := s.reloader.Reload(ctx)
	resp := ReloadResponse{ReloadResult: res, Source: s.reloader.Source().String()}
	if err != nil {
		telemetry.RecordError(span, err)
		return resp, err
	}
	span.SetAttributes(attribute.Bool("advisor.kb.changed", res.Changed), attribute.String("advisor.kb.version", res.Version))
	telemetry.SetSpanOK(span)
	return resp, nil
}

// RecordReload is a kb.ReloaderOptions.OnReload hook that feeds reload
// metrics. Wire it when building the reloader so watcher-triggered
// reloads are counted too.
func (s *Service) RecordReload(res kb.ReloadResult, err error) {
	result := "unchanged"
	switch {
	case err != nil:
		result = "rejected"
	case res.Changed:
		result = "changed"
	}
	s.metrics.RecordReload(context.Background(), result)
}

// SetReloader attaches a reloader after construction. Call it before
// serving requests.
func (s *Service) SetReloader(r *kb.Reloader) {
	s.reloader = r
}

func (s *Service) record(raw map[string]any) (facts.Record, error) {
	return s.engine.Snapshot().Vocabulary().NewRecord(raw)
}

func (s *Service) observe(ctx context.Context, span trace.Span, start time.Time, v *engine.Verdict, err error) {
	seconds := time.Since(start).Seconds()
	if err != nil {
		_, _, outcome := classify(err)
		telemetry.RecordError(span, err, attribute.String("advisor.outcome", outcome))
		s.metrics.RecordEvaluation(ctx, outcome, "", seconds, 0, nil)
		return
	}
	span.SetAttributes(
		attribute.String("advisor.risk_tier", v.RiskTier.String()),
		attribute.Int("advisor.cycles", v.Cycles),
		attribute.Int("advisor.rules_fired", len(v.Rationale)),
	)
	telemetry.SetSpanOK(span)
	s.metrics.RecordEvaluation(ctx, "ok", v.RiskTier.String(), seconds, v.Cycles, v.Fired())
}

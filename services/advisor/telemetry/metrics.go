// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the advisor's instruments. All names use the "advisor_"
// prefix.
//
// # Thread Safety
//
// Safe for concurrent use after creation.
type Metrics struct {
	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// EvaluationsTotal counts evaluations by outcome and risk tier.
	EvaluationsTotal metric.Int64Counter

	// EvaluationDuration records evaluation duration in seconds.
	EvaluationDuration metric.Float64Histogram

	// InferenceCycles records productive cycles per evaluation.
	InferenceCycles metric.Int64Histogram

	// RulesFiredTotal counts rule firings by rule id.
	RulesFiredTotal metric.Int64Counter

	// ReloadsTotal counts knowledge base reloads by result.
	ReloadsTotal metric.Int64Counter

	// ErrorsTotal counts errors by kind and component.
	ErrorsTotal metric.Int64Counter

	// RuleBaseRules reports the active rule count. Registered by
	// RegisterRuleBaseGauge.
	RuleBaseRules metric.Int64ObservableGauge
}

// NewMetrics creates every instrument on meter.
//
// # Inputs
//
//   - meter: The OTel meter. otel.Meter("advisor") in production, a
//     manual-reader meter in tests.
//
// # Outputs
//
//   - *Metrics: Initialized instruments.
//   - error: Non-nil if any registration fails.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"advisor_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"advisor_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	); err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	if m.EvaluationsTotal, err = meter.Int64Counter(
		"advisor_evaluations_total",
		metric.WithDescription("Total evaluations"),
		metric.WithUnit("{evaluation}"),
	); err != nil {
		return nil, fmt.Errorf("create evaluations_total: %w", err)
	}

	if m.EvaluationDuration, err = meter.Float64Histogram(
		"advisor_evaluation_duration_seconds",
		metric.WithDescription("Evaluation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1),
	); err != nil {
		return nil, fmt.Errorf("create evaluation_duration: %w", err)
	}

	if m.InferenceCycles, err = meter.Int64Histogram(
		"advisor_inference_cycles",
		metric.WithDescription("Productive inference cycles per evaluation"),
		metric.WithUnit("{cycle}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 5, 8, 13, 21),
	); err != nil {
		return nil, fmt.Errorf("create inference_cycles: %w", err)
	}

	if m.RulesFiredTotal, err = meter.Int64Counter(
		"advisor_rules_fired_total",
		metric.WithDescription("Total rule firings"),
		metric.WithUnit("{firing}"),
	); err != nil {
		return nil, fmt.Errorf("create rules_fired_total: %w", err)
	}

	if m.ReloadsTotal, err = meter.Int64Counter(
		"advisor_kb_reloads_total",
		metric.WithDescription("Total knowledge base reload attempts"),
		metric.WithUnit("{reload}"),
	); err != nil {
		return nil, fmt.Errorf("create kb_reloads_total: %w", err)
	}

	if m.ErrorsTotal, err = meter.Int64Counter(
		"advisor_errors_total",
		metric.WithDescription("Total errors by kind and component"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}

// RegisterRuleBaseGauge registers a callback reporting the active rule
// count on each collection.
func (m *Metrics) RegisterRuleBaseGauge(meter metric.Meter, rules func() int64) (metric.Registration, error) {
	var err error
	m.RuleBaseRules, err = meter.Int64ObservableGauge(
		"advisor_kb_rules",
		metric.WithDescription("Rules in the active knowledge base"),
		metric.WithUnit("{rule}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kb_rules: %w", err)
	}
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.RuleBaseRules, rules())
		return nil
	}, m.RuleBaseRules)
}

// RecordEvaluation records one finished evaluation.
//
// outcome is "ok" or an error kind. tier and fired are ignored when the
// evaluation failed.
func (m *Metrics) RecordEvaluation(ctx context.Context, outcome, tier string, seconds float64, cycles int, fired []string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if tier != "" {
		attrs = append(attrs, attribute.String("tier", tier))
	}
	m.EvaluationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.EvaluationDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("outcome", outcome)))
	if outcome != "ok" {
		m.ErrorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", outcome),
			attribute.String("component", "engine"),
		))
		return
	}
	m.InferenceCycles.Record(ctx, int64(cycles))
	for _, id := range fired {
		m.RulesFiredTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("rule_id", id)))
	}
}

// RecordReload records one reload attempt with result "changed",
// "unchanged", or "rejected".
func (m *Metrics) RecordReload(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.ReloadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	if result == "rejected" {
		m.ErrorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", "reload_rejected"),
			attribute.String("component", "kb"),
		))
	}
}

// RecordHTTP records one HTTP request.
func (m *Metrics) RecordHTTP(ctx context.Context, method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, seconds, attrs)
}

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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAdvisor/pkg/logging"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/engine"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/facts"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/kb"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/risk"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/rules"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testKB = `
version: %s
name: http-test
facts:
  - name: consumer_pii_used
    type: bool
    question: Does the use case process personal data about consumers?
  - name: public_facing
    type: bool
    question: Is model output shown directly to the public?
  - name: human_review_present
    type: bool
    question: Does a person review output before it is used?
  - name: flag
    type: bool
    derived: true
rules:
  - id: R1
    priority: 10
    when: [{fact: consumer_pii_used, eq: true}]
    then: [{risk: medium}]
  - id: R2
    priority: 10
    when:
      - {fact: public_facing, eq: true}
      - {fact: consumer_pii_used, eq: true}
    then:
      - risk: high
      - safeguard: legal review
  - id: R3
    priority: 5
    when:
      - not: {fact: human_review_present, eq: true}
    then:
      - safeguard: mandatory human checkpoint
`

const conflictKB = `
version: v1.0.0
facts:
  - name: public_facing
    type: bool
  - name: flag
    type: bool
    derived: true
rules:
  - id: A
    priority: 10
    when: [{fact: public_facing, eq: true}]
    then: [{assert: {fact: flag, value: true}}]
  - id: B
    priority: 10
    when: [{fact: public_facing, eq: true}]
    then: [{assert: {fact: flag, value: false}}]
`

const chainKB = `
version: v1.0.0
facts:
  - name: public_facing
    type: bool
  - name: flag
    type: bool
    derived: true
rules:
  - id: C1
    priority: 1
    when: [{fact: public_facing, eq: true}]
    then: [{assert: {fact: flag, value: true}}]
  - id: C2
    priority: 1
    when: [{fact: flag, eq: true}]
    then: [{safeguard: chained}]
`

type testEnv struct {
	router *gin.Engine
	svc    *Service
	kbPath string
}

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Quiet: true})
}

func mustRuleBase(t *testing.T, doc string) *rules.RuleBase {
	t.Helper()
	parsed, err := rules.ParseDocument([]byte(doc))
	require.NoError(t, err)
	rb, err := rules.Load(parsed)
	require.NoError(t, err)
	return rb
}

// newTestEnv serves testKB from a temp file with a reloader attached.
func newTestEnv(t *testing.T, opts RouterOptions) *testEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(testKB, "v1.0.0")), 0600))

	rb, err := kb.Load(context.Background(), kb.FileSource{Path: path})
	require.NoError(t, err)
	e, err := engine.New(rb)
	require.NoError(t, err)

	svc, err := NewService(e, ServiceOptions{Logger: quietLogger()})
	require.NoError(t, err)
	svc.SetReloader(kb.NewReloader(e, kb.FileSource{Path: path}, quietLogger(), kb.ReloaderOptions{OnReload: svc.RecordReload}))

	return &testEnv{router: NewRouter(NewHandlers(svc), opts), svc: svc, kbPath: path}
}

func newEnvForDoc(t *testing.T, doc string, opts ...engine.Option) *gin.Engine {
	t.Helper()
	e, err := engine.New(mustRuleBase(t, doc), opts...)
	require.NoError(t, err)
	svc, err := NewService(e, ServiceOptions{Logger: quietLogger()})
	require.NoError(t, err)
	return NewRouter(NewHandlers(svc), RouterOptions{})
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// =============================================================================
// Evaluate
// =============================================================================

func TestHandleEvaluate_PIIPublicScenario(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})

	rec := do(t, env.router, http.MethodPost, "/v1/advisor/evaluate", EvaluateRequest{
		Facts: map[string]any{"consumer_pii_used": true, "public_facing": true, "human_review_present": false},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[EvaluateResponse](t, rec)
	assert.NotEmpty(t, resp.EvaluationID)
	assert.Equal(t, "v1.0.0", resp.KBVersion)
	assert.NotEmpty(t, resp.KBDigest)
	assert.Equal(t, risk.TierHigh, resp.Verdict.RiskTier)
	assert.Equal(t, []string{"legal review", "mandatory human checkpoint"}, resp.Verdict.Safeguards)
	assert.Equal(t, []string{"R1", "R2", "R3"}, resp.Verdict.Fired())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHandleEvaluate_EchoesRequestID(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/advisor/evaluate", bytes.NewBufferString(`{"facts":{}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestHandleEvaluate_EmptyRecord(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})

	rec := do(t, env.router, http.MethodPost, "/v1/advisor/evaluate", `{"facts":{}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[EvaluateResponse](t, rec)
	assert.Equal(t, risk.TierNone, resp.Verdict.RiskTier)
	assert.Empty(t, resp.Verdict.Fired())
	assert.NotNil(t, resp.Verdict.Safeguards)
}

func TestHandleEvaluate_InvalidRequest(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"facts":`},
		{"missing facts", `{}`},
		{"facts not an object", `{"facts":[1,2]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, env.router, http.MethodPost, "/v1/advisor/evaluate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, CodeInvalidRequest, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestHandleEvaluate_InvalidFacts(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})

	rec := do(t, env.router, http.MethodPost, "/v1/advisor/evaluate", EvaluateRequest{
		Facts: map[string]any{"consumer_pii_used": "sometimes", "budget": 3},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, CodeInvalidFacts, resp.Code)
	require.Len(t, resp.Problems, 2)
	assert.Equal(t, "budget", resp.Problems[0].Fact)
	assert.Equal(t, "consumer_pii_used", resp.Problems[1].Fact)
}

func TestHandleEvaluate_DerivedFactInput(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})

	rec := do(t, env.router, http.MethodPost, "/v1/advisor/evaluate", EvaluateRequest{
		Facts: map[string]any{"public_facing": true, "flag": false},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, CodeInvalidFacts, resp.Code)
	require.Len(t, resp.Problems, 1)
	assert.Equal(t, "flag", resp.Problems[0].Fact)
}

func TestHandleEvaluate_UnresolvableConflict(t *testing.T) {
	router := newEnvForDoc(t, conflictKB)

	rec := do(t, router, http.MethodPost, "/v1/advisor/evaluate", `{"facts":{"public_facing":true}}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeUnresolvableConflict, decode[ErrorResponse](t, rec).Code)
}

func TestHandleEvaluate_NonTermination(t *testing.T) {
	router := newEnvForDoc(t, chainKB, engine.WithMaxCycles(1))

	rec := do(t, router, http.MethodPost, "/v1/advisor/evaluate", `{"facts":{"public_facing":true}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, CodeNonTermination, decode[ErrorResponse](t, rec).Code)
}

// =============================================================================
// Questions and Inspection
// =============================================================================

func TestHandleNextQuestion(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})

	rec := do(t, env.router, http.MethodPost, "/v1/advisor/questions/next", QuestionRequest{})
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[engine.QuestionResult](t, rec)
	require.False(t, res.Done)
	assert.Equal(t, "consumer_pii_used", res.Question.Fact)

	rec = do(t, env.router, http.MethodPost, "/v1/advisor/questions/next", QuestionRequest{
		Facts: map[string]any{"consumer_pii_used": false},
		Asked: []string{"consumer_pii_used", "human_review_present"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[engine.QuestionResult](t, rec)
	assert.True(t, res.Done)
	assert.Nil(t, res.Question)
	require.NotNil(t, res.Verdict)
}

func TestHandleInspect(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})

	rec := do(t, env.router, http.MethodPost, "/v1/advisor/inspect", InspectRequest{
		Facts: map[string]any{"consumer_pii_used": true},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	ins := decode[engine.Inspection](t, rec)
	assert.Equal(t, []string{"R1"}, ins.Fired)
	require.Len(t, ins.Candidates, 2)
	assert.Equal(t, "R2", ins.Candidates[0].RuleID)
	assert.Equal(t, []string{"public_facing"}, ins.Candidates[0].Missing)
	assert.Equal(t, "R3", ins.Candidates[1].RuleID)
}

// =============================================================================
// Rules, Facts, Reload
// =============================================================================

func TestHandleRules(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})

	rec := do(t, env.router, http.MethodGet, "/v1/advisor/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[RulesResponse](t, rec)
	assert.Equal(t, "http-test", resp.KBName)
	require.Len(t, resp.Rules, 3)
	assert.Equal(t, "R1", resp.Rules[0].ID)
	assert.Equal(t, "R3", resp.Rules[2].ID)
}

func TestHandleFacts(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})

	rec := do(t, env.router, http.MethodGet, "/v1/advisor/facts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[FactsResponse](t, rec)
	require.Len(t, resp.Facts, 4)
	assert.Equal(t, "consumer_pii_used", resp.Facts[0].Name)
	assert.Equal(t, facts.TypeBool, resp.Facts[0].Type)
	assert.True(t, resp.Facts[3].Derived)
}

func TestHandleReload(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})

	rec := do(t, env.router, http.MethodPost, "/v1/advisor/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ReloadResponse](t, rec).Changed)

	require.NoError(t, os.WriteFile(env.kbPath, []byte(fmt.Sprintf(testKB, "v1.1.0")), 0600))
	rec = do(t, env.router, http.MethodPost, "/v1/advisor/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ReloadResponse](t, rec)
	assert.True(t, resp.Changed)
	assert.Equal(t, "v1.1.0", resp.Version)
	assert.Equal(t, env.kbPath, resp.Source)
	assert.Equal(t, "v1.1.0", env.svc.Engine().Snapshot().Version())
}

func TestHandleReload_RejectedKeepsSnapshot(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})
	before := env.svc.Engine().Snapshot()

	require.NoError(t, os.WriteFile(env.kbPath, []byte("rules: [{id: X}]"), 0600))
	rec := do(t, env.router, http.MethodPost, "/v1/advisor/reload", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, CodeReloadRejected, decode[ErrorResponse](t, rec).Code)
	assert.Same(t, before, env.svc.Engine().Snapshot())
}

func TestHandleReload_Unavailable(t *testing.T) {
	router := newEnvForDoc(t, chainKB)

	rec := do(t, router, http.MethodPost, "/v1/advisor/reload", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, CodeReloadUnavailable, decode[ErrorResponse](t, rec).Code)
}

// =============================================================================
// Health, Readiness, Middleware
// =============================================================================

func TestHandleHealthAndReady(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})

	rec := do(t, env.router, http.MethodGet, "/v1/advisor/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[HealthResponse](t, rec).Status)

	rec = do(t, env.router, http.MethodGet, "/v1/advisor/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadyResponse](t, rec)
	assert.True(t, ready.Ready)
	assert.Equal(t, 3, ready.Rules)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, RouterOptions{RateLimit: 0.001, RateBurst: 1})

	first := do(t, env.router, http.MethodGet, "/v1/advisor/health", nil)
	assert.Equal(t, http.StatusOK, first.Code)

	second := do(t, env.router, http.MethodGet, "/v1/advisor/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, CodeRateLimited, decode[ErrorResponse](t, second).Code)
}

func TestNewService_NilEngine(t *testing.T) {
	_, err := NewService(nil, ServiceOptions{})
	assert.ErrorIs(t, err, ErrNoEngine)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &facts.ValidationError{Problems: []facts.Problem{{Fact: "x", Kind: facts.ErrUndeclaredFact}}}, http.StatusBadRequest, CodeInvalidFacts},
		{"unresolvable", fmt.Errorf("wrap: %w", &facts.ConflictError{Fact: "f", Kind: facts.ErrUnresolvable}), http.StatusConflict, CodeUnresolvableConflict},
		{"plain conflict", &facts.ConflictError{Fact: "f", Kind: facts.ErrFactConflict}, http.StatusInternalServerError, CodeInternal},
		{"non termination", &engine.InferenceError{Kind: engine.ErrNonTermination, Limit: 3}, http.StatusUnprocessableEntity, CodeNonTermination},
		{"downgrade", fmt.Errorf("reload: %w", kb.ErrVersionDowngrade), http.StatusUnprocessableEntity, CodeReloadRejected},
		{"canceled", fmt.Errorf("evaluate: %w", context.Canceled), http.StatusServiceUnavailable, CodeCanceled},
		{"other", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _ := classify(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kb

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianAdvisor/pkg/logging"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/engine"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/facts"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/risk"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/rules"
)

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Quiet: true})
}

func kbDoc(version, tier string) string {
	return `version: ` + version + `
facts:
  - name: public_facing
    type: bool
rules:
  - id: R1
    priority: 1
    when: [{fact: public_facing, eq: true}]
    then: [{risk: ` + tier + `}]
`
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

// =============================================================================
// Embedded Knowledge Base
// =============================================================================

func TestDefaultKnowledgeBase_IsValidYAML(t *testing.T) {
	require.NotEmpty(t, DefaultKnowledgeBase)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(DefaultKnowledgeBase, &doc))

	hash := sha256.Sum256(DefaultKnowledgeBase)
	assert.NotEqual(t, [32]byte{}, hash)
}

func TestDefaultKnowledgeBase_Loads(t *testing.T) {
	rb, err := Load(context.Background(), EmbeddedSource{})
	require.NoError(t, err)

	assert.Equal(t, "genai-use-case-risk", rb.Name())
	assert.NotZero(t, rb.Len())
	assert.NoError(t, CheckUpgrade("v0.0.1", rb.Version(), false))
}

func TestDefaultKnowledgeBase_Scenarios(t *testing.T) {
	rb, err := Load(context.Background(), EmbeddedSource{})
	require.NoError(t, err)
	e, err := engine.New(rb)
	require.NoError(t, err)

	tests := []struct {
		name          string
		facts         map[string]any
		wantTier      risk.Tier
		wantSafeguard string
	}{
		{
			name:     "internal summarizer of public docs",
			facts:    map[string]any{"data_sensitivity": "public", "public_facing": false, "consumer_pii_used": false},
			wantTier: risk.TierNone, wantSafeguard: "standard acceptable use policy",
		},
		{
			name: "credit decisions without review",
			facts: map[string]any{
				"decision_impact": "legal_or_financial", "regulated_domain": "finance",
				"human_review_present": false,
			},
			wantTier: risk.TierHigh, wantSafeguard: "mandatory human checkpoint",
		},
		{
			name:     "public chatbot over customer data",
			facts:    map[string]any{"consumer_pii_used": true, "public_facing": true},
			wantTier: risk.TierHigh, wantSafeguard: "legal review",
		},
		{
			name:     "confidential data to vendor",
			facts:    map[string]any{"data_sensitivity": "confidential", "data_leaves_boundary": true},
			wantTier: risk.TierHigh, wantSafeguard: "data processing agreement with model vendor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := rb.Vocabulary().NewRecord(tt.facts)
			require.NoError(t, err)
			v, err := e.Evaluate(context.Background(), rec)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTier, v.RiskTier)
			assert.Contains(t, v.Safeguards, tt.wantSafeguard)
		})
	}
}

func TestDefaultKnowledgeBase_DerivedInputCannotCancelEscalation(t *testing.T) {
	rb, err := Load(context.Background(), EmbeddedSource{})
	require.NoError(t, err)
	e, err := engine.New(rb)
	require.NoError(t, err)

	values := map[string]any{
		"automation_share":     0.9,
		"decision_impact":      "significant",
		"human_review_present": false,
	}
	rec, err := rb.Vocabulary().NewRecord(values)
	require.NoError(t, err)
	v, err := e.Evaluate(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, risk.TierHigh, v.RiskTier)
	assert.Contains(t, v.Safeguards, "mandatory human checkpoint")

	values["human_review_required"] = false
	_, err = rb.Vocabulary().NewRecord(values)
	assert.ErrorIs(t, err, facts.ErrDerivedFact)
}

// =============================================================================
// Sources
// =============================================================================

func TestOpenSource(t *testing.T) {
	ctx := context.Background()

	src, err := OpenSource(ctx, "", SourceOptions{})
	require.NoError(t, err)
	assert.Equal(t, "embedded", src.String())

	src, err = OpenSource(ctx, "embedded", SourceOptions{})
	require.NoError(t, err)
	assert.IsType(t, EmbeddedSource{}, src)

	src, err = OpenSource(ctx, "./kb.yaml", SourceOptions{})
	require.NoError(t, err)
	assert.Equal(t, FileSource{Path: "./kb.yaml"}, src)

	_, err = OpenSource(ctx, "gs://bucket", SourceOptions{})
	assert.ErrorIs(t, err, ErrInvalidSource)

	_, err = OpenSource(ctx, "gs://bucket/kb.yaml", SourceOptions{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://kb-bucket/advisor/kb.yaml", "kb-bucket", "advisor/kb.yaml", false},
		{"gs://kb-bucket/", "", "", true},
		{"gs:///kb.yaml", "", "", true},
		{"gs://kb-bucket/dir/", "", "", true},
		{"s3://kb-bucket/kb.yaml", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSource)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.yaml")
	writeFile(t, path, kbDoc("v1.0.0", "low"))

	rb, err := Load(context.Background(), FileSource{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", rb.Version())

	_, err = Load(context.Background(), FileSource{Path: path + ".missing"})
	assert.ErrorIs(t, err, os.ErrNotExist)

	writeFile(t, path, "rules: [")
	_, err = Load(context.Background(), FileSource{Path: path})
	assert.ErrorIs(t, err, rules.ErrInvalidDocument)
}

func TestReadLimited(t *testing.T) {
	_, err := readLimited(bytes.NewReader(make([]byte, maxDocumentBytes+1)))
	assert.ErrorIs(t, err, ErrDocumentTooLarge)

	data, err := readLimited(strings.NewReader("ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
}

// =============================================================================
// Reloader
// =============================================================================

func newFileEngine(t *testing.T, content string) (*engine.Engine, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kb.yaml")
	writeFile(t, path, content)
	rb, err := Load(context.Background(), FileSource{Path: path})
	require.NoError(t, err)
	e, err := engine.New(rb)
	require.NoError(t, err)
	return e, path
}

func TestReloader_Reload(t *testing.T) {
	e, path := newFileEngine(t, kbDoc("v1.0.0", "low"))
	var calls atomic.Int32
	r := NewReloader(e, FileSource{Path: path}, quietLogger(), ReloaderOptions{
		OnReload: func(ReloadResult, error) { calls.Add(1) },
	})
	ctx := context.Background()

	res, err := r.Reload(ctx)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	writeFile(t, path, kbDoc("v1.1.0", "high"))
	res, err = r.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "v1.1.0", res.Version)
	assert.Equal(t, "v1.0.0", res.PreviousVersion)
	assert.Equal(t, "v1.1.0", e.Snapshot().Version())

	assert.Equal(t, int32(2), calls.Load())
}

func TestReloader_KeepsActiveOnFailure(t *testing.T) {
	e, path := newFileEngine(t, kbDoc("v1.0.0", "low"))
	r := NewReloader(e, FileSource{Path: path}, quietLogger(), ReloaderOptions{})
	before := e.Snapshot()

	writeFile(t, path, kbDoc("v1.1.0", "catastrophic"))
	_, err := r.Reload(context.Background())
	assert.ErrorIs(t, err, rules.ErrInvalidConclusion)
	assert.Same(t, before, e.Snapshot())

	writeFile(t, path, kbDoc("v0.9.0", "high"))
	_, err = r.Reload(context.Background())
	assert.ErrorIs(t, err, ErrVersionDowngrade)
	assert.Same(t, before, e.Snapshot())

	writeFile(t, path, kbDoc("latest", "high"))
	_, err = r.Reload(context.Background())
	assert.ErrorIs(t, err, ErrInvalidVersion)
	assert.Same(t, before, e.Snapshot())
}

func TestReloader_AllowDowngrade(t *testing.T) {
	e, path := newFileEngine(t, kbDoc("v2.0.0", "low"))
	r := NewReloader(e, FileSource{Path: path}, quietLogger(), ReloaderOptions{AllowDowngrade: true})

	writeFile(t, path, kbDoc("v1.0.0", "high"))
	res, err := r.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "v1.0.0", e.Snapshot().Version())
}

func TestReloader_ConcurrentCallsShareResult(t *testing.T) {
	e, path := newFileEngine(t, kbDoc("v1.0.0", "low"))
	r := NewReloader(e, FileSource{Path: path}, quietLogger(), ReloaderOptions{})
	writeFile(t, path, kbDoc("v1.0.1", "medium"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Reload(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, "v1.0.1", e.Snapshot().Version())
}

// gatedSource blocks Fetch until release is closed, failing early if the
// fetch context is canceled first.
type gatedSource struct {
	started chan struct{}
	release chan struct{}
	data    []byte
	once    sync.Once
}

func (s *gatedSource) Fetch(ctx context.Context) ([]byte, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.release:
		return s.data, nil
	}
}

func (s *gatedSource) String() string { return "gated" }

func TestReloader_CanceledCallerDoesNotFailSharedReload(t *testing.T) {
	e, _ := newFileEngine(t, kbDoc("v1.0.0", "low"))
	src := &gatedSource{
		started: make(chan struct{}),
		release: make(chan struct{}),
		data:    []byte(kbDoc("v1.1.0", "high")),
	}
	r := NewReloader(e, src, quietLogger(), ReloaderOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := r.Reload(ctx)
		first <- err
	}()
	<-src.started
	cancel()

	second := make(chan error, 1)
	go func() {
		_, err := r.Reload(context.Background())
		second <- err
	}()
	close(src.release)

	assert.NoError(t, <-first)
	assert.NoError(t, <-second)
	assert.Equal(t, "v1.1.0", e.Snapshot().Version())
}

func TestCheckUpgrade(t *testing.T) {
	tests := []struct {
		current, next string
		allow         bool
		wantErr       error
	}{
		{"v1.0.0", "v1.0.1", false, nil},
		{"1.0.0", "1.0.0", false, nil},
		{"v1.2.0", "v1.1.9", false, ErrVersionDowngrade},
		{"v1.2.0", "v1.1.9", true, nil},
		{"v1.0.0", "next", false, ErrInvalidVersion},
		{"", "anything", false, nil},
		{"dev", "v0.1.0", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.current+"->"+tt.next, func(t *testing.T) {
			err := CheckUpgrade(tt.current, tt.next, tt.allow)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// =============================================================================
// Watcher
// =============================================================================

type countingReloader struct {
	calls chan struct{}
}

func (c *countingReloader) Reload(context.Context) (ReloadResult, error) {
	c.calls <- struct{}{}
	return ReloadResult{}, errors.New("ignored")
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "kb.yaml")
	writeFile(t, path, kbDoc("v1.0.0", "low"))

	target := &countingReloader{calls: make(chan struct{}, 10)}
	w, err := NewWatcher(path, target, quietLogger(), &WatcherOptions{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	writeFile(t, filepath.Join(dir, "other.yaml"), "ignored")
	writeFile(t, path, kbDoc("v1.0.1", "low"))

	select {
	case <-target.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload after write")
	}

	w.Stop()
	w.Stop()
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := NewWatcher(filepath.Join(t.TempDir(), "kb.yaml"), &countingReloader{calls: make(chan struct{}, 1)}, quietLogger(), nil)
	require.NoError(t, err)
	w.Stop()
}

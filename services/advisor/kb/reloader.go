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
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianAdvisor/pkg/logging"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/rules"
)

var (
	// ErrInvalidVersion indicates a document version that is not semver.
	ErrInvalidVersion = errors.New("invalid knowledge base version")

	// ErrVersionDowngrade indicates a reload to an older version.
	ErrVersionDowngrade = errors.New("knowledge base version downgrade")
)

// Target is the engine side of a reload.
type Target interface {
	Snapshot() *rules.RuleBase
	Swap(rb *rules.RuleBase) (*rules.RuleBase, error)
}

// ReloadResult describes the outcome of a reload.
type ReloadResult struct {
	Changed         bool   `json:"changed"`
	Version         string `json:"version"`
	PreviousVersion string `json:"previous_version"`
	Digest          string `json:"digest"`
	Rules           int    `json:"rules"`
}

// ReloaderOptions configures a Reloader.
type ReloaderOptions struct {
	// AllowDowngrade accepts documents with a lower version than the
	// active one.
	AllowDowngrade bool

	// OnReload is called after every attempt with the result and error.
	OnReload func(ReloadResult, error)
}

// Reloader replaces the target's rule base with a fresh load from a source.
//
// # Thread Safety
//
// Safe for concurrent use. Concurrent Reload calls share one fetch.
type Reloader struct {
	target Target
	source Source
	opts   ReloaderOptions
	logger *logging.Logger
	group  singleflight.Group
}

// NewReloader creates a Reloader. A nil logger uses logging.Default().
func NewReloader(target Target, source Source, logger *logging.Logger, opts ReloaderOptions) *Reloader {
	if logger == nil {
		logger = logging.Default()
	}
	return &Reloader{
		target: target,
		source: source,
		opts:   opts,
		logger: logger.With("component", "kb_reloader", "source", source.String()),
	}
}

// Source returns the configured source.
func (r *Reloader) Source() Source {
	return r.source
}

// Reload loads the source and swaps it in.
//
// # Description
//
// The new document must load cleanly and, unless AllowDowngrade is set,
// carry a version no lower than the active one. A document whose digest
// matches the active rule base is not swapped. On any error the active
// rule base is kept.
//
// The shared fetch runs detached from ctx cancellation so that one
// caller going away does not fail the others coalesced into it. Context
// values such as trace spans still flow through.
//
// # Outputs
//
//   - ReloadResult: What happened.
//   - error: A load error, ErrInvalidVersion, or ErrVersionDowngrade.
func (r *Reloader) Reload(ctx context.Context) (ReloadResult, error) {
	v, err, shared := r.group.Do("reload", func() (any, error) {
		return r.reload(context.WithoutCancel(ctx))
	})
	res, _ := v.(ReloadResult)
	if shared {
		r.logger.Debug("reload coalesced")
	}
	return res, err
}

func (r *Reloader) reload(ctx context.Context) (ReloadResult, error) {
	current := r.target.Snapshot()
	res := ReloadResult{}
	if current != nil {
		res.PreviousVersion = current.Version()
		res.Version = current.Version()
		res.Digest = current.Digest()
		res.Rules = current.Len()
	}

	next, err := Load(ctx, r.source)
	if err != nil {
		r.finish(res, err)
		return res, err
	}

	if current != nil && next.Digest() == current.Digest() {
		r.finish(res, nil)
		return res, nil
	}

	if current != nil {
		if err := CheckUpgrade(current.Version(), next.Version(), r.opts.AllowDowngrade); err != nil {
			r.finish(res, err)
			return res, err
		}
	}

	if _, err := r.target.Swap(next); err != nil {
		r.finish(res, err)
		return res, err
	}

	res = ReloadResult{
		Changed:         true,
		Version:         next.Version(),
		PreviousVersion: res.PreviousVersion,
		Digest:          next.Digest(),
		Rules:           next.Len(),
	}
	r.finish(res, nil)
	return res, nil
}

func (r *Reloader) finish(res ReloadResult, err error) {
	switch {
	case err != nil:
		r.logger.Warn("reload rejected, keeping active rule base",
			"version", res.Version, "error", err)
	case res.Changed:
		r.logger.Info("rule base reloaded",
			"version", res.Version, "previous_version", res.PreviousVersion,
			"rules", res.Rules, "digest", shortDigest(res.Digest))
	default:
		r.logger.Debug("rule base unchanged", "version", res.Version)
	}
	if r.opts.OnReload != nil {
		r.opts.OnReload(res, err)
	}
}

// CheckUpgrade verifies that moving from version current to next is
// allowed. Versions may omit the leading "v". Empty versions are
// accepted on either side.
func CheckUpgrade(current, next string, allowDowngrade bool) error {
	if current == "" || next == "" {
		return nil
	}
	cur, nxt := canonicalVersion(current), canonicalVersion(next)
	if !semver.IsValid(nxt) {
		return fmt.Errorf("%w: %q", ErrInvalidVersion, next)
	}
	if !semver.IsValid(cur) || allowDowngrade {
		return nil
	}
	if semver.Compare(nxt, cur) < 0 {
		return fmt.Errorf("%w: %s is older than active %s", ErrVersionDowngrade, next, current)
	}
	return nil
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

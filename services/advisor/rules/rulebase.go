// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/facts"
)

// RuleBase is an immutable, validated set of rules over a vocabulary.
//
// # Thread Safety
//
// Read-only after Load. Safe to share across concurrent evaluations.
type RuleBase struct {
	name    string
	version string
	digest  string
	vocab   *facts.Vocabulary
	rules   []*Rule
	byID    map[string]*Rule
}

// Load validates a document and compiles it into a RuleBase.
//
// # Description
//
// Checks run in this order: document structure, the facts vocabulary,
// then each rule in document order (duplicate id, empty conclusions,
// conditions, conclusions). The first problem is returned.
//
// # Inputs
//
//   - doc: A decoded rule document.
//
// # Outputs
//
//   - *RuleBase: The compiled rule base.
//   - error: A *LoadError. Use errors.Is with ErrUnknownFact,
//     ErrDuplicateID, ErrEmptyConclusion, ErrInvalidCondition,
//     ErrInvalidConclusion, ErrInvalidValue, or ErrInvalidDocument.
func Load(doc Document) (*RuleBase, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	attrs := make([]facts.Attribute, 0, len(doc.Facts))
	for _, f := range doc.Facts {
		attrs = append(attrs, facts.Attribute{
			Name:     f.Name,
			Type:     facts.Type(f.Type),
			Options:  f.Options,
			Min:      f.Min,
			Max:      f.Max,
			Question: strings.TrimSpace(f.Question),
			Help:     strings.TrimSpace(f.Help),
			Derived:  f.Derived,
		})
	}
	vocab, err := facts.NewVocabulary(attrs)
	if err != nil {
		return nil, loadErr(ErrInvalidDocument, "", "", err)
	}

	rb := &RuleBase{
		name:    doc.Name,
		version: doc.Version,
		vocab:   vocab,
		rules:   make([]*Rule, 0, len(doc.Rules)),
		byID:    make(map[string]*Rule, len(doc.Rules)),
	}

	for _, spec := range doc.Rules {
		id := strings.TrimSpace(spec.ID)
		if _, dup := rb.byID[id]; dup {
			return nil, loadErr(ErrDuplicateID, id, "", nil)
		}
		r, err := compileRule(spec, vocab)
		if err != nil {
			return nil, err
		}
		rb.byID[id] = r
		rb.rules = append(rb.rules, r)
	}

	sortRules(rb.rules)

	digest, err := digestOf(doc)
	if err != nil {
		return nil, loadErr(ErrInvalidDocument, "", "", err)
	}
	rb.digest = digest

	return rb, nil
}

// sortRules orders rules by descending priority, then ascending id.
func sortRules(rs []*Rule) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Priority != rs[j].Priority {
			return rs[i].Priority > rs[j].Priority
		}
		return rs[i].ID < rs[j].ID
	})
}

func digestOf(doc Document) (string, error) {
	canonical, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// RulesMatching returns every rule whose condition holds for r, ordered
// by descending priority then ascending id.
func (rb *RuleBase) RulesMatching(r facts.Record) []*Rule {
	var out []*Rule
	for _, rule := range rb.rules {
		if rule.Matches(r) {
			out = append(out, rule)
		}
	}
	return out
}

// Rules returns all rules in priority-then-id order.
func (rb *RuleBase) Rules() []*Rule {
	out := make([]*Rule, len(rb.rules))
	copy(out, rb.rules)
	return out
}

// Rule returns the rule with the given id.
func (rb *RuleBase) Rule(id string) (*Rule, bool) {
	r, ok := rb.byID[id]
	return r, ok
}

// Len returns the number of rules.
func (rb *RuleBase) Len() int {
	return len(rb.rules)
}

// Vocabulary returns the fact vocabulary.
func (rb *RuleBase) Vocabulary() *facts.Vocabulary {
	return rb.vocab
}

// Name returns the document name.
func (rb *RuleBase) Name() string {
	return rb.name
}

// Version returns the document version string as written.
func (rb *RuleBase) Version() string {
	return rb.version
}

// Digest returns the hex SHA-256 of the canonical JSON form of the
// document. Two loads of the same document have the same digest.
func (rb *RuleBase) Digest() string {
	return rb.digest
}

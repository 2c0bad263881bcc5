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
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Document Schema
// =============================================================================

// Document is the serialized form of a knowledge base.
//
// # Example
//
//	version: v1.0.0
//	name: genai-use-case-risk
//	facts:
//	  - name: consumer_pii_used
//	    type: bool
//	    question: Does the use case process personal data about consumers?
//	rules:
//	  - id: R1
//	    priority: 10
//	    when:
//	      - fact: consumer_pii_used
//	        eq: true
//	    then:
//	      - risk: medium
//	      - safeguard: privacy impact assessment
type Document struct {
	Version string          `yaml:"version" json:"version"`
	Name    string          `yaml:"name,omitempty" json:"name,omitempty"`
	Facts   []AttributeSpec `yaml:"facts" json:"facts" validate:"dive"`
	Rules   []RuleSpec      `yaml:"rules" json:"rules" validate:"dive"`
}

// AttributeSpec declares one fact in a Document.
type AttributeSpec struct {
	Name     string   `yaml:"name" json:"name" validate:"required,factname"`
	Type     string   `yaml:"type" json:"type" validate:"required,oneof=bool enum number"`
	Options  []string `yaml:"options,omitempty" json:"options,omitempty" validate:"omitempty,unique,dive,required"`
	Min      *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max      *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Question string   `yaml:"question,omitempty" json:"question,omitempty"`
	Help     string   `yaml:"help,omitempty" json:"help,omitempty"`
	Derived  bool     `yaml:"derived,omitempty" json:"derived,omitempty"`
}

// RuleSpec is one rule in a Document.
type RuleSpec struct {
	ID          string           `yaml:"id" json:"id" validate:"required,ruleid,max=128"`
	Priority    int              `yaml:"priority" json:"priority"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	When        []ConditionSpec  `yaml:"when" json:"when"`
	Then        []ConclusionSpec `yaml:"then" json:"then"`
	Explanation string           `yaml:"explanation,omitempty" json:"explanation,omitempty"`
}

// ConditionSpec is one node of a condition expression.
//
// A leaf names a Fact and sets exactly one comparison. A composite sets
// exactly one of And, Or, Not and leaves Fact empty.
type ConditionSpec struct {
	Fact  string          `yaml:"fact,omitempty" json:"fact,omitempty"`
	Eq    any             `yaml:"eq,omitempty" json:"eq,omitempty"`
	Ne    any             `yaml:"ne,omitempty" json:"ne,omitempty"`
	In    []any           `yaml:"in,omitempty" json:"in,omitempty"`
	NotIn []any           `yaml:"not_in,omitempty" json:"not_in,omitempty"`
	Gt    *float64        `yaml:"gt,omitempty" json:"gt,omitempty"`
	Gte   *float64        `yaml:"gte,omitempty" json:"gte,omitempty"`
	Lt    *float64        `yaml:"lt,omitempty" json:"lt,omitempty"`
	Lte   *float64        `yaml:"lte,omitempty" json:"lte,omitempty"`
	And   []ConditionSpec `yaml:"and,omitempty" json:"and,omitempty"`
	Or    []ConditionSpec `yaml:"or,omitempty" json:"or,omitempty"`
	Not   *ConditionSpec  `yaml:"not,omitempty" json:"not,omitempty"`
}

// ConclusionSpec is one conclusion of a rule. Exactly one field is set.
type ConclusionSpec struct {
	Assert    *AssertSpec `yaml:"assert,omitempty" json:"assert,omitempty"`
	Risk      string      `yaml:"risk,omitempty" json:"risk,omitempty"`
	Safeguard string      `yaml:"safeguard,omitempty" json:"safeguard,omitempty"`
}

// AssertSpec asserts Fact = Value.
type AssertSpec struct {
	Fact  string `yaml:"fact" json:"fact"`
	Value any    `yaml:"value" json:"value"`
}

// =============================================================================
// Decoding and Validation
// =============================================================================

// docValidate is the validator instance for rule documents.
// Initialized in init() with custom validators.
var docValidate *validator.Validate

var factNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func init() {
	docValidate = validator.New()
	_ = docValidate.RegisterValidation("factname", validateFactName)
	_ = docValidate.RegisterValidation("ruleid", validateRuleID)
}

// validateFactName requires lower snake case fact names.
func validateFactName(fl validator.FieldLevel) bool {
	return factNamePattern.MatchString(fl.Field().String())
}

// validateRuleID rejects ids that are blank once trimmed.
func validateRuleID(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Validate checks the structural constraints of the document.
//
// Semantic checks (unknown facts, duplicate ids, value domains) happen in
// Load.
func (d *Document) Validate() error {
	if err := docValidate.Struct(d); err != nil {
		return loadErr(ErrInvalidDocument, "", "", err)
	}
	return nil
}

// ParseDocument decodes a YAML or JSON rule document.
//
// # Description
//
// Unknown keys are rejected so that misspelled operators fail loudly
// instead of silently matching everything. JSON input is accepted because
// it is a subset of YAML.
//
// # Outputs
//
//   - Document: The decoded document.
//   - error: A *LoadError with Kind ErrInvalidDocument.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, loadErr(ErrInvalidDocument, "", "", fmt.Errorf("document is empty"))
		}
		return Document{}, loadErr(ErrInvalidDocument, "", "", err)
	}
	return doc, nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/AleutianAdvisor/pkg/ux"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/engine"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/facts"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/rules"
)

// verdictOutput is the JSON shape written by evaluate and interview.
type verdictOutput struct {
	APIVersion string          `json:"api_version"`
	KBName     string          `json:"kb_name"`
	KBVersion  string          `json:"kb_version"`
	KBDigest   string          `json:"kb_digest"`
	Verdict    *engine.Verdict `json:"verdict"`
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderVerdict prints a verdict for a human reader.
func renderVerdict(p *ux.Printer, v *engine.Verdict, rb *rules.RuleBase) {
	p.Title("GenAI Use Case Risk Assessment")
	p.Muted(fmt.Sprintf("knowledge base %s %s", rb.Name(), rb.Version()))
	fmt.Fprintln(p.Out)

	tier := string(v.RiskTier)
	p.Field("Risk tier", p.Styled(ux.Severity(tier), strings.ToUpper(tier)))
	p.Field("Recommendation", v.Recommendation)
	p.Field("Cycles", fmt.Sprintf("%d", v.Cycles))

	if len(v.Safeguards) > 0 {
		fmt.Fprintln(p.Out)
		p.Title("Safeguards")
		for _, s := range v.Safeguards {
			p.Bullet(s)
		}
	}

	fmt.Fprintln(p.Out)
	p.Title("Rationale")
	if len(v.Rationale) == 0 {
		p.Muted("No rules fired.")
	}
	for _, e := range v.Rationale {
		p.Bullet(fmt.Sprintf("%s (priority %d, cycle %d)", e.RuleID, e.Priority, e.Cycle))
		fmt.Fprintf(p.Out, "      when %s\n", e.MatchedCondition)
		fmt.Fprintf(p.Out, "      then %s\n", e.Conclusion)
		if e.Explanation != "" {
			fmt.Fprintf(p.Out, "      %s\n", p.Styled(ux.Styles.Muted, e.Explanation))
		}
		for _, n := range e.Notes {
			fmt.Fprintf(p.Out, "      note: %s\n", n)
		}
	}

	if derived := derivedFacts(v.Facts); len(derived) > 0 {
		fmt.Fprintln(p.Out)
		p.Title("Derived facts")
		for _, e := range derived {
			p.Bullet(fmt.Sprintf("%s = %s (%s)", e.Name, e.Value, e.Source))
		}
	}
}

func derivedFacts(entries []facts.NamedEntry) []facts.NamedEntry {
	var out []facts.NamedEntry
	for _, e := range entries {
		if e.Source != facts.SourceInput {
			out = append(out, e)
		}
	}
	return out
}

// renderRules prints the rule catalog.
func renderRules(p *ux.Printer, rb *rules.RuleBase, descs []engine.RuleDescription) {
	p.Title(fmt.Sprintf("%s %s", rb.Name(), rb.Version()))
	p.Muted(fmt.Sprintf("%d rules, %d facts, digest %s", rb.Len(), rb.Vocabulary().Len(), rb.Digest()))
	fmt.Fprintln(p.Out)
	for _, d := range descs {
		p.Bullet(fmt.Sprintf("%s  priority %d", p.Styled(ux.Styles.Highlight, d.ID), d.Priority))
		fmt.Fprintf(p.Out, "      when %s\n", d.Condition)
		fmt.Fprintf(p.Out, "      then %s\n", d.Conclusion)
		if d.Explanation != "" {
			fmt.Fprintf(p.Out, "      %s\n", p.Styled(ux.Styles.Muted, d.Explanation))
		}
	}
}

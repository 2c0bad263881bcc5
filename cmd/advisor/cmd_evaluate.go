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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianAdvisor/pkg/ux"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/engine"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/facts"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/risk"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/rules"
)

var (
	evalFactsFile string
	evalFacts     []string
	evalJSON      bool
	evalThreshold string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Assess the risk of one GenAI use case",
	Long: `Evaluate a use case description and print its risk tier, safeguards,
and the rules that produced them.

Facts come from a YAML or JSON file (--facts, "-" for stdin) and from
repeated --fact name=value flags, which take precedence.

Exit codes:
  0 - Risk tier at or below the threshold
  1 - Risk tier above the threshold
  2 - Error during evaluation

Examples:
  advisor evaluate --facts usecase.yaml
  advisor evaluate --fact consumer_pii_used=true --fact public_facing=true
  advisor evaluate --facts usecase.json --threshold medium --json`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalFactsFile, "facts", "f", "", "YAML or JSON file of facts (- for stdin)")
	evaluateCmd.Flags().StringArrayVar(&evalFacts, "fact", nil, "Fact as name=value (repeatable)")
	evaluateCmd.Flags().BoolVar(&evalJSON, "json", false, "Output as JSON")
	evaluateCmd.Flags().StringVar(&evalThreshold, "threshold", "high", "Exit 1 when the risk tier exceeds this: none, low, medium, high")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	threshold, err := risk.ParseTier(evalThreshold)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	e, _, release, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer release()

	rb := e.Snapshot()
	values, err := collectFacts(cmd.InOrStdin(), evalFactsFile, evalFacts, rb.Vocabulary())
	if err != nil {
		return err
	}
	rec, err := rb.Vocabulary().NewRecord(values)
	if err != nil {
		return err
	}

	verdict, pinned, err := e.EvaluatePinned(ctx, rec)
	if err != nil {
		return err
	}

	if err := writeVerdict(cmd.OutOrStdout(), verdict, pinned, evalJSON); err != nil {
		return err
	}
	if verdict.RiskTier.Exceeds(threshold) {
		return &exitError{code: risk.ExitRiskFound}
	}
	return nil
}

func writeVerdict(w io.Writer, v *engine.Verdict, rb *rules.RuleBase, asJSON bool) error {
	if asJSON {
		return outputJSON(w, verdictOutput{
			APIVersion: risk.APIVersion,
			KBName:     rb.Name(),
			KBVersion:  rb.Version(),
			KBDigest:   rb.Digest(),
			Verdict:    v,
		})
	}
	renderVerdict(ux.NewPrinter(w), v, rb)
	return nil
}

// collectFacts merges the facts file with --fact flags.
//
// # Inputs
//
//   - stdin: Read when path is "-".
//   - path: Optional YAML or JSON file of name to value.
//   - pairs: name=value strings, parsed against vocab.
//   - vocab: The active vocabulary.
//
// # Outputs
//
//   - map[string]any: Loosely typed values for NewRecord.
//   - error: An unreadable file, a malformed pair, or an undeclared fact.
func collectFacts(stdin io.Reader, path string, pairs []string, vocab *facts.Vocabulary) (map[string]any, error) {
	values := map[string]any{}
	if path != "" {
		var (
			data []byte
			err  error
		)
		if path == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read facts: %w", err)
		}
		// YAML is a superset of JSON, so one decoder serves both.
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to parse facts %s: %w", path, err)
		}
		if values == nil {
			values = map[string]any{}
		}
	}

	var problems []facts.Problem
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --fact %q: want name=value", pair)
		}
		v, err := vocab.ParseValue(name, raw)
		if err != nil {
			problems = append(problems, facts.Problem{Fact: name, Reason: err.Error()})
			continue
		}
		values[name] = v.Any()
	}
	if len(problems) > 0 {
		return nil, &facts.ValidationError{Problems: problems}
	}
	return values, nil
}

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
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianAdvisor/pkg/ux"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/kb"
)

var rulesJSON bool

var (
	rulesCmd = &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate knowledge bases",
	}

	rulesDescribeCmd = &cobra.Command{
		Use:   "describe",
		Short: "List the rules of the configured knowledge base",
		Args:  cobra.NoArgs,
		RunE:  runRulesDescribe,
	}

	rulesValidateCmd = &cobra.Command{
		Use:   "validate [file|gs://uri...]",
		Short: "Check that knowledge base documents load",
		Long: `Load each document and report its name, version, and rule count, or
the reason it was rejected. With no arguments the configured knowledge
base is checked. Exits non-zero if any document fails.`,
		RunE: runRulesValidate,
	}
)

func init() {
	rulesDescribeCmd.Flags().BoolVar(&rulesJSON, "json", false, "Output as JSON")
	rulesCmd.AddCommand(rulesDescribeCmd, rulesValidateCmd)
}

func runRulesDescribe(cmd *cobra.Command, _ []string) error {
	e, _, release, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer release()

	rb := e.Snapshot()
	if rulesJSON {
		return outputJSON(cmd.OutOrStdout(), map[string]any{
			"kb_name":    rb.Name(),
			"kb_version": rb.Version(),
			"kb_digest":  rb.Digest(),
			"facts":      rb.Vocabulary().Attributes(),
			"rules":      e.DescribeRules(),
		})
	}
	renderRules(ux.NewPrinter(cmd.OutOrStdout()), rb, e.DescribeRules())
	return nil
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	sources := args
	if len(sources) == 0 {
		sources = []string{appConfig.KnowledgeBase.Source}
	}
	failed := validateSources(cmd.Context(), ux.NewPrinter(cmd.OutOrStdout()), sources)
	if failed > 0 {
		return fmt.Errorf("%d of %d knowledge bases failed validation", failed, len(sources))
	}
	return nil
}

// validateSources loads each source and prints one line per outcome.
// It returns the number of failures.
func validateSources(ctx context.Context, p *ux.Printer, sources []string) int {
	failed := 0
	for _, spec := range sources {
		if err := validateSource(ctx, p, spec); err != nil {
			p.Error(fmt.Sprintf("%s: %v", displaySource(spec), err))
			failed++
		}
	}
	return failed
}

func validateSource(ctx context.Context, p *ux.Printer, spec string) error {
	src, err := kb.OpenSource(ctx, spec, kb.SourceOptions{
		CredentialsFile: appConfig.KnowledgeBase.CredentialsFile,
	})
	if err != nil {
		return err
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}
	rb, err := kb.Load(ctx, src)
	if err != nil {
		return err
	}
	p.Success(fmt.Sprintf("%s: %s %s, %d rules, %d facts",
		displaySource(spec), rb.Name(), rb.Version(), rb.Len(), rb.Vocabulary().Len()))
	return nil
}

func displaySource(spec string) string {
	if spec == "" {
		return "embedded"
	}
	return spec
}

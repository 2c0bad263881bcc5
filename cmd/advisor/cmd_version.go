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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/kb"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/risk"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	// No config is needed to print versions.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, _ []string) error {
		embedded := "unavailable"
		if rb, err := kb.Load(cmd.Context(), kb.EmbeddedSource{}); err == nil {
			embedded = rb.Version()
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "advisor %s (commit %s)\n", advisor.ServiceVersion, buildCommit)
		fmt.Fprintf(out, "  api version:       %s\n", risk.APIVersion)
		fmt.Fprintf(out, "  algorithm version: %s\n", risk.AlgorithmVersion)
		fmt.Fprintf(out, "  embedded kb:       %s\n", embedded)
		return nil
	},
}

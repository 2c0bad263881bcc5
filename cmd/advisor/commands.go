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

	"github.com/AleutianAI/AleutianAdvisor/cmd/advisor/config"
	"github.com/AleutianAI/AleutianAdvisor/pkg/logging"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/engine"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/kb"
)

// --- Global Command Variables ---
var (
	configPath  string
	kbFlag      string
	logLevel    string
	maxCycles   int
	appConfig   = config.DefaultConfig()
	buildCommit = "unknown"

	rootCmd = &cobra.Command{
		Use:   "advisor",
		Short: "Rule-based risk assessment for GenAI use cases",
		Long: `advisor evaluates a description of a GenAI use case against a
knowledge base of rules and reports a risk tier, recommended
safeguards, and the rules that produced them.

Run it once per use case with "evaluate", interactively with
"interview", or as an HTTP service with "serve".`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to an advisor YAML config file")
	rootCmd.PersistentFlags().StringVar(&kbFlag, "kb", "", `Knowledge base: "embedded", a file path, or gs://bucket/object`)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().IntVar(&maxCycles, "max-cycles", 0, "Inference cycle cap (0 uses the rule count)")

	rootCmd.AddCommand(serveCmd, evaluateCmd, interviewCmd, rulesCmd, configCmd, versionCmd)
}

// loadConfig resolves the configuration. Flags win over the file and
// the environment.
func loadConfig(*cobra.Command, []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if kbFlag != "" {
		cfg.KnowledgeBase.Source = kbFlag
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if maxCycles > 0 {
		cfg.Engine.MaxCycles = maxCycles
	}
	appConfig = cfg
	return nil
}

// newLogger builds the process logger from the logging config.
func newLogger(out io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(appConfig.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  appConfig.Logging.Dir,
		Service: "advisor",
		JSON:    appConfig.Logging.JSON,
		Output:  out,
	}), nil
}

// openEngine loads the configured knowledge base into a new engine.
//
// # Outputs
//
//   - *engine.Engine: Ready for evaluation.
//   - kb.Source: The source it was loaded from.
//   - func(): Releases the source. Always safe to call.
//   - error: A source or load failure.
func openEngine(ctx context.Context) (*engine.Engine, kb.Source, func(), error) {
	noop := func() {}
	src, err := kb.OpenSource(ctx, appConfig.KnowledgeBase.Source, kb.SourceOptions{
		CredentialsFile: appConfig.KnowledgeBase.CredentialsFile,
	})
	if err != nil {
		return nil, nil, noop, err
	}
	release := func() {
		if c, ok := src.(io.Closer); ok {
			_ = c.Close()
		}
	}

	rb, err := kb.Load(ctx, src)
	if err != nil {
		release()
		return nil, nil, noop, err
	}
	e, err := engine.New(rb, engine.WithMaxCycles(appConfig.Engine.MaxCycles))
	if err != nil {
		release()
		return nil, nil, noop, fmt.Errorf("failed to create engine: %w", err)
	}
	return e, src, release, nil
}

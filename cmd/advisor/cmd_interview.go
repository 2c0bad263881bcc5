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
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianAdvisor/pkg/ux"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/engine"
	"github.com/AleutianAI/AleutianAdvisor/services/advisor/facts"
)

// skipAnswer leaves a fact unknown.
const skipAnswer = ""

var (
	interviewJSON  bool
	interviewLimit int
)

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Assess a use case by answering questions",
	Long: `Ask only the questions that can still change the assessment, one at
a time, then print the verdict. Any question may be skipped; skipped
facts stay unknown and rules that need them do not fire.

Requires an interactive terminal.`,
	RunE: runInterviewCmd,
}

func init() {
	interviewCmd.Flags().BoolVar(&interviewJSON, "json", false, "Output the final verdict as JSON")
	interviewCmd.Flags().IntVar(&interviewLimit, "max-questions", 50, "Stop after this many questions")
}

func runInterviewCmd(cmd *cobra.Command, _ []string) error {
	if !ux.IsTerminal(os.Stdin) {
		return errors.New("interview requires an interactive terminal; use evaluate for scripted input")
	}

	e, _, release, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer release()

	res, err := runInterview(cmd.Context(), e, askWithForm, interviewLimit)
	if err != nil {
		return err
	}
	return writeVerdict(cmd.OutOrStdout(), res.Verdict, e.Snapshot(), interviewJSON)
}

// askFunc asks one question and returns the raw answer, or skipAnswer.
type askFunc func(q *engine.Question) (string, error)

// runInterview drives NextQuestion until it is done or limit questions
// have been asked.
//
// # Description
//
// Each answer is parsed against the active vocabulary before it joins
// the record. An unparseable answer is an error; a skipped question is
// remembered as asked so it is not offered again.
//
// # Outputs
//
//   - *engine.QuestionResult: The last result, with the final verdict.
//   - error: From ask, from parsing an answer, or from inference.
func runInterview(ctx context.Context, e *engine.Engine, ask askFunc, limit int) (*engine.QuestionResult, error) {
	vocab := e.Snapshot().Vocabulary()
	values := map[string]any{}
	var asked []string

	for {
		rec, err := vocab.NewRecord(values)
		if err != nil {
			return nil, err
		}
		res, err := e.NextQuestion(ctx, rec, asked)
		if err != nil {
			return nil, err
		}
		if res.Done || len(asked) >= limit {
			return res, nil
		}

		q := res.Question
		answer, err := ask(q)
		if err != nil {
			return nil, err
		}
		asked = append(asked, q.Fact)
		if answer == skipAnswer {
			continue
		}
		v, err := vocab.ParseValue(q.Fact, answer)
		if err != nil {
			return nil, fmt.Errorf("answer for %s: %w", q.Fact, err)
		}
		values[q.Fact] = v.Any()
	}
}

// askWithForm asks q with a huh form suited to its type.
func askWithForm(q *engine.Question) (string, error) {
	var answer string
	field, err := questionField(q, &answer)
	if err != nil {
		return "", err
	}
	if err := huh.NewForm(huh.NewGroup(field)).Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// questionField builds the form field for q, writing into dest.
func questionField(q *engine.Question, dest *string) (huh.Field, error) {
	switch q.Type {
	case facts.TypeBool:
		return huh.NewSelect[string]().
			Title(q.Prompt).
			Description(q.Help).
			Options(
				huh.NewOption("Yes", "true"),
				huh.NewOption("No", "false"),
				huh.NewOption("Don't know", skipAnswer),
			).
			Value(dest), nil
	case facts.TypeEnum:
		opts := make([]huh.Option[string], 0, len(q.Options)+1)
		for _, o := range q.Options {
			opts = append(opts, huh.NewOption(o, o))
		}
		opts = append(opts, huh.NewOption("Don't know", skipAnswer))
		return huh.NewSelect[string]().
			Title(q.Prompt).
			Description(q.Help).
			Options(opts...).
			Value(dest), nil
	case facts.TypeNumber:
		return huh.NewInput().
			Title(q.Prompt).
			Description(strings.TrimSpace(q.Help + " Leave empty to skip.")).
			Validate(validateNumber).
			Value(dest), nil
	}
	return nil, fmt.Errorf("fact %s has unsupported type %q", q.Fact, q.Type)
}

func validateNumber(s string) error {
	s = strings.TrimSpace(s)
	if s == skipAnswer {
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return errors.New("enter a number")
	}
	return nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables applied on top of the file.
const (
	EnvAddr            = "ADVISOR_ADDR"
	EnvKB              = "ADVISOR_KB"
	EnvKBWatch         = "ADVISOR_KB_WATCH"
	EnvCredentialsFile = "ADVISOR_GCS_CREDENTIALS"
	EnvLogLevel        = "ADVISOR_LOG_LEVEL"
	EnvRateLimit       = "ADVISOR_RATE_LIMIT"
	EnvMaxCycles       = "ADVISOR_MAX_CYCLES"
)

var validate = validator.New()

// Load reads the configuration.
//
// # Description
//
// Starts from DefaultConfig, overlays the YAML file at path when path is
// not empty, then applies ADVISOR_* environment overrides and validates
// the result. Unknown YAML keys are rejected.
//
// # Outputs
//
//   - AdvisorConfig: The effective configuration.
//   - error: A read, parse, override, or validation failure.
func Load(path string) (AdvisorConfig, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read the config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *AdvisorConfig) error {
	if v, ok := os.LookupEnv(EnvAddr); ok {
		cfg.Server.Addr = v
	}
	if v, ok := os.LookupEnv(EnvKB); ok {
		cfg.KnowledgeBase.Source = v
	}
	if v, ok := os.LookupEnv(EnvCredentialsFile); ok {
		cfg.KnowledgeBase.CredentialsFile = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
	if v, ok := os.LookupEnv(EnvKBWatch); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvKBWatch, err)
		}
		cfg.KnowledgeBase.Watch = b
	}
	if v, ok := os.LookupEnv(EnvRateLimit); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRateLimit, err)
		}
		cfg.Server.RateLimit = f
	}
	if v, ok := os.LookupEnv(EnvMaxCycles); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxCycles, err)
		}
		cfg.Engine.MaxCycles = n
	}
	return nil
}

// WriteDefault writes DefaultConfig to path, creating parent directories.
// An existing file is not overwritten.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

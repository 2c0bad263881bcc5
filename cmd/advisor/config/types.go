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
	"time"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/telemetry"
)

// AdvisorConfig is the top-level advisor configuration.
type AdvisorConfig struct {
	Server        ServerConfig     `yaml:"server"`
	KnowledgeBase KBConfig         `yaml:"knowledge_base"`
	Engine        EngineConfig     `yaml:"engine"`
	Logging       LoggingConfig    `yaml:"logging"`
	Telemetry     telemetry.Config `yaml:"telemetry"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8088".
	Addr string `yaml:"addr" validate:"required,hostname_port"`

	// GinMode is "debug", "release", or "test".
	GinMode string `yaml:"gin_mode" validate:"oneof=debug release test"`

	// RateLimit is requests per second for the API. 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	RateBurst int     `yaml:"rate_burst" validate:"gte=0"`

	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// KBConfig selects the knowledge base and how it is kept current.
type KBConfig struct {
	// Source is "embedded", a file path, or a gs://bucket/object URI.
	Source string `yaml:"source"`

	// Watch reloads a file source when it changes.
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`

	// AllowDowngrade accepts reloads to an older document version.
	AllowDowngrade bool `yaml:"allow_downgrade"`

	// CredentialsFile is a service account key for gs:// sources.
	CredentialsFile string `yaml:"credentials_file"`
}

// EngineConfig tunes inference.
type EngineConfig struct {
	// MaxCycles caps inference cycles. 0 uses the rule count.
	MaxCycles int `yaml:"max_cycles" validate:"gte=0"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() AdvisorConfig {
	return AdvisorConfig{
		Server: ServerConfig{
			Addr:              ":8088",
			GinMode:           "release",
			RateLimit:         0,
			RateBurst:         0,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		KnowledgeBase: KBConfig{
			Source:   "embedded",
			Watch:    false,
			Debounce: 250 * time.Millisecond,
		},
		Engine: EngineConfig{MaxCycles: 0},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

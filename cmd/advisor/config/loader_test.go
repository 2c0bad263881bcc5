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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "advisor.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// TestLoad_Defaults verifies that an empty path yields the defaults.
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if cfg.Server.Addr != ":8088" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":8088")
	}
	if cfg.KnowledgeBase.Source != "embedded" {
		t.Errorf("KnowledgeBase.Source = %q, want %q", cfg.KnowledgeBase.Source, "embedded")
	}
	if cfg.KnowledgeBase.Debounce != 250*time.Millisecond {
		t.Errorf("KnowledgeBase.Debounce = %v, want 250ms", cfg.KnowledgeBase.Debounce)
	}
}

// TestLoad_File verifies that file values overlay the defaults.
func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:9000"
  rate_limit: 5
  rate_burst: 10
knowledge_base:
  source: /etc/advisor/kb.yaml
  watch: true
  debounce: 1s
engine:
  max_cycles: 32
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.RateLimit != 5 || cfg.Server.RateBurst != 10 {
		t.Errorf("rate limit = %v/%d, want 5/10", cfg.Server.RateLimit, cfg.Server.RateBurst)
	}
	if !cfg.KnowledgeBase.Watch || cfg.KnowledgeBase.Debounce != time.Second {
		t.Errorf("watch = %v debounce = %v", cfg.KnowledgeBase.Watch, cfg.KnowledgeBase.Debounce)
	}
	if cfg.Engine.MaxCycles != 32 {
		t.Errorf("Engine.MaxCycles = %d, want 32", cfg.Engine.MaxCycles)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 15s", cfg.Server.ShutdownTimeout)
	}
}

// TestLoad_EmptyFile verifies that an empty file is not an error.
func TestLoad_EmptyFile(t *testing.T) {
	if _, err := Load(writeConfig(t, "")); err != nil {
		t.Fatalf("Load() of empty file failed: %v", err)
	}
}

// TestLoad_Env verifies that environment variables override the file.
func TestLoad_Env(t *testing.T) {
	path := writeConfig(t, "knowledge_base:\n  source: from-file.yaml\n")
	t.Setenv(EnvKB, "gs://bucket/kb.yaml")
	t.Setenv(EnvAddr, ":9999")
	t.Setenv(EnvKBWatch, "true")
	t.Setenv(EnvMaxCycles, "7")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.KnowledgeBase.Source != "gs://bucket/kb.yaml" {
		t.Errorf("KnowledgeBase.Source = %q", cfg.KnowledgeBase.Source)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if !cfg.KnowledgeBase.Watch {
		t.Error("KnowledgeBase.Watch = false, want true")
	}
	if cfg.Engine.MaxCycles != 7 {
		t.Errorf("Engine.MaxCycles = %d, want 7", cfg.Engine.MaxCycles)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

// TestLoad_Errors verifies the failure modes.
func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		want    string
	}{
		{name: "unknown key", content: "server:\n  port: 80\n", want: "parse"},
		{name: "bad yaml", content: "server: [", want: "parse"},
		{name: "bad log level", content: "logging:\n  level: loud\n", want: "invalid configuration"},
		{name: "bad gin mode", content: "server:\n  gin_mode: fast\n", want: "invalid configuration"},
		{name: "negative cycles", content: "engine:\n  max_cycles: -1\n", want: "invalid configuration"},
		{name: "bad addr", content: "server:\n  addr: nowhere\n", want: "invalid configuration"},
		{name: "bad exporter", content: "telemetry:\n  trace_exporter: jaeger\n", want: "invalid configuration"},
		{name: "bad env bool", env: map[string]string{EnvKBWatch: "often"}, want: EnvKBWatch},
		{name: "bad env float", env: map[string]string{EnvRateLimit: "fast"}, want: EnvRateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

// TestLoad_MissingFile verifies that an explicit missing path fails.
func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() of missing file succeeded")
	}
}

// TestWriteDefault verifies that the written defaults load back unchanged.
func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "advisor.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of written defaults failed: %v", err)
	}
	want := DefaultConfig()
	if cfg != want {
		t.Errorf("round trip = %+v, want %+v", cfg, want)
	}

	if err := WriteDefault(path); err == nil {
		t.Error("WriteDefault() overwrote an existing file")
	}
}

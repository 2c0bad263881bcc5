// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"
)

// =============================================================================
// Icon.Render Tests
// =============================================================================

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconPending, IconArrow, IconBullet} {
		if !strings.Contains(icon.Render(), string(icon)) {
			t.Errorf("Render(%q) lost the icon", icon)
		}
	}
}

// =============================================================================
// Printer Tests
// =============================================================================

func TestNewPrinter_BufferIsPlain(t *testing.T) {
	p := NewPrinter(&bytes.Buffer{})
	if !p.Plain {
		t.Error("expected plain mode for a non-terminal writer")
	}
}

func TestIsTerminal_NonFile(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("bytes.Buffer reported as a terminal")
	}
}

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Plain: true}

	p.Title("Assessment")
	p.Success("done")
	p.Warning("careful")
	p.Error("broken")
	p.Field("Risk tier", "high")
	p.Bullet("legal review")
	p.Muted("footnote")
	p.Box("Rationale", "R1 fired")

	want := []string{
		"Assessment\n",
		"OK: done\n",
		"WARN: careful\n",
		"ERROR: broken\n",
		"Risk tier:       high\n",
		"  - legal review\n",
		"footnote\n",
		"Rationale\nR1 fired\n",
	}
	got := buf.String()
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("output missing %q\n%s", w, got)
		}
	}
	if strings.Contains(got, "\x1b[") {
		t.Error("plain output contains escape sequences")
	}
}

func TestPrinter_Styled(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf}

	p.Success("done")
	p.Bullet("legal review")
	p.Box("Rationale", "R1 fired")

	got := buf.String()
	for _, w := range []string{"done", string(IconSuccess), "legal review", "Rationale", "R1 fired"} {
		if !strings.Contains(got, w) {
			t.Errorf("output missing %q\n%s", w, got)
		}
	}
}

func TestSeverity(t *testing.T) {
	for _, level := range []string{"high", "medium", "low", "none", "HIGH", ""} {
		if got := Severity(level).Render("x"); !strings.Contains(got, "x") {
			t.Errorf("Severity(%q) lost the text: %q", level, got)
		}
	}
}

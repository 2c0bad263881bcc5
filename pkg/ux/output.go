// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders terminal output for the advisor CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Brand colors
const (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // borders
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorNotice  = lipgloss.Color("#5DADE2")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Notice    lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Notice:    lipgloss.NewStyle().Foreground(ColorNotice),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Severity selects a style by risk level name.
//
// "high" renders as an error, "medium" as a warning, "low" as a notice,
// and anything else as success.
func Severity(level string) lipgloss.Style {
	switch strings.ToLower(level) {
	case "high":
		return Styles.Error.Bold(true)
	case "medium":
		return Styles.Warning.Bold(true)
	case "low":
		return Styles.Notice.Bold(true)
	default:
		return Styles.Success.Bold(true)
	}
}

// =============================================================================
// Printer
// =============================================================================

// Printer writes styled lines to a destination.
//
// In plain mode no styling, icons, or boxes are emitted, so output stays
// stable for pipes and log files.
type Printer struct {
	Out   io.Writer
	Plain bool
}

// NewPrinter returns a Printer for out. Plain mode is chosen when out is
// not a terminal or NO_COLOR is set.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{Out: out, Plain: !IsTerminal(out) || os.Getenv("NO_COLOR") != ""}
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w any) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if p.Plain {
		return text
	}
	return s.Render(text)
}

// Title prints a styled title
func (p *Printer) Title(text string) {
	fmt.Fprintln(p.Out, p.style(Styles.Title, text))
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	if p.Plain {
		fmt.Fprintf(p.Out, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	if p.Plain {
		fmt.Fprintf(p.Out, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints an error message
func (p *Printer) Error(text string) {
	if p.Plain {
		fmt.Fprintf(p.Out, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// Field prints an aligned "label: value" line.
func (p *Printer) Field(label, value string) {
	fmt.Fprintf(p.Out, "%s %s\n", p.style(Styles.Bold, fmt.Sprintf("%-16s", label+":")), value)
}

// Bullet prints an indented list item.
func (p *Printer) Bullet(text string) {
	if p.Plain {
		fmt.Fprintf(p.Out, "  - %s\n", text)
		return
	}
	fmt.Fprintf(p.Out, "  %s %s\n", IconBullet.Render(), text)
}

// Muted prints secondary text
func (p *Printer) Muted(text string) {
	fmt.Fprintln(p.Out, p.style(Styles.Muted, text))
}

// Box prints text in a rounded box
func (p *Printer) Box(title, content string) {
	if p.Plain {
		fmt.Fprintf(p.Out, "%s\n%s\n", title, content)
		return
	}
	fmt.Fprintln(p.Out, Styles.Box.Width(72).Render(Styles.Title.Render(title)+"\n"+content))
}

// Styled renders text with s unless the printer is plain.
func (p *Printer) Styled(s lipgloss.Style, text string) string {
	return p.style(s, text)
}

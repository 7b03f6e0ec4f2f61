// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Centralized styling for linediff output.
//
// Colors are disabled for non-TTY output, when NO_COLOR is set, or with
// --no-color. FORCE_COLOR overrides TTY detection.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/linediff/internal/diff"
	"github.com/jeranaias/linediff/internal/tasks"
)

// init configures lipgloss color profile based on terminal capabilities.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")). // Light gray
			Width(16)

	// ValueStyle is used for regular values and text
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")) // Off-white

	// SuccessStyle is used for success messages and OK statuses
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")). // Green
			Bold(true)

	// ErrorStyle is used for error messages and failures
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// WarningStyle is used for warnings and cautions
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Yellow/Orange

	// DimStyle is used for secondary information and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")) // Dim gray

	// SeparatorStyle is used for visual separators
	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // Dark gray
)

// Diff line styles.
var (
	InsertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // Green
	DeleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // Red
	EqualStyle  = DimStyle
)

// =============================================================================
// HELPER FUNCTIONS FOR COMMON PATTERNS
// =============================================================================

// RenderSeparator renders a horizontal separator line of the specified width.
func RenderSeparator(width int) string {
	if width <= 0 {
		width = 70
	}
	return RenderConditional(SeparatorStyle, strings.Repeat("-", width))
}

// RenderLabel renders a label with consistent width.
func RenderLabel(label string) string {
	if !ColorsEnabled() {
		return PlainStyle().Width(16).Render(label)
	}
	return LabelStyle.Render(label)
}

// RenderOp renders one diff op as its prefix followed by the line.
func RenderOp(op diff.DiffOp) string {
	text := op.Kind.Prefix() + op.Line
	switch op.Kind {
	case diff.OpInsert:
		return RenderConditional(InsertStyle, text)
	case diff.OpDelete:
		return RenderConditional(DeleteStyle, text)
	default:
		return RenderConditional(EqualStyle, text)
	}
}

// RenderTaskStatus renders a task status with a color for its outcome.
func RenderTaskStatus(status tasks.TaskStatus) string {
	label := "[" + strings.ToUpper(status.String()) + "]"
	switch status {
	case tasks.TaskStatusComplete:
		return RenderConditional(SuccessStyle, label)
	case tasks.TaskStatusFailed:
		return RenderConditional(ErrorStyle, label)
	case tasks.TaskStatusCanceled:
		return RenderConditional(WarningStyle, label)
	default:
		return RenderConditional(DimStyle, label)
	}
}

// =============================================================================
// TTY-AWARE STYLING HELPERS
// =============================================================================

// RenderConditional renders text with style if colors are enabled,
// otherwise returns the text unmodified.
func RenderConditional(style lipgloss.Style, text string) string {
	if !ColorsEnabled() {
		return text
	}
	return style.Render(text)
}

// PlainStyle returns an unstyled lipgloss.Style (no colors, no formatting).
func PlainStyle() lipgloss.Style {
	return lipgloss.NewStyle()
}

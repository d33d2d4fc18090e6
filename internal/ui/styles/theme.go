// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the quill TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderModel lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserText       lipgloss.Style
	Cursor         lipgloss.Style

	// ==========================================================================
	// THINKING BLOCK
	// ==========================================================================

	ThinkingHeader lipgloss.Style
	ThinkingBody   lipgloss.Style
	ThinkingRule   lipgloss.Style

	// ==========================================================================
	// STATUS BAR
	// ==========================================================================

	StatusBar    lipgloss.Style
	StatusState  lipgloss.Style
	StatusRetry  lipgloss.Style
	StatusStats  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// INPUT AREA
	// ==========================================================================

	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputPlaceholder lipgloss.Style

	// ==========================================================================
	// SPINNER AND NOTICES
	// ==========================================================================

	Spinner     lipgloss.Style
	WaitingText lipgloss.Style
	ErrorBox    lipgloss.Style
	ErrorTitle  lipgloss.Style
	Interrupted lipgloss.Style

	// ==========================================================================
	// CODE
	// ==========================================================================

	CodeLangBadge lipgloss.Style
	CodeBlock     lipgloss.Style
}

// NewTheme creates a theme honoring the configured appearance. name is one
// of "dark", "light", or "auto"; auto defers to terminal detection.
func NewTheme(name string) *Theme {
	colorProfile := termenv.ColorProfile()

	isDark := termenv.HasDarkBackground()
	switch name {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}

	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.HeaderModel = lipgloss.NewStyle().
		Foreground(TextSecondary)

	// Transcript
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Violet)
	t.UserText = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.Cursor = lipgloss.NewStyle().
		Foreground(Violet).
		Bold(true)

	// Thinking block
	t.ThinkingHeader = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
	t.ThinkingBody = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		PaddingLeft(2)
	t.ThinkingRule = lipgloss.NewStyle().
		Foreground(OverlayDim)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.StatusState = lipgloss.NewStyle().
		Bold(true).
		Foreground(Emerald)
	t.StatusRetry = lipgloss.NewStyle().
		Bold(true).
		Foreground(Amber)
	t.StatusStats = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan)
	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Input
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.InputPrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Spinner and notices
	t.Spinner = lipgloss.NewStyle().
		Foreground(Violet)
	t.WaitingText = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
	t.ErrorBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(0, 1)
	t.ErrorTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Rose)
	t.Interrupted = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)

	// Code
	t.CodeLangBadge = lipgloss.NewStyle().
		Foreground(TextMuted).
		Background(OverlayDim).
		Padding(0, 1)
	t.CodeBlock = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
}

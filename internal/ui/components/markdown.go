// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the quill TUI.
package components

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// SETTLED MESSAGE RENDERER
// =============================================================================

// Markdown renders settled assistant messages through glamour. The
// underlying TermRenderer is cached and rebuilt only when the wrap width
// changes, since constructing one is expensive relative to rendering.
type Markdown struct {
	renderer *glamour.TermRenderer
	width    int
}

// NewMarkdown creates a markdown renderer wrapping at the given width.
func NewMarkdown(width int) *Markdown {
	return &Markdown{width: clampWrapWidth(width)}
}

// SetWidth updates the wrap width. The cached renderer is dropped when the
// width actually changes.
func (m *Markdown) SetWidth(width int) {
	width = clampWrapWidth(width)
	if width != m.width {
		m.width = width
		m.renderer = nil
	}
}

// Render renders markdown for terminal display. On renderer failure the
// raw text is returned so content is never lost to a styling problem.
func (m *Markdown) Render(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	if m.renderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(m.width),
		)
		if err != nil {
			return text
		}
		m.renderer = r
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// clampWrapWidth keeps the wrap width inside a range glamour handles well.
func clampWrapWidth(width int) int {
	if width < 20 {
		return 20
	}
	if width > 120 {
		return 120
	}
	return width
}

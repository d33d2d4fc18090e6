// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the quill TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/quill-sh/quill/internal/ui/styles"
)

// =============================================================================
// THINKING BLOCK
// =============================================================================

// ThinkingBlock renders a model's reasoning segments as a collapsible block
// above the response. Collapsed it is a single summary line; expanded it
// shows every segment in muted italic text.
type ThinkingBlock struct {
	Segments []string
	Expanded bool
	Live     bool
	Width    int
}

// Render produces the block, or an empty string when there is nothing to
// show.
func (b ThinkingBlock) Render(theme *styles.Theme) string {
	if len(b.Segments) == 0 {
		return ""
	}

	header := b.headerLine()
	if !b.Expanded {
		return theme.ThinkingHeader.Render(header)
	}

	width := b.Width
	if width < 20 {
		width = 76
	}

	var sb strings.Builder
	sb.WriteString(theme.ThinkingHeader.Render(header))
	for _, seg := range b.Segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(theme.ThinkingBody.Render(wordwrap.String(seg, width-2)))
	}
	sb.WriteString("\n")
	sb.WriteString(theme.ThinkingRule.Render(strings.Repeat("-", min(width, 40))))
	return sb.String()
}

// headerLine builds the summary line shown in both states.
func (b ThinkingBlock) headerLine() string {
	arrow := ">"
	if b.Expanded {
		arrow = "v"
	}
	noun := "steps"
	if len(b.Segments) == 1 {
		noun = "step"
	}
	state := ""
	if b.Live {
		state = ", thinking"
	}
	return fmt.Sprintf("%s thinking (%d %s%s)  [ctrl+t]", arrow, len(b.Segments), noun, state)
}

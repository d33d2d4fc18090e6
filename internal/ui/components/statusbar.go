// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the quill TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/quill-sh/quill/internal/ui/styles"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// StatusState describes what the chat session is currently doing.
type StatusState int

const (
	StatusIdle StatusState = iota
	StatusWaiting
	StatusStreaming
	StatusRetrying
)

// String returns the display label for the state.
func (s StatusState) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusStreaming:
		return "streaming"
	case StatusRetrying:
		return "retrying"
	default:
		return "ready"
	}
}

// StatusBar is the single-line footer above the input area.
type StatusBar struct {
	Model      string
	State      StatusState
	Round      int
	MaxRounds  int
	TokensUsed int
	ContextPct float64
	ShowStats  bool
}

// Render renders the bar padded to the given width.
func (b StatusBar) Render(width int, theme *styles.Theme) string {
	stateStyle := theme.StatusState
	if b.State == StatusRetrying {
		stateStyle = theme.StatusRetry
	}

	left := stateStyle.Render(b.State.String())
	if b.Round > 0 && b.State != StatusIdle {
		left += theme.StatusStats.Render(fmt.Sprintf(" round %d/%d", b.Round, b.MaxRounds))
	}

	mid := theme.StatusStats.Render(b.Model)

	right := ""
	if b.ShowStats && b.TokensUsed > 0 {
		right = theme.StatusStats.Render(
			fmt.Sprintf("%d tok, %.0f%% ctx", b.TokensUsed, b.ContextPct))
	}

	line := joinPadded(left, mid, right, width-2)
	return theme.StatusBar.Render(line)
}

// joinPadded spreads three segments across width columns. Display width is
// measured with runewidth so CJK model names do not break the layout.
func joinPadded(left, mid, right string, width int) string {
	lw := runewidth.StringWidth(stripANSI(left))
	mw := runewidth.StringWidth(stripANSI(mid))
	rw := runewidth.StringWidth(stripANSI(right))

	gap := width - lw - mw - rw
	if gap < 2 {
		return left + " " + mid + " " + right
	}
	leftGap := gap / 2
	rightGap := gap - leftGap
	return left + strings.Repeat(" ", leftGap) + mid + strings.Repeat(" ", rightGap) + right
}

// stripANSI removes SGR escape sequences for width measurement.
func stripANSI(s string) string {
	var sb strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the quill TUI.
package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/quill-sh/quill/internal/ui/styles"
)

// =============================================================================
// SPINNER
// =============================================================================

// Spinner shows activity while quill waits for the first token of a
// response. It wraps the bubbles spinner with an elapsed-time readout.
type Spinner struct {
	spinner   spinner.Model
	message   string
	startTime time.Time
	active    bool
}

// NewSpinner creates a spinner with ASCII-compatible frames.
func NewSpinner(theme *styles.Theme) Spinner {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	s.Style = theme.Spinner

	return Spinner{
		spinner: s,
		message: "Waiting for model",
	}
}

// Start activates the spinner and resets the elapsed timer.
func (s *Spinner) Start(message string) tea.Cmd {
	if message != "" {
		s.message = message
	}
	s.startTime = time.Now()
	s.active = true
	return s.spinner.Tick
}

// Stop deactivates the spinner.
func (s *Spinner) Stop() {
	s.active = false
}

// Active reports whether the spinner is running.
func (s Spinner) Active() bool {
	return s.active
}

// Update advances the animation. Tick messages are ignored while stopped so
// a stale tick does not restart the chain.
func (s Spinner) Update(msg tea.Msg) (Spinner, tea.Cmd) {
	if !s.active {
		return s, nil
	}
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return s, cmd
}

// View renders the spinner line, or an empty string when inactive.
func (s Spinner) View(theme *styles.Theme) string {
	if !s.active {
		return ""
	}
	elapsed := time.Since(s.startTime).Round(time.Second)
	text := fmt.Sprintf("%s %s (%s)", s.spinner.View(), s.message, elapsed)
	return theme.WaitingText.Render(text)
}

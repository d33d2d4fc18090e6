// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the quill TUI.
package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/quill-sh/quill/internal/model"
	"github.com/quill-sh/quill/internal/ui/components"
)

// chromeHeight is the number of rows taken by header, status bar, and the
// input box including its border.
const chromeHeight = 5

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "starting..."
	}

	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.renderStatusBar())
	sb.WriteString("\n")
	sb.WriteString(m.renderInput())
	return sb.String()
}

// renderHeader draws the one-line application header.
func (m *Model) renderHeader() string {
	brand := m.theme.HeaderBrand.Render("quill")
	modelName := m.theme.HeaderModel.Render(" " + m.cfg.Ollama.Model)
	line := brand + modelName
	return m.theme.Header.Width(m.width).Render(line)
}

// renderStatusBar draws the footer above the input.
func (m *Model) renderStatusBar() string {
	state := components.StatusIdle
	switch m.state {
	case stateWaiting:
		state = components.StatusWaiting
	case stateStreaming:
		state = components.StatusStreaming
	case stateRetrying:
		state = components.StatusRetrying
	}

	bar := components.StatusBar{
		Model:      m.cfg.Ollama.Model,
		State:      state,
		Round:      m.round,
		MaxRounds:  m.cfg.Agent.MaxIterations,
		TokensUsed: m.conversation.EstimateTokens(),
		ContextPct: m.conversation.GetContextPercent(),
		ShowStats:  m.cfg.UI.ShowStats,
	}
	return bar.Render(m.width, m.theme)
}

// renderInput draws the input box.
func (m *Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshTranscript rebuilds the viewport content from the conversation
// plus the live generation state, then follows the tail.
func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}

	wasAtBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if wasAtBottom {
		m.viewport.GotoBottom()
	}
}

// renderTranscript renders every message. The last assistant message gets
// the live treatment while a generation is visibly in motion: thinking
// block from the coordinator, chroma-highlighted partial text, and a
// cursor. Settled messages render through glamour.
func (m *Model) renderTranscript() string {
	msgs := m.conversation.Messages
	var parts []string

	live := m.coord.Speaking() || m.generating()

	for i, msg := range msgs {
		last := i == len(msgs)-1
		switch msg.Role {
		case model.RoleUser:
			parts = append(parts, m.renderUserMessage(msg))
		case model.RoleAssistant:
			if last && live {
				parts = append(parts, m.renderLiveAssistant())
			} else {
				parts = append(parts, m.renderSettledAssistant(msg))
			}
		}
	}

	if m.spinner.Active() {
		parts = append(parts, m.spinner.View(m.theme))
	}
	if m.interrupted {
		parts = append(parts, m.theme.Interrupted.Render("response interrupted"))
	}
	if m.err != nil {
		parts = append(parts, m.renderError())
	}

	return strings.Join(parts, "\n\n")
}

// renderUserMessage draws a settled user message.
func (m *Model) renderUserMessage(msg *model.Message) string {
	label := m.theme.UserLabel.Render("you")
	return label + "\n" + m.theme.UserText.Render(msg.Content)
}

// renderSettledAssistant draws a finished assistant message with glamour.
func (m *Model) renderSettledAssistant(msg *model.Message) string {
	if msg.Content == "" && !msg.HasThinking() {
		return ""
	}
	label := m.theme.AssistantLabel.Render("quill")

	var sb strings.Builder
	sb.WriteString(label)
	if msg.HasThinking() {
		block := components.ThinkingBlock{
			Segments: msg.Thinking,
			Expanded: m.thinkingOpen,
			Width:    m.width - 2,
		}
		sb.WriteString("\n")
		sb.WriteString(block.Render(m.theme))
	}
	if msg.Content != "" {
		sb.WriteString("\n")
		sb.WriteString(m.md.Render(msg.Content))
	}
	if m.cfg.UI.ShowStats && msg.TokenCount > 0 {
		sb.WriteString("\n")
		sb.WriteString(m.theme.StatusStats.Render(msg.FormatStats()))
	}
	return sb.String()
}

// renderLiveAssistant draws the in-flight response from coordinator
// snapshots. Glamour is avoided here: reflowing a half-delivered message
// makes the text jump as tokens arrive, so fenced code gets chroma
// highlighting and prose stays plain.
func (m *Model) renderLiveAssistant() string {
	label := m.theme.AssistantLabel.Render("quill")

	var sb strings.Builder
	sb.WriteString(label)

	if segs := m.coord.Segments(); len(segs) > 0 {
		block := components.ThinkingBlock{
			Segments: segs,
			Expanded: m.thinkingOpen,
			Live:     m.generating(),
			Width:    m.width - 2,
		}
		sb.WriteString("\n")
		sb.WriteString(block.Render(m.theme))
	}

	visible := m.coord.Visible()
	if visible != "" {
		sb.WriteString("\n")
		sb.WriteString(components.HighlightFences(visible, m.theme))
	}
	if m.coord.Speaking() {
		sb.WriteString(m.theme.Cursor.Render("▌"))
	}

	if m.lastTool != "" && m.generating() {
		sb.WriteString("\n")
		sb.WriteString(m.theme.StatusStats.Render(fmt.Sprintf("ran %s", m.lastTool)))
	}
	return sb.String()
}

// renderError draws the error box.
func (m *Model) renderError() string {
	title := m.theme.ErrorTitle.Render("error")
	body := lipgloss.NewStyle().Render(m.err.Error())
	return m.theme.ErrorBox.Width(m.width - 2).Render(title + "\n" + body)
}

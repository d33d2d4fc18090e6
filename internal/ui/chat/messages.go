// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the quill TUI.
//
// This file defines the Bubble Tea message types used by the chat
// interface. Every message originating from the asynchronous generation
// pump carries the epoch of the generation it belongs to; the update loop
// hands them to the stream coordinator, which silently drops anything
// stamped with a retired epoch. Messages without an epoch are local UI
// events.
package chat

import (
	"time"

	"github.com/quill-sh/quill/internal/config"
	"github.com/quill-sh/quill/internal/model"
	"github.com/quill-sh/quill/internal/stream"
)

// =============================================================================
// GENERATION MESSAGES
// =============================================================================

// StreamTokenMsg delivers a response-channel fragment.
type StreamTokenMsg struct {
	Epoch stream.Epoch
	Token string
}

// StreamThinkingMsg delivers a thinking-channel fragment.
type StreamThinkingMsg struct {
	Epoch stream.Epoch
	Token string
}

// IterationBeginMsg marks the start of an agent round within the current
// generation. Round is 1-based.
type IterationBeginMsg struct {
	Epoch stream.Epoch
	Round int
}

// StreamReplaceMsg swaps the current round's text for its sanitized form
// after fabricated tool notation was stripped.
type StreamReplaceMsg struct {
	Epoch   stream.Epoch
	Cleaned string
}

// StreamResetMsg discards the current round's text before a retry.
type StreamResetMsg struct {
	Epoch stream.Epoch
}

// ToolActivityMsg reports a tool execution for the status line.
type ToolActivityMsg struct {
	Epoch stream.Epoch
	Name  string
	Err   error
}

// StreamCompleteMsg signals the generation finished cleanly.
type StreamCompleteMsg struct {
	Epoch stream.Epoch
	Stats *model.Statistics
}

// StreamErrorMsg signals the generation failed. Text delivered before the
// failure stays on screen.
type StreamErrorMsg struct {
	Epoch stream.Epoch
	Err   error
}

// =============================================================================
// REVEAL PASSES
// =============================================================================

// RevealTickMsg drives one typewriter pass over the response channel.
// Ticks carry the epoch they were scheduled under so a tick left over
// from an interrupted generation cannot claim a pass slot from the next
// one.
type RevealTickMsg struct {
	Epoch stream.Epoch
	Time  time.Time
}

// ThinkingTickMsg drives one publish pass over the thinking channel.
type ThinkingTickMsg struct {
	Epoch stream.Epoch
	Time  time.Time
}

// =============================================================================
// LOCAL UI MESSAGES
// =============================================================================

// ConversationSavedMsg confirms a background save.
type ConversationSavedMsg struct {
	ID  string
	Err error
}

// OllamaStatusMsg reports the startup health check.
type OllamaStatusMsg struct {
	Running bool
	Err     error
}

// ConfigReloadedMsg delivers a freshly loaded configuration after the
// config file changed on disk. Only presentation settings take effect
// immediately; stream tuning applies from the next generation.
type ConfigReloadedMsg struct {
	Config *config.Config
}

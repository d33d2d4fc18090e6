// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the quill TUI.
//
// The package exposes an adaptive color palette and a Theme that bundles
// every Lip Gloss style the chat interface uses. Colors are declared as
// lipgloss.AdaptiveColor pairs so light and dark terminals each get a
// legible variant; the configured appearance ("dark", "light", "auto")
// decides which side of the pair applies.
package styles

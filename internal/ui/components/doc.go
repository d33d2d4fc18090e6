// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the quill TUI.
//
// The chat view composes these pieces: a spinner for the waiting state, a
// status bar, a collapsible thinking block, a cached glamour renderer for
// settled messages, and a chroma-based fence highlighter for text that is
// still streaming. Components render to strings; layout is the caller's
// concern.
package components

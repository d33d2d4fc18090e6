// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses quill's command line and dispatches to command
// handlers. Running quill with no command launches the chat TUI; the
// ask, history, and config commands are plain terminal commands that
// never enter the alternate screen.
package cli

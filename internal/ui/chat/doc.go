// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the quill TUI.
//
// The Bubble Tea model is the single owner of the stream coordinator.
// Token delivery runs on a separate goroutine (the Generator) and reaches
// the model only through epoch-stamped mailbox messages, so all transcript
// mutations happen in arrival order inside Update. Cancelling a response
// retires its epoch rather than tearing down the pump: messages already in
// the mailbox when the user presses Esc arrive, fail the epoch check, and
// vanish without side effects.
//
// Rendering is split by lifecycle. A message still streaming is drawn from
// coordinator snapshots with chroma-highlighted code fences; once settled
// it is re-rendered through glamour. Reveal pacing is driven by tea.Tick
// passes, coalesced so that any token rate produces at most one pending
// tick per channel.
package chat

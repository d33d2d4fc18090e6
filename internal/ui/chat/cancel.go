// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the quill TUI.
package chat

import (
	"context"
	"sync"
)

// =============================================================================
// NETWORK CANCELLATION
// =============================================================================

// cancelGuard holds the context cancel function for the generation in
// flight. Cancelling the context stops the network request; it does not
// stop already-queued token messages, which is the epoch guard's job.
//
// Must be held as a pointer: Bubble Tea copies the Model on every Update,
// and copying a struct with a mutex is a race.
type cancelGuard struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// newCancelGuard creates an empty guard.
func newCancelGuard() *cancelGuard {
	return &cancelGuard{}
}

// arm stores the cancel function for the new generation, cancelling any
// previous one first.
func (g *cancelGuard) arm(cancel context.CancelFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
	}
	g.cancel = cancel
}

// fire cancels the in-flight request. Safe to call repeatedly or with
// nothing armed.
func (g *cancelGuard) fire() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}

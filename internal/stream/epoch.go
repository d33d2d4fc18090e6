// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the incremental response-streaming coordinator.
//
// This file implements the epoch guard that invalidates in-flight events
// from cancelled generations without unsubscribing the async source.
package stream

// =============================================================================
// EPOCH GUARD
// =============================================================================

// Epoch is a generation-lifetime version stamp. Every event dispatched by
// the token source carries the epoch that was active when its generation
// started; the guard drops events whose stamp no longer matches.
type Epoch uint64

// epochGuard holds the monotonically increasing counter pair.
//
// generation increments on every cancel or clear. active is set to the
// current generation value when a new generation begins. An event is valid
// iff the two counters are equal AND the event's stamp equals them - this
// makes cancellation absolute: a single Invalidate call permanently
// invalidates everything stamped before it, even events already queued in
// the program's mailbox.
type epochGuard struct {
	generation Epoch
	active     Epoch
}

// begin starts a new generation and returns the epoch that stamps its events.
func (g *epochGuard) begin() Epoch {
	g.active = g.generation
	return g.active
}

// invalidate retires the generation in flight. Events stamped with the old
// epoch will fail the valid check from this moment on.
func (g *epochGuard) invalidate() {
	g.generation++
}

// valid reports whether an event stamped with e belongs to the live generation.
func (g *epochGuard) valid(e Epoch) bool {
	return g.generation == g.active && e == g.active
}

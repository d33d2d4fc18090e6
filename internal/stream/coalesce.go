// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the incremental response-streaming coordinator.
//
// This file implements the per-channel pass coalescer that keeps pending
// scheduled work bounded no matter how fast tokens arrive.
package stream

// =============================================================================
// PASS COALESCER
// =============================================================================

// Coalescer guarantees at most one pending scheduled pass per channel.
//
// The pattern: every event marks the channel dirty; only the event that
// finds no pass already scheduled gets to schedule one. The pass itself
// clears the scheduled flag first, so work arriving during the pass
// schedules the next one. Arbitrarily fast token arrival therefore creates
// at most one queued callback, never unbounded pending work.
//
// The coalescer is scheduler-agnostic: in the TUI the "schedule" action is
// a tea.Tick command, but any timer or mailbox works.
type Coalescer struct {
	dirty     bool
	scheduled bool
}

// MarkDirty flags the channel as having unpublished work. It returns true
// when the caller should schedule a pass; false means one is already on
// its way.
func (c *Coalescer) MarkDirty() bool {
	c.dirty = true
	if c.scheduled {
		return false
	}
	c.scheduled = true
	return true
}

// BeginPass consumes the scheduled slot and reports whether the pass has
// anything to do. A pass that finds the channel clean (for example after a
// rollback cancelled the work it was scheduled for) should do nothing.
func (c *Coalescer) BeginPass() bool {
	c.scheduled = false
	run := c.dirty
	c.dirty = false
	return run
}

// Reschedule claims the scheduled slot for a follow-up pass, used by the
// typewriter channel while the buffer is not fully revealed. Returns false
// if a pass is somehow already pending.
func (c *Coalescer) Reschedule() bool {
	if c.scheduled {
		return false
	}
	c.scheduled = true
	return true
}

// Cancel drops both flags. Used on rollback and teardown so an already
// ticking pass finds nothing to publish.
func (c *Coalescer) Cancel() {
	c.dirty = false
	c.scheduled = false
}

// Pending reports whether a pass is currently scheduled.
func (c *Coalescer) Pending() bool {
	return c.scheduled
}

// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the incremental response-streaming coordinator.
//
// This file wires the epoch guard, tag normalizer, segment classifier,
// typewriter reveal, and iteration tracker into the coordinator that owns
// all streaming state for one generation at a time.
package stream

import (
	"strings"
	"time"
	"unicode/utf8"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds coordinator tuning. Zero values take the defaults.
type Config struct {
	// RevealRate is the typewriter pace in characters per second.
	RevealRate float64

	// MaxGap clamps the elapsed time between reveal passes so a suspended
	// event loop does not dump a backlog in one frame.
	MaxGap time.Duration

	// PromoteThreshold is the minimum number of characters of discarded
	// iteration text worth promoting into a thinking segment when a
	// corrective replace wipes a step entirely.
	PromoteThreshold int
}

// DefaultPromoteThreshold guards against promoting trivial scraps. A wiped
// step shorter than this just disappears.
const DefaultPromoteThreshold = 10

// =============================================================================
// SINKS
// =============================================================================

// Sink receives published transcript snapshots. Implementations get copies
// only - never live references into coordinator state - so they can render
// from any goroutine without racing ingestion.
type Sink interface {
	// StreamResponse delivers the revealed prefix of the response buffer.
	// revealing is true while more buffered text is still being paced out
	// or the stream is still open.
	StreamResponse(visible string, revealing bool)

	// StreamThinking delivers the ordered thinking segments.
	StreamThinking(segments []string)
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator turns an asynchronous token stream into a consistent,
// correctable live transcript split into thinking and response channels.
//
// It is exclusively owned by one goroutine. All mutations happen in the
// order events are delivered; the epoch guard is the only cancellation
// mechanism - there is no abort-in-flight, only ignore-retroactively.
type Coordinator struct {
	guard epochGuard
	norm  tagNormalizer
	segs  segmentList
	tw    typewriter

	// buf is the accumulated response text with thinking spans removed.
	// Append-only except for the corrective operations.
	buf string

	// iterStart is the buffer offset where the current iteration began.
	// Corrections splice the buffer at this offset; when no iteration was
	// ever marked it is zero and corrections apply to the whole buffer.
	iterStart int

	// done is set once the stream has finished or been torn down. The
	// typewriter may still be paging out buffered text after that.
	done bool

	promoteThreshold int

	sinks    map[int]Sink
	nextSink int
}

// NewCoordinator creates a coordinator with the given tuning.
func NewCoordinator(cfg Config) *Coordinator {
	threshold := cfg.PromoteThreshold
	if threshold <= 0 {
		threshold = DefaultPromoteThreshold
	}
	return &Coordinator{
		tw:               newTypewriter(cfg.RevealRate, cfg.MaxGap),
		promoteThreshold: threshold,
		sinks:            make(map[int]Sink),
		done:             true,
	}
}

// =============================================================================
// GENERATION LIFECYCLE
// =============================================================================

// BeginGeneration starts a fresh generation and returns the epoch that must
// stamp every event belonging to it. State from the previous generation is
// discarded.
func (c *Coordinator) BeginGeneration() Epoch {
	c.norm.reset()
	c.segs.reset()
	c.tw.reset()
	c.buf = ""
	c.iterStart = 0
	c.done = false
	return c.guard.begin()
}

// Invalidate retires the generation in flight. Every event stamped with its
// epoch - including ones already queued by the async source - is dropped
// from this moment on. No unsubscribe is needed, or possible: token
// delivery callbacks may already be in the mailbox when the user cancels.
func (c *Coordinator) Invalidate() {
	c.guard.invalidate()
	c.done = true
}

// Epoch returns the epoch of the current generation.
func (c *Coordinator) Epoch() Epoch {
	return c.guard.active
}

// Live reports whether events stamped with e still belong to the live
// generation. Entry points that mutate state run this check themselves;
// Live is for events with no coordinator payload, which would otherwise
// compare against Epoch and miss an invalidation.
func (c *Coordinator) Live(e Epoch) bool {
	return c.guard.valid(e)
}

// =============================================================================
// INBOUND EVENTS
// =============================================================================
// Every entry point first checks the event's epoch. A stale event returns
// false and has no side effects whatsoever.

// PushResponse ingests a response-channel fragment. Inline thinking spans
// are normalized and extracted here; everything else lands in the response
// buffer in arrival order.
func (c *Coordinator) PushResponse(e Epoch, token string) bool {
	if !c.guard.valid(e) {
		return false
	}
	for _, sp := range c.norm.feed(token) {
		if sp.thinking {
			c.segs.addThinking(sp.text)
		} else {
			c.buf += sp.text
			c.segs.noteResponse()
		}
	}
	return true
}

// PushThinking ingests a fragment from the dedicated thinking channel,
// independent of inline tag detection.
func (c *Coordinator) PushThinking(e Epoch, token string) bool {
	if !c.guard.valid(e) {
		return false
	}
	c.segs.addThinking(token)
	return true
}

// BeginIteration marks the start of a new planning/response step within
// this generation. Corrections from now on splice only text produced after
// this point.
func (c *Coordinator) BeginIteration(e Epoch) bool {
	if !c.guard.valid(e) {
		return false
	}
	c.iterStart = len(c.buf)
	return true
}

// Rollback discards the current iteration's text, preserving everything
// emitted by earlier iterations, and snaps the revealed position back to
// the iteration start.
func (c *Coordinator) Rollback(e Epoch) bool {
	if !c.guard.valid(e) {
		return false
	}
	if c.iterStart > len(c.buf) {
		c.iterStart = len(c.buf)
	}
	c.buf = c.buf[:c.iterStart]
	c.tw.snapTo(utf8.RuneCountInString(c.buf))
	return true
}

// Replace swaps the current iteration's text for cleaned and reveals the
// result immediately - corrections must not trickle in at reading pace.
//
// When cleaned is empty and the discarded text was non-trivial, the
// discarded text is promoted into a new thinking segment instead of
// vanishing, unless the last segment already carries it. This avoids the
// jarring flash of visible planning text disappearing with no transition.
func (c *Coordinator) Replace(e Epoch, cleaned string) bool {
	if !c.guard.valid(e) {
		return false
	}
	if c.iterStart > len(c.buf) {
		c.iterStart = len(c.buf)
	}
	discarded := c.buf[c.iterStart:]
	if cleaned == "" &&
		utf8.RuneCountInString(discarded) > c.promoteThreshold &&
		!c.segs.lastContains(discarded) {
		c.segs.push(strings.TrimSpace(discarded))
	}
	c.buf = c.buf[:c.iterStart] + cleaned
	c.tw.snapTo(utf8.RuneCountInString(c.buf))
	return true
}

// Finish marks the stream complete. Scratch text not under an unterminated
// thinking span is released into the response buffer, and the last segment
// gets a final artifact scrub. The typewriter keeps paging out whatever is
// still unrevealed.
func (c *Coordinator) Finish(e Epoch) bool {
	if !c.guard.valid(e) {
		return false
	}
	if rem := c.norm.flush(); rem != "" {
		c.buf += rem
		c.segs.noteResponse()
	}
	c.segs.scrubLast()
	c.done = true
	return true
}

// =============================================================================
// REVEAL PASSES
// =============================================================================

// AdvanceReveal runs one typewriter pass at the given wall-clock instant
// and reports whether another pass is needed to finish revealing the
// buffer. The pace depends only on elapsed time, never on how often this
// is called.
func (c *Coordinator) AdvanceReveal(now time.Time) (more bool) {
	return c.tw.advance(now, utf8.RuneCountInString(c.buf))
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// Visible returns the revealed prefix of the response buffer.
func (c *Coordinator) Visible() string {
	total := utf8.RuneCountInString(c.buf)
	pos := c.tw.pos()
	if pos >= total {
		return c.buf
	}
	return string([]rune(c.buf)[:pos])
}

// Buffer returns the full accumulated response text, revealed or not.
func (c *Coordinator) Buffer() string {
	return c.buf
}

// Segments returns a copy of the ordered thinking segments.
func (c *Coordinator) Segments() []string {
	return c.segs.snapshot()
}

// Speaking reports whether the transcript is still visibly in motion:
// either the stream is open or buffered text is still being paced out.
func (c *Coordinator) Speaking() bool {
	return !c.done || c.tw.pos() < utf8.RuneCountInString(c.buf)
}

// =============================================================================
// SINK REGISTRATION
// =============================================================================

// AddSink registers a snapshot receiver and returns its disposer. Close
// invokes all outstanding disposers.
func (c *Coordinator) AddSink(s Sink) func() {
	id := c.nextSink
	c.nextSink++
	c.sinks[id] = s
	return func() {
		delete(c.sinks, id)
	}
}

// PublishResponse pushes the current response snapshot to every sink.
// Called by the response channel's coalesced pass.
func (c *Coordinator) PublishResponse() {
	visible, speaking := c.Visible(), c.Speaking()
	for _, s := range c.sinks {
		s.StreamResponse(visible, speaking)
	}
}

// PublishThinking pushes the current thinking snapshot to every sink.
// Called by the thinking channel's coalesced pass.
func (c *Coordinator) PublishThinking() {
	segs := c.Segments()
	for _, s := range c.sinks {
		s.StreamThinking(segs)
	}
}

// Close tears the coordinator down: the generation in flight is
// invalidated and every registered sink is disposed.
func (c *Coordinator) Close() {
	c.Invalidate()
	for id := range c.sinks {
		delete(c.sinks, id)
	}
}

// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the incremental response-streaming coordinator.
//
// This file implements the typewriter reveal: how much of the buffered
// response has actually been shown, advanced by wall-clock time rather than
// by pass count so the reading pace is identical at any tick frequency.
package stream

import "time"

// =============================================================================
// TYPEWRITER REVEAL
// =============================================================================

// Reveal pacing defaults. The rate is characters per second of wall-clock
// time; the gap clamp bounds the jump after the event loop was suspended
// (backgrounded terminal, stopped laptop lid) so resuming does not dump a
// paragraph in one frame.
const (
	DefaultRevealRate = 180.0
	DefaultMaxGap     = 250 * time.Millisecond
)

// typewriter tracks the revealed position within the response buffer,
// measured in runes.
//
// The position advances by rate x elapsed between consecutive passes, never
// by a fixed amount per pass: a chars-per-pass scheme reads twice as fast
// on a display ticking twice as often. Fractional progress carries across
// passes so slow rates still move.
type typewriter struct {
	fpos   float64 // revealed position, fractional runes
	rate   float64 // runes per second
	maxGap time.Duration
	last   time.Time
}

func newTypewriter(rate float64, maxGap time.Duration) typewriter {
	if rate <= 0 {
		rate = DefaultRevealRate
	}
	if maxGap <= 0 {
		maxGap = DefaultMaxGap
	}
	return typewriter{rate: rate, maxGap: maxGap}
}

// advance moves the revealed position toward total and reports whether
// another pass is needed. total is the current rune length of the buffer.
func (t *typewriter) advance(now time.Time, total int) (more bool) {
	if t.last.IsZero() {
		t.last = now
	}
	elapsed := now.Sub(t.last)
	if elapsed > t.maxGap {
		elapsed = t.maxGap
	}
	if elapsed < 0 {
		elapsed = 0
	}
	t.last = now

	t.fpos += t.rate * elapsed.Seconds()
	if t.fpos > float64(total) {
		t.fpos = float64(total)
	}
	return t.pos() < total
}

// pos returns the revealed position in whole runes.
func (t *typewriter) pos() int {
	return int(t.fpos)
}

// snapTo moves the revealed position without pacing. Corrections jump
// forward to show replaced text immediately; rollbacks snap backward to the
// iteration start. The pass clock resets so the next advance does not bill
// the time spent snapped.
func (t *typewriter) snapTo(pos int) {
	if pos < 0 {
		pos = 0
	}
	t.fpos = float64(pos)
	t.last = time.Time{}
}

// reset restores the typewriter for a new generation, keeping its pacing.
func (t *typewriter) reset() {
	t.fpos = 0
	t.last = time.Time{}
}

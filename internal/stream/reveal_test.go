// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the incremental response-streaming coordinator.
package stream

import (
	"testing"
	"time"
)

// runPasses simulates one second of reveal passes at the given interval and
// returns the revealed position for a buffer of the given length.
func runPasses(t *testing.T, interval time.Duration, total int, rate float64) int {
	t.Helper()
	tw := newTypewriter(rate, time.Second)
	now := time.Unix(0, 0)
	tw.advance(now, total)

	end := now.Add(time.Second)
	for now.Before(end) {
		now = now.Add(interval)
		tw.advance(now, total)
	}
	return tw.pos()
}

// The reveal rate is defined in wall-clock characters per second, so the
// revealed amount after one simulated second must be the same whether
// passes arrive every 16ms or every 7ms.
func TestTypewriterRateInvariantToPassFrequency(t *testing.T) {
	const (
		total = 1000
		rate  = 100.0
	)

	at16 := runPasses(t, 16*time.Millisecond, total, rate)
	at7 := runPasses(t, 7*time.Millisecond, total, rate)

	for _, got := range []int{at16, at7} {
		if got < 95 || got > 110 {
			t.Errorf("Expected ~100 chars revealed after 1s at 100 cps, got %d", got)
		}
	}
	if diff := at16 - at7; diff < -5 || diff > 5 {
		t.Errorf("Pass frequency changed the reveal pace: 16ms=%d 7ms=%d", at16, at7)
	}
}

func TestTypewriterClampsToBufferLength(t *testing.T) {
	tw := newTypewriter(1000, time.Second)
	now := time.Unix(0, 0)
	tw.advance(now, 5)
	more := tw.advance(now.Add(time.Second), 5)

	if tw.pos() != 5 {
		t.Errorf("Position must clamp to the buffer length, got %d", tw.pos())
	}
	if more {
		t.Error("No further pass is needed once the buffer is fully revealed")
	}
}

// A suspended event loop (backgrounded terminal) must not dump the backlog
// in a single pass when ticks resume.
func TestTypewriterClampsElapsedGap(t *testing.T) {
	tw := newTypewriter(100, 250*time.Millisecond)
	now := time.Unix(0, 0)
	tw.advance(now, 1000)
	tw.advance(now.Add(10*time.Second), 1000)

	// 250ms at 100 cps is 25 chars, not 1000.
	if got := tw.pos(); got != 25 {
		t.Errorf("Expected gap-clamped advance of 25 chars, got %d", got)
	}
}

func TestTypewriterSnapResetsPassClock(t *testing.T) {
	tw := newTypewriter(100, 250*time.Millisecond)
	now := time.Unix(0, 0)
	tw.advance(now, 1000)

	tw.snapTo(500)
	if tw.pos() != 500 {
		t.Errorf("snapTo must move the position directly, got %d", tw.pos())
	}

	// The first pass after a snap must not bill the time spent snapped.
	tw.advance(now.Add(10*time.Second), 1000)
	if got := tw.pos(); got != 500 {
		t.Errorf("First pass after snap should start a fresh clock, got %d", got)
	}
}

func TestTypewriterFractionalProgressAccumulates(t *testing.T) {
	// 10 cps with 16ms passes advances ~0.16 chars per pass. Whole
	// characters must still appear at the configured pace.
	got := runPasses(t, 16*time.Millisecond, 1000, 10)
	if got < 9 || got > 11 {
		t.Errorf("Expected ~10 chars after 1s at 10 cps, got %d", got)
	}
}

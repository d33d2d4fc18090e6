// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "testing"

func TestCoalescerSchedulesExactlyOnce(t *testing.T) {
	var c Coalescer

	if !c.MarkDirty() {
		t.Fatal("First MarkDirty must request a scheduled pass")
	}
	// A burst of further events must not create more pending work.
	for i := 0; i < 1000; i++ {
		if c.MarkDirty() {
			t.Fatal("Only one pass may be pending per channel")
		}
	}

	if !c.BeginPass() {
		t.Error("The pass should find the channel dirty")
	}
	if c.Pending() {
		t.Error("BeginPass must consume the scheduled slot")
	}
}

func TestCoalescerWorkDuringPassSchedulesNext(t *testing.T) {
	var c Coalescer
	c.MarkDirty()
	c.BeginPass()

	if !c.MarkDirty() {
		t.Error("An event after a pass begins must schedule the next pass")
	}
}

func TestCoalescerCleanPassRunsNothing(t *testing.T) {
	var c Coalescer
	c.MarkDirty()
	c.Cancel()

	// The tick that was scheduled before the cancel still fires, but must
	// find nothing to do.
	if c.BeginPass() {
		t.Error("A cancelled channel must not publish")
	}
}

func TestCoalescerReschedule(t *testing.T) {
	var c Coalescer
	if !c.Reschedule() {
		t.Error("Reschedule should claim the free slot")
	}
	if c.Reschedule() {
		t.Error("Reschedule must not double-book the slot")
	}
}

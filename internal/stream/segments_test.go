// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the incremental response-streaming coordinator.
package stream

import (
	"strings"
	"testing"
)

func TestSegmentMergeVersusAppend(t *testing.T) {
	var s segmentList

	s.addThinking("first")
	s.addThinking(" half") // merges: previous token was thinking
	s.noteResponse()
	s.addThinking("second") // new segment: previous token was response

	segs := s.snapshot()
	if len(segs) != 2 {
		t.Fatalf("Expected 2 segments, got %v", segs)
	}
	if segs[0] != "first half" || segs[1] != "second" {
		t.Errorf("Unexpected segments: %v", segs)
	}
}

func TestSegmentEmptyFragmentIgnored(t *testing.T) {
	var s segmentList
	s.addThinking("")
	if len(s.snapshot()) != 0 {
		t.Error("Empty fragments must not create segments")
	}
}

func TestSegmentScrubToolCallFence(t *testing.T) {
	var s segmentList
	s.addThinking("real reasoning\n```tool_call\n{\"name\": \"search\"}\n```\nmore reasoning")
	s.scrubLast()

	got := s.snapshot()[0]
	if strings.Contains(got, "tool_call") {
		t.Errorf("Tool-call fence should be scrubbed, got %q", got)
	}
	if !strings.Contains(got, "real reasoning") || !strings.Contains(got, "more reasoning") {
		t.Errorf("Scrub must keep the surrounding reasoning, got %q", got)
	}
}

func TestSegmentScrubUnterminatedFence(t *testing.T) {
	var s segmentList
	s.addThinking("thoughts\n```tool_use\n{\"partial\":")
	s.scrubLast()

	got := s.snapshot()[0]
	if strings.Contains(got, "tool_use") || strings.Contains(got, "partial") {
		t.Errorf("An unterminated tool fence should be scrubbed, got %q", got)
	}
}

func TestSegmentScrubStrayFenceMarker(t *testing.T) {
	var s segmentList
	s.addThinking("reasoning text\n```")
	s.scrubLast()

	if got := s.snapshot()[0]; strings.HasSuffix(got, "```") {
		t.Errorf("A trailing stray fence should be trimmed, got %q", got)
	}
}

func TestSegmentScrubKeepsBalancedFence(t *testing.T) {
	var s segmentList
	text := "Consider:\n```go\nfmt.Println(1)\n```"
	s.addThinking(text)
	s.noteResponse()

	if got := s.snapshot()[0]; got != text {
		t.Errorf("A balanced code block must survive the scrub, got %q", got)
	}
}

func TestSegmentScrubOnlyTouchesLast(t *testing.T) {
	var s segmentList
	s.addThinking("older ```tool_call\nleft alone\n```")
	s.noteResponse() // closes (and scrubs) the first segment
	s.addThinking("newer clean segment")

	// A later scrub must not revisit earlier segments.
	before := s.snapshot()[0]
	s.scrubLast()
	if s.snapshot()[0] != before {
		t.Error("scrubLast must only modify the last segment")
	}
}

func TestSegmentLastContains(t *testing.T) {
	var s segmentList
	s.addThinking("the quick brown fox")

	if !s.lastContains("quick brown") {
		t.Error("lastContains should find a substring of the last segment")
	}
	if !s.lastContains("  quick brown  ") {
		t.Error("lastContains should ignore surrounding whitespace")
	}
	if s.lastContains("unrelated") {
		t.Error("lastContains must not match unrelated text")
	}
}

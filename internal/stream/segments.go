// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the incremental response-streaming coordinator.
//
// This file implements the segment classifier: it groups thinking text into
// an ordered list of contiguous spans, using adjacency to response text as
// the only boundary signal.
package stream

import (
	"regexp"
	"strings"
)

// =============================================================================
// SEGMENT CLASSIFIER
// =============================================================================

// toolCallFenceRE matches fenced code blocks mislabeled as tool-call
// notation. These are streaming-time contamination from tool-call planning
// bleeding into the thinking channel, not reasoning content.
var toolCallFenceRE = regexp.MustCompile("(?s)```(?:tool_call|tool_code|tool_use)[^\n]*\n.*?(?:```|\\z)")

// segmentList holds the ordered thinking segments of one generation.
//
// A new segment starts when the most recently ingested token belonged to
// the response channel (or the list is empty); otherwise incoming thinking
// text merges into the last segment. This models alternating
// think/respond/think cycles without the source marking boundaries.
type segmentList struct {
	segs []string

	// wasResponding is true when the last classified token was response
	// text. It is the sole merge-vs-append signal.
	wasResponding bool
}

// addThinking routes one fragment of thinking text into the list.
func (s *segmentList) addThinking(text string) {
	if text == "" {
		return
	}
	if s.wasResponding || len(s.segs) == 0 {
		s.segs = append(s.segs, text)
	} else {
		s.segs[len(s.segs)-1] += text
	}
	s.wasResponding = false
}

// noteResponse records that response-channel content was just ingested.
// The transition out of thinking closes the current segment, which is the
// moment to scrub planning artifacts from it.
func (s *segmentList) noteResponse() {
	if !s.wasResponding {
		s.scrubLast()
	}
	s.wasResponding = true
}

// push appends a segment directly, bypassing the merge rule. Used when a
// corrective replace promotes discarded response text into the thinking
// view so it does not vanish without a visual transition.
func (s *segmentList) push(text string) {
	s.segs = append(s.segs, text)
}

// scrubLast strips known non-content artifacts from the last segment only:
// fenced blocks posing as tool-call notation and stray fence markers left
// behind when a fence was cut off mid-stream.
func (s *segmentList) scrubLast() {
	if len(s.segs) == 0 {
		return
	}
	last := s.segs[len(s.segs)-1]
	cleaned := toolCallFenceRE.ReplaceAllString(last, "")

	// A trailing fence is stray only when unbalanced; the closer of a
	// complete code block stays.
	trimmed := strings.TrimRight(cleaned, " \t\n")
	if strings.Count(trimmed, "```")%2 == 1 && strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimRight(strings.TrimSuffix(trimmed, "```"), " \t\n")
		cleaned = trimmed
	}

	if cleaned != last {
		s.segs[len(s.segs)-1] = strings.TrimRight(cleaned, " \t\n")
	}
}

// lastContains reports whether the last segment already carries the given
// text. Guards against promoting a duplicate of content the dedicated
// thinking channel already delivered.
func (s *segmentList) lastContains(text string) bool {
	if len(s.segs) == 0 {
		return false
	}
	needle := strings.TrimSpace(text)
	if needle == "" {
		return true
	}
	return strings.Contains(s.segs[len(s.segs)-1], needle)
}

// snapshot returns a copy of the segments safe to hand to the render layer.
func (s *segmentList) snapshot() []string {
	out := make([]string, len(s.segs))
	copy(out, s.segs)
	return out
}

// reset discards all segments for a new generation.
func (s *segmentList) reset() {
	s.segs = nil
	s.wasResponding = false
}

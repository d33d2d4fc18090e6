// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the incremental response-streaming coordinator.
//
// This file implements the tag normalizer: it rewrites every accepted
// spelling of the thinking-span markers into one canonical pair and
// extracts complete spans even when a marker is split across chunks.
package stream

import "strings"

// =============================================================================
// TAG NORMALIZER
// =============================================================================

// Canonical thinking-span markers. All accepted variant spellings are
// rewritten to these before extraction.
const (
	openMarker  = "<think>"
	closeMarker = "</think>"
)

// spellingReplacer rewrites variant markers emitted by different model
// families into the canonical pair. Longer spellings are listed first so a
// variant is never half-rewritten.
var spellingReplacer = strings.NewReplacer(
	"<seed:think>", openMarker,
	"</seed:think>", closeMarker,
	"<thinking>", openMarker,
	"</thinking>", closeMarker,
	"<thought>", openMarker,
	"</thought>", closeMarker,
)

// allMarkers is every spelling the normalizer can encounter mid-chunk,
// used to hold back a partial marker at the end of the scratch buffer.
var allMarkers = []string{
	openMarker, closeMarker,
	"<thinking>", "</thinking>",
	"<thought>", "</thought>",
	"<seed:think>", "</seed:think>",
}

// span is one ordered piece of classified stream content.
type span struct {
	thinking bool
	text     string
}

// tagNormalizer accumulates raw tokens in a scratch buffer and carves them
// into response text and completed thinking payloads.
//
// Invariant: text that lies after an unmatched open marker is never
// released as response content. It stays in the scratch buffer until the
// close marker arrives, so the revealed position can only move forward.
type tagNormalizer struct {
	pending string
}

// feed appends a raw token to the scratch buffer and returns the spans that
// became unambiguous, in stream order. Response spans are safe to append to
// the visible buffer immediately; thinking spans carry the payload between
// a matched marker pair with the markers stripped.
func (n *tagNormalizer) feed(token string) []span {
	n.pending = spellingReplacer.Replace(n.pending + token)

	var out []span
	for {
		open := strings.Index(n.pending, openMarker)
		if open < 0 {
			// No opener in sight. Release everything except a trailing
			// fragment that could still grow into a marker.
			cut := len(n.pending) - partialMarkerLen(n.pending)
			if cut > 0 {
				out = append(out, span{text: n.pending[:cut]})
				n.pending = n.pending[cut:]
			}
			return out
		}

		// Text before the opener is response content.
		if open > 0 {
			out = append(out, span{text: n.pending[:open]})
			n.pending = n.pending[open:]
		}

		rest := n.pending[len(openMarker):]
		end := strings.Index(rest, closeMarker)
		if end < 0 {
			// Opener with no closer yet, possibly split across chunks.
			// Hold the whole tail back rather than leak reasoning text
			// into the response channel.
			return out
		}

		out = append(out, span{thinking: true, text: rest[:end]})
		n.pending = rest[end+len(closeMarker):]
	}
}

// flush returns whatever the scratch buffer still holds once the stream has
// ended. An unterminated thinking span stays parked: its opener promised a
// closer that never came, and surfacing the payload as response text would
// flash half-finished reasoning into the transcript. A bare partial marker
// is just text that happened to look like the start of a tag, so it comes
// back as response content.
func (n *tagNormalizer) flush() string {
	if strings.HasPrefix(n.pending, openMarker) {
		n.pending = ""
		return ""
	}
	out := n.pending
	n.pending = ""
	return out
}

// reset discards all scratch state for a new generation.
func (n *tagNormalizer) reset() {
	n.pending = ""
}

// partialMarkerLen returns the length of the longest suffix of s that is a
// proper prefix of any accepted marker. That suffix must be held back: the
// next chunk may complete the marker.
func partialMarkerLen(s string) int {
	longest := 0
	for _, m := range allMarkers {
		limit := len(m) - 1
		if limit > len(s) {
			limit = len(s)
		}
		for l := limit; l > longest; l-- {
			if strings.HasSuffix(s, m[:l]) {
				longest = l
				break
			}
		}
	}
	return longest
}

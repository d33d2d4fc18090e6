// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the incremental response-streaming coordinator.
package stream

import (
	"strings"
	"testing"
)

// collect feeds tokens one at a time and gathers the classified output.
func collect(n *tagNormalizer, tokens ...string) (response string, thoughts []string) {
	for _, tok := range tokens {
		for _, sp := range n.feed(tok) {
			if sp.thinking {
				thoughts = append(thoughts, sp.text)
			} else {
				response += sp.text
			}
		}
	}
	return response, thoughts
}

func TestNormalizerPlainText(t *testing.T) {
	var n tagNormalizer
	resp, thoughts := collect(&n, "hello ", "world")
	if resp != "hello world" {
		t.Errorf("Expected response 'hello world', got %q", resp)
	}
	if len(thoughts) != 0 {
		t.Errorf("Expected no thinking spans, got %v", thoughts)
	}
}

func TestNormalizerCompleteSpan(t *testing.T) {
	var n tagNormalizer
	resp, thoughts := collect(&n, "<think>reasoning</think>answer")
	if resp != "answer" {
		t.Errorf("Expected response 'answer', got %q", resp)
	}
	if len(thoughts) != 1 || thoughts[0] != "reasoning" {
		t.Errorf("Expected thinking ['reasoning'], got %v", thoughts)
	}
}

func TestNormalizerSpanSplitAcrossChunks(t *testing.T) {
	var n tagNormalizer
	resp, thoughts := collect(&n, "<think>", "hello ", "world", "</think>", "answer")
	if resp != "answer" {
		t.Errorf("Expected response 'answer', got %q", resp)
	}
	if len(thoughts) != 1 || thoughts[0] != "hello world" {
		t.Errorf("Expected thinking ['hello world'], got %v", thoughts)
	}
}

func TestNormalizerMarkerSplitMidTag(t *testing.T) {
	var n tagNormalizer
	resp, thoughts := collect(&n, "before<thi", "nk>inside</thi", "nk>after")
	if resp != "beforeafter" {
		t.Errorf("Expected response 'beforeafter', got %q", resp)
	}
	if len(thoughts) != 1 || thoughts[0] != "inside" {
		t.Errorf("Expected thinking ['inside'], got %v", thoughts)
	}
}

func TestNormalizerVariantSpellings(t *testing.T) {
	tests := []struct {
		name  string
		open  string
		close string
	}{
		{"thinking", "<thinking>", "</thinking>"},
		{"thought", "<thought>", "</thought>"},
		{"seed", "<seed:think>", "</seed:think>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n tagNormalizer
			resp, thoughts := collect(&n, tt.open+"deep"+tt.close+"out")
			if resp != "out" {
				t.Errorf("Expected response 'out', got %q", resp)
			}
			if len(thoughts) != 1 || thoughts[0] != "deep" {
				t.Errorf("Expected thinking ['deep'], got %v", thoughts)
			}
		})
	}
}

// A variant spelling split so the canonical form appears as a prefix of the
// raw marker must not be cut at the canonical boundary.
func TestNormalizerVariantSplitAtCanonicalBoundary(t *testing.T) {
	var n tagNormalizer
	resp, thoughts := collect(&n, "<think", "ing>x</thinking>done")
	if resp != "done" {
		t.Errorf("Expected response 'done', got %q", resp)
	}
	if len(thoughts) != 1 || thoughts[0] != "x" {
		t.Errorf("Expected thinking ['x'], got %v", thoughts)
	}
}

func TestNormalizerHoldsBackAfterOpenMarker(t *testing.T) {
	var n tagNormalizer
	resp, _ := collect(&n, "visible <think>not yet")
	if resp != "visible " {
		t.Errorf("Text after an unmatched opener must be held back, got %q", resp)
	}

	// The closer releases the span and the text keeps flowing.
	resp2, thoughts := collect(&n, " done</think> tail")
	if resp2 != " tail" {
		t.Errorf("Expected response ' tail' after closer, got %q", resp2)
	}
	if len(thoughts) != 1 || thoughts[0] != "not yet done" {
		t.Errorf("Expected thinking ['not yet done'], got %v", thoughts)
	}
}

func TestNormalizerHoldsBackPartialMarker(t *testing.T) {
	var n tagNormalizer
	resp, _ := collect(&n, "text <th")
	if resp != "text " {
		t.Errorf("A possible marker prefix must be held back, got %q", resp)
	}

	// Turns out it was just text.
	resp, _ = collect(&n, "an ordinary word")
	if resp != "<than ordinary word" {
		t.Errorf("Held fragment should be released once disambiguated, got %q", resp)
	}
}

func TestNormalizerStrayCloserDegradesToResponse(t *testing.T) {
	var n tagNormalizer
	resp, thoughts := collect(&n, "oops</think> more")
	if !strings.Contains(resp, "oops") || !strings.Contains(resp, " more") {
		t.Errorf("A closer with no opener is plain text, got %q", resp)
	}
	if len(thoughts) != 0 {
		t.Errorf("Expected no thinking spans, got %v", thoughts)
	}
}

func TestNormalizerFlush(t *testing.T) {
	// An unterminated span stays parked.
	var n tagNormalizer
	collect(&n, "<think>never closed")
	if rem := n.flush(); rem != "" {
		t.Errorf("Unterminated thinking span must stay parked, got %q", rem)
	}

	// A bare partial marker comes back as response text.
	var n2 tagNormalizer
	collect(&n2, "trailing <th")
	if rem := n2.flush(); rem != "<th" {
		t.Errorf("Expected held fragment '<th' at flush, got %q", rem)
	}
}

func TestPartialMarkerLen(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"plain text", 0},
		{"ends with <", 1},
		{"ends with <think", 6},
		{"ends with </thinkin", 9},
		{"complete <think>", 0}, // a full marker is not a partial one
		{"", 0},
	}

	for _, tt := range tests {
		if got := partialMarkerLen(tt.in); got != tt.want {
			t.Errorf("partialMarkerLen(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

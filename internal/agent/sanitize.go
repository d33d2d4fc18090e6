// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"regexp"
	"strings"

	"github.com/quill-sh/quill/internal/ollama"
)

// =============================================================================
// FABRICATED TOOL RESULT DETECTION
// =============================================================================

// Some models narrate tool use instead of emitting real tool calls: the
// round's text contains a fenced block in tool-call notation, often with an
// invented result. Those blocks are fabrication unless a real call in the
// same round backs them.
var fabricatedBlockRe = regexp.MustCompile("(?s)```(?:tool_call|tool_code|tool_use)[^\n]*\n.*?(?:```|\\z)")

// SanitizeRound strips fabricated tool-call blocks from a round's text.
// A block survives only when its body names a tool that was actually
// called this round. Returns the cleaned text and whether anything was
// stripped.
func SanitizeRound(text string, realCalls []ollama.ToolCall) (string, bool) {
	if !strings.Contains(text, "```tool") {
		return text, false
	}

	stripped := false
	cleaned := fabricatedBlockRe.ReplaceAllStringFunc(text, func(block string) string {
		for _, call := range realCalls {
			name := call.Function.Name
			if name != "" && strings.Contains(block, name) {
				return block
			}
		}
		stripped = true
		return ""
	})

	if !stripped {
		return text, false
	}

	// A stripped block can leave a dangling fence opener at the tail.
	cleaned = strings.TrimRight(cleaned, " \t\n")
	if strings.Count(cleaned, "```")%2 == 1 && strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimRight(cleaned, " \t\n")
	}

	return cleaned, true
}

// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the quill TUI.
package components

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/quill-sh/quill/internal/ui/styles"
)

// =============================================================================
// STREAMING FENCE HIGHLIGHTER
// =============================================================================

// HighlightFences walks fenced code blocks in streaming text and applies
// chroma syntax highlighting to their bodies, leaving prose untouched.
//
// Glamour cannot be used here: it reflows the whole document, so running it
// on a half-delivered message makes the text jump around as tokens arrive.
// Line-by-line chroma highlighting is stable under append. An unterminated
// fence at the end of the text is highlighted too, since during streaming
// the closing marker simply has not arrived yet.
func HighlightFences(text string, theme *styles.Theme) string {
	if !strings.Contains(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	var out []string
	var inFence bool
	var language string
	var body []string

	flush := func() {
		code := strings.Join(body, "\n")
		badge := ""
		if language != "" {
			badge = theme.CodeLangBadge.Render(language) + "\n"
		}
		out = append(out, badge+highlightCode(code, language))
		body = nil
		language = ""
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "```"):
			if inFence {
				flush()
				inFence = false
			} else {
				language = strings.TrimSpace(strings.TrimPrefix(line, "```"))
				inFence = true
			}
		case inFence:
			body = append(body, line)
		default:
			out = append(out, line)
		}
	}

	// Unterminated fence: the close marker is still in flight.
	if inFence {
		flush()
	}

	return strings.Join(out, "\n")
}

// =============================================================================
// SYNTAX HIGHLIGHTING (chroma)
// =============================================================================

// highlightCode applies ANSI-safe syntax highlighting using chroma. On any
// failure the code comes back unstyled.
func highlightCode(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}

	return strings.TrimRight(buf.String(), "\n")
}

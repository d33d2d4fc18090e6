// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// REASONING STYLE
// =============================================================================

// ReasoningStyle describes how a model exposes its reasoning, if at all.
// The streaming pipeline uses this to decide how much tag normalization
// a model's output needs.
type ReasoningStyle string

const (
	// ReasoningNone: the model answers directly.
	ReasoningNone ReasoningStyle = "none"

	// ReasoningInline: reasoning arrives inside the content stream wrapped
	// in <think> style tags (spelling varies by model family).
	ReasoningInline ReasoningStyle = "inline"

	// ReasoningChannel: reasoning arrives on the dedicated thinking field
	// of the chat API.
	ReasoningChannel ReasoningStyle = "channel"
)

// =============================================================================
// MODEL CATALOG
// =============================================================================

// CatalogEntry describes a known local model family.
type CatalogEntry struct {
	// ID is the model identifier used in API calls
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// Reasoning describes how the family surfaces its thinking
	Reasoning ReasoningStyle `json:"reasoning"`

	// MaxTokens is the default context window size
	MaxTokens int `json:"max_tokens"`

	// Description is a brief explanation of the model's strengths
	Description string `json:"description"`
}

// Catalog is the registry of known local model families. A model pulled
// from Ollama that is not listed here gets ReasoningInline, which is the
// safe default: the normalizer passes plain answers through untouched.
var Catalog = map[string]CatalogEntry{
	"qwen3": {
		ID:          "qwen3",
		Name:        "Qwen 3",
		Reasoning:   ReasoningChannel,
		MaxTokens:   32768,
		Description: "Hybrid reasoning model with native thinking channel",
	},
	"deepseek-r1": {
		ID:          "deepseek-r1",
		Name:        "DeepSeek R1",
		Reasoning:   ReasoningInline,
		MaxTokens:   65536,
		Description: "Reasoning distillate, inlines <think> blocks",
	},
	"qwq": {
		ID:          "qwq",
		Name:        "QwQ",
		Reasoning:   ReasoningInline,
		MaxTokens:   32768,
		Description: "Qwen reasoning preview, verbose inline thinking",
	},
	"llama3.1": {
		ID:          "llama3.1",
		Name:        "Llama 3.1",
		Reasoning:   ReasoningNone,
		MaxTokens:   128000,
		Description: "Meta's general-purpose model",
	},
	"llama3.2": {
		ID:          "llama3.2",
		Name:        "Llama 3.2",
		Reasoning:   ReasoningNone,
		MaxTokens:   128000,
		Description: "Compact Llama for lighter hardware",
	},
	"qwen2.5-coder": {
		ID:          "qwen2.5-coder",
		Name:        "Qwen 2.5 Coder",
		Reasoning:   ReasoningNone,
		MaxTokens:   32768,
		Description: "Optimized for code generation",
	},
	"mistral": {
		ID:          "mistral",
		Name:        "Mistral",
		Reasoning:   ReasoningNone,
		MaxTokens:   32768,
		Description: "Fast and efficient general purpose",
	},
	"gemma3": {
		ID:          "gemma3",
		Name:        "Gemma 3",
		Reasoning:   ReasoningNone,
		MaxTokens:   128000,
		Description: "Google's lightweight model",
	},
	"phi4": {
		ID:          "phi4",
		Name:        "Phi-4",
		Reasoning:   ReasoningNone,
		MaxTokens:   16384,
		Description: "Microsoft's compact efficient model",
	},
}

// =============================================================================
// CATALOG METHODS
// =============================================================================

// ContextString returns a formatted context window string.
func (e CatalogEntry) ContextString() string {
	if e.MaxTokens >= 1000 {
		return fmt.Sprintf("%dK tokens", e.MaxTokens/1000)
	}
	return fmt.Sprintf("%d tokens", e.MaxTokens)
}

// ReasoningLabel returns a short label for display in the model picker.
func (e CatalogEntry) ReasoningLabel() string {
	switch e.Reasoning {
	case ReasoningChannel:
		return "thinking channel"
	case ReasoningInline:
		return "inline thinking"
	default:
		return "direct"
	}
}

// =============================================================================
// CATALOG LOOKUP
// =============================================================================

// familyOf strips the tag suffix from an Ollama model name.
// "deepseek-r1:14b" has family "deepseek-r1".
func familyOf(modelName string) string {
	if i := strings.Index(modelName, ":"); i >= 0 {
		return modelName[:i]
	}
	return modelName
}

// Lookup finds the catalog entry for a model name, accepting both bare
// family names and tagged names.
func Lookup(modelName string) (CatalogEntry, bool) {
	if entry, ok := Catalog[modelName]; ok {
		return entry, true
	}
	if entry, ok := Catalog[familyOf(modelName)]; ok {
		return entry, true
	}
	return CatalogEntry{}, false
}

// ReasoningStyleFor returns the reasoning style for a model, defaulting
// to inline for unknown models.
func ReasoningStyleFor(modelName string) ReasoningStyle {
	if entry, ok := Lookup(modelName); ok {
		return entry.Reasoning
	}
	return ReasoningInline
}

// ContextWindowFor returns the context window for a model, or the given
// fallback for unknown models.
func ContextWindowFor(modelName string, fallback int) int {
	if entry, ok := Lookup(modelName); ok {
		return entry.MaxTokens
	}
	return fallback
}

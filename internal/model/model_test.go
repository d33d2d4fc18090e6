// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessage_GeneratesID(t *testing.T) {
	a := NewUserMessage("hello")
	b := NewUserMessage("hello")

	if a.ID == "" {
		t.Error("ID should not be empty")
	}
	if !strings.HasPrefix(a.ID, "msg_") {
		t.Errorf("ID = %q, want msg_ prefix", a.ID)
	}
	if a.ID == b.ID {
		t.Error("two messages should not share an ID")
	}
}

func TestMessage_FinalizeStream(t *testing.T) {
	msg := NewAssistantMessage()
	if !msg.IsStreaming {
		t.Fatal("new assistant message should be streaming")
	}

	stats := &Statistics{
		TTFT:            200 * time.Millisecond,
		TotalDuration:   2 * time.Second,
		CompletionTokens: 40,
		TokensPerSecond: 20,
	}
	msg.FinalizeStream("The answer is 4.", []string{"work out 2+2"}, stats)

	if msg.IsStreaming {
		t.Error("message should no longer be streaming")
	}
	if msg.Content != "The answer is 4." {
		t.Errorf("Content = %q", msg.Content)
	}
	if !msg.HasThinking() || msg.Thinking[0] != "work out 2+2" {
		t.Errorf("Thinking = %v", msg.Thinking)
	}
	if msg.TokenCount != 40 {
		t.Errorf("TokenCount = %d, want 40", msg.TokenCount)
	}

	// Finalize is a no-op once settled.
	msg.FinalizeStream("overwritten", nil, nil)
	if msg.Content != "The answer is 4." {
		t.Error("FinalizeStream should not apply twice")
	}
}

func TestMessage_Preview(t *testing.T) {
	msg := NewUserMessage("line one\nline two that keeps going for quite a while and then some more")

	got := msg.Preview(20)
	if len([]rune(got)) > 20 {
		t.Errorf("Preview too long: %q", got)
	}
	if strings.Contains(got, "\n") {
		t.Errorf("Preview should flatten newlines: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated preview should end with ellipsis: %q", got)
	}
}

func TestMessage_FormatStats(t *testing.T) {
	msg := NewAssistantMessage()
	msg.FinalizeStream("done", nil, &Statistics{
		TTFT:             300 * time.Millisecond,
		TotalDuration:    2 * time.Second,
		CompletionTokens: 100,
		TokensPerSecond:  50,
	})

	got := msg.FormatStats()
	want := "2.0s | 100 tokens | 50.0 tok/s | TTFT 300ms"
	if got != want {
		t.Errorf("FormatStats() = %q, want %q", got, want)
	}

	if NewUserMessage("hi").FormatStats() != "" {
		t.Error("user messages have no stats")
	}
}

func TestStatistics_Finalize(t *testing.T) {
	stats := NewStatistics()
	stats.StartTime = time.Now().Add(-2 * time.Second)
	stats.RecordFirstToken()
	stats.Finalize(100)

	if stats.CompletionTokens != 100 {
		t.Errorf("CompletionTokens = %d", stats.CompletionTokens)
	}
	if stats.TotalDuration < time.Second {
		t.Errorf("TotalDuration = %v, want >= 1s", stats.TotalDuration)
	}
	if stats.TokensPerSecond <= 0 {
		t.Errorf("TokensPerSecond = %f, want > 0", stats.TokensPerSecond)
	}
	if stats.TTFT <= 0 {
		t.Error("TTFT should be recorded")
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_AddAndFinalize(t *testing.T) {
	conv := NewConversationWithModel("qwen3:8b")

	conv.AddUserMessage("what is 2+2?")
	conv.AddAssistantMessage()
	conv.FinalizeLast("4", []string{"basic arithmetic"}, nil)

	if conv.MessageCount() != 2 {
		t.Fatalf("MessageCount = %d, want 2", conv.MessageCount())
	}

	last := conv.GetLastAssistantMessage()
	if last == nil || last.Content != "4" {
		t.Fatalf("last assistant message = %+v", last)
	}
	if last.IsStreaming {
		t.Error("finalized message should not be streaming")
	}
}

func TestConversation_DropLast(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage("hello")
	conv.AddAssistantMessage()

	conv.DropLast()
	if conv.MessageCount() != 1 {
		t.Errorf("MessageCount = %d, want 1", conv.MessageCount())
	}

	// DropLast only removes streaming messages.
	conv.DropLast()
	if conv.MessageCount() != 1 {
		t.Error("settled messages must not be dropped")
	}
}

func TestConversation_TitleFromFirstUserMessage(t *testing.T) {
	conv := NewConversation()
	if conv.GetTitle() != "New Conversation" {
		t.Errorf("GetTitle() = %q", conv.GetTitle())
	}

	conv.AddUserMessage("explain goroutine scheduling")
	if conv.GetTitle() != "explain goroutine scheduling" {
		t.Errorf("GetTitle() = %q", conv.GetTitle())
	}
}

func TestConversation_ToOllamaMessages(t *testing.T) {
	conv := NewConversation()
	conv.SystemPrompt = "Be terse."
	conv.AddUserMessage("hi")
	conv.AddAssistantMessage()
	conv.FinalizeLast("hello", []string{"private reasoning"}, nil)

	msgs := conv.ToOllamaMessages()

	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "Be terse." {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[2].Role != "assistant" || msgs[2].Content != "hello" {
		t.Errorf("msgs[2] = %+v", msgs[2])
	}
	// Thinking stays out of the replayed context.
	if msgs[2].Thinking != "" {
		t.Error("thinking must not be replayed to the model")
	}
}

func TestConversation_PruneKeepsSystemMessages(t *testing.T) {
	conv := NewConversation()
	conv.AddSystemMessage("system rules")

	for i := 0; i < MaxMessages+10; i++ {
		conv.AddUserMessage("filler")
	}

	if conv.MessageCount() != MaxMessages+1 {
		t.Errorf("MessageCount = %d, want %d", conv.MessageCount(), MaxMessages+1)
	}
	if conv.Messages[0].Role != RoleSystem {
		t.Error("system message should survive pruning")
	}
}

func TestConversation_Clone(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage("original")
	conv.AddAssistantMessage()
	conv.FinalizeLast("reply", []string{"seg"}, nil)

	clone := conv.Clone()
	clone.Messages[0].Content = "mutated"
	clone.Messages[1].Thinking[0] = "mutated"

	if conv.Messages[0].Content != "original" {
		t.Error("clone shares message memory with original")
	}
	if conv.Messages[1].Thinking[0] != "seg" {
		t.Error("clone shares thinking slice with original")
	}
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestCatalog_HaveRequiredFields(t *testing.T) {
	for id, entry := range Catalog {
		t.Run(id, func(t *testing.T) {
			if entry.ID == "" {
				t.Error("CatalogEntry.ID should not be empty")
			}
			if entry.Name == "" {
				t.Error("CatalogEntry.Name should not be empty")
			}
			if entry.MaxTokens <= 0 {
				t.Error("CatalogEntry.MaxTokens should be positive")
			}
			if entry.Reasoning == "" {
				t.Error("CatalogEntry.Reasoning should be set")
			}
		})
	}
}

func TestLookup_TaggedNames(t *testing.T) {
	entry, ok := Lookup("deepseek-r1:14b")
	if !ok {
		t.Fatal("Lookup should resolve tagged model names to their family")
	}
	if entry.Reasoning != ReasoningInline {
		t.Errorf("Reasoning = %q, want inline", entry.Reasoning)
	}

	if _, ok := Lookup("unheard-of-model:7b"); ok {
		t.Error("unknown model should not resolve")
	}
}

func TestReasoningStyleFor_DefaultsToInline(t *testing.T) {
	if got := ReasoningStyleFor("qwen3:8b"); got != ReasoningChannel {
		t.Errorf("ReasoningStyleFor(qwen3:8b) = %q, want channel", got)
	}
	if got := ReasoningStyleFor("mystery:1b"); got != ReasoningInline {
		t.Errorf("ReasoningStyleFor(mystery) = %q, want inline default", got)
	}
}

func TestContextWindowFor(t *testing.T) {
	if got := ContextWindowFor("llama3.1:70b", 2048); got != 128000 {
		t.Errorf("ContextWindowFor(llama3.1) = %d", got)
	}
	if got := ContextWindowFor("mystery:1b", 2048); got != 2048 {
		t.Errorf("ContextWindowFor(mystery) = %d, want fallback", got)
	}
}

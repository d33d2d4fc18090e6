// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types used throughout the application
// for representing chat conversations, messages, and the local model catalog.
//
// # Key Types
//
//   - Conversation: Container for a chat session with messages and metadata
//   - Message: Single message with role, content, and thinking segments
//   - CatalogEntry: Known local model family with its reasoning style
//   - Role: Message role enumeration (user, assistant, system, tool)
//
// # Usage
//
// Create a new conversation:
//
//	conv := model.NewConversation()
//	conv.AddUserMessage("Hello!")
//
// Check how a model surfaces its reasoning:
//
//	style := model.ReasoningStyleFor("deepseek-r1:14b")
//	if style == model.ReasoningInline {
//	    // content stream carries <think> tags
//	}
package model

// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for quill.
//
// This package handles saving and loading conversations to/from disk,
// with support for search, listing, and session management. Assistant
// messages keep their thinking segments alongside the response text.
//
// # Key Types
//
//   - ConversationStore: Main storage type for conversations
//   - StoredConversation: Serializable conversation with metadata
//   - ConversationMeta: Lightweight metadata for listing
//
// # Usage
//
// Create a store and save a conversation:
//
//	store, err := storage.NewConversationStore()
//	id, err := store.Save(storage.FromConversation(conv))
//
// List and load conversations:
//
//	metas, err := store.List()
//	conv, err := store.Load(metas[0].ID)
//
// Search conversations:
//
//	results, err := store.SearchMessages("query text")
//
// # Storage Location
//
// Conversations are stored in ~/.quill/conversations/ as JSON files.
package storage

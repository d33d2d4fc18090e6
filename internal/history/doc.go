// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history provides a searchable archive of past conversations.
//
// Finished conversations are archived into a SQLite database with a
// full-text index over message content and thinking segments. The
// archive backs the `quill history` command.
//
// # Key Types
//
//   - Archive: SQLite-backed conversation archive
//   - Entry: Conversation metadata for listings
//   - SearchResult: A listing entry plus the matching snippet
//
// # Usage
//
// Open the archive and store a conversation:
//
//	archive, err := history.Open(path)
//	err = archive.Archive(ctx, storage.FromConversation(conv))
//
// Search past conversations:
//
//	results, err := archive.Search(ctx, "binary tree")
//
// # Storage Location
//
// The archive lives at ~/.quill/history.db by default.
package history

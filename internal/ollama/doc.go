// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// This package implements a client for the Ollama local LLM server,
// supporting both streaming and non-streaming chat completions. The
// streaming path carries two channels per chunk: Content (the answer)
// and Thinking (the model's reasoning, when the model emits one).
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - Message: Chat message with role, content, and optional thinking text
//   - StreamChunk: One streamed chunk with content and thinking channels
//   - StreamReader: Line-by-line JSON reader for streaming responses
//
// # Usage
//
// Create a client and stream a chat:
//
//	client := ollama.NewClient()
//	err := client.ChatStream(ctx, "qwen3:8b", messages, func(chunk ollama.StreamChunk) {
//	    fmt.Print(chunk.Content)
//	})
package ollama

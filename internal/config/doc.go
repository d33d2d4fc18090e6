// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for quill.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, validation, and hot reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - OllamaConfig: Ollama server connection settings
//   - StreamConfig: Typewriter reveal and thinking display settings
//   - Watcher: Reloads the global config when the file changes on disk
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (QUILL_*)
//   - ~/.quill/config.toml
//   - ~/.quill/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	model := cfg.Ollama.Model
//	rate := cfg.Stream.RevealCPS
package config

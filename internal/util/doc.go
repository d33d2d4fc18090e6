// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for quill: atomic file
// writes, Unicode normalization, and width-aware string handling.
package util

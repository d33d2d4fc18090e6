// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	require.NoError(t, AtomicWriteFile(path, []byte(`{"a":1}`), 0600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// Overwrite leaves no temp files behind.
	require.NoError(t, AtomicWriteFile(path, []byte(`{"a":2}`), 0600))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNormalizeNFC(t *testing.T) {
	// "é" decomposed (e + combining acute) vs composed.
	decomposed := "café"
	composed := "café"

	assert.Equal(t, composed, NormalizeNFC(decomposed))
	assert.Equal(t, composed, NormalizeNFC(composed))
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"truncated", "hello world", 8, "hello..."},
		{"tiny limit", "hello", 2, "he"},
		{"zero", "hello", 0, ""},
		{"multibyte", "日本語のテキスト", 5, "日本..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateRunes(tt.in, tt.max))
		})
	}
}

func TestTruncateWidth(t *testing.T) {
	// Each CJK character is two columns wide.
	assert.Equal(t, "日本", TruncateWidth("日本", 4))
	got := TruncateWidth("日本語テキスト", 9)
	assert.LessOrEqual(t, StringWidth(got), 9)
	assert.Contains(t, got, "...")

	assert.Equal(t, "abc", TruncateWidth("abc", 10))
}

func TestStringWidth(t *testing.T) {
	assert.Equal(t, 5, StringWidth("hello"))
	assert.Equal(t, 4, StringWidth("日本"))
	assert.Equal(t, 0, StringWidth(""))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab  ", PadRight("ab", 4))
	assert.Equal(t, 4, StringWidth(PadRight("日本語", 4)))
}

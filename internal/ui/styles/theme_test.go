// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "testing"

func TestNewTheme_AppearanceOverride(t *testing.T) {
	dark := NewTheme("dark")
	if !dark.IsDark {
		t.Error("NewTheme(dark).IsDark = false, want true")
	}

	light := NewTheme("light")
	if light.IsDark {
		t.Error("NewTheme(light).IsDark = true, want false")
	}
}

func TestNewTheme_StylesInitialized(t *testing.T) {
	th := NewTheme("auto")

	// A zero style renders its input unchanged; a configured one should not
	// panic and should produce output at least as long as the input.
	out := th.HeaderBrand.Render("quill")
	if len(out) < len("quill") {
		t.Errorf("HeaderBrand.Render returned %q", out)
	}
	if th.ErrorTitle.GetBold() != true {
		t.Error("ErrorTitle should be bold")
	}
}

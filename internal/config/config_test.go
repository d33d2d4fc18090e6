// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/BurntSushi/toml"
)

// TestConfig_ConcurrentAccess tests that Global(), SetGlobal(), and ReloadGlobal()
// can be safely called concurrently without race conditions.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	// Reset state before test
	ResetGlobalForTesting()

	var wg sync.WaitGroup

	// 50 writers using SetGlobal, 50 readers using Global
	for i := 0; i < 50; i++ {
		wg.Add(2)

		// Writer goroutine
		go func(id int) {
			defer wg.Done()
			c := &Config{
				Version:      "test",
				DefaultModel: "test-model",
				Ollama: OllamaConfig{
					URL:   "http://127.0.0.1:11434",
					Think: "auto",
				},
			}
			SetGlobal(c)
		}(i)

		// Reader goroutine
		go func(id int) {
			defer wg.Done()
			cfg := Global()
			if cfg == nil {
				t.Error("Global() returned nil")
			}
		}(i)
	}

	wg.Wait()
}

// TestConfig_GlobalInitialization tests that Global() properly initializes
// the config on first access.
func TestConfig_GlobalInitialization(t *testing.T) {
	// Reset state before test
	ResetGlobalForTesting()

	cfg := Global()
	if cfg == nil {
		t.Fatal("Global() returned nil")
	}

	// Verify defaults are applied
	if cfg.Version == "" {
		t.Error("Config version should not be empty")
	}
	if cfg.Ollama.URL == "" {
		t.Error("Ollama URL should not be empty")
	}
}

// TestConfig_SetGlobalOverwrites tests that SetGlobal properly overwrites
// the existing global config.
func TestConfig_SetGlobalOverwrites(t *testing.T) {
	// Reset state before test
	ResetGlobalForTesting()

	// Initialize with defaults
	_ = Global()

	// Set custom config
	customCfg := &Config{
		Version:      "custom-version",
		DefaultModel: "custom-model",
	}
	SetGlobal(customCfg)

	// Verify the custom config is returned
	result := Global()
	if result.Version != "custom-version" {
		t.Errorf("Expected version 'custom-version', got '%s'", result.Version)
	}
	if result.DefaultModel != "custom-model" {
		t.Errorf("Expected model 'custom-model', got '%s'", result.DefaultModel)
	}
}

// TestConfig_Default tests that Default() returns a valid config with defaults.
func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Version == "" {
		t.Error("Default config should have a version")
	}

	if cfg.Ollama.URL == "" {
		t.Error("Default config should have an Ollama URL")
	}

	if cfg.Stream.RevealCPS != 180 {
		t.Errorf("Expected default reveal rate 180, got %g", cfg.Stream.RevealCPS)
	}

	if cfg.Stream.PromoteThreshold != 10 {
		t.Errorf("Expected default promote threshold 10, got %d", cfg.Stream.PromoteThreshold)
	}

	if !cfg.History.Enabled {
		t.Error("History archive should be enabled by default")
	}
}

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "valid default config",
			config:  Default(),
			wantErr: false,
		},
		{
			name: "invalid think mode",
			config: func() *Config {
				c := Default()
				c.Ollama.Think = "maybe"
				return c
			}(),
			wantErr: true,
		},
		{
			name: "invalid theme",
			config: func() *Config {
				c := Default()
				c.UI.Theme = "invalid"
				return c
			}(),
			wantErr: true,
		},
		{
			name: "reveal rate too low",
			config: func() *Config {
				c := Default()
				c.Stream.RevealCPS = 0.5
				return c
			}(),
			wantErr: true,
		},
		{
			name: "reveal rate too high",
			config: func() *Config {
				c := Default()
				c.Stream.RevealCPS = 20000
				return c
			}(),
			wantErr: true,
		},
		{
			name: "negative promote threshold",
			config: func() *Config {
				c := Default()
				c.Stream.PromoteThreshold = -1
				return c
			}(),
			wantErr: true,
		},
		{
			name: "max iterations zero",
			config: func() *Config {
				c := Default()
				c.Agent.MaxIterations = 0
				return c
			}(),
			wantErr: true,
		},
		{
			name: "max iterations above maximum",
			config: func() *Config {
				c := Default()
				c.Agent.MaxIterations = 500
				return c
			}(),
			wantErr: true,
		},
		{
			name: "negative timeout",
			config: func() *Config {
				c := Default()
				c.Ollama.TimeoutSecs = -5
				return c
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestConfig_GetSet tests Get and Set methods with dot notation.
func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	// Test Get
	val, err := cfg.Get("ollama.think")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if val != "auto" {
		t.Errorf("Get('ollama.think') = %v, want 'auto'", val)
	}

	// Test Set with string conversion to float
	err = cfg.Set("stream.reveal_cps", "240")
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	val, _ = cfg.Get("stream.reveal_cps")
	if val != 240.0 {
		t.Errorf("Get('stream.reveal_cps') after Set = %v, want 240", val)
	}

	// Test Set with string conversion to bool
	err = cfg.Set("agent.enabled", "true")
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	val, _ = cfg.Get("agent.enabled")
	if val != true {
		t.Errorf("Get('agent.enabled') after Set = %v, want true", val)
	}

	// Test Get with invalid key
	_, err = cfg.Get("invalid.key")
	if err == nil {
		t.Error("Get() with invalid key should return error")
	}
}

// TestConfig_GetAllKeys tests that every advertised key resolves.
func TestConfig_GetAllKeys(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%q) error = %v", key, err)
		}
	}
}

// TestConfig_ThinkFlag tests conversion of the think mode to the API flag.
func TestConfig_ThinkFlag(t *testing.T) {
	cfg := Default()

	cfg.Ollama.Think = "auto"
	if cfg.ThinkFlag() != nil {
		t.Error("ThinkFlag() for 'auto' should be nil")
	}

	cfg.Ollama.Think = "on"
	if v := cfg.ThinkFlag(); v == nil || !*v {
		t.Error("ThinkFlag() for 'on' should be true")
	}

	cfg.Ollama.Think = "off"
	if v := cfg.ThinkFlag(); v == nil || *v {
		t.Error("ThinkFlag() for 'off' should be false")
	}
}

// TestConfig_EnvOverrides tests environment variable overrides.
func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("QUILL_MODEL", "deepseek-r1:14b")
	t.Setenv("QUILL_OLLAMA_URL", "http://10.0.0.5:11434")
	t.Setenv("QUILL_REVEAL_CPS", "90")
	t.Setenv("QUILL_NO_HISTORY", "1")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Ollama.Model != "deepseek-r1:14b" {
		t.Errorf("Expected model override, got '%s'", cfg.Ollama.Model)
	}
	if cfg.Ollama.URL != "http://10.0.0.5:11434" {
		t.Errorf("Expected URL override, got '%s'", cfg.Ollama.URL)
	}
	if cfg.Stream.RevealCPS != 90 {
		t.Errorf("Expected reveal rate override 90, got %g", cfg.Stream.RevealCPS)
	}
	if cfg.History.Enabled {
		t.Error("QUILL_NO_HISTORY=1 should disable the history archive")
	}
}

// TestConfig_SaveLoadTOML tests a TOML round trip through a temp file.
func TestConfig_SaveLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Ollama.Model = "qwq:32b"
	cfg.Stream.RevealCPS = 300

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		t.Fatalf("failed to create temp config: %v", err)
	}
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		t.Fatalf("failed to write TOML: %v", err)
	}
	file.Close()

	loaded := Default()
	if err := LoadTOML(loaded, path); err != nil {
		t.Fatalf("LoadTOML() error = %v", err)
	}

	if loaded.Ollama.Model != "qwq:32b" {
		t.Errorf("Expected model 'qwq:32b', got '%s'", loaded.Ollama.Model)
	}
	if loaded.Stream.RevealCPS != 300 {
		t.Errorf("Expected reveal rate 300, got %g", loaded.Stream.RevealCPS)
	}
}

// TestConfig_Clone tests that Clone creates an independent copy.
func TestConfig_Clone(t *testing.T) {
	original := Default()
	original.Version = "original"

	clone := original.Clone()

	// Modify clone
	clone.Version = "cloned"

	// Verify original unchanged
	if original.Version != "original" {
		t.Error("Clone should create an independent copy")
	}
	if clone.Version != "cloned" {
		t.Error("Clone version should be modified")
	}
}

// TestConfig_Merge tests merging two configs.
func TestConfig_Merge(t *testing.T) {
	base := Default()
	base.Version = "base"

	other := &Config{
		Version:      "merged",
		DefaultModel: "merged-model",
	}

	base.Merge(other)

	if base.Version != "merged" {
		t.Errorf("Merge should overwrite Version, got '%s'", base.Version)
	}
	if base.DefaultModel != "merged-model" {
		t.Errorf("Merge should overwrite DefaultModel, got '%s'", base.DefaultModel)
	}
	// Verify non-overwritten values remain
	if base.Ollama.URL != "http://127.0.0.1:11434" {
		t.Error("Merge should not overwrite unset fields")
	}
}

// TestConfig_SetDefaults tests that zero values are filled in.
func TestConfig_SetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	if cfg.Ollama.URL == "" {
		t.Error("SetDefaults should fill Ollama URL")
	}
	if cfg.Stream.RevealCPS == 0 {
		t.Error("SetDefaults should fill reveal rate")
	}
	if cfg.Agent.MaxIterations == 0 {
		t.Error("SetDefaults should fill max iterations")
	}
	if cfg.Ollama.Model != cfg.DefaultModel {
		t.Errorf("Ollama model should default to the default model, got '%s'", cfg.Ollama.Model)
	}
}

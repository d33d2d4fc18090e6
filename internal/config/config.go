// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/quill-sh/quill/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete quill configuration.
type Config struct {
	// General settings
	Version      string `toml:"version" json:"version"`
	DefaultModel string `toml:"default_model" json:"default_model"`

	// Ollama connection configuration
	Ollama OllamaConfig `toml:"ollama" json:"ollama"`

	// Streaming and reveal configuration
	Stream StreamConfig `toml:"stream" json:"stream"`

	// Agent (tool-using) configuration
	Agent AgentConfig `toml:"agent" json:"agent"`

	// History archive configuration
	History HistoryConfig `toml:"history" json:"history"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`
}

// OllamaConfig contains Ollama server configuration.
type OllamaConfig struct {
	// URL is the URL of the Ollama server
	URL string `toml:"url" json:"url"`
	// Model is the default model to use
	Model string `toml:"model" json:"model"`
	// TimeoutSecs is the timeout for non-streaming requests in seconds
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// Think asks reasoning-capable models for a dedicated thinking channel.
	// "on", "off", or "auto" (let the model decide).
	Think string `toml:"think" json:"think"`
}

// StreamConfig contains streaming reveal configuration.
type StreamConfig struct {
	// RevealCPS is the typewriter reveal rate in characters per second
	RevealCPS float64 `toml:"reveal_cps" json:"reveal_cps"`
	// RevealMaxGapMs caps the elapsed time billed to a single reveal pass.
	// Guards against a burst of revealed text after the UI stalls.
	RevealMaxGapMs int `toml:"reveal_max_gap_ms" json:"reveal_max_gap_ms"`
	// PromoteThreshold is the minimum rune count for discarded response
	// text to be preserved as a thinking segment
	PromoteThreshold int `toml:"promote_threshold" json:"promote_threshold"`
	// ShowThinking controls whether thinking segments are rendered live
	ShowThinking bool `toml:"show_thinking" json:"show_thinking"`
}

// AgentConfig contains configuration for the agentic loop.
type AgentConfig struct {
	// Enabled turns on tool use for models that support it
	Enabled bool `toml:"enabled" json:"enabled"`
	// MaxIterations caps the number of tool rounds per user turn
	MaxIterations int `toml:"max_iterations" json:"max_iterations"`
	// RoundsPerSecond rate-limits how fast agent rounds may start
	RoundsPerSecond float64 `toml:"rounds_per_second" json:"rounds_per_second"`
}

// HistoryConfig contains history archive configuration.
type HistoryConfig struct {
	// Enabled controls whether finished conversations are archived
	Enabled bool `toml:"enabled" json:"enabled"`
	// Path overrides the archive database location (empty = ~/.quill/history.db)
	Path string `toml:"path" json:"path"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// ShowStats displays generation statistics under assistant messages
	ShowStats bool `toml:"show_stats" json:"show_stats"`
	// CompactMode uses a more compact UI layout
	CompactMode bool `toml:"compact_mode" json:"compact_mode"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:      "1.0.0",
		DefaultModel: "qwen3:8b",

		Ollama: OllamaConfig{
			URL:         "http://127.0.0.1:11434",
			Model:       "qwen3:8b",
			TimeoutSecs: 30,
			Think:       "auto",
		},

		Stream: StreamConfig{
			RevealCPS:        180,
			RevealMaxGapMs:   250,
			PromoteThreshold: 10,
			ShowThinking:     true,
		},

		Agent: AgentConfig{
			Enabled:         false,
			MaxIterations:   8,
			RoundsPerSecond: 2,
		},

		History: HistoryConfig{
			Enabled: true,
		},

		UI: UIConfig{
			Theme:       "dark",
			ShowStats:   true,
			CompactMode: false,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the quill configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".quill"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	// Try TOML first
	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	// Try JSON as fallback
	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	cfg, err = finishLoad(cfg)
	if err != nil {
		return nil, err
	}

	// Return defaults (with any load error for informational purposes)
	return cfg, loadErr
}

// finishLoad applies env overrides, defaults, and validation.
func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finishLoad(cfg)
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
func SaveTOML(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// Write header comment
	fmt.Fprintln(file, "# quill configuration file")
	fmt.Fprintln(file, "# Generated by quill - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// SaveJSON saves the configuration to a JSON file.
// Atomic write with fsync prevents data loss on crash.
func SaveJSON(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Validate Ollama URL
	if c.Ollama.URL != "" {
		if _, err := url.Parse(c.Ollama.URL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "ollama.url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		}
	}

	if c.Ollama.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "ollama.timeout_secs",
			Message: "must be non-negative",
		})
	}

	validThink := map[string]bool{"on": true, "off": true, "auto": true}
	if !validThink[strings.ToLower(c.Ollama.Think)] {
		errs = append(errs, ValidationError{
			Field:   "ollama.think",
			Message: fmt.Sprintf("invalid value '%s', must be one of: on, off, auto", c.Ollama.Think),
		})
	}

	// Reveal rate bounds: below 1 cps the transcript appears frozen,
	// above 10000 the typewriter is effectively disabled anyway.
	if c.Stream.RevealCPS < 1 || c.Stream.RevealCPS > 10000 {
		errs = append(errs, ValidationError{
			Field:   "stream.reveal_cps",
			Message: fmt.Sprintf("must be 1-10000, got %g", c.Stream.RevealCPS),
		})
	}

	if c.Stream.RevealMaxGapMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "stream.reveal_max_gap_ms",
			Message: "must be non-negative",
		})
	}

	if c.Stream.PromoteThreshold < 0 {
		errs = append(errs, ValidationError{
			Field:   "stream.promote_threshold",
			Message: "must be non-negative",
		})
	}

	if c.Agent.MaxIterations < 1 || c.Agent.MaxIterations > 100 {
		errs = append(errs, ValidationError{
			Field:   "agent.max_iterations",
			Message: fmt.Sprintf("must be 1-100, got %d", c.Agent.MaxIterations),
		})
	}

	if c.Agent.RoundsPerSecond < 0 {
		errs = append(errs, ValidationError{
			Field:   "agent.rounds_per_second",
			Message: "must be non-negative",
		})
	}

	// Validate UI theme
	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value configuration fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.DefaultModel == "" {
		c.DefaultModel = defaults.DefaultModel
	}

	if c.Ollama.URL == "" {
		c.Ollama.URL = defaults.Ollama.URL
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = c.DefaultModel
	}
	if c.Ollama.TimeoutSecs == 0 {
		c.Ollama.TimeoutSecs = defaults.Ollama.TimeoutSecs
	}
	if c.Ollama.Think == "" {
		c.Ollama.Think = defaults.Ollama.Think
	}

	if c.Stream.RevealCPS == 0 {
		c.Stream.RevealCPS = defaults.Stream.RevealCPS
	}
	if c.Stream.RevealMaxGapMs == 0 {
		c.Stream.RevealMaxGapMs = defaults.Stream.RevealMaxGapMs
	}
	if c.Stream.PromoteThreshold == 0 {
		c.Stream.PromoteThreshold = defaults.Stream.PromoteThreshold
	}

	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = defaults.Agent.MaxIterations
	}
	if c.Agent.RoundsPerSecond == 0 {
		c.Agent.RoundsPerSecond = defaults.Agent.RoundsPerSecond
	}

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// ThinkFlag converts the configured think mode to the API's optional bool.
func (c *Config) ThinkFlag() *bool {
	switch strings.ToLower(c.Ollama.Think) {
	case "on":
		v := true
		return &v
	case "off":
		v := false
		return &v
	default:
		return nil
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - QUILL_MODEL: overrides default_model and ollama.model
//   - QUILL_OLLAMA_URL: overrides ollama.url
//   - QUILL_THINK: overrides ollama.think ("on", "off", "auto")
//   - QUILL_REVEAL_CPS: overrides stream.reveal_cps
//   - QUILL_NO_HISTORY: set to "1" or "true" to disable the history archive
//   - QUILL_THEME: overrides ui.theme
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("QUILL_MODEL"); model != "" {
		c.DefaultModel = model
		c.Ollama.Model = model
	}

	if ollamaURL := os.Getenv("QUILL_OLLAMA_URL"); ollamaURL != "" {
		c.Ollama.URL = ollamaURL
	}

	if think := os.Getenv("QUILL_THINK"); think != "" {
		c.Ollama.Think = think
	}

	if cps := os.Getenv("QUILL_REVEAL_CPS"); cps != "" {
		if v, err := strconv.ParseFloat(cps, 64); err == nil {
			c.Stream.RevealCPS = v
		}
	}

	if noHistory := os.Getenv("QUILL_NO_HISTORY"); noHistory != "" {
		if noHistory == "1" || strings.ToLower(noHistory) == "true" {
			c.History.Enabled = false
		}
	}

	if theme := os.Getenv("QUILL_THEME"); theme != "" {
		c.UI.Theme = theme
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "stream.reveal_cps").
func (c *Config) Get(key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return nil, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})

		if !field.IsValid() {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			return field.Interface(), nil
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return nil, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return nil, fmt.Errorf("invalid key: %s", key)
}

// Set sets a configuration value using dot notation (e.g., "stream.reveal_cps").
func (c *Config) Set(key string, value interface{}) error {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})

		if !field.IsValid() {
			return fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if !field.CanSet() {
				return fmt.Errorf("cannot set field: %s", key)
			}
			return setFieldValue(field, value)
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}

	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	// Handle string input with type conversion
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal := strVal == "1" || strings.ToLower(strVal) == "true" || strings.ToLower(strVal) == "yes"
			field.SetBool(boolVal)
			return nil
		}
	}

	// Direct assignment for matching types
	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}

	// Type conversion for compatible types
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"default_model",
		"ollama.url",
		"ollama.model",
		"ollama.timeout_secs",
		"ollama.think",
		"stream.reveal_cps",
		"stream.reveal_max_gap_ms",
		"stream.promote_threshold",
		"stream.show_thinking",
		"agent.enabled",
		"agent.max_iterations",
		"agent.rounds_per_second",
		"history.enabled",
		"history.path",
		"ui.theme",
		"ui.show_stats",
		"ui.compact_mode",
	}
}

// Merge merges another config into this one. Non-zero fields from other
// overwrite this config's fields.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Version != "" {
		c.Version = other.Version
	}
	if other.DefaultModel != "" {
		c.DefaultModel = other.DefaultModel
	}

	if other.Ollama.URL != "" {
		c.Ollama.URL = other.Ollama.URL
	}
	if other.Ollama.Model != "" {
		c.Ollama.Model = other.Ollama.Model
	}
	if other.Ollama.TimeoutSecs != 0 {
		c.Ollama.TimeoutSecs = other.Ollama.TimeoutSecs
	}
	if other.Ollama.Think != "" {
		c.Ollama.Think = other.Ollama.Think
	}

	if other.Stream.RevealCPS != 0 {
		c.Stream.RevealCPS = other.Stream.RevealCPS
	}
	if other.Stream.RevealMaxGapMs != 0 {
		c.Stream.RevealMaxGapMs = other.Stream.RevealMaxGapMs
	}
	if other.Stream.PromoteThreshold != 0 {
		c.Stream.PromoteThreshold = other.Stream.PromoteThreshold
	}

	if other.Agent.MaxIterations != 0 {
		c.Agent.MaxIterations = other.Agent.MaxIterations
	}
	if other.Agent.RoundsPerSecond != 0 {
		c.Agent.RoundsPerSecond = other.Agent.RoundsPerSecond
	}

	if other.History.Path != "" {
		c.History.Path = other.History.Path
	}

	if other.UI.Theme != "" {
		c.UI.Theme = other.UI.Theme
	}
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a string representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			// Log but don't fail - use defaults
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
// This should only be used in tests to reset state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}

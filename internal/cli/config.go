// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Configuration inspection and editing.
//
// Subcommands:
//   show           Print the active configuration
//   get <key>      Print one value
//   set <key> <v>  Change a value and save
//   path           Print the config file location
package cli

import (
	"fmt"

	"github.com/quill-sh/quill/internal/config"
)

// HandleConfig handles the "config" command and its subcommands.
func HandleConfig(args Args) error {
	switch args.Subcommand {
	case "show", "":
		return configShow()
	case "get":
		return configGet(args)
	case "set":
		return configSet(args)
	case "path":
		return configPath()
	case "keys":
		for _, key := range config.GetAllKeys() {
			fmt.Println(key)
		}
		return nil
	default:
		return NewUsageError("config", fmt.Sprintf("unknown subcommand %q, try show, get, set, keys, or path", args.Subcommand))
	}
}

func configShow() error {
	cfg := config.Global()
	for _, key := range config.GetAllKeys() {
		value, err := cfg.Get(key)
		if err != nil {
			continue
		}
		fmt.Printf("%-24s %v\n", key, value)
	}
	return nil
}

func configGet(args Args) error {
	if args.ConfigKey == "" {
		return NewUsageError("config get", "key required, try: quill config get ollama.model")
	}

	value, err := config.Global().Get(args.ConfigKey)
	if err != nil {
		return NewNotFoundError("config key", args.ConfigKey)
	}
	fmt.Printf("%v\n", value)
	return nil
}

func configSet(args Args) error {
	if args.ConfigKey == "" || args.ConfigVal == "" {
		return NewUsageError("config set", "key and value required, try: quill config set ollama.model qwen3:8b")
	}

	// Edit a fresh load rather than the global copy so unrelated
	// env overrides are not written back to disk.
	cfg, err := config.Load()
	if err != nil {
		return &ConfigError{Op: "load", Err: err}
	}

	if err := cfg.Set(args.ConfigKey, args.ConfigVal); err != nil {
		return NewUsageError("config set", err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return NewUsageError("config set", err.Error())
	}

	if err := config.Save(cfg); err != nil {
		return &ConfigError{Op: "save", Err: err}
	}

	if !args.Quiet {
		value, _ := cfg.Get(args.ConfigKey)
		fmt.Printf("%s = %v\n", args.ConfigKey, value)
	}
	return nil
}

func configPath() error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return &ConfigError{Op: "locate", Err: err}
	}
	fmt.Println(path)
	return nil
}

// quill - streaming terminal chat for local LLMs.
//
// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quill-sh/quill/internal/cli"
	"github.com/quill-sh/quill/internal/config"
)

// Version information (set at build time via -ldflags)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	setupLogging()

	cmd, args := cli.Parse()

	var err error
	switch cmd {
	case cli.CmdChat:
		err = cli.HandleChat(args)
	case cli.CmdAsk:
		err = cli.HandleAsk(args)
	case cli.CmdHistory:
		err = cli.HandleHistory(args)
	case cli.CmdConfig:
		err = cli.HandleConfig(args)
	case cli.CmdModels:
		err = cli.HandleModels(args)
	case cli.CmdVersion:
		err = cli.HandleVersion(args)
	case cli.CmdHelp:
		cli.Usage()
	default:
		cli.Usage()
		os.Exit(cli.ExitUsageError)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "quill: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}

// setupLogging routes the stdlib logger to a file so stray library
// output cannot corrupt the alternate screen. Best effort.
func setupLogging() {
	if err := config.EnsureConfigDir(); err != nil {
		log.SetOutput(os.Stderr)
		return
	}
	dir, err := config.ConfigDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return
	}
	path := filepath.Join(dir, "quill.log")
	if f, err := tea.LogToFile(path, "quill"); err == nil {
		_ = f // bubbletea installs the file as the log writer
	} else {
		log.SetOutput(os.Stderr)
	}
}

// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Argument parsing and command dispatch for quill.
package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// =============================================================================
// VERSION INFO (set at build time via -ldflags)
// =============================================================================

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command identifies which top-level command was requested.
type Command int

const (
	CmdChat Command = iota // default: interactive chat TUI
	CmdAsk
	CmdHistory
	CmdConfig
	CmdModels
	CmdVersion
	CmdHelp
)

// Args holds parsed command-line arguments.
type Args struct {
	// Global flags
	Model   string
	Quiet   bool
	Verbose bool
	Plain   bool // force the line-based REPL instead of the TUI
	NoSave  bool // do not persist the conversation

	// Command-specific
	Query      string
	File       string
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// Agent mode for ask
	Agent    bool
	MaxIter  int
	Think    string // "on", "off", or "" for config default

	// Raw args remaining after flag parsing
	Raw []string
}

const usageText = `quill - streaming terminal chat for local LLMs

USAGE:
  quill [command] [flags]

COMMANDS:
  (none)            Start the interactive chat TUI
  ask <question>    Ask a single question and print the answer
  history           Browse, search, and manage saved conversations
  config            Show or change configuration
  models            List models available on the Ollama server
  version           Show version information
  help              Show this help

GLOBAL FLAGS:
  -m, --model NAME  Use a specific model (overrides config)
  -q, --quiet       Minimal output
  -v, --verbose     Verbose output
  --plain           Line-based chat instead of the full TUI
  --no-save         Do not save the conversation

ASK FLAGS:
  -f, --file FILE   Include a file's content with the question
  -a, --agent       Enable the tool-calling agent loop
  --max-iter N      Agent round limit (default from config)
  --think on|off    Force the model's thinking channel on or off

HISTORY SUBCOMMANDS:
  list [n]          List recent conversations (default 20)
  show <id>         Print a saved conversation
  search <query>    Full-text search across saved messages
  delete <id>       Delete one conversation
  clear             Delete all conversations
  stats             Archive statistics

CONFIG SUBCOMMANDS:
  show              Print the active configuration
  get <key>         Print one value (e.g. ollama.model)
  set <key> <val>   Change a value and save
  path              Print the config file location

EXAMPLES:
  quill
  quill ask "How do goroutines differ from threads?"
  quill ask --file main.go "Review this code"
  quill ask --agent "Summarize the TODO comments in this repo"
  quill history search "context cancellation"
  quill config set stream.reveal_cps 240
`

// Usage prints the top-level help text.
func Usage() {
	fmt.Print(usageText)
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses os.Args into a command and its arguments.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses the given argument list. Split out from Parse for tests.
func ParseArgs(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdChat, args
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "chat":
		return CmdChat, args

	case "ask":
		parseAskArgs(&args, remaining)
		return CmdAsk, args

	case "history", "hist":
		parseHistoryArgs(&args, remaining)
		return CmdHistory, args

	case "config", "cfg":
		parseConfigArgs(&args, remaining)
		return CmdConfig, args

	case "models":
		return CmdModels, args

	case "version", "--version", "-V":
		return CmdVersion, args

	case "help", "--help", "-h":
		return CmdHelp, args

	default:
		// Unknown word: treat the whole remainder as an ask query.
		// "quill why is the sky blue" should just work.
		parseAskArgs(&args, append([]string{cmd}, remaining...))
		return CmdAsk, args
	}
}

// parseGlobalFlags extracts flags that apply to every command and
// returns the remaining positional arguments.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	args := Args{}

	i := 0
	for i < len(argv) {
		arg := argv[i]

		switch arg {
		case "-q", "--quiet":
			args.Quiet = true
		case "-v", "--verbose":
			args.Verbose = true
		case "--plain":
			args.Plain = true
		case "--no-save":
			args.NoSave = true
		case "-m", "--model":
			if i+1 < len(argv) {
				i++
				args.Model = argv[i]
			}
		default:
			if strings.HasPrefix(arg, "--model=") {
				args.Model = strings.TrimPrefix(arg, "--model=")
			} else {
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, args
}

// parseAskArgs parses ask-specific flags and joins the remaining
// positional words into the query.
func parseAskArgs(args *Args, argv []string) {
	var queryParts []string

	i := 0
	for i < len(argv) {
		arg := argv[i]

		switch arg {
		case "-f", "--file":
			if i+1 < len(argv) {
				i++
				args.File = argv[i]
			}
		case "-a", "--agent":
			args.Agent = true
		case "--max-iter":
			if i+1 < len(argv) {
				i++
				if n, err := strconv.Atoi(argv[i]); err == nil && n > 0 {
					args.MaxIter = n
				}
			}
		case "--think":
			if i+1 < len(argv) {
				i++
				args.Think = strings.ToLower(argv[i])
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--file="):
				args.File = strings.TrimPrefix(arg, "--file=")
			case strings.HasPrefix(arg, "--think="):
				args.Think = strings.ToLower(strings.TrimPrefix(arg, "--think="))
			case strings.HasPrefix(arg, "-"):
				// Unknown flag, skip it rather than folding it into
				// the question text.
			default:
				queryParts = append(queryParts, arg)
			}
		}
		i++
	}

	args.Query = strings.Join(queryParts, " ")
}

// parseHistoryArgs parses the history subcommand and its argument.
func parseHistoryArgs(args *Args, argv []string) {
	if len(argv) == 0 {
		args.Subcommand = "list"
		return
	}

	args.Subcommand = strings.ToLower(argv[0])
	if len(argv) > 1 {
		// show/delete take an ID, search takes a query string.
		args.Query = strings.Join(argv[1:], " ")
	}
}

// parseConfigArgs parses the config subcommand, key, and value.
func parseConfigArgs(args *Args, argv []string) {
	if len(argv) == 0 {
		args.Subcommand = "show"
		return
	}

	args.Subcommand = strings.ToLower(argv[0])
	if len(argv) > 1 {
		args.ConfigKey = argv[1]
	}
	if len(argv) > 2 {
		args.ConfigVal = strings.Join(argv[2:], " ")
	}
}

// =============================================================================
// VERSION
// =============================================================================

// HandleVersion prints version information.
func HandleVersion(args Args) error {
	if args.Verbose {
		fmt.Printf("quill %s\n", Version)
		fmt.Printf("  commit: %s\n", GitCommit)
		fmt.Printf("  built:  %s\n", BuildDate)
		return nil
	}
	fmt.Printf("quill %s\n", Version)
	return nil
}

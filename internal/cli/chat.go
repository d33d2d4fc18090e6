// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command.
//
// On a terminal this launches the full-screen TUI. With --plain, or
// when stdin is not a terminal, it falls back to a line-based REPL
// with readline editing and input history.
//
// REPL commands:
//   /help             Show available commands
//   /clear            Clear conversation history
//   /model [name]     Show or switch model
//   /quit              Exit (also ctrl+d)
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/quill-sh/quill/internal/config"
	"github.com/quill-sh/quill/internal/history"
	"github.com/quill-sh/quill/internal/model"
	"github.com/quill-sh/quill/internal/ollama"
	"github.com/quill-sh/quill/internal/storage"
	"github.com/quill-sh/quill/internal/ui/chat"
	"github.com/quill-sh/quill/internal/ui/styles"
	"github.com/quill-sh/quill/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Violet).
			Bold(true)

	replInfoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)
)

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChat handles the default chat command.
func HandleChat(args Args) error {
	cfg := config.Global()
	applyArgOverrides(cfg, args)

	client := newClientFromConfig(cfg)

	if args.Plain || !IsTTY() || !IsStdoutTTY() {
		return runPlainChat(cfg, client, args)
	}
	return runChatTUI(cfg, client, args)
}

// runChatTUI launches the full-screen bubbletea interface.
func runChatTUI(cfg *config.Config, client *ollama.Client, args Args) error {
	var store *storage.ConversationStore
	if cfg.History.Enabled {
		s, err := storage.NewConversationStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s conversation saving disabled: %v\n",
				errorTagStyle.Render("[!]"), err)
		} else {
			store = s
		}
	}

	m := chat.New(cfg, client, store)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	m.SetProgram(p)

	// Live config reload: edits to the config file restyle the running
	// session without a restart.
	watcher, err := config.Watch(func(reloaded *config.Config) {
		config.SetGlobal(reloaded)
		p.Send(chat.ConfigReloadedMsg{Config: reloaded})
	})
	if err == nil {
		defer watcher.Stop()
	}

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("chat session failed: %w", err)
	}

	if final, ok := finalModel.(*chat.Model); ok {
		archiveConversation(cfg, final.Conversation())
	}
	return nil
}

// =============================================================================
// PLAIN REPL
// =============================================================================

// replInput wraps liner with a persistent input history file.
type replInput struct {
	line        *liner.State
	historyFile string
}

func newReplInput() *replInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	in := &replInput{
		line:        line,
		historyFile: filepath.Join(configDir, "input_history"),
	}

	if f, err := os.Open(in.historyFile); err == nil {
		in.line.ReadHistory(f)
		f.Close()
	}
	return in
}

func (in *replInput) close() {
	if f, err := os.Create(in.historyFile); err == nil {
		in.line.WriteHistory(f)
		f.Close()
	}
	in.line.Close()
}

// runPlainChat runs the line-based REPL.
func runPlainChat(cfg *config.Config, client *ollama.Client, args Args) error {
	ctx := context.Background()
	if err := client.CheckRunning(ctx); err != nil {
		return err
	}

	modelName := resolveModel(cfg, args, client)
	conv := model.NewConversationWithModel(modelName)

	in := newReplInput()
	defer in.close()

	if !args.Quiet {
		fmt.Println(welcomeStyle.Render("quill") + replInfoStyle.Render("  "+modelName))
		fmt.Println(replInfoStyle.Render("type /help for commands, ctrl+d to exit"))
		fmt.Println()
	}

	prompt := promptStyle.Render("you> ")

	for {
		input, err := in.line.Prompt(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue // ctrl+c clears the line
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		input = util.NormalizeNFC(strings.TrimSpace(input))
		if input == "" {
			continue
		}
		in.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := handleReplCommand(input, conv, &modelName); quit {
				break
			}
			continue
		}

		conv.AddUserMessage(input)
		conv.AddAssistantMessage()

		if err := streamReplResponse(ctx, client, modelName, conv); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorTagStyle.Render("[error]"), err)
			conv.DropLast()
		}
	}

	archiveConversation(cfg, conv)
	return nil
}

// streamReplResponse streams one assistant turn to stdout.
func streamReplResponse(ctx context.Context, client *ollama.Client, modelName string, conv *model.Conversation) error {
	var response strings.Builder
	var thinking []string
	var streamErr error

	stats := model.NewStatistics()
	var tokens int

	err := client.ChatStream(ctx, modelName, conv.ToOllamaMessages(), func(chunk ollama.StreamChunk) {
		if chunk.Error != nil {
			streamErr = chunk.Error
			return
		}
		if chunk.Thinking != "" {
			if len(thinking) == 0 {
				thinking = append(thinking, "")
			}
			thinking[len(thinking)-1] += chunk.Thinking
		}
		if chunk.Content != "" {
			if response.Len() == 0 {
				stats.RecordFirstToken()
			}
			response.WriteString(chunk.Content)
			fmt.Print(chunk.Content)
		}
		if chunk.Done {
			tokens = chunk.CompletionTokens
		}
	})
	fmt.Println()

	if err != nil {
		return err
	}
	if streamErr != nil {
		return streamErr
	}

	stats.Finalize(tokens)
	conv.FinalizeLast(response.String(), thinking, stats)
	return nil
}

// handleReplCommand processes a /command. Returns true to exit.
func handleReplCommand(input string, conv *model.Conversation, modelName *string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/q", "/exit":
		return true

	case "/clear", "/c":
		conv.ClearHistory()
		fmt.Println(replInfoStyle.Render("history cleared"))

	case "/model", "/m":
		if len(fields) > 1 {
			*modelName = fields[1]
			fmt.Println(replInfoStyle.Render("model set to " + *modelName))
		} else {
			fmt.Println(replInfoStyle.Render("model: " + *modelName))
		}

	case "/help", "/h":
		fmt.Println(commandStyle.Render("/clear") + replInfoStyle.Render("   clear conversation history"))
		fmt.Println(commandStyle.Render("/model") + replInfoStyle.Render("   show or switch model"))
		fmt.Println(commandStyle.Render("/quit") + replInfoStyle.Render("    exit chat"))

	default:
		fmt.Println(replInfoStyle.Render("unknown command, try /help"))
	}
	return false
}

// =============================================================================
// ARCHIVING
// =============================================================================

// archiveConversation writes a finished conversation into the
// searchable history archive. Best effort; failures go to stderr.
func archiveConversation(cfg *config.Config, conv *model.Conversation) {
	if conv == nil || conv.IsEmpty() || !cfg.History.Enabled {
		return
	}

	path := cfg.History.Path
	if path == "" {
		p, err := history.DefaultPath()
		if err != nil {
			return
		}
		path = p
	}

	archive, err := history.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s history archive unavailable: %v\n",
			errorTagStyle.Render("[!]"), err)
		return
	}
	defer archive.Close()

	if err := archive.Archive(context.Background(), storage.FromConversation(conv)); err != nil {
		fmt.Fprintf(os.Stderr, "%s failed to archive conversation: %v\n",
			errorTagStyle.Render("[!]"), err)
	}
}

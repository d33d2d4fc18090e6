// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command.
//
// Handles "quill ask", which sends a single question and prints the
// answer. On a TTY the answer is collected and rendered as markdown;
// piped output streams plain tokens as they arrive.
//
// Examples:
//   quill ask "What is a goroutine?"
//   quill ask --file main.go "Review this code"
//   cat error.log | quill ask "What went wrong here?"
//   quill ask --agent "List the TODO comments in this project"
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/quill-sh/quill/internal/agent"
	"github.com/quill-sh/quill/internal/config"
	"github.com/quill-sh/quill/internal/ollama"
	"github.com/quill-sh/quill/internal/ui/styles"
	"github.com/quill-sh/quill/internal/util"
)

// MaxFileSize caps files included with --file (50KB).
const MaxFileSize = 50 * 1024

// =============================================================================
// STYLES
// =============================================================================

var (
	infoTagStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan)

	errorTagStyle = lipgloss.NewStyle().
			Foreground(styles.Rose)

	agentTagStyle = lipgloss.NewStyle().
			Foreground(styles.Violet)

	thinkingStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Italic(true)

	summaryStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	separatorStyle = lipgloss.NewStyle().
			Foreground(styles.Overlay)
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// renderMarkdown renders the answer for terminal display. Falls back
// to the raw text when the renderer cannot be built or fails.
func renderMarkdown(content string, width int) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(rendered, "\n")
}

// =============================================================================
// FILE AND STDIN INPUT
// =============================================================================

// readFileForContext reads a file and formats it for inclusion in a
// prompt. Files larger than MaxFileSize are rejected.
func readFileForContext(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NewNotFoundError("file", path)
		}
		return "", fmt.Errorf("cannot access file: %w", err)
	}

	if info.Size() > MaxFileSize {
		return "", fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), MaxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n--- File: %s ---\n", path)
	b.Write(content)
	b.WriteString("\n--- End of file ---\n")
	return b.String(), nil
}

// readStdinIfPiped reads piped stdin, returning "" on a terminal.
func readStdinIfPiped() string {
	stat, err := os.Stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return ""
	}
	data, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// =============================================================================
// ASK HANDLER
// =============================================================================

// HandleAsk handles the "ask" command.
func HandleAsk(args Args) error {
	cfg := config.Global()
	applyArgOverrides(cfg, args)

	question := args.Query

	// Piped stdin either becomes the question or extra context for it.
	if piped := readStdinIfPiped(); piped != "" {
		if question == "" {
			question = piped
		} else {
			question = question + "\n\n" + piped
		}
	}

	if question == "" {
		return NewUsageError("ask", `no question provided, try: quill ask "your question"`)
	}
	question = util.NormalizeNFC(question)

	if args.File != "" {
		fileContent, err := readFileForContext(args.File)
		if err != nil {
			return err
		}
		question += "\n" + fileContent
		if !args.Quiet {
			fmt.Fprintf(os.Stderr, "%s including %s\n",
				infoTagStyle.Render("[+]"), args.File)
		}
	}

	client := newClientFromConfig(cfg)

	// Esc is a TUI affordance; for the CLI ctrl+c cancels the stream.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.CheckRunning(ctx); err != nil {
		return err
	}

	model := resolveModel(cfg, args, client)
	messages := []ollama.Message{ollama.NewUserMessage(question)}

	if args.Agent {
		return runAgentAsk(ctx, cfg, client, model, messages, args)
	}
	return runPlainAsk(ctx, client, model, messages, args)
}

// runPlainAsk streams a single response without tool use.
func runPlainAsk(ctx context.Context, client *ollama.Client, model string, messages []ollama.Message, args Args) error {
	useMarkdown := IsStdoutTTY()

	var response strings.Builder
	var streamErr error
	var outputTokens int
	start := time.Now()

	err := client.ChatStream(ctx, model, messages, func(chunk ollama.StreamChunk) {
		if chunk.Error != nil {
			streamErr = chunk.Error
			return
		}
		if chunk.Thinking != "" && args.Verbose {
			fmt.Fprint(os.Stderr, thinkingStyle.Render(chunk.Thinking))
		}
		if chunk.Content != "" {
			response.WriteString(chunk.Content)
			if !useMarkdown {
				fmt.Print(chunk.Content)
			}
		}
		if chunk.Done {
			outputTokens = chunk.CompletionTokens
		}
	})
	if err != nil {
		return err
	}
	if streamErr != nil {
		return streamErr
	}

	if useMarkdown {
		fmt.Println(renderMarkdown(response.String(), markdownWidth()))
	} else {
		fmt.Println()
	}

	if !args.Quiet {
		printAskSummary(model, outputTokens, time.Since(start))
	}
	return nil
}

// runAgentAsk runs the tool-calling loop, narrating rounds to stderr.
func runAgentAsk(ctx context.Context, cfg *config.Config, client *ollama.Client, model string, messages []ollama.Message, args Args) error {
	registry := agent.DefaultRegistry()

	maxRounds := cfg.Agent.MaxIterations
	if args.MaxIter > 0 {
		maxRounds = args.MaxIter
	}

	runner := agent.NewClientRunner(client, model, registry,
		agent.WithMaxRounds(maxRounds),
		agent.WithRoundsPerSecond(cfg.Agent.RoundsPerSecond),
	)

	if !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s %d tools, up to %d rounds\n",
			agentTagStyle.Render("[agent]"), len(registry.Names()), maxRounds)
	}

	useMarkdown := IsStdoutTTY()
	var tokens int
	start := time.Now()

	cb := agent.Callbacks{
		OnRoundBegin: func(round int) {
			if !args.Quiet && round > 1 {
				fmt.Fprintf(os.Stderr, "%s round %d/%d\n",
					agentTagStyle.Render("[agent]"), round, maxRounds)
			}
		},
		OnToken: func(text string) {
			tokens++
			if !useMarkdown {
				fmt.Print(text)
			}
		},
		OnThinking: func(text string) {
			if args.Verbose {
				fmt.Fprint(os.Stderr, thinkingStyle.Render(text))
			}
		},
		OnToolCall: func(call ollama.ToolCall) {
			if !args.Quiet {
				fmt.Fprintf(os.Stderr, "  %s %s\n",
					infoTagStyle.Render("->"), call.Function.Name)
			}
		},
		OnToolResult: func(name, output string, err error) {
			if err != nil && !args.Quiet {
				fmt.Fprintf(os.Stderr, "  %s %s: %v\n",
					errorTagStyle.Render("!!"), name, err)
			}
		},
	}

	final, _, err := runner.Run(ctx, messages, cb)
	if err != nil {
		return err
	}

	if useMarkdown {
		fmt.Println(renderMarkdown(final, markdownWidth()))
	} else {
		fmt.Println()
	}

	if !args.Quiet {
		printAskSummary(model, tokens, time.Since(start))
	}
	return nil
}

// printAskSummary writes a one-line generation summary to stderr.
func printAskSummary(model string, tokens int, elapsed time.Duration) {
	fmt.Fprintln(os.Stderr, separatorStyle.Render(strings.Repeat("─", 45)))
	line := fmt.Sprintf("%s | %s", model, elapsed.Round(100*time.Millisecond))
	if tokens > 0 {
		rate := float64(tokens) / elapsed.Seconds()
		line = fmt.Sprintf("%s | %d tokens (%.0f tok/s)", line, tokens, rate)
	}
	fmt.Fprintln(os.Stderr, summaryStyle.Render(line))
}

// markdownWidth picks a word-wrap width from the terminal size.
func markdownWidth() int {
	width := TerminalWidth()
	if width > 100 {
		width = 100
	}
	return width
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// applyArgOverrides folds command-line flags into the config.
func applyArgOverrides(cfg *config.Config, args Args) {
	if args.Model != "" {
		cfg.Ollama.Model = args.Model
	}
	if args.Think == "on" || args.Think == "off" {
		cfg.Ollama.Think = args.Think
	}
	if args.NoSave {
		cfg.History.Enabled = false
	}
}

// newClientFromConfig builds an Ollama client from the active config.
func newClientFromConfig(cfg *config.Config) *ollama.Client {
	clientCfg := ollama.DefaultConfig()
	if cfg.Ollama.URL != "" {
		clientCfg.BaseURL = cfg.Ollama.URL
	}
	if cfg.Ollama.Model != "" {
		clientCfg.DefaultModel = cfg.Ollama.Model
	}
	if cfg.Ollama.TimeoutSecs > 0 {
		clientCfg.Timeout = time.Duration(cfg.Ollama.TimeoutSecs) * time.Second
	}
	clientCfg.Think = cfg.ThinkFlag()
	return ollama.NewClientWithConfig(clientCfg)
}

// resolveModel picks the model: CLI flag > config > client default.
func resolveModel(cfg *config.Config, args Args, client *ollama.Client) string {
	if args.Model != "" {
		return args.Model
	}
	if cfg.Ollama.Model != "" {
		return cfg.Ollama.Model
	}
	if cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	return client.GetDefaultModel()
}

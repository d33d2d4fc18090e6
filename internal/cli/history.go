// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - Saved conversation browsing and management.
//
// Subcommands:
//   list [n]       List recent conversations
//   show <id>      Print one conversation
//   search <q>     Full-text search across saved messages
//   delete <id>    Delete one conversation
//   clear          Delete everything (asks for confirmation)
//   stats          Archive statistics
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/quill-sh/quill/internal/config"
	"github.com/quill-sh/quill/internal/history"
	"github.com/quill-sh/quill/internal/ui/styles"
	"github.com/quill-sh/quill/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	historyIDStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan)

	historyMetaStyle = lipgloss.NewStyle().
				Foreground(styles.TextMuted)

	historyRoleUser = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	historyRoleAssistant = lipgloss.NewStyle().
				Foreground(styles.Violet).
				Bold(true)

	snippetStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)
)

// =============================================================================
// HISTORY HANDLER
// =============================================================================

// HandleHistory handles the "history" command and its subcommands.
func HandleHistory(args Args) error {
	archive, err := openArchive(config.Global())
	if err != nil {
		return err
	}
	defer archive.Close()

	ctx := context.Background()

	switch args.Subcommand {
	case "list", "ls", "":
		return historyList(ctx, archive, args)
	case "show":
		return historyShow(ctx, archive, args)
	case "search":
		return historySearch(ctx, archive, args)
	case "delete", "rm":
		return historyDelete(ctx, archive, args)
	case "clear":
		return historyClear(ctx, archive, args)
	case "stats":
		return historyStats(ctx, archive)
	default:
		return NewUsageError("history", fmt.Sprintf("unknown subcommand %q, try list, show, search, delete, clear, or stats", args.Subcommand))
	}
}

// openArchive opens the configured history database.
func openArchive(cfg *config.Config) (*history.Archive, error) {
	path := cfg.History.Path
	if path == "" {
		p, err := history.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("cannot locate history archive: %w", err)
		}
		path = p
	}
	return history.Open(path)
}

// =============================================================================
// SUBCOMMANDS
// =============================================================================

func historyList(ctx context.Context, archive *history.Archive, args Args) error {
	limit := 20
	if args.Query != "" {
		if n, err := strconv.Atoi(args.Query); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := archive.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println(historyMetaStyle.Render("no saved conversations"))
		return nil
	}

	for _, e := range entries {
		summary := e.Summary
		if summary == "" {
			summary = "(untitled)"
		}
		fmt.Printf("%s  %s\n", historyIDStyle.Render(e.ID), util.TruncateWidth(summary, 60))
		fmt.Printf("    %s\n", historyMetaStyle.Render(fmt.Sprintf(
			"%s | %d messages | %s",
			e.Model, e.MessageCount, e.UpdatedAt.Local().Format("2006-01-02 15:04"))))
	}
	return nil
}

func historyShow(ctx context.Context, archive *history.Archive, args Args) error {
	if args.Query == "" {
		return NewUsageError("history show", "conversation id required")
	}

	conv, err := archive.Get(ctx, args.Query)
	if err != nil {
		if err == history.ErrNotFound {
			return NewNotFoundError("conversation", args.Query)
		}
		return err
	}

	fmt.Printf("%s  %s\n", historyIDStyle.Render(conv.ID), conv.Summary)
	fmt.Println(historyMetaStyle.Render(fmt.Sprintf(
		"%s | %s", conv.Model, conv.CreatedAt.Local().Format("2006-01-02 15:04"))))
	fmt.Println()

	useMarkdown := IsStdoutTTY()
	for _, msg := range conv.Messages {
		switch msg.Role {
		case "user":
			fmt.Println(historyRoleUser.Render("you:"))
			fmt.Println(msg.Content)
		case "assistant":
			fmt.Println(historyRoleAssistant.Render("assistant:"))
			if useMarkdown {
				fmt.Println(renderMarkdown(msg.Content, markdownWidth()))
			} else {
				fmt.Println(msg.Content)
			}
		default:
			continue
		}
		fmt.Println()
	}
	return nil
}

func historySearch(ctx context.Context, archive *history.Archive, args Args) error {
	if args.Query == "" {
		return NewUsageError("history search", "search query required")
	}

	results, err := archive.Search(ctx, args.Query)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println(historyMetaStyle.Render("no matches"))
		return nil
	}

	for _, r := range results {
		fmt.Printf("%s  %s\n", historyIDStyle.Render(r.ID), util.TruncateWidth(r.Summary, 60))
		snippet := strings.ReplaceAll(r.Snippet, "\n", " ")
		fmt.Printf("    %s %s\n",
			historyMetaStyle.Render(r.Role+":"),
			snippetStyle.Render(util.TruncateWidth(snippet, 72)))
	}
	return nil
}

func historyDelete(ctx context.Context, archive *history.Archive, args Args) error {
	if args.Query == "" {
		return NewUsageError("history delete", "conversation id required")
	}

	if err := archive.Delete(ctx, args.Query); err != nil {
		if err == history.ErrNotFound {
			return NewNotFoundError("conversation", args.Query)
		}
		return err
	}

	if !args.Quiet {
		fmt.Printf("deleted %s\n", args.Query)
	}
	return nil
}

func historyClear(ctx context.Context, archive *history.Archive, args Args) error {
	stats, err := archive.Stats(ctx)
	if err != nil {
		return err
	}
	if stats.ConversationCount == 0 {
		fmt.Println(historyMetaStyle.Render("archive already empty"))
		return nil
	}

	if !confirm(fmt.Sprintf("delete all %d conversations?", stats.ConversationCount)) {
		fmt.Println("aborted")
		return nil
	}

	if err := archive.Clear(ctx); err != nil {
		return err
	}
	if !args.Quiet {
		fmt.Printf("deleted %d conversations\n", stats.ConversationCount)
	}
	return nil
}

func historyStats(ctx context.Context, archive *history.Archive) error {
	stats, err := archive.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("conversations: %d\n", stats.ConversationCount)
	fmt.Printf("messages:      %d\n", stats.MessageCount)
	fmt.Printf("database size: %s\n", formatBytes(stats.DatabaseSize))
	fmt.Printf("location:      %s\n", archive.Path())
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// confirm prompts for a yes/no answer. Non-TTY stdin answers no.
func confirm(question string) bool {
	if !IsTTY() {
		return false
	}
	fmt.Printf("%s [y/N] ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// formatBytes renders a byte count in human units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

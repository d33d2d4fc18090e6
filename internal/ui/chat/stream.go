// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the quill TUI.
//
// This file runs the asynchronous generation pump. It bridges the blocking
// Ollama stream (or the agent loop around it) onto the Bubble Tea mailbox,
// stamping every outbound message with the generation's epoch so the
// update loop can discard events that outlive a cancellation.
package chat

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quill-sh/quill/internal/agent"
	"github.com/quill-sh/quill/internal/config"
	"github.com/quill-sh/quill/internal/model"
	"github.com/quill-sh/quill/internal/ollama"
	"github.com/quill-sh/quill/internal/stream"
)

// =============================================================================
// GENERATION PUMP
// =============================================================================

// Generator runs one generation at a time on its own goroutine and
// delivers progress as epoch-stamped messages. The send function is
// tea.Program.Send in production and a capture hook in tests.
type Generator struct {
	client *ollama.Client
	runner *agent.Runner
	model  string
	send   func(tea.Msg)
}

// NewGenerator wires a generator from the configuration. When the agent
// loop is enabled, responses go through the tool-calling runner; otherwise
// a plain chat stream is used.
func NewGenerator(cfg *config.Config, client *ollama.Client, send func(tea.Msg)) *Generator {
	g := &Generator{
		client: client,
		model:  cfg.Ollama.Model,
		send:   send,
	}
	if cfg.Agent.Enabled {
		g.runner = agent.NewClientRunner(
			client,
			cfg.Ollama.Model,
			agent.DefaultRegistry(),
			agent.WithMaxRounds(cfg.Agent.MaxIterations),
			agent.WithRoundsPerSecond(cfg.Agent.RoundsPerSecond),
		)
	}
	return g
}

// Run executes the generation to completion. It blocks, so callers start
// it on a goroutine. Cancellation surfaces as a silent stop: the epoch was
// already retired on the UI side, so a final message would be dropped
// anyway.
func (g *Generator) Run(ctx context.Context, epoch stream.Epoch, messages []ollama.Message) {
	if g.runner != nil {
		g.runAgent(ctx, epoch, messages)
		return
	}
	g.runPlain(ctx, epoch, messages)
}

// runPlain streams a single response without tool support.
func (g *Generator) runPlain(ctx context.Context, epoch stream.Epoch, messages []ollama.Message) {
	stats := model.NewStatistics()
	first := true

	err := g.client.ChatStream(ctx, g.model, messages, func(chunk ollama.StreamChunk) {
		if chunk.Error != nil {
			return
		}
		if chunk.Thinking != "" {
			g.send(StreamThinkingMsg{Epoch: epoch, Token: chunk.Thinking})
		}
		if chunk.Content != "" {
			if first {
				stats.RecordFirstToken()
				first = false
			}
			g.send(StreamTokenMsg{Epoch: epoch, Token: chunk.Content})
		}
		if chunk.Done {
			stats.Finalize(chunk.CompletionTokens)
		}
	})

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		g.send(StreamErrorMsg{Epoch: epoch, Err: err})
		return
	}
	g.send(StreamCompleteMsg{Epoch: epoch, Stats: stats})
}

// runAgent streams through the tool-calling loop. Agent callbacks map
// one-to-one onto the coordinator's corrective operations.
func (g *Generator) runAgent(ctx context.Context, epoch stream.Epoch, messages []ollama.Message) {
	stats := model.NewStatistics()
	first := true
	tokens := 0

	_, _, err := g.runner.Run(ctx, messages, agent.Callbacks{
		OnRoundBegin: func(round int) {
			g.send(IterationBeginMsg{Epoch: epoch, Round: round})
		},
		OnToken: func(text string) {
			if first {
				stats.RecordFirstToken()
				first = false
			}
			tokens++
			g.send(StreamTokenMsg{Epoch: epoch, Token: text})
		},
		OnThinking: func(text string) {
			g.send(StreamThinkingMsg{Epoch: epoch, Token: text})
		},
		OnReplaceLast: func(cleaned string) {
			g.send(StreamReplaceMsg{Epoch: epoch, Cleaned: cleaned})
		},
		OnStreamReset: func() {
			g.send(StreamResetMsg{Epoch: epoch})
		},
		OnToolResult: func(name string, output string, err error) {
			g.send(ToolActivityMsg{Epoch: epoch, Name: name, Err: err})
		},
	})

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		g.send(StreamErrorMsg{Epoch: epoch, Err: err})
		return
	}
	stats.Finalize(tokens)
	g.send(StreamCompleteMsg{Epoch: epoch, Stats: stats})
}

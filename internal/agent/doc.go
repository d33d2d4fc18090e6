// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent provides the multi-round tool-calling loop for quill.
//
// A Runner streams model rounds, executes requested tool calls between
// rounds, and feeds the results back until the model answers without
// tools. Rounds are paced with a rate limiter and capped.
//
// Some models narrate imaginary tool use instead of emitting real tool
// calls. The runner detects those fabricated fenced blocks in a round's
// text and issues a corrective replace with the sanitized text, so the
// UI can splice the fabrication out of the visible transcript.
//
// # Usage
//
//	runner := agent.NewClientRunner(client, "qwen3:8b", agent.DefaultRegistry(),
//	    agent.WithMaxRounds(cfg.Agent.MaxIterations),
//	    agent.WithRoundsPerSecond(cfg.Agent.RoundsPerSecond))
//
//	final, history, err := runner.Run(ctx, messages, agent.Callbacks{
//	    OnToken:       push,
//	    OnReplaceLast: replace,
//	})
package agent

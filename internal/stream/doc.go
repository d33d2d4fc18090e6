// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the incremental response-streaming coordinator.
//
// The coordinator sits between an asynchronous token source (the Ollama
// client pumping chunks from a goroutine) and the Bubble Tea update loop
// that renders the transcript. It solves three problems at once:
//
//   - Tokens can arrive faster than a human can read. The response buffer
//     is revealed at a bounded, wall-clock-based typewriter pace instead of
//     being dumped on screen as it arrives.
//
//   - Tokens can arrive after the user cancelled or restarted a generation.
//     An epoch counter pair stamps every inbound event; events from a
//     superseded generation are dropped with no side effects, which removes
//     any need to "unsubscribe" the async source in time.
//
//   - The upstream generator can retroactively rewrite text it already
//     emitted (replace or roll back the current iteration of a multi-step
//     generation). The iteration tracker records where the current step
//     began so corrections splice only that step's text.
//
// Inline "thinking" spans (<think>...</think> and accepted variant
// spellings) are normalized, extracted across chunk boundaries, and grouped
// into an ordered segment list separate from the response text.
//
// The coordinator is not safe for concurrent use. It is owned by exactly
// one goroutine - in the TUI that is the Bubble Tea update loop, which
// receives stream events as messages. There are no fatal failure modes:
// malformed tag sequences degrade to response text, stale events vanish,
// and corrections with no recorded iteration apply to the whole buffer.
package stream

// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/quill-sh/quill/internal/ollama"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrMaxRoundsReached is returned when the loop exceeds its round cap.
var ErrMaxRoundsReached = errors.New("maximum rounds reached")

// ErrConsecutiveFailures is returned when too many rounds fail in a row.
var ErrConsecutiveFailures = errors.New("too many consecutive failures")

// =============================================================================
// RUNNER
// =============================================================================

// DefaultMaxRounds is the default cap on rounds per user turn.
const DefaultMaxRounds = 8

// DefaultMaxConsecutiveFailures is the default retry budget for a round.
const DefaultMaxConsecutiveFailures = 3

// StreamFunc streams one model round. It must invoke cb for every chunk
// and return once the round completes or fails.
type StreamFunc func(ctx context.Context, messages []ollama.Message, tools []ollama.Tool, cb ollama.StreamCallback) error

// Callbacks receive loop events as they happen. All fields are optional.
// Callbacks fire on the loop's goroutine, in order.
type Callbacks struct {
	// OnRoundBegin announces a new round (1-based).
	OnRoundBegin func(round int)

	// OnToken receives response text deltas.
	OnToken func(text string)

	// OnThinking receives thinking channel deltas.
	OnThinking func(text string)

	// OnReplaceLast delivers the sanitized text of the current round after
	// fabricated tool-call blocks were stripped. Empty means the whole
	// round was fabrication.
	OnReplaceLast func(cleaned string)

	// OnStreamReset fires before a failed round is retried.
	OnStreamReset func()

	// OnToolCall fires when a tool is about to execute.
	OnToolCall func(call ollama.ToolCall)

	// OnToolResult fires when a tool finishes.
	OnToolResult func(name string, output string, err error)
}

// Runner drives the multi-round tool-calling loop.
type Runner struct {
	stream   StreamFunc
	registry *Registry
	limiter  *rate.Limiter

	maxRounds   int
	maxFailures int
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxRounds caps the number of rounds per Run.
func WithMaxRounds(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxRounds = n
		}
	}
}

// WithMaxConsecutiveFailures sets the retry budget for failed rounds.
func WithMaxConsecutiveFailures(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxFailures = n
		}
	}
}

// WithRoundsPerSecond paces how fast rounds may start.
func WithRoundsPerSecond(rps float64) Option {
	return func(r *Runner) {
		if rps > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewRunner creates a runner that streams rounds through stream and
// dispatches tool calls to registry.
func NewRunner(stream StreamFunc, registry *Registry, opts ...Option) *Runner {
	if registry == nil {
		registry = NewRegistry()
	}
	r := &Runner{
		stream:      stream,
		registry:    registry,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		maxRounds:   DefaultMaxRounds,
		maxFailures: DefaultMaxConsecutiveFailures,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewClientRunner wires a runner to an Ollama client and model.
func NewClientRunner(client *ollama.Client, model string, registry *Registry, opts ...Option) *Runner {
	stream := func(ctx context.Context, messages []ollama.Message, tools []ollama.Tool, cb ollama.StreamCallback) error {
		return client.ChatStreamWithTools(ctx, model, messages, tools, cb)
	}
	return NewRunner(stream, registry, opts...)
}

// Registry returns the runner's tool registry.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// =============================================================================
// RUN LOOP
// =============================================================================

// Run executes rounds until the model answers without tool calls.
//
// Each round:
//  1. waits for the pacing limiter, then announces the round,
//  2. streams the model's response, forwarding text and thinking deltas,
//  3. strips fabricated tool-call blocks and issues a corrective replace,
//  4. executes real tool calls and appends their results,
//  5. repeats, or returns the final text when no tools were requested.
//
// A failed round is retried after a stream reset, up to the consecutive
// failure budget. Returns the final response text and the full message
// history including tool exchanges.
func (r *Runner) Run(ctx context.Context, messages []ollama.Message, cb Callbacks) (string, []ollama.Message, error) {
	history := make([]ollama.Message, len(messages))
	copy(history, messages)

	round := 0
	failures := 0

	for {
		round++
		if round > r.maxRounds {
			return "", history, fmt.Errorf("%w: %d", ErrMaxRoundsReached, r.maxRounds)
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return "", history, err
		}

		if cb.OnRoundBegin != nil {
			cb.OnRoundBegin(round)
		}

		var content, thinking strings.Builder
		var calls []ollama.ToolCall

		err := r.stream(ctx, history, r.registry.Specs(), func(chunk ollama.StreamChunk) {
			if chunk.Thinking != "" {
				thinking.WriteString(chunk.Thinking)
				if cb.OnThinking != nil {
					cb.OnThinking(chunk.Thinking)
				}
			}
			if chunk.Content != "" {
				content.WriteString(chunk.Content)
				if cb.OnToken != nil {
					cb.OnToken(chunk.Content)
				}
			}
			if len(chunk.ToolCalls) > 0 {
				calls = append(calls, chunk.ToolCalls...)
			}
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", history, ctx.Err()
			}
			failures++
			if failures >= r.maxFailures {
				return "", history, fmt.Errorf("%w: %v", ErrConsecutiveFailures, err)
			}
			if cb.OnStreamReset != nil {
				cb.OnStreamReset()
			}
			round-- // retry does not consume a round
			continue
		}
		failures = 0

		text := content.String()
		if cleaned, fabricated := SanitizeRound(text, calls); fabricated {
			if cb.OnReplaceLast != nil {
				cb.OnReplaceLast(cleaned)
			}
			text = cleaned
		}

		if len(calls) == 0 {
			history = append(history, ollama.NewAssistantMessage(text))
			return text, history, nil
		}

		assistant := ollama.NewAssistantMessage(text)
		assistant.ToolCalls = calls
		history = append(history, assistant)

		for _, call := range calls {
			select {
			case <-ctx.Done():
				return "", history, ctx.Err()
			default:
			}

			if cb.OnToolCall != nil {
				cb.OnToolCall(call)
			}

			output, err := r.registry.Execute(ctx, call)
			if cb.OnToolResult != nil {
				cb.OnToolResult(call.Function.Name, output, err)
			}

			history = append(history, ollama.NewToolResultMessage(formatToolResult(call, output, err)))
		}
	}
}

// formatToolResult renders a tool outcome for the model.
func formatToolResult(call ollama.ToolCall, output string, err error) string {
	var sb strings.Builder

	name := call.Function.Name
	if err != nil {
		sb.WriteString(fmt.Sprintf("Tool '%s' failed.\n\nError:\n%s", name, err.Error()))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Tool '%s' completed successfully.\n", name))
	if output != "" {
		sb.WriteString("\nOutput:\n")
		sb.WriteString(output)
	} else {
		sb.WriteString("\n(no output)")
	}
	return sb.String()
}

// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quill-sh/quill/internal/ollama"
)

// scriptedStream returns a StreamFunc that replays one scripted round per
// call. Each round is a sequence of chunks or a terminal error.
type scriptedRound struct {
	chunks []ollama.StreamChunk
	err    error
}

func scriptedStream(t *testing.T, rounds []scriptedRound) StreamFunc {
	t.Helper()
	i := 0
	return func(ctx context.Context, messages []ollama.Message, tools []ollama.Tool, cb ollama.StreamCallback) error {
		if i >= len(rounds) {
			t.Fatalf("unexpected round %d", i+1)
		}
		round := rounds[i]
		i++
		if round.err != nil {
			return round.err
		}
		for _, chunk := range round.chunks {
			cb(chunk)
		}
		return nil
	}
}

func TestRunner_SingleRound(t *testing.T) {
	stream := scriptedStream(t, []scriptedRound{
		{chunks: []ollama.StreamChunk{
			{Thinking: "Let me think."},
			{Content: "Hello"},
			{Content: " world."},
			{Done: true},
		}},
	})

	var tokens, thinking []string
	rounds := 0

	runner := NewRunner(stream, nil)
	final, history, err := runner.Run(context.Background(),
		[]ollama.Message{ollama.NewUserMessage("hi")},
		Callbacks{
			OnRoundBegin: func(n int) { rounds = n },
			OnToken:      func(s string) { tokens = append(tokens, s) },
			OnThinking:   func(s string) { thinking = append(thinking, s) },
		})

	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if final != "Hello world." {
		t.Errorf("final = %q, want 'Hello world.'", final)
	}
	if rounds != 1 {
		t.Errorf("rounds = %d, want 1", rounds)
	}
	if len(tokens) != 2 {
		t.Errorf("token deltas = %d, want 2", len(tokens))
	}
	if len(thinking) != 1 {
		t.Errorf("thinking deltas = %d, want 1", len(thinking))
	}
	// History gains the final assistant message
	if len(history) != 2 {
		t.Fatalf("history = %d messages, want 2", len(history))
	}
	if history[1].Role != "assistant" || history[1].Content != "Hello world." {
		t.Errorf("history[1] = %+v", history[1])
	}
}

func TestRunner_ToolRound(t *testing.T) {
	stream := scriptedStream(t, []scriptedRound{
		{chunks: []ollama.StreamChunk{
			{Content: "Checking."},
			{ToolCalls: []ollama.ToolCall{{Function: ollama.ToolFunction{
				Name:      "echo",
				Arguments: map[string]interface{}{"text": "ping"},
			}}}},
			{Done: true},
		}},
		{chunks: []ollama.StreamChunk{
			{Content: "The tool said ping."},
			{Done: true},
		}},
	})

	registry := NewRegistry()
	registry.Register(FuncTool{
		Schema: ollama.Tool{Type: "function", Function: ollama.ToolSchema{Name: "echo"}},
		Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return args["text"].(string), nil
		},
	})

	var calledTool string
	var toolOutput string

	runner := NewRunner(stream, registry)
	final, history, err := runner.Run(context.Background(),
		[]ollama.Message{ollama.NewUserMessage("run echo")},
		Callbacks{
			OnToolCall:   func(call ollama.ToolCall) { calledTool = call.Function.Name },
			OnToolResult: func(name, output string, err error) { toolOutput = output },
		})

	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if final != "The tool said ping." {
		t.Errorf("final = %q", final)
	}
	if calledTool != "echo" {
		t.Errorf("calledTool = %q, want 'echo'", calledTool)
	}
	if toolOutput != "ping" {
		t.Errorf("toolOutput = %q, want 'ping'", toolOutput)
	}

	// History: user, assistant+calls, tool result, final assistant
	if len(history) != 4 {
		t.Fatalf("history = %d messages, want 4", len(history))
	}
	if !history[1].HasToolCalls() {
		t.Error("history[1] should carry the tool calls")
	}
	if history[2].Role != "tool" {
		t.Errorf("history[2].Role = %q, want 'tool'", history[2].Role)
	}
	if !strings.Contains(history[2].Content, "completed successfully") {
		t.Errorf("tool result = %q", history[2].Content)
	}
}

func TestRunner_UnknownToolReportsFailure(t *testing.T) {
	stream := scriptedStream(t, []scriptedRound{
		{chunks: []ollama.StreamChunk{
			{ToolCalls: []ollama.ToolCall{{Function: ollama.ToolFunction{Name: "launch_missiles"}}}},
			{Done: true},
		}},
		{chunks: []ollama.StreamChunk{
			{Content: "That tool does not exist."},
			{Done: true},
		}},
	})

	var toolErr error
	runner := NewRunner(stream, NewRegistry())
	_, history, err := runner.Run(context.Background(),
		[]ollama.Message{ollama.NewUserMessage("go")},
		Callbacks{
			OnToolResult: func(name, output string, err error) { toolErr = err },
		})

	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !errors.Is(toolErr, ErrUnknownTool) {
		t.Errorf("tool error = %v, want ErrUnknownTool", toolErr)
	}
	if !strings.Contains(history[2].Content, "failed") {
		t.Errorf("tool result should report failure, got %q", history[2].Content)
	}
}

func TestRunner_FabricationTriggersReplace(t *testing.T) {
	stream := scriptedStream(t, []scriptedRound{
		{chunks: []ollama.StreamChunk{
			{Content: "Let me check.\n```tool_call\nread_file(path=\"/etc/hosts\")\nresult: 127.0.0.1\n```"},
			{Done: true},
		}},
	})

	var replaced string
	replacedFired := false

	runner := NewRunner(stream, nil)
	final, _, err := runner.Run(context.Background(),
		[]ollama.Message{ollama.NewUserMessage("hosts?")},
		Callbacks{
			OnReplaceLast: func(cleaned string) {
				replaced = cleaned
				replacedFired = true
			},
		})

	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !replacedFired {
		t.Fatal("OnReplaceLast should fire for fabricated tool block")
	}
	if replaced != "Let me check." {
		t.Errorf("replaced = %q, want 'Let me check.'", replaced)
	}
	if final != "Let me check." {
		t.Errorf("final = %q, want sanitized text", final)
	}
}

func TestRunner_RetryAfterStreamFailure(t *testing.T) {
	streamErr := errors.New("connection reset")
	stream := scriptedStream(t, []scriptedRound{
		{err: streamErr},
		{chunks: []ollama.StreamChunk{
			{Content: "Recovered."},
			{Done: true},
		}},
	})

	resets := 0
	begins := 0

	runner := NewRunner(stream, nil)
	final, _, err := runner.Run(context.Background(),
		[]ollama.Message{ollama.NewUserMessage("hi")},
		Callbacks{
			OnRoundBegin:  func(int) { begins++ },
			OnStreamReset: func() { resets++ },
		})

	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if final != "Recovered." {
		t.Errorf("final = %q, want 'Recovered.'", final)
	}
	if resets != 1 {
		t.Errorf("stream resets = %d, want 1", resets)
	}
	if begins != 2 {
		t.Errorf("round begins = %d, want 2", begins)
	}
}

func TestRunner_ConsecutiveFailureBudget(t *testing.T) {
	streamErr := errors.New("connection reset")
	stream := scriptedStream(t, []scriptedRound{
		{err: streamErr}, {err: streamErr},
	})

	runner := NewRunner(stream, nil, WithMaxConsecutiveFailures(2))
	_, _, err := runner.Run(context.Background(),
		[]ollama.Message{ollama.NewUserMessage("hi")}, Callbacks{})

	if !errors.Is(err, ErrConsecutiveFailures) {
		t.Errorf("err = %v, want ErrConsecutiveFailures", err)
	}
}

func TestRunner_MaxRounds(t *testing.T) {
	// Every round requests another tool call, never finishing.
	endless := func(ctx context.Context, messages []ollama.Message, tools []ollama.Tool, cb ollama.StreamCallback) error {
		cb(ollama.StreamChunk{ToolCalls: []ollama.ToolCall{{Function: ollama.ToolFunction{Name: "echo"}}}})
		cb(ollama.StreamChunk{Done: true})
		return nil
	}

	registry := NewRegistry()
	registry.Register(FuncTool{
		Schema: ollama.Tool{Type: "function", Function: ollama.ToolSchema{Name: "echo"}},
		Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "ok", nil
		},
	})

	runner := NewRunner(endless, registry, WithMaxRounds(3))
	_, _, err := runner.Run(context.Background(),
		[]ollama.Message{ollama.NewUserMessage("loop")}, Callbacks{})

	if !errors.Is(err, ErrMaxRoundsReached) {
		t.Errorf("err = %v, want ErrMaxRoundsReached", err)
	}
}

func TestRunner_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	stream := func(ctx context.Context, messages []ollama.Message, tools []ollama.Tool, cb ollama.StreamCallback) error {
		cancel()
		return ctx.Err()
	}

	runner := NewRunner(stream, nil)
	_, _, err := runner.Run(ctx, []ollama.Message{ollama.NewUserMessage("hi")}, Callbacks{})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestRegistry_SpecsSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		r.Register(FuncTool{
			Schema: ollama.Tool{Type: "function", Function: ollama.ToolSchema{Name: name}},
			Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
				return "", nil
			},
		})
	}

	specs := r.Specs()
	if len(specs) != 3 {
		t.Fatalf("Specs() returned %d, want 3", len(specs))
	}
	if specs[0].Function.Name != "alpha" || specs[2].Function.Name != "zeta" {
		t.Errorf("Specs() not sorted: %q, %q, %q",
			specs[0].Function.Name, specs[1].Function.Name, specs[2].Function.Name)
	}
}

func TestRegistry_EmptySpecsNil(t *testing.T) {
	if specs := NewRegistry().Specs(); specs != nil {
		t.Errorf("empty registry Specs() = %v, want nil", specs)
	}
}

func TestDefaultRegistry_ReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("line one\nline two\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r := DefaultRegistry()
	out, err := r.Execute(context.Background(), ollama.ToolCall{
		Function: ollama.ToolFunction{
			Name:      "read_file",
			Arguments: map[string]interface{}{"path": path},
		},
	})
	if err != nil {
		t.Fatalf("read_file failed: %v", err)
	}
	if !strings.Contains(out, "line two") {
		t.Errorf("read_file output = %q", out)
	}
}

func TestDefaultRegistry_ListDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	r := DefaultRegistry()
	out, err := r.Execute(context.Background(), ollama.ToolCall{
		Function: ollama.ToolFunction{
			Name:      "list_dir",
			Arguments: map[string]interface{}{"path": dir},
		},
	})
	if err != nil {
		t.Fatalf("list_dir failed: %v", err)
	}
	if !strings.Contains(out, "a.txt") {
		t.Errorf("list_dir output missing file: %q", out)
	}
	if !strings.Contains(out, "sub"+string(filepath.Separator)) {
		t.Errorf("list_dir output should mark directories: %q", out)
	}
}

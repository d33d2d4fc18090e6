// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quill-sh/quill/internal/config"
	"github.com/quill-sh/quill/internal/model"
	"github.com/quill-sh/quill/internal/ollama"
	"github.com/quill-sh/quill/internal/stream"
)

// newTestModel builds a sized chat model whose generation pump is a no-op,
// so tests drive the update loop by sending messages directly.
func newTestModel(t *testing.T) *Model {
	t.Helper()
	cfg := config.Default()
	m := New(cfg, nil, nil)
	m.launch = func(context.Context, stream.Epoch, []ollama.Message) {}

	mm, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return mm.(*Model)
}

// begin submits a prompt and returns the new generation's epoch.
func begin(t *testing.T, m *Model, prompt string) stream.Epoch {
	t.Helper()
	m.input.SetValue(prompt)
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != stateWaiting {
		t.Fatalf("state after submit = %d, want stateWaiting", m.state)
	}
	return m.coord.Epoch()
}

// =============================================================================
// SUBMIT AND STREAMING
// =============================================================================

func TestSubmit_StartsGeneration(t *testing.T) {
	m := newTestModel(t)
	begin(t, m, "hello there")

	if got := m.conversation.MessageCount(); got != 2 {
		t.Errorf("MessageCount = %d, want 2 (user + pending assistant)", got)
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}
}

func TestSubmit_BlankInputIgnored(t *testing.T) {
	m := newTestModel(t)
	m.input.SetValue("   ")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if m.state != stateIdle {
		t.Error("blank submit should not start a generation")
	}
	if m.conversation.MessageCount() != 0 {
		t.Errorf("MessageCount = %d, want 0", m.conversation.MessageCount())
	}
}

func TestStreamToken_CoalescesRevealTicks(t *testing.T) {
	m := newTestModel(t)
	e := begin(t, m, "hi")

	_, cmd := m.Update(StreamTokenMsg{Epoch: e, Token: "Hel"})
	if cmd == nil {
		t.Fatal("first token should schedule a reveal tick")
	}
	_, cmd = m.Update(StreamTokenMsg{Epoch: e, Token: "lo"})
	if cmd != nil {
		t.Fatal("second token must coalesce into the pending tick")
	}

	if got := m.coord.Buffer(); got != "Hello" {
		t.Errorf("Buffer = %q, want %q", got, "Hello")
	}
	if m.state != stateStreaming {
		t.Errorf("state = %d, want stateStreaming", m.state)
	}
}

func TestStreamThinking_LandsInSegments(t *testing.T) {
	m := newTestModel(t)
	e := begin(t, m, "hi")

	m.Update(StreamThinkingMsg{Epoch: e, Token: "planning the answer"})

	segs := m.coord.Segments()
	if len(segs) != 1 || segs[0] != "planning the answer" {
		t.Errorf("Segments = %v", segs)
	}
	if got := m.coord.Buffer(); got != "" {
		t.Errorf("thinking leaked into response buffer: %q", got)
	}
}

// =============================================================================
// EPOCH GUARD
// =============================================================================

func TestInterrupt_DropsQueuedTokens(t *testing.T) {
	m := newTestModel(t)
	e := begin(t, m, "hi")

	m.Update(StreamTokenMsg{Epoch: e, Token: "partial"})
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	if m.state != stateIdle {
		t.Fatalf("state after interrupt = %d, want stateIdle", m.state)
	}

	// A token already in the mailbox when the user cancelled.
	m.Update(StreamTokenMsg{Epoch: e, Token: " more"})
	if got := m.coord.Buffer(); got != "partial" {
		t.Errorf("stale token mutated buffer: %q", got)
	}

	// Same for a late completion.
	m.Update(StreamCompleteMsg{Epoch: e, Stats: model.NewStatistics()})
	if m.state != stateIdle {
		t.Error("stale completion changed state")
	}
}

func TestInterrupt_KeepsRevealedText(t *testing.T) {
	m := newTestModel(t)
	e := begin(t, m, "hi")

	m.Update(StreamTokenMsg{Epoch: e, Token: "hello"})

	// Two spaced passes: the first starts the clock, the second reveals.
	base := time.Now()
	m.Update(RevealTickMsg{Epoch: e, Time: base})
	m.Update(RevealTickMsg{Epoch: e, Time: base.Add(300 * time.Millisecond)})

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	last := m.conversation.GetLastMessage()
	if last == nil || last.Content != "hello" {
		t.Fatalf("last message = %+v, want revealed text kept", last)
	}
	if !m.interrupted {
		t.Error("interrupted flag not set")
	}
}

func TestNewGenerationAfterInterrupt(t *testing.T) {
	m := newTestModel(t)
	e1 := begin(t, m, "first")
	m.Update(StreamTokenMsg{Epoch: e1, Token: "old"})
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	e2 := begin(t, m, "second")
	if e1 == e2 {
		t.Fatal("new generation reused the retired epoch")
	}

	m.Update(StreamTokenMsg{Epoch: e2, Token: "new"})
	if got := m.coord.Buffer(); got != "new" {
		t.Errorf("Buffer = %q, want %q", got, "new")
	}
}

// =============================================================================
// CORRECTIVE OPERATIONS
// =============================================================================

func TestReplace_AppliesImmediately(t *testing.T) {
	m := newTestModel(t)
	e := begin(t, m, "hi")

	m.Update(IterationBeginMsg{Epoch: e, Round: 1})
	m.Update(StreamTokenMsg{Epoch: e, Token: "Let me check. ```tool_call fake```"})
	m.Update(StreamReplaceMsg{Epoch: e, Cleaned: "Let me check."})

	if got := m.coord.Buffer(); got != "Let me check." {
		t.Errorf("Buffer = %q, want %q", got, "Let me check.")
	}
	if got := m.coord.Visible(); got != "Let me check." {
		t.Errorf("Visible = %q, corrections must not trickle in at reading pace", got)
	}
}

func TestReset_RollsBackCurrentRound(t *testing.T) {
	m := newTestModel(t)
	e := begin(t, m, "hi")

	m.Update(StreamTokenMsg{Epoch: e, Token: "first answer. "})
	m.Update(IterationBeginMsg{Epoch: e, Round: 2})
	m.Update(StreamTokenMsg{Epoch: e, Token: "doomed second"})
	m.Update(StreamResetMsg{Epoch: e})

	if got := m.coord.Buffer(); got != "first answer. " {
		t.Errorf("Buffer after reset = %q, want earlier rounds kept", got)
	}
	if m.state != stateRetrying {
		t.Errorf("state = %d, want stateRetrying", m.state)
	}
}

// =============================================================================
// COMPLETION AND ERRORS
// =============================================================================

func TestComplete_FinalizesConversation(t *testing.T) {
	m := newTestModel(t)
	e := begin(t, m, "hi")

	m.Update(StreamTokenMsg{Epoch: e, Token: "the answer"})
	m.Update(StreamThinkingMsg{Epoch: e, Token: "brief plan"})

	stats := model.NewStatistics()
	stats.Finalize(2)
	m.Update(StreamCompleteMsg{Epoch: e, Stats: stats})

	last := m.conversation.GetLastMessage()
	if last == nil {
		t.Fatal("no last message")
	}
	if last.Content != "the answer" {
		t.Errorf("Content = %q", last.Content)
	}
	if len(last.Thinking) != 1 || last.Thinking[0] != "brief plan" {
		t.Errorf("Thinking = %v", last.Thinking)
	}
	if last.IsStreaming {
		t.Error("message still marked streaming after completion")
	}
	if m.state != stateIdle {
		t.Errorf("state = %d, want stateIdle", m.state)
	}
}

func TestError_KeepsPartialText(t *testing.T) {
	m := newTestModel(t)
	e := begin(t, m, "hi")

	m.Update(StreamTokenMsg{Epoch: e, Token: "partial text"})
	m.Update(StreamErrorMsg{Epoch: e, Err: ollama.ErrNotRunning})

	if m.err == nil {
		t.Fatal("error not surfaced")
	}
	last := m.conversation.GetLastMessage()
	if last == nil || last.Content != "partial text" {
		t.Errorf("partial text lost on error: %+v", last)
	}
}

// =============================================================================
// KEYS AND VIEW
// =============================================================================

func TestToggleThinking(t *testing.T) {
	m := newTestModel(t)
	open := m.thinkingOpen
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	if m.thinkingOpen == open {
		t.Error("ctrl+t did not toggle the thinking block")
	}
}

func TestQuitWhenIdle(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c while idle should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c command is not tea.Quit")
	}
}

func TestCtrlCWhileGeneratingInterrupts(t *testing.T) {
	m := newTestModel(t)
	e := begin(t, m, "hi")
	m.Update(StreamTokenMsg{Epoch: e, Token: "x"})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd != nil {
		t.Error("ctrl+c during generation must interrupt, not quit")
	}
	if m.state != stateIdle {
		t.Errorf("state = %d, want stateIdle after interrupt", m.state)
	}
}

func TestView_ShowsTranscript(t *testing.T) {
	m := newTestModel(t)
	e := begin(t, m, "what is two plus two")
	m.Update(StreamTokenMsg{Epoch: e, Token: "four"})

	base := time.Now()
	m.Update(RevealTickMsg{Epoch: e, Time: base})
	m.Update(RevealTickMsg{Epoch: e, Time: base.Add(300 * time.Millisecond)})

	view := m.View()
	if !strings.Contains(view, "what is two plus two") {
		t.Error("view missing the user prompt")
	}
	if !strings.Contains(view, "four") {
		t.Error("view missing the revealed response")
	}
}

func TestConfigReload_SwapsActiveConfig(t *testing.T) {
	m := newTestModel(t)

	reloaded := config.Default()
	reloaded.UI.Theme = "light"
	reloaded.UI.ShowStats = false
	m.Update(ConfigReloadedMsg{Config: reloaded})

	if m.cfg != reloaded {
		t.Error("reloaded config not adopted")
	}
	if m.theme == nil || m.theme.IsDark {
		t.Error("theme not rebuilt for the light appearance")
	}
}

func TestStaleRevealTickDropped(t *testing.T) {
	m := newTestModel(t)
	e1 := begin(t, m, "first")
	m.Update(StreamTokenMsg{Epoch: e1, Token: "old"})
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	e2 := begin(t, m, "second")
	m.Update(StreamTokenMsg{Epoch: e2, Token: "new"})

	// A tick scheduled under the interrupted generation arrives late. It
	// must not consume the pass slot the fresh token just scheduled, and
	// it must not reschedule itself.
	_, cmd := m.Update(RevealTickMsg{Epoch: e1, Time: time.Now()})
	if cmd != nil {
		t.Error("stale tick produced a follow-up command")
	}
	if !m.respCo.Pending() {
		t.Error("stale tick consumed the pending pass slot")
	}
}

func TestStaleToolActivityIgnoredAfterInterrupt(t *testing.T) {
	m := newTestModel(t)
	e := begin(t, m, "run it")

	m.Update(ToolActivityMsg{Epoch: e, Name: "read_file"})
	if m.lastTool != "read_file" {
		t.Fatalf("lastTool = %q, want %q", m.lastTool, "read_file")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m.Update(ToolActivityMsg{Epoch: e, Name: "list_dir"})
	if m.lastTool != "read_file" {
		t.Errorf("stale tool activity updated lastTool to %q", m.lastTool)
	}
}

func TestReset_CancelsPendingRevealPass(t *testing.T) {
	m := newTestModel(t)
	e := begin(t, m, "hi")

	m.Update(StreamTokenMsg{Epoch: e, Token: "bad round"})
	if !m.respCo.Pending() {
		t.Fatal("token should have scheduled a reveal pass")
	}

	m.Update(StreamResetMsg{Epoch: e})
	if m.respCo.Pending() {
		t.Error("rollback left a reveal pass scheduled")
	}
}

// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the quill TUI.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/quill-sh/quill/internal/config"
	"github.com/quill-sh/quill/internal/model"
	"github.com/quill-sh/quill/internal/ollama"
	"github.com/quill-sh/quill/internal/storage"
	"github.com/quill-sh/quill/internal/stream"
	"github.com/quill-sh/quill/internal/ui/components"
	"github.com/quill-sh/quill/internal/ui/styles"
	"github.com/quill-sh/quill/internal/util"
)

// revealTickInterval paces the typewriter passes. One pending tick at a
// time regardless of token rate; the coalescers enforce that.
const revealTickInterval = 33 * time.Millisecond

// =============================================================================
// CHAT STATE
// =============================================================================

type chatState int

const (
	stateIdle chatState = iota
	stateWaiting
	stateStreaming
	stateRetrying
)

// =============================================================================
// PROGRAM REFERENCE
// =============================================================================

// programRef lets the generator send messages to a tea.Program that is
// created after the model. Until the program is attached, sends are
// dropped.
type programRef struct {
	mu sync.Mutex
	p  *tea.Program
}

func (r *programRef) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.p
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (r *programRef) set(p *tea.Program) {
	r.mu.Lock()
	r.p = p
	r.mu.Unlock()
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view. It is the sole owner of
// the stream coordinator: every mutation happens inside Update, in mailbox
// order, which is what makes the epoch guard sufficient as the only
// cancellation mechanism.
type Model struct {
	cfg   *config.Config
	theme *styles.Theme
	keys  KeyMap

	conversation *model.Conversation
	store        *storage.ConversationStore

	coord   *stream.Coordinator
	respCo  *stream.Coalescer
	thinkCo *stream.Coalescer
	cancel  *cancelGuard
	prog    *programRef

	// launch starts the generation pump. Swapped out in tests.
	launch func(ctx context.Context, epoch stream.Epoch, msgs []ollama.Message)

	input    textinput.Model
	viewport viewport.Model
	spinner  components.Spinner
	md       *components.Markdown

	width  int
	height int
	ready  bool

	state        chatState
	round        int
	thinkingOpen bool
	lastTool     string
	interrupted  bool
	err          error
}

// New creates the chat model. store may be nil when history persistence is
// disabled.
func New(cfg *config.Config, client *ollama.Client, store *storage.ConversationStore) *Model {
	theme := styles.NewTheme(cfg.UI.Theme)

	input := textinput.New()
	input.Placeholder = "Ask anything"
	input.Prompt = theme.InputPrompt.Render("> ")
	input.CharLimit = 8192
	input.Focus()

	coord := stream.NewCoordinator(stream.Config{
		RevealRate:       cfg.Stream.RevealCPS,
		MaxGap:           time.Duration(cfg.Stream.RevealMaxGapMs) * time.Millisecond,
		PromoteThreshold: cfg.Stream.PromoteThreshold,
	})

	prog := &programRef{}
	gen := NewGenerator(cfg, client, prog.send)

	m := &Model{
		cfg:          cfg,
		theme:        theme,
		keys:         DefaultKeyMap(),
		conversation: model.NewConversationWithModel(cfg.Ollama.Model),
		store:        store,
		coord:        coord,
		respCo:       &stream.Coalescer{},
		thinkCo:      &stream.Coalescer{},
		cancel:       newCancelGuard(),
		prog:         prog,
		input:        input,
		spinner:      components.NewSpinner(theme),
		md:           components.NewMarkdown(80),
		thinkingOpen: cfg.Stream.ShowThinking,
	}
	m.launch = gen.Run
	return m
}

// SetProgram attaches the running program so the generation pump can reach
// the mailbox.
func (m *Model) SetProgram(p *tea.Program) {
	m.prog.set(p)
}

// Conversation exposes the transcript, mainly for persistence at exit.
func (m *Model) Conversation() *model.Conversation {
	return m.conversation
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// =============================================================================
// COMMANDS
// =============================================================================

func revealTickCmd(e stream.Epoch) tea.Cmd {
	return tea.Tick(revealTickInterval, func(t time.Time) tea.Msg {
		return RevealTickMsg{Epoch: e, Time: t}
	})
}

func thinkingTickCmd(e stream.Epoch) tea.Cmd {
	return tea.Tick(revealTickInterval, func(t time.Time) tea.Msg {
		return ThinkingTickMsg{Epoch: e, Time: t}
	})
}

// saveConversationCmd persists the transcript in the background.
func saveConversationCmd(store *storage.ConversationStore, conv *model.Conversation) tea.Cmd {
	stored := storage.FromConversation(conv)
	return func() tea.Msg {
		id, err := store.Save(stored)
		return ConversationSavedMsg{ID: id, Err: err}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamTokenMsg:
		if !m.coord.PushResponse(msg.Epoch, msg.Token) {
			return m, nil
		}
		m.spinner.Stop()
		m.state = stateStreaming
		if m.respCo.MarkDirty() {
			return m, revealTickCmd(msg.Epoch)
		}
		return m, nil

	case StreamThinkingMsg:
		if !m.coord.PushThinking(msg.Epoch, msg.Token) {
			return m, nil
		}
		m.spinner.Stop()
		m.state = stateStreaming
		if m.thinkCo.MarkDirty() {
			return m, thinkingTickCmd(msg.Epoch)
		}
		return m, nil

	case IterationBeginMsg:
		if !m.coord.BeginIteration(msg.Epoch) {
			return m, nil
		}
		m.round = msg.Round
		m.refreshTranscript()
		return m, nil

	case StreamReplaceMsg:
		if !m.coord.Replace(msg.Epoch, msg.Cleaned) {
			return m, nil
		}
		// Corrections land instantly, never at reading pace.
		m.refreshTranscript()
		return m, nil

	case StreamResetMsg:
		if !m.coord.Rollback(msg.Epoch) {
			return m, nil
		}
		// Rollback snapped the reveal position; a pass scheduled for the
		// discarded text has nothing left to publish.
		m.respCo.Cancel()
		m.state = stateRetrying
		m.refreshTranscript()
		return m, nil

	case ToolActivityMsg:
		if !m.coord.Live(msg.Epoch) {
			return m, nil
		}
		m.lastTool = msg.Name
		return m, nil

	case StreamCompleteMsg:
		return m.handleComplete(msg)

	case StreamErrorMsg:
		if !m.coord.Finish(msg.Epoch) {
			return m, nil
		}
		// Keep whatever arrived before the failure.
		m.conversation.FinalizeLast(m.coord.Buffer(), m.coord.Segments(), nil)
		m.finishGeneration(nil)
		m.err = msg.Err
		return m, nil

	case RevealTickMsg:
		if !m.coord.Live(msg.Epoch) {
			return m, nil
		}
		run := m.respCo.BeginPass()
		more := m.coord.AdvanceReveal(msg.Time)
		if run || more {
			m.refreshTranscript()
		}
		if more && m.respCo.Reschedule() {
			return m, revealTickCmd(msg.Epoch)
		}
		return m, nil

	case ThinkingTickMsg:
		if !m.coord.Live(msg.Epoch) {
			return m, nil
		}
		if m.thinkCo.BeginPass() {
			m.refreshTranscript()
		}
		return m, nil

	case ConversationSavedMsg:
		if msg.Err != nil {
			m.err = msg.Err
		}
		return m, nil

	case OllamaStatusMsg:
		if !msg.Running {
			m.err = msg.Err
		}
		return m, nil

	case ConfigReloadedMsg:
		if msg.Config != nil {
			m.cfg = msg.Config
			m.theme = styles.NewTheme(msg.Config.UI.Theme)
			m.refreshTranscript()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// handleResize recomputes the layout.
func (m *Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	contentHeight := msg.Height - chromeHeight
	if contentHeight < 1 {
		contentHeight = 1
	}
	if !m.ready {
		m.viewport = viewport.New(msg.Width, contentHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = contentHeight
	}
	m.input.Width = msg.Width - 6
	m.md.SetWidth(msg.Width - 2)
	m.refreshTranscript()
	return m, nil
}

// handleKey routes keyboard input.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Interrupt) && m.generating():
		m.interrupt()
		return m, nil

	case key.Matches(msg, m.keys.Quit):
		// ctrl+c interrupts while generating (handled above) and quits
		// otherwise.
		return m, tea.Quit

	case key.Matches(msg, m.keys.ToggleThinking):
		m.thinkingOpen = !m.thinkingOpen
		m.refreshTranscript()
		return m, nil

	case key.Matches(msg, m.keys.Clear) && !m.generating():
		m.conversation.ClearHistory()
		m.err = nil
		m.interrupted = false
		m.refreshTranscript()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down),
		key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit starts a new generation from the input field.
func (m *Model) submit() (tea.Model, tea.Cmd) {
	if m.generating() {
		return m, nil
	}
	content := util.NormalizeNFC(strings.TrimSpace(m.input.Value()))
	if content == "" {
		return m, nil
	}
	m.input.Reset()

	m.conversation.AddUserMessage(content)
	m.conversation.AddAssistantMessage()
	m.err = nil
	m.interrupted = false
	m.round = 0
	m.lastTool = ""

	m.respCo.Cancel()
	m.thinkCo.Cancel()
	epoch := m.coord.BeginGeneration()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel.arm(cancel)
	go m.launch(ctx, epoch, m.conversation.ToOllamaMessages())

	m.state = stateWaiting
	m.refreshTranscript()
	return m, m.spinner.Start("Waiting for model")
}

// interrupt stops the generation in flight. Text already revealed stays in
// the transcript; everything still queued is dropped by the epoch guard.
func (m *Model) interrupt() {
	m.coord.Invalidate()
	m.cancel.fire()
	m.respCo.Cancel()
	m.thinkCo.Cancel()

	m.conversation.FinalizeLast(m.coord.Visible(), m.coord.Segments(), nil)
	m.interrupted = true
	m.finishGeneration(nil)
}

// handleComplete settles the finished generation.
func (m *Model) handleComplete(msg StreamCompleteMsg) (tea.Model, tea.Cmd) {
	if !m.coord.Finish(msg.Epoch) {
		return m, nil
	}
	m.finishGeneration(msg.Stats)

	var cmds []tea.Cmd
	// The typewriter may still be paging out buffered text.
	if m.coord.Speaking() && m.respCo.Reschedule() {
		cmds = append(cmds, revealTickCmd(msg.Epoch))
	}
	if m.store != nil {
		cmds = append(cmds, saveConversationCmd(m.store, m.conversation))
	}
	return m, tea.Batch(cmds...)
}

// finishGeneration runs the shared teardown after complete, error, or
// interrupt.
func (m *Model) finishGeneration(stats *model.Statistics) {
	if stats != nil {
		m.conversation.FinalizeLast(m.coord.Buffer(), m.coord.Segments(), stats)
	}
	m.spinner.Stop()
	m.state = stateIdle
	m.round = 0
	m.refreshTranscript()
}

// generating reports whether a generation is in flight.
func (m *Model) generating() bool {
	return m.state != stateIdle
}

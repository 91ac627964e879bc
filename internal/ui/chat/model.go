// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/HyugaDev/batch-query-chatbot/internal/session"
	"github.com/HyugaDev/batch-query-chatbot/internal/ui/components"
	"github.com/HyugaDev/batch-query-chatbot/internal/ui/styles"
	"github.com/HyugaDev/batch-query-chatbot/internal/watch"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// Mode is what the keyboard currently drives.
type Mode int

const (
	ModeCompose Mode = iota // typing a question
	ModeAttach              // typing image paths
	ModeBrowse              // moving through the transcript
)

// Options configures the chat screen.
type Options struct {
	// Endpoint describes where questions go, shown in the header.
	Endpoint string
	// WatchDir is shown in the footer when a drop folder is active.
	WatchDir string
	// Watch delivers drop-folder events. Nil when not watching.
	Watch <-chan watch.Event
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen. All chat state lives
// in the session; the model only holds what is needed to draw it.
type Model struct {
	sess   *session.Session
	toasts *components.ToastManager
	theme  *styles.Theme
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc

	mode     Mode
	width    int
	height   int
	showHelp bool

	viewport  viewport.Model
	input     textinput.Model
	pathInput textinput.Model
	spinner   spinner.Model
	help      help.Model
	keys      KeyMap

	header *components.Header
	strip  *components.AttachmentStrip
	status *components.StatusBar

	// sending is set before the Send command runs so the pending state
	// shows on the very next frame.
	sending bool
	// selected indexes the transcript in browse mode, -1 otherwise.
	selected int
	// uploadErr is the last rejected batch, shown under the input.
	uploadErr error
	// offsets holds the first transcript line of each entry.
	offsets []int

	md *markdownCache
}

// New creates the chat model. toasts must be the notifier the session and
// its intake report to.
func New(theme *styles.Theme, sess *session.Session, toasts *components.ToastManager, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your images..."
	// Longer than allowed so the length error can show.
	ti.CharLimit = session.MaxQueryLength * 2
	ti.PromptStyle = theme.InputPrompt
	ti.SetValue(sess.Draft())
	ti.Focus()

	pi := textinput.New()
	pi.Prompt = "attach: "
	pi.Placeholder = "paths or drag files here, Enter to add, Esc to cancel"
	pi.PromptStyle = theme.InputPrompt

	header := components.NewHeader(theme)
	header.Endpoint = opts.Endpoint

	status := components.NewStatusBar(theme)
	status.Watching = opts.WatchDir

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		sess:      sess,
		toasts:    toasts,
		theme:     theme,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		mode:      ModeCompose,
		viewport:  viewport.New(80, 20),
		input:     ti,
		pathInput: pi,
		spinner:   styles.NewPendingSpinner(),
		help:      help.New(),
		keys:      DefaultKeyMap(),
		header:    header,
		strip:     components.NewAttachmentStrip(theme),
		status:    status,
		selected:  -1,
		md:        &markdownCache{out: make(map[string]string)},
	}
	m.refresh()
	return m
}

// Init starts the cursor blink, toast expiry and the drop-folder listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, components.ToastTickCmd(), waitForWatch(m.opts.Watch))
}

// Mode returns the current input mode.
func (m Model) Mode() Mode {
	return m.mode
}

// Sending reports whether a question is in flight.
func (m Model) Sending() bool {
	return m.sending
}

// =============================================================================
// MARKDOWN
// =============================================================================

// markdownCache keeps rendered answers across model copies. Answers never
// change once added, so only a width change invalidates it.
type markdownCache struct {
	renderer *glamour.TermRenderer
	style    string
	width    int
	out      map[string]string // message ID -> rendered markdown
}

// render renders a bot answer for the given glamour style and wrap width.
// Falls back to the raw text if glamour fails.
func (c *markdownCache) render(msg session.Message, style string, width int) string {
	if width < 16 {
		width = 16
	}
	if c.renderer == nil || c.width != width || c.style != style {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			log.Printf("MARKDOWN_INIT_FAILED | error=%v", err)
			return msg.Content
		}
		c.renderer = r
		c.style = style
		c.width = width
		c.out = make(map[string]string)
	}

	if out, ok := c.out[msg.ID]; ok {
		return out
	}
	out, err := c.renderer.Render(msg.Content)
	if err != nil {
		return msg.Content
	}
	c.out[msg.ID] = out
	return out
}

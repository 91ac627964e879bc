// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
	"github.com/HyugaDev/batch-query-chatbot/internal/session"
	"github.com/HyugaDev/batch-query-chatbot/internal/ui/components"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.help.Width = msg.Width
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		if !m.sending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case components.ToastTickMsg:
		before := m.toasts.Len()
		m.toasts.Tick()
		if m.toasts.Len() != before || before > 0 {
			m.refresh()
		}
		return m, components.ToastTickCmd()

	case SendDoneMsg:
		return m.handleSendDone(msg)

	case AttachDoneMsg:
		return m.handleAttachDone(msg)

	case WatchEventMsg:
		if msg.Event.Err != nil {
			m.uploadErr = msg.Event.Err
		} else {
			m.uploadErr = nil
		}
		m.refresh()
		return m, waitForWatch(m.opts.Watch)

	case watchClosedMsg:
		return m, nil
	}

	return m.updateInputs(msg)
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.mode {
	case ModeAttach:
		m.pathInput, cmd = m.pathInput.Update(msg)
	case ModeCompose:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// =============================================================================
// ASYNC RESULTS
// =============================================================================

func (m Model) handleSendDone(msg SendDoneMsg) (tea.Model, tea.Cmd) {
	m.sending = false

	var verr *session.ValidationError
	switch {
	case msg.Err == nil:
		m.input.Reset()
	case errors.As(msg.Err, &verr), errors.Is(msg.Err, session.ErrBusy):
		// Shown inline; the question stays in the input.
	default:
		// The error entry is already in the transcript. Keep the question
		// so it can be resent.
	}

	m.refresh()
	m.viewport.GotoBottom()
	return m, nil
}

func (m Model) handleAttachDone(msg AttachDoneMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.uploadErr = msg.Err
		m.refresh()
		return m, nil
	}

	m.uploadErr = nil
	m.pathInput.Reset()
	if m.mode == ModeAttach {
		m.setMode(ModeCompose)
	}
	m.refresh()
	return m, nil
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		return m, tea.Quit
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch m.mode {
	case ModeAttach:
		return m.handleAttachKey(msg)
	case ModeBrowse:
		return m.handleBrowseKey(msg)
	default:
		return m.handleComposeKey(msg)
	}
}

func (m Model) handleComposeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Attach):
		m.setMode(ModeAttach)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.NextChip):
		m.strip.SelectNext()
		return m, nil

	case key.Matches(msg, m.keys.PrevChip):
		m.strip.SelectPrev()
		return m, nil

	case key.Matches(msg, m.keys.Remove):
		m.removeSelected()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.ClearAll):
		m.sess.Intake().Clear()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.CopyLast):
		_ = m.sess.CopyLast()
		return m, nil

	case key.Matches(msg, m.keys.Browse):
		if len(m.sess.Messages()) == 0 {
			m.toasts.DismissNewest()
			m.refresh()
			return m, nil
		}
		m.setMode(ModeBrowse)
		m.refresh()
		m.scrollToSelected()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.sess.SetDraft(after)
		if m.sess.InlineError() != nil {
			m.sess.ClearInlineError()
			m.refresh()
		}
	}
	return m, cmd
}

// submit sends the input as a question, or attaches it when the input is
// nothing but dropped file paths.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.sending {
		return m, nil
	}

	text := m.input.Value()
	if paths, ok := intake.DroppedPaths(text); ok {
		m.input.Reset()
		m.sess.SetDraft("")
		return m, attachCmd(m.ctx, m.sess.Intake(), paths)
	}

	m.sess.SetDraft(text)
	m.sending = true
	m.uploadErr = nil
	m.refresh()
	m.viewport.GotoBottom()
	return m, tea.Batch(sendCmd(m.ctx, m.sess, text), m.spinner.Tick)
}

func (m *Model) removeSelected() {
	in := m.sess.Intake()
	if img, ok := m.strip.SelectedImage(); ok {
		in.Remove(img.ID)
		return
	}
	if n := in.Count(); n > 0 {
		in.RemoveAt(n - 1)
	}
}

func (m Model) handleAttachKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		paths := intake.ParsePaths(m.pathInput.Value())
		if len(paths) == 0 {
			m.setMode(ModeCompose)
			m.refresh()
			return m, nil
		}
		return m, attachCmd(m.ctx, m.sess.Intake(), paths)

	case key.Matches(msg, m.keys.Browse):
		m.pathInput.Reset()
		m.uploadErr = nil
		m.setMode(ModeCompose)
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m Model) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	msgs := m.sess.Messages()

	switch {
	case key.Matches(msg, m.keys.Back):
		m.setMode(ModeCompose)
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
		m.refresh()
		m.scrollToSelected()
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(msgs)-1 {
			m.selected++
		}
		m.refresh()
		m.scrollToSelected()
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		if entry, ok := m.selectedEntry(msgs); ok && entry.Actionable() {
			_ = m.sess.Copy(entry.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Good), key.Matches(msg, m.keys.Bad):
		if entry, ok := m.selectedEntry(msgs); ok && entry.Actionable() {
			_ = m.sess.Feedback(entry.ID, key.Matches(msg, m.keys.Good))
			m.refresh()
		}
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		m.toasts.DismissNewest()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil
	}
	return m, nil
}

func (m Model) selectedEntry(msgs []session.Message) (session.Message, bool) {
	if m.selected < 0 || m.selected >= len(msgs) {
		return session.Message{}, false
	}
	return msgs[m.selected], true
}

// setMode switches modes and moves focus with it.
func (m *Model) setMode(mode Mode) {
	m.mode = mode
	m.input.Blur()
	m.pathInput.Blur()

	switch mode {
	case ModeCompose:
		m.selected = -1
		m.input.Focus()
	case ModeAttach:
		m.pathInput.Focus()
	case ModeBrowse:
		m.selected = lastActionable(m.sess.Messages())
	}
}

// lastActionable returns the index of the newest bot answer, or the newest
// entry when there is no answer yet.
func lastActionable(msgs []session.Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Actionable() {
			return i
		}
	}
	return len(msgs) - 1
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
	"github.com/HyugaDev/batch-query-chatbot/internal/session"
	"github.com/HyugaDev/batch-query-chatbot/internal/ui/components"
	"github.com/HyugaDev/batch-query-chatbot/internal/ui/styles"
	"github.com/HyugaDev/batch-query-chatbot/internal/util"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	minViewport   = 3
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat screen.
func (m Model) View() string {
	if m.showHelp {
		box := lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(styles.Purple).
			Padding(1, 2).
			Render(m.theme.HeaderTitle.Render("Keys") + "\n\n" + m.help.FullHelpView(m.keys.FullHelp()))
		return lipgloss.Place(m.screenWidth(), m.screenHeight(), lipgloss.Center, lipgloss.Center, box)
	}

	parts := []string{m.header.View(), m.viewport.View()}
	if toasts := m.toastView(); toasts != "" {
		parts = append(parts, toasts)
	}
	parts = append(parts, m.strip.View(), m.inputView(), m.status.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) screenWidth() int {
	if m.width > 0 {
		return m.width
	}
	return defaultWidth
}

func (m Model) screenHeight() int {
	if m.height > 0 {
		return m.height
	}
	return defaultHeight
}

func (m Model) toastView() string {
	stack := components.RenderToastStack(m.toasts.Toasts(), m.screenWidth(), time.Now())
	if stack == "" {
		return ""
	}
	return lipgloss.PlaceHorizontal(m.screenWidth(), lipgloss.Right, stack)
}

// inputView renders the input box with any inline errors and the
// character counter under it.
func (m Model) inputView() string {
	width := m.screenWidth() - 2
	t := m.theme

	var box string
	switch m.mode {
	case ModeAttach:
		box = t.InputFocused.Width(width - 2).Render(m.pathInput.View())
	case ModeBrowse:
		box = t.InputContainer.Width(width - 2).Render(m.input.View())
	default:
		box = t.InputFocused.Width(width - 2).Render(m.input.View())
	}

	lines := []string{box}
	if err := m.sess.InlineError(); err != nil {
		lines = append(lines, t.InlineError.Render(
			util.TruncateWidth(styles.StatusIndicators.Warning+" "+err.Error(), width)))
	}
	if m.uploadErr != nil {
		lines = append(lines, t.InlineError.Render(
			util.TruncateWidth(styles.StatusIndicators.Error+" "+uploadMessage(m.uploadErr), width)))
	}

	n := session.QueryLength(m.input.Value())
	count := fmt.Sprintf("%d/%d", n, session.MaxQueryLength)
	style := t.CharCount
	if n > session.MaxQueryLength-50 {
		style = t.CharCountWarn
	}
	lines = append(lines, lipgloss.PlaceHorizontal(width, lipgloss.Right, style.Render(count)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// uploadMessage summarizes a rejected batch for the inline banner.
func uploadMessage(err error) string {
	var batch *intake.BatchError
	if errors.As(err, &batch) {
		if len(batch.Reasons) > 1 {
			return fmt.Sprintf("%v (+%d more)", batch.First(), len(batch.Reasons)-1)
		}
		return batch.First().Error()
	}
	return err.Error()
}

// =============================================================================
// LAYOUT
// =============================================================================

// refresh pushes session state into the components and re-lays the screen.
// Call it after anything that changes what is drawn.
func (m *Model) refresh() {
	width, height := m.screenWidth(), m.screenHeight()
	if m.theme.Width == 0 {
		m.theme.SetSize(width, height)
	}

	in := m.sess.Intake()
	m.strip.SetImages(in.Images())
	m.strip.Width = width
	m.header.SetWidth(width)
	m.status.SetWidth(width)
	m.status.Images = in.Count()
	m.status.Status = m.currentStatus()

	m.input.Width = width - 10
	m.pathInput.Width = width - 16

	chrome := lipgloss.Height(m.header.View()) +
		lipgloss.Height(m.strip.View()) +
		lipgloss.Height(m.inputView()) +
		lipgloss.Height(m.status.View())
	if toasts := m.toastView(); toasts != "" {
		chrome += lipgloss.Height(toasts)
	}

	vpHeight := height - chrome
	if vpHeight < minViewport {
		vpHeight = minViewport
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.Width = width
	m.viewport.Height = vpHeight
	m.viewport.SetContent(m.transcript())
	if atBottom && m.mode != ModeBrowse {
		m.viewport.GotoBottom()
	}
}

func (m *Model) currentStatus() components.Status {
	if m.sending {
		return components.StatusAnalyzing
	}
	msgs := m.sess.Messages()
	if n := len(msgs); n > 0 && msgs[n-1].Kind == session.KindError {
		return components.StatusError
	}
	return components.StatusReady
}

// transcript renders every entry plus the pending indicator.
func (m *Model) transcript() string {
	msgs := m.sess.Messages()
	width := m.screenWidth()

	if len(msgs) == 0 && !m.sending {
		return m.theme.Empty.Render(fmt.Sprintf(
			"Attach up to %d images with Ctrl+O (or paste their paths), then ask a question about them.",
			intake.MaxImages))
	}

	blocks := make([]string, 0, len(msgs)+1)
	m.offsets = m.offsets[:0]
	line := 0
	for i, msg := range msgs {
		b := components.NewMessageBubble(m.theme, msg)
		b.Selected = m.mode == ModeBrowse && i == m.selected
		if msg.Kind == session.KindBot {
			b.Body = m.md.render(msg, m.theme.GlamourStyle(), m.theme.BubbleWidth()-4)
			if positive, ok := m.sess.FeedbackFor(msg.ID); ok {
				b.Feedback = components.FeedbackBad
				if positive {
					b.Feedback = components.FeedbackGood
				}
			}
		}
		block := b.View(width)
		blocks = append(blocks, block)
		m.offsets = append(m.offsets, line)
		line += lipgloss.Height(block) + 1
	}

	if m.sending {
		blocks = append(blocks, m.spinner.View()+" "+
			m.theme.Pending.Render(fmt.Sprintf("Analyzing %d image(s)...", m.sess.Intake().Count())))
	}
	return strings.Join(blocks, "\n\n")
}

// scrollToSelected brings the selected entry into view.
func (m *Model) scrollToSelected() {
	if m.selected < 0 || m.selected >= len(m.offsets) {
		return
	}
	m.viewport.SetYOffset(m.offsets[m.selected])
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
	"github.com/HyugaDev/batch-query-chatbot/internal/session"
	"github.com/HyugaDev/batch-query-chatbot/internal/ui/styles"
	"github.com/HyugaDev/batch-query-chatbot/internal/util"
)

// =============================================================================
// MESSAGE BUBBLE
// =============================================================================

// Feedback is the rating shown under a bot message.
type Feedback int

const (
	FeedbackNone Feedback = iota
	FeedbackGood
	FeedbackBad
)

// MessageBubble renders one transcript entry.
type MessageBubble struct {
	Message session.Message
	// Body replaces Message.Content when set, e.g. with rendered markdown.
	Body     string
	Selected bool
	Feedback Feedback
	theme    *styles.Theme
}

// NewMessageBubble wraps a transcript entry for display.
func NewMessageBubble(theme *styles.Theme, msg session.Message) *MessageBubble {
	return &MessageBubble{Message: msg, theme: theme}
}

// View renders the bubble. User messages sit on the right, everything else
// on the left, within width columns.
func (b *MessageBubble) View(width int) string {
	t := b.theme
	bubbleWidth := t.BubbleWidth()
	if bubbleWidth > width-2 {
		bubbleWidth = width - 2
	}

	body := b.Body
	if body == "" {
		body = b.Message.Content
	}

	var label string
	var style lipgloss.Style
	switch b.Message.Kind {
	case session.KindUser:
		label = t.UserLabel.Render("You")
		style = t.UserBubble
		if len(b.Message.Images) > 0 {
			label += " " + t.Timestamp.Render(attachedSummary(b.Message.Images))
		}
	case session.KindError:
		label = lipgloss.NewStyle().Foreground(styles.Rose).Bold(true).Render(styles.StatusIndicators.Error + " Error")
		style = t.ErrorBubble
	default:
		label = t.BotLabel.Render("Assistant")
		style = t.BotBubble
	}
	label += " " + t.Timestamp.Render(b.Message.CreatedAt.Format("15:04"))

	if b.Selected {
		style = style.BorderForeground(styles.Amber)
	}
	rendered := style.Width(bubbleWidth).Render(strings.Trim(body, "\n"))

	parts := []string{label, rendered}
	if b.Message.Kind == session.KindBot {
		if line := b.feedbackLine(); line != "" {
			parts = append(parts, line)
		}
	}
	block := lipgloss.JoinVertical(lipgloss.Left, parts...)

	if b.Message.Kind == session.KindUser {
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, block)
	}
	return block
}

func (b *MessageBubble) feedbackLine() string {
	t := b.theme
	switch b.Feedback {
	case FeedbackGood:
		return t.FeedbackGood.Render("[+] helpful")
	case FeedbackBad:
		return t.FeedbackBad.Render("[-] not helpful")
	}
	if b.Selected {
		return t.ShortcutDesc.Render("c copy  + helpful  - not helpful")
	}
	return ""
}

func attachedSummary(images []intake.UploadedImage) string {
	names := make([]string, len(images))
	for i, img := range images {
		names[i] = util.TruncateWidth(img.Name, 16)
	}
	if len(names) > 2 {
		return fmt.Sprintf("[%s, %s +%d]", names[0], names[1], len(names)-2)
	}
	return "[" + strings.Join(names, ", ") + "]"
}

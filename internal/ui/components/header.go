// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/HyugaDev/batch-query-chatbot/internal/ui/styles"
	"github.com/HyugaDev/batch-query-chatbot/internal/util"
)

// =============================================================================
// HEADER
// =============================================================================

// Header is the title bar: app name plus the endpoint being talked to.
type Header struct {
	Title    string
	Subtitle string
	Endpoint string
	Width    int
	theme    *styles.Theme
}

// NewHeader creates a header with the default title.
func NewHeader(theme *styles.Theme) *Header {
	return &Header{
		Title:    "imagechat",
		Subtitle: "Batch Image Query",
		Width:    80,
		theme:    theme,
	}
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// View renders the header. Narrow terminals get a single line.
func (h *Header) View() string {
	width := h.Width
	if width < 20 {
		width = 20
	}

	title := h.theme.HeaderTitle.Render(h.Title)
	if width < 60 {
		return util.TruncateWidth(h.Title+"  "+h.Endpoint, width)
	}

	sub := h.theme.HeaderSubtitle.Render(h.Subtitle)
	left := title + "  " + sub
	right := ""
	if h.Endpoint != "" {
		maxEndpoint := width - 8 - lipgloss.Width(left) - 2
		if maxEndpoint > 8 {
			right = h.theme.Timestamp.Render(util.TruncateWidth(h.Endpoint, maxEndpoint))
		}
	}

	inner := width - 6
	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	line := left + lipgloss.NewStyle().Width(gap).Render("") + right
	return h.theme.Header.Width(width - 2).Render(line)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
	"github.com/HyugaDev/batch-query-chatbot/internal/ui/styles"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// Status is the chat state shown in the footer.
type Status int

const (
	StatusReady Status = iota
	StatusAnalyzing
	StatusError
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusAnalyzing:
		return "Analyzing..."
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Icon returns a text indicator so the state reads without color.
func (s Status) Icon() string {
	switch s {
	case StatusReady:
		return styles.StatusIndicators.Success
	case StatusAnalyzing:
		return styles.StatusIndicators.Pending
	case StatusError:
		return styles.StatusIndicators.Error
	default:
		return "?"
	}
}

// Shortcut is one key hint in the footer.
type Shortcut struct {
	Key  string
	Desc string
}

// DefaultShortcuts are the chat screen's key hints, most important first.
var DefaultShortcuts = []Shortcut{
	{"Enter", "send"},
	{"Ctrl+O", "attach"},
	{"Tab", "select"},
	{"c", "copy"},
	{"+/-", "rate"},
	{"Ctrl+C", "quit"},
}

// StatusBar is the footer line: state, image count and key hints.
type StatusBar struct {
	Status    Status
	Images    int
	Watching  string // drop folder, empty when not watching
	Width     int
	Shortcuts []Shortcut
	theme     *styles.Theme
}

// NewStatusBar creates a footer with the default shortcuts.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Status:    StatusReady,
		Width:     80,
		Shortcuts: DefaultShortcuts,
		theme:     theme,
	}
}

// SetWidth updates the footer width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// View renders the footer. Shortcuts that do not fit are dropped from
// the end.
func (s *StatusBar) View() string {
	var color lipgloss.AdaptiveColor
	switch s.Status {
	case StatusAnalyzing:
		color = styles.Purple
	case StatusError:
		color = styles.Rose
	default:
		color = styles.Emerald
	}
	left := lipgloss.NewStyle().Foreground(color).Render(s.Status.Icon()+" "+s.Status.String()) +
		"  " + s.theme.ShortcutDesc.Render(fmt.Sprintf("images %d/%d", s.Images, intake.MaxImages))
	if s.Watching != "" {
		left += "  " + s.theme.ShortcutDesc.Render("watching "+s.Watching)
	}

	budget := s.Width - lipgloss.Width(left) - 4
	var hints []string
	used := 0
	for _, sc := range s.Shortcuts {
		hint := s.theme.ShortcutKey.Render(sc.Key) + " " + s.theme.ShortcutDesc.Render(sc.Desc)
		w := lipgloss.Width(hint) + 2
		if used+w > budget {
			break
		}
		hints = append(hints, hint)
		used += w
	}

	line := left
	if len(hints) > 0 {
		right := strings.Join(hints, "  ")
		gap := s.Width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
		if gap < 2 {
			gap = 2
		}
		line = left + strings.Repeat(" ", gap) + right
	}
	return s.theme.StatusBar.Render(line)
}

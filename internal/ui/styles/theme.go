// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds every style used by the chat screen.
type Theme struct {
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// Header
	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// Transcript
	UserLabel   lipgloss.Style
	UserBubble  lipgloss.Style
	BotLabel    lipgloss.Style
	BotBubble   lipgloss.Style
	ErrorBubble lipgloss.Style
	Selected    lipgloss.Style
	Timestamp   lipgloss.Style
	Pending     lipgloss.Style
	Empty       lipgloss.Style

	// Feedback markers on bot messages
	FeedbackGood lipgloss.Style
	FeedbackBad  lipgloss.Style

	// Attachments
	ImageChip      lipgloss.Style
	ImageChipIndex lipgloss.Style
	DropHint       lipgloss.Style

	// Input
	InputContainer lipgloss.Style
	InputFocused   lipgloss.Style
	InputPrompt    lipgloss.Style
	InlineError    lipgloss.Style
	CharCount      lipgloss.Style
	CharCountWarn  lipgloss.Style

	// Footer
	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
}

// NewTheme detects terminal capabilities and builds all styles.
func NewTheme() *Theme {
	profile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 2)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.HeaderSubtitle = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1)
	t.BotLabel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.BotBubble = lipgloss.NewStyle().
		Foreground(BotBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(BotBubbleBorder).
		Padding(0, 1)
	t.ErrorBubble = lipgloss.NewStyle().
		Foreground(ErrorBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ErrorBubbleBorder).
		Padding(0, 1)
	t.Selected = lipgloss.NewStyle().BorderForeground(Amber)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)
	t.Pending = lipgloss.NewStyle().Foreground(Purple).Italic(true)
	t.Empty = lipgloss.NewStyle().Foreground(TextMuted).Italic(true).Padding(1, 2)

	t.FeedbackGood = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.FeedbackBad = lipgloss.NewStyle().Foreground(Rose).Bold(true)

	t.ImageChip = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(ImageChipBg).
		Padding(0, 1).
		MarginRight(1)
	t.ImageChipIndex = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.DropHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.InputFocused = t.InputContainer.BorderForeground(Cyan)
	t.InputPrompt = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.InlineError = lipgloss.NewStyle().Foreground(Rose)
	t.CharCount = lipgloss.NewStyle().Foreground(TextMuted)
	t.CharCountWarn = lipgloss.NewStyle().Foreground(Amber).Bold(true)

	t.StatusBar = lipgloss.NewStyle().Foreground(TextSecondary).Padding(0, 1)
	t.ShortcutKey = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// BubbleWidth is the content width for message bubbles at the current size.
func (t *Theme) BubbleWidth() int {
	w := t.Width - 6
	if t.GetLayoutMode() == LayoutWide {
		w = t.Width * 3 / 4
	}
	if w < 20 {
		w = 20
	}
	return w
}

// GlamourStyle names the glamour stylesheet matching the terminal.
func (t *Theme) GlamourStyle() string {
	if t.ColorProfile == termenv.Ascii {
		return "notty"
	}
	if t.IsDark {
		return "dark"
	}
	return "light"
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // >= 100 columns
)

// =============================================================================
// SPINNER
// =============================================================================

// PendingSpinner is shown while an analysis request is in flight.
var PendingSpinner = spinner.Spinner{
	Frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	FPS:    time.Second / 12,
}

// NewPendingSpinner returns a styled spinner model for the transcript.
func NewPendingSpinner() spinner.Model {
	return spinner.New(
		spinner.WithSpinner(PendingSpinner),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(Purple)),
	)
}

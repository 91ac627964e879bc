// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// This file implements non-blocking toasts. They stack in the bottom-right
// corner and auto-dismiss so the transcript stays usable while they show.

package components

import (
	"strconv"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/HyugaDev/batch-query-chatbot/internal/notify"
	"github.com/HyugaDev/batch-query-chatbot/internal/ui/styles"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// DefaultToastDuration is the auto-dismiss duration for info and success.
const DefaultToastDuration = 4 * time.Second

// ErrorToastDuration is longer so the reason can be read.
const ErrorToastDuration = 8 * time.Second

// WarningToastDuration is the auto-dismiss duration for warnings.
const WarningToastDuration = 6 * time.Second

// MaxToasts is the number of toasts visible at once.
const MaxToasts = 4

// Toast is one visible notification.
type Toast struct {
	ID        int
	Kind      notify.Kind
	Title     string
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// NewToast builds a toast from a notification. The duration depends on
// the kind.
func NewToast(n notify.Notification) Toast {
	created := n.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return Toast{
		Kind:      n.Kind,
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: created,
		Duration:  durationFor(n.Kind),
	}
}

func durationFor(k notify.Kind) time.Duration {
	switch k {
	case notify.KindError:
		return ErrorToastDuration
	case notify.KindWarning:
		return WarningToastDuration
	default:
		return DefaultToastDuration
	}
}

// ExpiredAt reports whether the toast should be gone at now.
func (t Toast) ExpiredAt(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// RemainingAt returns the time left before auto-dismiss.
func (t Toast) RemainingAt(now time.Time) time.Duration {
	if r := t.Duration - now.Sub(t.CreatedAt); r > 0 {
		return r
	}
	return 0
}

// =============================================================================
// TOAST MANAGER
// =============================================================================

// ToastManager holds the active toasts, newest first. Safe for concurrent
// use so background notifiers can push into it.
type ToastManager struct {
	mu     sync.Mutex
	toasts []Toast
	nextID int
	now    func() time.Time
}

// NewToastManager creates an empty manager.
func NewToastManager() *ToastManager {
	return &ToastManager{nextID: 1, now: time.Now}
}

// Notify implements notify.Notifier.
func (m *ToastManager) Notify(n notify.Notification) {
	m.Add(NewToast(n))
}

// Add pushes a toast and returns its ID. The oldest toast is dropped past
// MaxToasts.
func (m *ToastManager) Add(t Toast) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	t.ID = m.nextID
	m.nextID++

	m.toasts = append([]Toast{t}, m.toasts...)
	if len(m.toasts) > MaxToasts {
		m.toasts = m.toasts[:MaxToasts]
	}
	return t.ID
}

// Dismiss removes a toast by ID.
func (m *ToastManager) Dismiss(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, t := range m.toasts {
		if t.ID == id {
			m.toasts = append(m.toasts[:i], m.toasts[i+1:]...)
			return
		}
	}
}

// DismissNewest removes the most recent toast. Returns false when empty.
func (m *ToastManager) DismissNewest() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.toasts) == 0 {
		return false
	}
	m.toasts = m.toasts[1:]
	return true
}

// Tick drops expired toasts and returns the rest.
func (m *ToastManager) Tick() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	active := m.toasts[:0]
	for _, t := range m.toasts {
		if !t.ExpiredAt(now) {
			active = append(active, t)
		}
	}
	m.toasts = active
	return m.snapshot()
}

// Toasts returns a copy of the active toasts.
func (m *ToastManager) Toasts() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *ToastManager) snapshot() []Toast {
	out := make([]Toast, len(m.toasts))
	copy(out, m.toasts)
	return out
}

// Len returns the number of active toasts.
func (m *ToastManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.toasts)
}

// Clear removes every toast.
func (m *ToastManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toasts = nil
}

// =============================================================================
// TOAST MESSAGES
// =============================================================================

// ToastTickMsg is sent periodically to expire toasts.
type ToastTickMsg struct {
	Time time.Time
}

// ToastTickCmd ticks toasts every 250ms.
func ToastTickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return ToastTickMsg{Time: t}
	})
}

// =============================================================================
// TOAST RENDERING
// =============================================================================

func toastAccent(k notify.Kind) (lipgloss.AdaptiveColor, string) {
	switch k {
	case notify.KindError:
		return styles.Rose, styles.StatusIndicators.Error
	case notify.KindWarning:
		return styles.Amber, styles.StatusIndicators.Warning
	case notify.KindSuccess:
		return styles.Emerald, styles.StatusIndicators.Success
	default:
		return styles.Cyan, styles.StatusIndicators.Info
	}
}

// RenderToast renders a single toast for a screen of the given width.
func RenderToast(t Toast, width int, now time.Time) string {
	maxWidth := 56
	if width > 0 && width-8 < maxWidth {
		maxWidth = width - 8
	}
	if maxWidth < 28 {
		maxWidth = 28
	}
	textWidth := maxWidth - 6

	accent, icon := toastAccent(t.Kind)
	title := lipgloss.NewStyle().Foreground(accent).Bold(true).Render(icon + " " + t.Title)

	var b strings.Builder
	b.WriteString(title)
	if t.Message != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(styles.TextPrimary).
			Width(textWidth).Render(t.Message))
	}

	hint := "[x] dismiss"
	if secs := int(t.RemainingAt(now).Seconds()); secs > 0 {
		hint += "  " + strconv.Itoa(secs) + "s"
	}
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true).Render(hint))

	return lipgloss.NewStyle().
		Background(styles.SurfaceDim).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 2).
		MaxWidth(maxWidth).
		Render(b.String())
}

// RenderToastStack renders toasts stacked with the newest at the bottom.
func RenderToastStack(toasts []Toast, width int, now time.Time) string {
	if len(toasts) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(toasts))
	for i := len(toasts) - 1; i >= 0; i-- {
		rendered = append(rendered, RenderToast(toasts[i], width, now))
	}
	return lipgloss.NewStyle().MarginRight(1).
		Render(lipgloss.JoinVertical(lipgloss.Right, rendered...))
}

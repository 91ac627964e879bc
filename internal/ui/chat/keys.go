// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings for the chat screen. Some keys only
// apply in one mode: c, +, - and j/k act on the transcript in browse mode
// and are plain text while composing.
type KeyMap struct {
	Submit   key.Binding
	Attach   key.Binding
	NextChip key.Binding
	PrevChip key.Binding
	Remove   key.Binding
	ClearAll key.Binding
	CopyLast key.Binding
	Browse   key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding

	// Browse mode
	Up      key.Binding
	Down    key.Binding
	Copy    key.Binding
	Good    key.Binding
	Bad     key.Binding
	Dismiss key.Binding
	Help    key.Binding
	Back    key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send question"),
		),
		Attach: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "attach images"),
		),
		NextChip: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "select image"),
		),
		PrevChip: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-Tab", "previous image"),
		),
		Remove: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "remove image"),
		),
		ClearAll: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "remove all images"),
		),
		CopyLast: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("C-y", "copy last answer"),
		),
		Browse: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "browse answers"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "previous entry"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "next entry"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c", "y"),
			key.WithHelp("c", "copy answer"),
		),
		Good: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "helpful"),
		),
		Bad: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "not helpful"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "dismiss toast"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "i", "enter"),
			key.WithHelp("Esc/i", "back to input"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Attach, k.Browse, k.Quit}
}

// FullHelp implements help.KeyMap, grouped by mode.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Attach, k.NextChip, k.Remove, k.ClearAll},
		{k.CopyLast, k.PageUp, k.PageDown, k.Browse, k.Quit},
		{k.Up, k.Down, k.Copy, k.Good, k.Bad},
		{k.Dismiss, k.Help, k.Back},
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
	"github.com/HyugaDev/batch-query-chatbot/internal/session"
	"github.com/HyugaDev/batch-query-chatbot/internal/watch"
)

// =============================================================================
// ASYNC RESULTS
// =============================================================================

// SendDoneMsg carries the result of a query submission.
type SendDoneMsg struct {
	Entry session.Message
	Err   error
}

// AttachDoneMsg carries the result of an attach batch.
type AttachDoneMsg struct {
	Images []intake.UploadedImage
	Err    error
}

// WatchEventMsg forwards a drop-folder event.
type WatchEventMsg struct {
	Event watch.Event
}

// watchClosedMsg means the drop-folder channel is gone.
type watchClosedMsg struct{}

// =============================================================================
// COMMANDS
// =============================================================================

func sendCmd(ctx context.Context, sess *session.Session, query string) tea.Cmd {
	return func() tea.Msg {
		entry, err := sess.Send(ctx, query)
		return SendDoneMsg{Entry: entry, Err: err}
	}
}

func attachCmd(ctx context.Context, in *intake.Intake, paths []string) tea.Cmd {
	return func() tea.Msg {
		images, err := in.SubmitPaths(ctx, paths)
		return AttachDoneMsg{Images: images, Err: err}
	}
}

func waitForWatch(ch <-chan watch.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return watchClosedMsg{}
		}
		return WatchEventMsg{Event: ev}
	}
}

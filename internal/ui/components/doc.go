// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the styled pieces of the imagechat chat screen.

Each component is a plain struct with a View method; the chat model owns
them and feeds them state. None of them talks to the session directly.

# Components

Header (header.go) - Title bar with the endpoint in use.
MessageBubble (message.go) - One transcript entry with its feedback marker.
AttachmentStrip (attachments.go) - Pending images as chips above the input.
StatusBar (statusbar.go) - Footer with chat state, image count and key hints.
ToastManager (toast.go) - Auto-dismissing notifications; it is a notify.Notifier.

# Toasts

	toasts := components.NewToastManager()
	in := intake.New(toasts)

	// in Update
	case components.ToastTickMsg:
		toasts.Tick()
		return m, components.ToastTickCmd()

	// in View
	components.RenderToastStack(toasts.Toasts(), width, time.Now())
*/
package components

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds one chat: the transcript, the draft question and the
// in-flight flag.
//
// # Key Types
//
//   - Session: validates a question against the attached images and sends it
//   - Message: a user, bot or error transcript entry
//   - ValidationError: a question the endpoint never saw
//
// # Usage
//
//	in := intake.New(notifier)
//	sess := session.New(in, api.NewClient(endpoint)).WithNotifier(notifier)
//	entry, err := sess.Send(ctx, "Which of these is a receipt?")
//
// Only one question may be in flight. A second Send returns ErrBusy.
package session

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the interactive chat screen.
//
// The screen has three modes. Compose edits the question and manages the
// attachment strip. Attach reads image paths. Browse moves through the
// transcript to copy or rate answers. All conversation state lives in a
// session.Session; the Model only draws it and turns keys into session
// calls run as tea.Cmds.
package chat

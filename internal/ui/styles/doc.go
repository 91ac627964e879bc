// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the palette and theme for the imagechat terminal UI.

All colors are Lip Gloss AdaptiveColor values so light and dark terminals
both render legibly. NewTheme probes the terminal with termenv once and
builds every style the chat screen needs; GlamourStyle picks the matching
markdown stylesheet for bot replies.

Status messages always carry a text indicator ([OK], [X], [!], [i]) in
addition to color.

# Usage

	theme := styles.NewTheme()
	theme.SetSize(msg.Width, msg.Height)
	header := theme.HeaderTitle.Render("imagechat")
*/
package styles

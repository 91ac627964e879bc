// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
	"github.com/HyugaDev/batch-query-chatbot/internal/ui/styles"
	"github.com/HyugaDev/batch-query-chatbot/internal/util"
)

// =============================================================================
// ATTACHMENT STRIP
// =============================================================================

// maxChipName is the display width of a file name inside a chip.
const maxChipName = 18

// AttachmentStrip renders the pending images above the input as chips.
type AttachmentStrip struct {
	Images   []intake.UploadedImage
	Selected int // -1 when no chip is selected
	Width    int
	theme    *styles.Theme
}

// NewAttachmentStrip creates an empty strip.
func NewAttachmentStrip(theme *styles.Theme) *AttachmentStrip {
	return &AttachmentStrip{Selected: -1, theme: theme}
}

// SetImages replaces the displayed images and clamps the selection.
func (a *AttachmentStrip) SetImages(images []intake.UploadedImage) {
	a.Images = images
	if a.Selected >= len(images) {
		a.Selected = len(images) - 1
	}
}

// SelectNext moves the selection right, wrapping around.
func (a *AttachmentStrip) SelectNext() {
	if len(a.Images) == 0 {
		a.Selected = -1
		return
	}
	a.Selected = (a.Selected + 1) % len(a.Images)
}

// SelectPrev moves the selection left, wrapping around.
func (a *AttachmentStrip) SelectPrev() {
	if len(a.Images) == 0 {
		a.Selected = -1
		return
	}
	if a.Selected <= 0 {
		a.Selected = len(a.Images) - 1
		return
	}
	a.Selected--
}

// SelectedImage returns the selected image, if any.
func (a *AttachmentStrip) SelectedImage() (intake.UploadedImage, bool) {
	if a.Selected < 0 || a.Selected >= len(a.Images) {
		return intake.UploadedImage{}, false
	}
	return a.Images[a.Selected], true
}

// View renders the strip. With no images it shows a hint on how to attach.
func (a *AttachmentStrip) View() string {
	if len(a.Images) == 0 {
		return a.theme.DropHint.Render("Ctrl+O attach images (up to " +
			fmt.Sprint(intake.MaxImages) + ", jpeg/png/gif/webp, 10 MiB each)")
	}

	chips := make([]string, 0, len(a.Images)+1)
	for i, img := range a.Images {
		label := a.theme.ImageChipIndex.Render(fmt.Sprint(i+1)) + " " +
			util.TruncateWidth(img.Name, maxChipName) + " " +
			a.theme.Timestamp.Render(humanize.IBytes(uint64(img.Size)))
		style := a.theme.ImageChip
		if i == a.Selected {
			style = style.Underline(true).Foreground(styles.Amber)
		}
		chips = append(chips, style.Render(label))
	}
	chips = append(chips, a.theme.Timestamp.Render(
		fmt.Sprintf("%d/%d", len(a.Images), intake.MaxImages)))

	row := lipgloss.JoinHorizontal(lipgloss.Center, chips...)
	if a.Width > 0 && lipgloss.Width(row) > a.Width {
		// Too wide for one row: fall back to a compact list of names.
		names := make([]string, len(a.Images))
		for i, img := range a.Images {
			names[i] = util.TruncateWidth(img.Name, 12)
		}
		row = util.TruncateWidth(fmt.Sprintf("%d/%d: %s", len(a.Images), intake.MaxImages,
			strings.Join(names, ", ")), a.Width)
	}
	return row
}

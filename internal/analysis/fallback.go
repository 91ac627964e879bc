// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analysis

import (
	"context"
	"strconv"
	"strings"
)

// DemoDisclaimer closes every fallback answer.
const DemoDisclaimer = "Note: This is a demo response. The image analysis service is currently unavailable, so these results are placeholders rather than a real analysis."

const textDisclaimer = "Text detection is not available right now. Any text in this image could not be read; please try again later for an accurate transcription."

var (
	fallbackCounts = []string{
		"I can see approximately 12 distinct objects in this image.",
		"There appear to be 3 main items in this image.",
		"I count around 7 items in this picture.",
		"This image contains roughly 5 notable objects.",
		"There are about 9 separate elements visible here.",
	}

	fallbackColors = []string{
		"The palette is mostly cool blues and greens.",
		"The dominant colors are warm earth tones.",
		"This image features bright, saturated primary colors.",
		"The colors are muted pastels with soft contrast.",
		"The image is largely monochrome with a few accent colors.",
	}

	fallbackGeneral = []string{
		"This image shows an outdoor scene with natural lighting.",
		"This appears to be an indoor setting with several objects in view.",
		"The image shows a close-up of a subject against a blurred background.",
		"This looks like a well-composed photograph with a clear focal point.",
		"The image contains a mix of people and objects in a busy setting.",
	}
)

// Fallback produces the canned answer used when the provider fails. It is
// pure: the same query and count always give the same text.
//
// Lists are indexed with i mod len for i starting at 1, so index 0 only
// comes up on multiples of the list length.
func Fallback(query string, imageCount int) string {
	q := strings.ToLower(query)

	pick := func(i int) string {
		switch {
		case strings.Contains(q, "count") || strings.Contains(q, "how many"):
			return fallbackCounts[i%len(fallbackCounts)]
		case strings.Contains(q, "color"):
			return fallbackColors[i%len(fallbackColors)]
		case strings.Contains(q, "text") || strings.Contains(q, "read"):
			return textDisclaimer
		default:
			return fallbackGeneral[i%len(fallbackGeneral)]
		}
	}

	var b strings.Builder
	for i := 1; i <= imageCount; i++ {
		b.WriteString("Image ")
		b.WriteString(strconv.Itoa(i))
		b.WriteString(": ")
		b.WriteString(pick(i))
		b.WriteString("\n\n")
	}
	b.WriteString(DemoDisclaimer)
	return b.String()
}

// FallbackAnalyzer is the deterministic local stand-in for a provider.
type FallbackAnalyzer struct{}

// Name implements Analyzer.
func (FallbackAnalyzer) Name() string {
	return "fallback"
}

// Analyze implements Analyzer. It never fails.
func (FallbackAnalyzer) Analyze(_ context.Context, req Request) (string, error) {
	return Fallback(req.Query, len(req.Images)), nil
}

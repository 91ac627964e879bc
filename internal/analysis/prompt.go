// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analysis

import "fmt"

const promptTemplate = `I am sending you %d image(s). Answer the following question about them:

%s

Analyze each image separately, in the order they were provided. Format your answer as one block per image, each starting with its label: "Image 1: ...", "Image 2: ...", and so on. Keep each block focused on that image.`

// BuildPrompt renders the instruction sent with the images.
func BuildPrompt(query string, imageCount int) string {
	return fmt.Sprintf(promptTemplate, imageCount, query)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the OpenRouter chat completions client used for
// image analysis.
//
// OpenRouter fronts many vision-capable models behind one API. Images are
// sent as image_url content parts alongside the text prompt.
//
// # Key Types
//
//   - OpenRouterClient: HTTP client with retry and error mapping
//   - ChatMessage: request message made of ContentPart values
//   - ChatResponse: completion with choices and token usage
//
// # Usage
//
//	client := cloud.NewOpenRouterClient(apiKey).WithMaxTokens(1000)
//	resp, err := client.Chat(ctx, []cloud.ChatMessage{
//	    cloud.NewVisionMessage("Describe this image.", dataURL),
//	})
//
// API keys are never logged. Use MaskKey for display.
package cloud

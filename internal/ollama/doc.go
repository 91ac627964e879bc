// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for a local Ollama server.
//
// Only non-streaming /api/chat is used. Vision models (llava, llama3.2-vision,
// bakllava) take images as raw base64 strings on the message.
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{DefaultModel: "llava:13b"})
//	resp, err := client.ChatWithOptions(ctx, "", []ollama.Message{
//	    ollama.NewVisionMessage("What is in this picture?", base64Payload),
//	}, &ollama.Options{NumPredict: 1000})
package ollama

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/HyugaDev/batch-query-chatbot/internal/cloud"
	"github.com/HyugaDev/batch-query-chatbot/internal/ollama"
)

// Provider names accepted in configuration.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// ErrNotDataURL means an image reference is not a base64 data URL.
var ErrNotDataURL = errors.New("image is not a base64 data URL")

// =============================================================================
// OPENROUTER
// =============================================================================

// OpenRouterAnalyzer sends the prompt and images to OpenRouter as one
// multimodal user message.
type OpenRouterAnalyzer struct {
	client *cloud.OpenRouterClient
}

// NewOpenRouterAnalyzer wraps client. Retries are disabled: one call per
// request, the fallback covers failures.
func NewOpenRouterAnalyzer(client *cloud.OpenRouterClient) *OpenRouterAnalyzer {
	return &OpenRouterAnalyzer{client: client.WithMaxRetries(1)}
}

// Name implements Analyzer.
func (a *OpenRouterAnalyzer) Name() string {
	return ProviderOpenRouter
}

// Model returns the configured model id.
func (a *OpenRouterAnalyzer) Model() string {
	return a.client.GetModel()
}

// Configured implements Configurable.
func (a *OpenRouterAnalyzer) Configured() bool {
	return a.client.IsConfigured()
}

// Analyze implements Analyzer.
func (a *OpenRouterAnalyzer) Analyze(ctx context.Context, req Request) (string, error) {
	urls := make([]string, len(req.Images))
	for i, img := range req.Images {
		urls[i] = img.URL
	}

	resp, err := a.client.Chat(ctx, []cloud.ChatMessage{cloud.NewVisionMessage(req.Prompt, urls...)})
	if err != nil {
		return "", err
	}
	return resp.GetContent(), nil
}

// =============================================================================
// OLLAMA
// =============================================================================

// OllamaAnalyzer sends the prompt and images to a local Ollama vision model.
type OllamaAnalyzer struct {
	client    *ollama.Client
	maxTokens int
}

// NewOllamaAnalyzer wraps client. maxTokens caps the completion length.
func NewOllamaAnalyzer(client *ollama.Client, maxTokens int) *OllamaAnalyzer {
	if maxTokens <= 0 {
		maxTokens = cloud.DefaultMaxTokens
	}
	return &OllamaAnalyzer{client: client, maxTokens: maxTokens}
}

// Name implements Analyzer.
func (a *OllamaAnalyzer) Name() string {
	return ProviderOllama
}

// Model returns the configured model name.
func (a *OllamaAnalyzer) Model() string {
	return a.client.GetDefaultModel()
}

// Analyze implements Analyzer. Ollama takes raw base64, so every image must
// be a data URL.
func (a *OllamaAnalyzer) Analyze(ctx context.Context, req Request) (string, error) {
	payloads := make([]string, len(req.Images))
	for i, img := range req.Images {
		_, payload, err := SplitDataURL(img.URL)
		if err != nil {
			return "", fmt.Errorf("image %d (%s): %w", i+1, img.Name, err)
		}
		payloads[i] = payload
	}

	resp, err := a.client.ChatWithOptions(ctx, "", []ollama.Message{
		ollama.NewVisionMessage(req.Prompt, payloads...),
	}, &ollama.Options{NumPredict: a.maxTokens})
	if ollama.IsModelNotFound(err) {
		return "", fmt.Errorf("%w (run 'ollama pull %s')", err, a.Model())
	}
	if err != nil {
		return "", err
	}

	log.Printf("OLLAMA_ANSWER | model=%s images=%d tokens=%d tokens_per_sec=%.1f total=%s",
		resp.Model, len(payloads), resp.EvalCount, resp.TokensPerSecond(), resp.TotalTime())

	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		return "", errors.New("ollama returned an empty response")
	}
	return text, nil
}

// SplitDataURL returns the media type and base64 payload of a data URL.
func SplitDataURL(u string) (mediaType, payload string, err error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return "", "", ErrNotDataURL
	}
	header, data, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", ErrNotDataURL
	}
	mediaType, ok = strings.CutSuffix(header, ";base64")
	if !ok {
		return "", "", ErrNotDataURL
	}
	return mediaType, data, nil
}

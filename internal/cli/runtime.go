// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/HyugaDev/batch-query-chatbot/internal/analysis"
	"github.com/HyugaDev/batch-query-chatbot/internal/api"
	"github.com/HyugaDev/batch-query-chatbot/internal/cloud"
	"github.com/HyugaDev/batch-query-chatbot/internal/config"
	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
	"github.com/HyugaDev/batch-query-chatbot/internal/notify"
	"github.com/HyugaDev/batch-query-chatbot/internal/ollama"
	"github.com/HyugaDev/batch-query-chatbot/internal/session"
)

// =============================================================================
// PROVIDER
// =============================================================================

// NewAnalyzer builds the provider analyzer selected by provider.name.
func NewAnalyzer(cfg *config.Config) (analysis.Analyzer, error) {
	switch cfg.Provider.Name {
	case analysis.ProviderOpenRouter:
		client := cloud.NewOpenRouterClient(cfg.Cloud.OpenRouterKey).
			WithBaseURL(cfg.Cloud.BaseURL).
			WithTimeout(cfg.ProviderTimeout()).
			WithMaxTokens(cfg.Provider.MaxTokens)
		if cfg.Provider.Model != "" {
			client = client.WithModel(cfg.Provider.Model)
		}
		return analysis.NewOpenRouterAnalyzer(client), nil

	case analysis.ProviderOllama:
		return analysis.NewOllamaAnalyzer(NewOllamaClient(cfg), cfg.Provider.MaxTokens), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
}

// NewOllamaClient builds the Ollama client for cfg. provider.model wins
// over local.ollama_model.
func NewOllamaClient(cfg *config.Config) *ollama.Client {
	model := cfg.Provider.Model
	if model == "" {
		model = cfg.Local.OllamaModel
	}
	return ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Local.OllamaURL,
		Timeout:      cfg.ProviderTimeout(),
		DefaultModel: model,
	})
}

// NewService builds the analysis service for cfg.
func NewService(cfg *config.Config) (*analysis.Service, error) {
	primary, err := NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}
	return analysis.NewService(primary), nil
}

// =============================================================================
// ENDPOINT
// =============================================================================

// LocalEndpoint answers session requests with an in-process analysis
// service. It behaves like the HTTP endpoint without the network hop.
type LocalEndpoint struct {
	svc *analysis.Service
}

// NewLocalEndpoint wraps svc as a session endpoint.
func NewLocalEndpoint(svc *analysis.Service) *LocalEndpoint {
	return &LocalEndpoint{svc: svc}
}

// Analyze implements session.Endpoint.
func (e *LocalEndpoint) Analyze(ctx context.Context, req api.AnalyzeRequest) (string, error) {
	images := make([]analysis.Image, len(req.Images))
	for i, img := range req.Images {
		images[i] = analysis.Image{URL: img.URL, Name: img.Name}
	}
	result, err := e.svc.Analyze(ctx, req.Query, images)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// NewEndpoint returns the endpoint a client command talks to: the HTTP
// endpoint at client.endpoint, or an in-process service with --embedded.
func NewEndpoint(cfg *config.Config, embedded bool) (session.Endpoint, string, error) {
	if embedded {
		svc, err := NewService(cfg)
		if err != nil {
			return nil, "", err
		}
		return NewLocalEndpoint(svc), "embedded (" + svc.ProviderName() + ")", nil
	}
	client := api.NewClient(cfg.Client.Endpoint).WithTimeout(cfg.ClientTimeout())
	return client, client.BaseURL(), nil
}

// NewSession wires intake and session for a client command.
func NewSession(cfg *config.Config, embedded bool, n notify.Notifier) (*session.Session, string, error) {
	ep, desc, err := NewEndpoint(cfg, embedded)
	if err != nil {
		return nil, "", err
	}
	in := intake.New(n)
	return session.New(in, ep).WithNotifier(n), desc, nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package analysis answers a question about a set of images. A provider
// analyzer does the real work and a deterministic fallback stands in when
// the provider fails.
package analysis

import (
	"context"
	"errors"
	"strings"
)

// ErrBadRequest means the query or the image list is missing.
var ErrBadRequest = errors.New("query and images are required")

// Service is the analysis endpoint's core. It is stateless and safe for
// concurrent use.
type Service struct {
	chain *Chain
}

// NewService builds a service that falls back to FallbackAnalyzer whenever
// primary fails.
func NewService(primary Analyzer) *Service {
	return &Service{chain: WithFallback(primary, FallbackAnalyzer{})}
}

// ProviderName returns the name of the primary analyzer.
func (s *Service) ProviderName() string {
	return s.chain.Name()
}

// ProviderConfigured reports whether the primary analyzer can make calls.
func (s *Service) ProviderConfigured() bool {
	p := s.chain.Primary()
	return p != nil && IsConfigured(p)
}

// Analyze checks the request, builds the prompt and runs the provider with
// fallback. Only ErrBadRequest and fallback failures are returned as errors.
func (s *Service) Analyze(ctx context.Context, query string, images []Image) (Result, error) {
	if strings.TrimSpace(query) == "" || len(images) == 0 {
		return Result{}, ErrBadRequest
	}
	for _, img := range images {
		if img.URL == "" {
			return Result{}, ErrBadRequest
		}
	}

	return s.chain.Run(ctx, Request{
		Query:  query,
		Prompt: BuildPrompt(query, len(images)),
		Images: images,
	})
}

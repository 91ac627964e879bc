// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analysis

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Result sources. They are for logs and stats only; callers of the HTTP
// endpoint never see the difference.
const (
	SourceProvider = "provider"
	SourceFallback = "fallback"
)

// Image is one image handed to an analyzer, in request order.
type Image struct {
	URL  string
	Name string
}

// Request is what an Analyzer receives.
type Request struct {
	// Query is the user's question, verbatim.
	Query string

	// Prompt is the full instruction built from Query and the image count.
	Prompt string

	Images []Image
}

// Analyzer turns a request into analysis text.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, req Request) (string, error)
}

// Configurable is implemented by analyzers that can report missing setup
// (for example an absent API key) without making a call.
type Configurable interface {
	Configured() bool
}

// IsConfigured reports whether a is ready to make calls. Analyzers that do
// not implement Configurable are assumed ready.
func IsConfigured(a Analyzer) bool {
	if c, ok := a.(Configurable); ok {
		return c.Configured()
	}
	return true
}

// Result is the outcome of a Chain run.
type Result struct {
	Text     string
	Source   string
	Provider string
	Duration time.Duration

	// ProviderErr is the swallowed primary failure when Source is SourceFallback.
	ProviderErr error
}

// =============================================================================
// FALLBACK CHAIN
// =============================================================================

// Chain calls a primary analyzer and substitutes the fallback's answer when
// the primary fails.
type Chain struct {
	primary  Analyzer
	fallback Analyzer
}

// WithFallback composes primary and fallback. A nil primary always falls back.
func WithFallback(primary, fallback Analyzer) *Chain {
	return &Chain{primary: primary, fallback: fallback}
}

// Primary returns the primary analyzer.
func (c *Chain) Primary() Analyzer {
	return c.primary
}

// Name returns the primary analyzer's name.
func (c *Chain) Name() string {
	if c.primary == nil {
		return c.fallback.Name()
	}
	return c.primary.Name()
}

// Analyze implements Analyzer. It only fails if the fallback fails.
func (c *Chain) Analyze(ctx context.Context, req Request) (string, error) {
	res, err := c.Run(ctx, req)
	return res.Text, err
}

// Run performs one primary call and, on any error, one fallback call.
func (c *Chain) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	var providerErr error
	if c.primary != nil {
		text, err := c.primary.Analyze(ctx, req)
		if err == nil {
			return Result{
				Text:     text,
				Source:   SourceProvider,
				Provider: c.primary.Name(),
				Duration: time.Since(start),
			}, nil
		}
		providerErr = err
		log.Printf("ANALYZE_FALLBACK | provider=%s images=%d error=%v", c.primary.Name(), len(req.Images), err)
	} else {
		providerErr = fmt.Errorf("no provider configured")
	}

	// The provider's deadline may already be spent; the fallback is local.
	text, err := c.fallback.Analyze(context.WithoutCancel(ctx), req)
	if err != nil {
		return Result{}, fmt.Errorf("fallback failed after provider error %v: %w", providerErr, err)
	}
	return Result{
		Text:        text,
		Source:      SourceFallback,
		Provider:    c.fallback.Name(),
		Duration:    time.Since(start),
		ProviderErr: providerErr,
	}, nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api defines the wire format of the analysis endpoint and the
// HTTP client the chat session uses to call it.
package api

// ImageRef is one image in an analysis request.
type ImageRef struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Query  string     `json:"query"`
	Images []ImageRef `json:"images"`
}

// AnalyzeResponse is the success body of POST /analyze.
type AnalyzeResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status             string `json:"status"`
	Version            string `json:"version"`
	Provider           string `json:"provider"`
	ProviderConfigured bool   `json:"provider_configured"`
}

// LimitsResponse is the body of GET /limits.
type LimitsResponse struct {
	MaxImages      int      `json:"max_images"`
	MaxImageBytes  int64    `json:"max_image_bytes"`
	AllowedTypes   []string `json:"allowed_types"`
	MinQueryLength int      `json:"min_query_length"`
	MaxQueryLength int      `json:"max_query_length"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	TotalRequests   int64  `json:"total_requests"`
	ProviderAnswers int64  `json:"provider_answers"`
	FallbackAnswers int64  `json:"fallback_answers"`
	BadRequests     int64  `json:"bad_requests"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	Uptime          string `json:"uptime"`
}

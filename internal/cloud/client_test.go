// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const testKey = "sk-or-test-abcdefghijklmnopqrstuvwxyz0123456789"

const okBody = `{
	"id": "test-id",
	"model": "openai/gpt-4o",
	"choices": [{
		"message": {"role": "assistant", "content": "Image 1: a lighthouse"},
		"finish_reason": "stop"
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30}
}`

// =============================================================================
// REQUEST SHAPE TESTS
// =============================================================================

// TestChat_VisionRequestShape verifies images are sent as image_url parts
// after the text part, in order, with max_tokens set.
func TestChat_VisionRequestShape(t *testing.T) {
	var got ChatRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(okBody))
	}))
	defer server.Close()

	client := NewOpenRouterClient(testKey).WithBaseURL(server.URL).WithMaxTokens(1000)
	resp, err := client.Chat(context.Background(), []ChatMessage{
		NewVisionMessage("describe", "data:image/png;base64,AAA", "data:image/jpeg;base64,BBB"),
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.GetContent() != "Image 1: a lighthouse" {
		t.Errorf("GetContent() = %q", resp.GetContent())
	}

	if auth != "Bearer "+testKey {
		t.Errorf("Authorization header = %q", auth)
	}
	if got.MaxTokens != 1000 {
		t.Errorf("max_tokens = %d, want 1000", got.MaxTokens)
	}
	if got.Stream {
		t.Error("stream should be false")
	}
	if len(got.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(got.Messages))
	}

	parts := got.Messages[0].Content
	if len(parts) != 3 {
		t.Fatalf("content parts = %d, want 3", len(parts))
	}
	if parts[0].Type != PartText || parts[0].Text != "describe" {
		t.Errorf("part 0 = %+v, want text 'describe'", parts[0])
	}
	if parts[1].ImageURL == nil || parts[1].ImageURL.URL != "data:image/png;base64,AAA" {
		t.Errorf("part 1 = %+v, want first image", parts[1])
	}
	if parts[2].ImageURL == nil || parts[2].ImageURL.URL != "data:image/jpeg;base64,BBB" {
		t.Errorf("part 2 = %+v, want second image", parts[2])
	}
}

// TestChat_NotConfigured verifies no request is made without a key.
func TestChat_NotConfigured(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewOpenRouterClient("  ").WithBaseURL(server.URL)
	_, err := client.Chat(context.Background(), []ChatMessage{NewVisionMessage("hello")})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
	if calls.Load() != 0 {
		t.Errorf("server called %d times, want 0", calls.Load())
	}
}

// TestChat_SingleAttempt verifies WithMaxRetries(1) never retries.
func TestChat_SingleAttempt(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"code":503,"message":"upstream unavailable"}}`))
	}))
	defer server.Close()

	client := NewOpenRouterClient(testKey).WithBaseURL(server.URL).WithMaxRetries(1)
	_, err := client.Chat(context.Background(), []ChatMessage{NewVisionMessage("hello")})

	var orErr *OpenRouterError
	if !errors.As(err, &orErr) {
		t.Fatalf("error = %v, want *OpenRouterError", err)
	}
	if orErr.Status != 503 || orErr.Code != "503" || orErr.Message != "upstream unavailable" {
		t.Errorf("OpenRouterError = %+v", orErr)
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}
}

// TestChat_RetriesTransientErrors verifies a 5xx followed by success.
func TestChat_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(okBody))
	}))
	defer server.Close()

	client := NewOpenRouterClient(testKey).WithBaseURL(server.URL).WithMaxRetries(2)
	resp, err := client.Chat(context.Background(), []ChatMessage{NewVisionMessage("hello")})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.GetContent() == "" {
		t.Error("expected content after retry")
	}
	if calls.Load() != 2 {
		t.Errorf("server called %d times, want 2", calls.Load())
	}
}

// TestChat_ErrorMapping verifies HTTP status to sentinel mapping.
func TestChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusUnauthorized, `{"error":{"code":401,"message":"No auth credentials found"}}`, ErrAuthFailed},
		{http.StatusPaymentRequired, `{"error":{"message":"Insufficient credits"}}`, ErrInsufficientCredits},
		{http.StatusNotFound, `not json`, ErrModelNotFound},
		{http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, ErrRateLimited},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("HTTP %d", tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := NewOpenRouterClient(testKey).WithBaseURL(server.URL).WithMaxRetries(1)
			_, err := client.Chat(context.Background(), []ChatMessage{NewVisionMessage("hello")})
			if !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

// TestChat_EmptyCompletion verifies a 200 without content is an error.
func TestChat_EmptyCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	client := NewOpenRouterClient(testKey).WithBaseURL(server.URL)
	_, err := client.Chat(context.Background(), []ChatMessage{NewVisionMessage("hello")})
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("error = %v, want ErrEmptyCompletion", err)
	}
}

// =============================================================================
// CONFIGURATION TESTS
// =============================================================================

func TestNewOpenRouterClient(t *testing.T) {
	client := NewOpenRouterClient(testKey)
	if !client.IsConfigured() {
		t.Error("Client should be configured with valid API key")
	}
	if client.GetModel() != DefaultModel {
		t.Errorf("default model = %s, want %s", client.GetModel(), DefaultModel)
	}
	if client.MaxTokens() != DefaultMaxTokens {
		t.Errorf("MaxTokens() = %d, want %d", client.MaxTokens(), DefaultMaxTokens)
	}
	if NewOpenRouterClient("").IsConfigured() {
		t.Error("Client with empty API key should not be configured")
	}
}

func TestWithModel_FriendlyNames(t *testing.T) {
	client := NewOpenRouterClient(testKey).WithModel("sonnet")
	if client.GetModel() != "anthropic/claude-3.5-sonnet" {
		t.Errorf("WithModel(sonnet) = %s", client.GetModel())
	}

	client.WithModel("meta-llama/llama-3.2-90b-vision-instruct")
	if client.GetModel() != "meta-llama/llama-3.2-90b-vision-instruct" {
		t.Errorf("WithModel(full id) = %s", client.GetModel())
	}

	client.WithModel("")
	if client.GetModel() != "meta-llama/llama-3.2-90b-vision-instruct" {
		t.Error("WithModel(\"\") should keep the current model")
	}
}

// TestMaskKey verifies no part of the key is exposed.
func TestMaskKey(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		prefix string
	}{
		{"empty key", "", "[not set]"},
		{"short key", "abc", "[REDACTED, length=3, fingerprint="},
		{"normal key", "sk-or-test-abc123", "[REDACTED, length=17, fingerprint="},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			masked := MaskKey(tc.apiKey)
			if !strings.HasPrefix(masked, tc.prefix) {
				t.Errorf("masked = %q, want prefix %q", masked, tc.prefix)
			}
			if tc.apiKey != "" && strings.Contains(masked, tc.apiKey) {
				t.Errorf("masked key leaks the original: %q", masked)
			}
		})
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		valid  bool
	}{
		{"valid key", "sk-or-v1-abcdefghijklmnopqrstuvwxyz0123456789", true},
		{"wrong prefix", "sk-abc-test-key-here", false},
		{"too short", "sk-or-short", false},
		{"low entropy", "sk-or-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", false},
		{"empty", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateAPIKey(tc.apiKey); got != tc.valid {
				t.Errorf("ValidateAPIKey(%q) = %v, want %v", tc.apiKey, got, tc.valid)
			}
		})
	}
}

// =============================================================================
// ERROR AND RETRY TESTS
// =============================================================================

func TestOpenRouterError(t *testing.T) {
	withCode := &OpenRouterError{Code: "invalid_api_key", Message: "API key is invalid", Status: 401}
	if got := withCode.Error(); got != "OpenRouter error [invalid_api_key] (HTTP 401): API key is invalid" {
		t.Errorf("Error() = %q", got)
	}

	noCode := &OpenRouterError{Message: "Server error", Status: 500}
	if got := noCode.Error(); got != "OpenRouter error (HTTP 500): Server error" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIsRetryable(t *testing.T) {
	client := NewOpenRouterClient(testKey)

	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"rate limited", ErrRateLimited, true},
		{"server error 500", &OpenRouterError{Status: 500}, true},
		{"server error 503", &OpenRouterError{Status: 503}, true},
		{"client error 400", &OpenRouterError{Status: 400}, false},
		{"auth failed", ErrAuthFailed, false},
		{"context canceled", context.Canceled, false},
		{"context deadline", context.DeadlineExceeded, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := client.isRetryable(tc.err); got != tc.retryable {
				t.Errorf("isRetryable(%v) = %v, want %v", tc.err, got, tc.retryable)
			}
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	client := NewOpenRouterClient(testKey)

	cases := map[int]time.Duration{
		0:  500 * time.Millisecond,
		1:  time.Second,
		2:  2 * time.Second,
		10: 10 * time.Second,
	}
	for attempt, want := range cases {
		if got := client.calculateBackoff(attempt); got != want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", attempt, got, want)
		}
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/HyugaDev/batch-query-chatbot/internal/cloud"
	"github.com/HyugaDev/batch-query-chatbot/internal/config"
	"github.com/HyugaDev/batch-query-chatbot/internal/ollama"
	"github.com/HyugaDev/batch-query-chatbot/internal/server"
)

// shutdownTimeout bounds how long in-flight requests get on SIGINT/SIGTERM.
const shutdownTimeout = 10 * time.Second

const ollamaProbeTimeout = 3 * time.Second

// NewServer builds the HTTP server described by cfg.
func NewServer(cfg *config.Config) (*server.Server, error) {
	svc, err := NewService(cfg)
	if err != nil {
		return nil, err
	}
	srv := server.NewServer(svc).
		WithAddr(cfg.Server.Host, cfg.Server.Port).
		WithRateLimiter(server.NewRateLimiter(cfg.Server.RateLimitPerMinute, cfg.Server.RateLimitBurst)).
		WithCORS(server.NewCORSConfig(cfg.Server.AllowedOrigins))
	return srv, nil
}

// HandleServe runs the analysis endpoint until SIGINT or SIGTERM.
func HandleServe(ctx context.Context, args Args, cfg *config.Config) error {
	srv, err := NewServer(cfg)
	if err != nil {
		return err
	}

	if !args.Quiet {
		fmt.Println(TitleStyle.Render("imagechat analysis endpoint"))
		printField(os.Stdout, "Listening:", "http://"+srv.Addr())
		printField(os.Stdout, "Provider:", providerSummary(cfg))
		if warning := providerWarning(ctx, cfg); warning != "" {
			fmt.Println(WarningStyle.Render("[!]") + " " + warning)
		}
		fmt.Println(DimStyle.Render("Press Ctrl+C to stop"))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("SERVER_SIGNAL | shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)

	snap := srv.Stats().Snapshot()
	log.Printf("SERVER_STOP | requests=%d provider=%d fallback=%d bad=%d uptime=%s",
		snap.TotalRequests, snap.ProviderAnswers, snap.FallbackAnswers, snap.BadRequests, snap.Uptime)
	return err
}

// providerWarning explains why the configured provider will probably fail,
// or returns "". Ollama is probed with a short timeout.
func providerWarning(ctx context.Context, cfg *config.Config) string {
	if cfg.Provider.Name != "ollama" {
		switch key := cfg.Cloud.OpenRouterKey; {
		case key == "":
			return "OPENROUTER_API_KEY is not set; every answer will be the demo fallback"
		case !cloud.ValidateAPIKey(key):
			return "OPENROUTER_API_KEY does not look like an OpenRouter key (sk-or-...)"
		}
		return ""
	}

	client := NewOllamaClient(cfg)
	ctx, cancel := context.WithTimeout(ctx, ollamaProbeTimeout)
	defer cancel()

	models, err := client.ListModels(ctx)
	switch {
	case ollama.IsNotRunning(err):
		return fmt.Sprintf("Ollama is not running at %s; every answer will be the demo fallback", client.GetConfig().BaseURL)
	case ollama.IsTimeout(err):
		return "Ollama did not answer within " + ollamaProbeTimeout.String()
	case err != nil:
		return "Ollama: " + err.Error()
	}

	want := client.GetDefaultModel()
	for _, m := range models {
		if m.Name != want && strings.TrimSuffix(m.Name, ":latest") != want {
			continue
		}
		if len(m.Details.Families) > 0 && !m.IsVision() {
			return fmt.Sprintf("model %s has no vision support", want)
		}
		return ""
	}
	return fmt.Sprintf("model %s is not pulled; run 'ollama pull %s'", want, want)
}

func providerSummary(cfg *config.Config) string {
	switch cfg.Provider.Name {
	case "ollama":
		model := cfg.Provider.Model
		if model == "" {
			model = cfg.Local.OllamaModel
		}
		return "ollama " + model + " at " + cfg.Local.OllamaURL
	default:
		model := cfg.Provider.Model
		if model == "" {
			model = "default vision model"
		}
		return "openrouter " + model
	}
}

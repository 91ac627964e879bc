// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves imagechat configuration.
//
// # Configuration Precedence
//
// Later sources win:
//   - Built-in defaults
//   - ~/.imagechat/config.toml, or config.json when no TOML file exists,
//     or the file named by --config
//   - OPENROUTER_API_KEY and IMAGECHAT_* environment variables
//
// A .env file in the working directory is loaded into the environment at
// startup (LoadDotEnv) without overriding variables that are already set.
//
// # Sections
//
//	[server]    host, port, rate_limit_per_minute, rate_limit_burst, allowed_origins
//	[provider]  name (openrouter|ollama), model, max_tokens, timeout_secs
//	[cloud]     openrouter_key, base_url
//	[local]     ollama_url, ollama_model
//	[client]    endpoint, timeout_secs, watch_dir, log_file
//
// # Usage
//
//	_ = config.LoadDotEnv()
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := server.NewServer(svc).WithAddr(cfg.Server.Host, cfg.Server.Port)
package config
